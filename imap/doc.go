/*
Package imap contains the wire-level building blocks the proxy needs to follow
IMAP conversations without owning them: splitting raw client lines into tagged
requests, classifying server responses, and recognizing the literal
announcements that switch the protocol from line mode into counted octet mode.

The proxy never implements mailbox semantics itself. It only parses as much of
the protocol as is required to know who holds the turn on each connection and
where command boundaries lie, everything else is relayed verbatim.

Please refer to https://tools.ietf.org/html/rfc3501#section-4.3 for literals
and https://tools.ietf.org/html/rfc3501 for the full IMAP v4 rev1 RFC.
*/
package imap
