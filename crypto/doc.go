/*
Package crypto assembles the TLS configurations used by the proxy: the strict
server-side parameters of the secure client-facing listener and the client-side
parameters for connections to the upstream IMAP server. It also provides a
script to generate a self-signed certificate for the secure listener.
*/
package crypto
