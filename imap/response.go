package imap

import (
	"strings"
)

// Functions

// IsTagged reports whether a received server line is
// the tagged completion response for the supplied tag.
func IsTagged(line string, tag string) bool {
	return strings.HasPrefix(line, (tag + " "))
}

// IsUntagged reports whether a received server line
// is an untagged status or data response.
func IsUntagged(line string) bool {
	return strings.HasPrefix(line, "*")
}

// IsContinuation reports whether a received server
// line is a continuation request for more client data.
func IsContinuation(line string) bool {
	return strings.HasPrefix(line, "+")
}
