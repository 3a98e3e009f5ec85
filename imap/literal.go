package imap

import (
	"strconv"
	"strings"
)

// Structs

// Literal describes a literal announcement of the
// form {N} or {N+} at the tail of a command line.
// N is the exact number of octets the client will
// transmit after the announcement.
type Literal struct {
	NumBytes int
	Sync     bool
}

// Functions

// ParseLiteral inspects the tail of a command payload
// for a literal announcement and extracts the announced
// octet count. Synchronizing literals ({N}) require a
// continuation response before the client sends data,
// non-synchronizing ones ({N+}) do not. The second
// return value reports whether a well-formed
// announcement was present.
func ParseLiteral(payload string) (*Literal, bool) {

	text := strings.TrimRight(payload, " \t")

	if strings.HasSuffix(text, "}") != true {
		return nil, false
	}

	open := strings.LastIndex(text, "{")
	if open < 0 {
		return nil, false
	}

	inner := text[(open + 1):(len(text) - 1)]

	lit := &Literal{
		Sync: true,
	}

	// A trailing plus sign marks the literal
	// as non-synchronizing.
	if strings.HasSuffix(inner, "+") {
		lit.Sync = false
		inner = strings.TrimSuffix(inner, "+")
	}

	num, err := strconv.Atoi(inner)
	if (err != nil) || (num < 0) {
		return nil, false
	}

	lit.NumBytes = num

	return lit, true
}
