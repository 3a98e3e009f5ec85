package imap

import (
	"fmt"
	"strings"
)

// Variables

// SupportedCommands is a quick access map
// for checking if a supplied token is a
// known IMAP command word.
var SupportedCommands map[string]bool

// Structs

// Request represents the parsed content of a client
// command line received by the proxy. Payload will be
// examined further in command specific functions.
type Request struct {
	Tag     string
	Command string
	Payload string
}

// Functions

func init() {

	// Set known IMAP commands to true in a
	// map to have quick access.
	SupportedCommands = make(map[string]bool)

	SupportedCommands["CAPABILITY"] = true
	SupportedCommands["NOOP"] = true
	SupportedCommands["LOGOUT"] = true
	SupportedCommands["STARTTLS"] = true
	SupportedCommands["AUTHENTICATE"] = true
	SupportedCommands["LOGIN"] = true
	SupportedCommands["SELECT"] = true
	SupportedCommands["EXAMINE"] = true
	SupportedCommands["CREATE"] = true
	SupportedCommands["DELETE"] = true
	SupportedCommands["RENAME"] = true
	SupportedCommands["SUBSCRIBE"] = true
	SupportedCommands["UNSUBSCRIBE"] = true
	SupportedCommands["LIST"] = true
	SupportedCommands["LSUB"] = true
	SupportedCommands["STATUS"] = true
	SupportedCommands["APPEND"] = true
	SupportedCommands["CHECK"] = true
	SupportedCommands["CLOSE"] = true
	SupportedCommands["UNSELECT"] = true
	SupportedCommands["EXPUNGE"] = true
	SupportedCommands["SEARCH"] = true
	SupportedCommands["FETCH"] = true
	SupportedCommands["STORE"] = true
	SupportedCommands["COPY"] = true
	SupportedCommands["UID"] = true
	SupportedCommands["IDLE"] = true
	SupportedCommands["ID"] = true
}

// ParseRequest takes in a raw string representing
// a received IMAP request and parses it into the
// defined request structure above. The proxy never
// rejects lines it cannot parse, callers relay them
// to the upstream server which is the authority on
// protocol errors.
func ParseRequest(req string) (*Request, error) {

	// Split req at space symbols at maximum two times.
	tmpReq := strings.SplitN(req, " ", 3)

	// There exists no first class IMAP command with less
	// than two arguments. Return an error if only one
	// token was found.
	if len(tmpReq) < 2 {
		return nil, fmt.Errorf("received invalid IMAP command")
	}

	// Check that the tag was not left out.
	if SupportedCommands[strings.ToUpper(tmpReq[0])] {
		return nil, fmt.Errorf("received invalid IMAP command")
	}

	// Assign corresponding parts in new struct.
	finalReq := &Request{
		Tag:     tmpReq[0],
		Command: strings.ToUpper(tmpReq[1]),
	}

	// If the command has a defined payload, add
	// it to the struct as blob payload text.
	if len(tmpReq) > 2 {
		finalReq.Payload = tmpReq[2]
	}

	return finalReq, nil
}
