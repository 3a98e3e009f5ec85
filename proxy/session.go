package proxy

import (
	"strings"

	"github.com/sheperdglobal-alt/imap-email-filter/imap"
)

// Constants

// Coarse IMAP protocol states a session moves through.
// They steer nothing but logging and termination, the
// relay itself is state independent.
const (
	StateNotAuthenticated State = iota
	StateAuthenticated
	StateSelected
	StateLogout
)

// Structs

// State is the coarse IMAP protocol state of a session.
type State int

// Session carries all information specific to one
// proxied connection between a mail client and the
// upstream IMAP server it believes it is talking to.
type Session struct {
	Client   *Connection
	Upstream *Connection
	State    State
}

// Functions

func (s State) String() string {

	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateSelected:
		return "selected"
	case StateLogout:
		return "logout"
	default:
		return "not authenticated"
	}
}

// Transition derives the protocol state after a relayed
// command completed, based on the tagged response the
// upstream server answered with.
func (s *Session) Transition(req *imap.Request, taggedResp string) {

	if imap.IsTagged(taggedResp, req.Tag) != true {
		return
	}

	fields := strings.Fields(taggedResp)
	if (len(fields) < 2) || (strings.ToUpper(fields[1]) != "OK") {
		return
	}

	switch req.Command {

	case "LOGIN", "AUTHENTICATE":
		s.State = StateAuthenticated

	case "SELECT", "EXAMINE":
		s.State = StateSelected

	case "CLOSE", "UNSELECT":
		if s.State == StateSelected {
			s.State = StateAuthenticated
		}
	}
}

// Terminate closes both legs of the session, tolerating
// errors on either side. No resources survive any exit
// path of a session.
func (s *Session) Terminate() {

	if s.Client != nil {
		s.Client.Terminate()
	}

	if s.Upstream != nil {
		s.Upstream.Terminate()
	}
}
