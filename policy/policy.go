package policy

import (
	"github.com/sheperdglobal-alt/imap-email-filter/config"
	"github.com/sheperdglobal-alt/imap-email-filter/inspect"
)

// Functions

// Decide is a pure function deciding whether a message
// with the supplied metadata is held back in quarantine
// instead of being delivered upstream. An amount exactly
// at the configured threshold is held.
func Decide(meta *inspect.Meta, filter config.Filter) bool {

	if filter.QuarantineEnabled != true {
		return false
	}

	return meta.Amount >= filter.MinAmount
}
