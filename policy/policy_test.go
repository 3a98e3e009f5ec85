package policy_test

import (
	"testing"

	"github.com/sheperdglobal-alt/imap-email-filter/config"
	"github.com/sheperdglobal-alt/imap-email-filter/inspect"
	"github.com/sheperdglobal-alt/imap-email-filter/policy"
)

// Structs

var decideTests = []struct {
	enabled   bool
	threshold float64
	amount    float64
	hold      bool
}{
	{true, 1000.00, 2500.00, true},
	{true, 1000.00, 999.99, false},
	{true, 1000.00, 1000.00, true},
	{true, 1000.00, 0, false},
	{false, 1000.00, 2500.00, false},
	{true, 0, 0, true},
}

// Functions

// TestDecide executes a black-box table test on
// the hold-or-deliver decision.
func TestDecide(t *testing.T) {

	for i, tt := range decideTests {

		filter := config.Filter{
			QuarantineEnabled: tt.enabled,
			MinAmount:         tt.threshold,
		}

		meta := &inspect.Meta{
			Amount: tt.amount,
		}

		hold := policy.Decide(meta, filter)

		if hold != tt.hold {
			t.Fatalf("[policy.TestDecide] %d: Expected hold '%t' for amount '%f' at threshold '%f' but received '%t'\n", i, tt.hold, tt.amount, tt.threshold, hold)
		}
	}
}
