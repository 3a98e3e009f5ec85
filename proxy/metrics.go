package proxy

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// Structs

// Metrics bundles the instrumentation counters the proxy
// updates while relaying sessions.
type Metrics struct {
	Sessions  metrics.Counter
	Relayed   metrics.Counter
	Held      metrics.Counter
	Delivered metrics.Counter
}

// Functions

// NewDiscardMetrics returns a metrics bundle dropping
// every update. It is used when no metrics endpoint is
// configured.
func NewDiscardMetrics() *Metrics {

	return &Metrics{
		Sessions:  discard.NewCounter(),
		Relayed:   discard.NewCounter(),
		Held:      discard.NewCounter(),
		Delivered: discard.NewCounter(),
	}
}
