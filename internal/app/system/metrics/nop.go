// Package metrics exposes allocation and ledger-audit metrics.
package metrics

import "time"

// NopMetrics discards everything. Used when metrics are disabled.
type NopMetrics struct{}

// NewNop creates a no-op collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (n *NopMetrics) RecordSignup(_ string)                     {}
func (n *NopMetrics) RecordDrop(_ string, _ bool)               {}
func (n *NopMetrics) RecordPromotion(_ string)                  {}
func (n *NopMetrics) RecordPurge(_ int64)                       {}
func (n *NopMetrics) RecordRetry(_ string)                      {}
func (n *NopMetrics) RecordInvariantViolation(_ string)         {}
func (n *NopMetrics) ObserveDuration(_ string, _ time.Duration) {}
func (n *NopMetrics) RecordLedgerSweep(_, _ int)                {}
