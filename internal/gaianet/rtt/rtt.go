// Package rtt implements an exponentially smoothed round-trip-time
// estimator driven by ack timing.
package rtt

import "time"

// Tracker maintains an EWMA of observed round-trip latencies.
type Tracker struct {
	smoothingFactor float64
	maxValue        time.Duration
	current         time.Duration
}

// New creates a Tracker. smoothingFactor must be in (0, 1]; maxValue caps
// any single sample before it is folded into the estimate.
func New(smoothingFactor float64, maxValue time.Duration) *Tracker {
	return &Tracker{
		smoothingFactor: smoothingFactor,
		maxValue:        maxValue,
	}
}

// Sample folds one observed round-trip latency into the estimate,
// clamping it to maxValue first.
func (t *Tracker) Sample(observed time.Duration) {
	if observed > t.maxValue {
		observed = t.maxValue
	}
	if observed < 0 {
		observed = 0
	}
	delta := observed - t.current
	t.current += time.Duration(t.smoothingFactor * float64(delta))
}

// Get returns the current RTT estimate.
func (t *Tracker) Get() time.Duration {
	return t.current
}
