// Package liveness implements the two polled deadlines that drive heartbeat
// emission and silence-based disconnect detection.
package liveness

import "time"

// Timer tracks a single rolling deadline: it fires once the configured
// interval has elapsed since the last reset, and stays fired until reset
// again. There is no internal goroutine; the owner polls Elapsed().
type Timer struct {
	interval time.Duration
	deadline time.Time
	now      func() time.Time
}

// New creates a Timer armed to fire interval from now.
func New(interval time.Duration) *Timer {
	return newWithClock(interval, time.Now)
}

// newWithClock is used by tests to inject a deterministic clock.
func newWithClock(interval time.Duration, now func() time.Time) *Timer {
	t := &Timer{interval: interval, now: now}
	t.Reset()
	return t
}

// Reset pushes the deadline interval forward from the current time.
func (t *Timer) Reset() {
	t.deadline = t.now().Add(t.interval)
}

// Elapsed reports whether the interval has elapsed since the last Reset.
func (t *Timer) Elapsed() bool {
	return !t.now().Before(t.deadline)
}

// Timers bundles the heartbeat and timeout deadlines a Connection polls.
type Timers struct {
	Heartbeat *Timer
	Timeout   *Timer
}

// NewTimers creates a Timers with the given heartbeat interval and
// disconnection timeout duration.
func NewTimers(heartbeatInterval, timeoutDuration time.Duration) *Timers {
	return &Timers{
		Heartbeat: New(heartbeatInterval),
		Timeout:   New(timeoutDuration),
	}
}

// ShouldSendHeartbeat is true once the heartbeat interval has elapsed
// since the last outgoing packet of any type.
func (t *Timers) ShouldSendHeartbeat() bool { return t.Heartbeat.Elapsed() }

// MarkSent resets the heartbeat timer; called on every outgoing packet.
func (t *Timers) MarkSent() { t.Heartbeat.Reset() }

// ShouldDrop is true once the timeout duration has elapsed since the last
// syntactically valid incoming packet.
func (t *Timers) ShouldDrop() bool { return t.Timeout.Elapsed() }

// MarkHeard resets the timeout timer; called on every syntactically valid
// incoming packet.
func (t *Timers) MarkHeard() { t.Timeout.Reset() }
