// Package breaker implements the per-provider circuit breaker that fails
// fast when a provider is unhealthy.
//
// The breaker counts failures within a sliding window. Once the count
// reaches the threshold it opens, and every call during the cooldown is
// rejected without a network attempt. When the cooldown elapses the
// breaker simply closes again: there is no explicit half-open probe
// state, the very next call is let through and treated as a normal call.
// A single success fully resets the failure window.
//
// Only transient failure classes feed the breaker (HTTP 5xx, HTTP 429,
// network transport errors); ordinary 4xx client errors are terminal but
// never count toward it. That classification lives in the orchestrator.
package breaker

import (
	"sync"
	"time"
)

// Config configures a circuit breaker.
type Config struct {
	// Threshold is the number of failures within Window that opens
	// the breaker.
	Threshold int

	// Window is the sliding window over which failures are counted.
	Window time.Duration

	// Cooldown is how long the breaker stays open once tripped.
	Cooldown time.Duration

	// Clock overrides the time source for tests.
	Clock func() time.Time
}

// Breaker is a sliding-window circuit breaker. One instance is shared by
// all callers against a provider.
type Breaker struct {
	threshold int
	window    time.Duration
	cooldown  time.Duration

	failures []time.Time
	openedAt time.Time

	// Observability counters
	trips     uint64
	successes uint64

	mu  sync.Mutex
	now func() time.Time
}

// New creates a circuit breaker with the given configuration.
func New(cfg Config) *Breaker {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Breaker{
		threshold: cfg.Threshold,
		window:    cfg.Window,
		cooldown:  cfg.Cooldown,
		now:       clock,
	}
}

// RecordFailure appends a failure, prunes entries outside the window,
// and opens the breaker when the pruned count reaches the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.failures = append(b.failures, now)
	b.pruneLocked(now)

	if len(b.failures) >= b.threshold && b.openedAt.IsZero() {
		b.openedAt = now
		b.trips++
	}
}

// RecordSuccess fully resets the breaker. A single success clears the
// failure window and closes the breaker; there is no gradual decay.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = b.failures[:0]
	b.openedAt = time.Time{}
	b.successes++
}

// IsOpen reports whether calls should fail fast. An elapsed cooldown
// closes the breaker as a side effect, so the next call goes through.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openedAt.IsZero() {
		return false
	}

	if b.now().Sub(b.openedAt) > b.cooldown {
		b.openedAt = time.Time{}
		return false
	}
	return true
}

// RetryIn returns how long until the cooldown elapses, or zero when the
// breaker is closed.
func (b *Breaker) RetryIn() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openedAt.IsZero() {
		return 0
	}
	remaining := b.cooldown - b.now().Sub(b.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stats is a point-in-time snapshot of breaker state.
type Stats struct {
	// Open reports whether the breaker is currently open.
	Open bool

	// RecentFailures is the failure count within the sliding window.
	RecentFailures int

	// OpenedAt is when the breaker opened (zero when closed).
	OpenedAt time.Time

	// Trips counts how many times the breaker has opened.
	Trips uint64

	// Successes counts recorded successes.
	Successes uint64
}

// Stats returns a snapshot of the breaker state.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.pruneLocked(now)

	open := !b.openedAt.IsZero() && now.Sub(b.openedAt) <= b.cooldown

	return Stats{
		Open:           open,
		RecentFailures: len(b.failures),
		OpenedAt:       b.openedAt,
		Trips:          b.trips,
		Successes:      b.successes,
	}
}

// pruneLocked drops failures older than the window. Caller must hold
// the lock.
func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.window)
	keep := b.failures[:0]
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	b.failures = keep
}
