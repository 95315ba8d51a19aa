package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Sentinel errors returned by Acquire. The orchestrator maps these to its
// caller-facing error taxonomy.
var (
	// ErrQueueFull is returned when the waiter queue is saturated.
	// The caller should fail fast rather than retry by waiting.
	ErrQueueFull = errors.New("ratelimit: waiter queue full")

	// ErrAcquireTimeout is returned when a waiter's deadline fires
	// before a token becomes available.
	ErrAcquireTimeout = errors.New("ratelimit: token acquire timed out")

	// ErrStopped is returned for acquisitions against a stopped bucket.
	ErrStopped = errors.New("ratelimit: bucket stopped")
)

// Pause clamp bounds for upstream Retry-After signals.
const (
	minPause = time.Second
	maxPause = 10 * time.Second
)

// Config configures a token bucket.
type Config struct {
	// MaxTokens is the bucket capacity (burst size) at full budget.
	MaxTokens float64

	// RefillRate is the number of tokens added per second at full budget.
	RefillRate float64

	// MaxQueueSize is the maximum number of queued waiters before
	// acquisitions fail fast with ErrQueueFull.
	MaxQueueSize int

	// TickInterval is the background refill/grant cadence.
	// Default: 100ms.
	TickInterval time.Duration

	// Clock overrides the time source for tests.
	Clock func() time.Time
}

// Bucket is a token bucket rate limiter with a FIFO waiter queue.
// One Bucket instance is shared by all callers against a provider.
type Bucket struct {
	maxTokens    float64
	refillRate   float64
	maxQueueSize int

	tokens      float64
	lastRefill  time.Time
	pausedUntil time.Time
	grace       bool
	queue       []*waiter
	stopped     bool

	// Observability counters
	totalAcquired     uint64
	immediateGrants   uint64
	queuedGrants      uint64
	rejectedQueueFull uint64
	acquireTimeouts   uint64
	pauses            uint64
	waitTotal         time.Duration

	mu   sync.Mutex
	now  func() time.Time
	done chan struct{}

	stopOnce sync.Once
}

// waiter is a queued acquisition. A waiter is resolved exactly once:
// either granted by the refill tick (front of queue, enqueue order) or
// rejected by its own deadline or context.
type waiter struct {
	enqueuedAt time.Time
	ready      chan error
	resolved   bool
}

// NewBucket creates a token bucket and starts its background refill tick.
//
// The bucket starts in grace mode: capacity and refill rate are halved
// until EndGracePeriod is called. Stop must be called on shutdown to
// cancel the tick.
func NewBucket(cfg Config) *Bucket {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	b := &Bucket{
		maxTokens:    cfg.MaxTokens,
		refillRate:   cfg.RefillRate,
		maxQueueSize: cfg.MaxQueueSize,
		grace:        true,
		now:          clock,
		done:         make(chan struct{}),
	}

	// Start with a full bucket at the grace-mode capacity.
	b.tokens = b.capacityLocked()
	b.lastRefill = clock()

	go b.tick(cfg.TickInterval)

	return b
}

// EndGracePeriod restores the full capacity and refill rate.
// Called once downstream consumers are warmed up.
func (b *Bucket) EndGracePeriod() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.grace = false
}

// Acquire obtains one token, suspending the caller until a token becomes
// available, the timeout elapses, or ctx is cancelled.
//
// The fast path grants immediately when a token is available and no
// earlier waiter is queued. Otherwise the caller joins the FIFO queue;
// ErrQueueFull is returned without waiting when the queue is saturated.
func (b *Bucket) Acquire(ctx context.Context, timeout time.Duration) error {
	b.mu.Lock()

	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}

	now := b.now()
	b.refillLocked(now)

	// Fast path: token available, nobody queued ahead, not paused.
	if b.tokens >= 1 && len(b.queue) == 0 && !b.pausedLocked(now) {
		b.tokens--
		b.totalAcquired++
		b.immediateGrants++
		b.mu.Unlock()
		return nil
	}

	if len(b.queue) >= b.maxQueueSize {
		b.rejectedQueueFull++
		b.mu.Unlock()
		return ErrQueueFull
	}

	w := &waiter{
		enqueuedAt: now,
		ready:      make(chan error, 1),
	}
	b.queue = append(b.queue, w)
	b.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case err := <-w.ready:
		return err

	case <-deadline.C:
		b.mu.Lock()
		if w.resolved {
			// The grant raced the deadline; the token is already
			// consumed, so accept it.
			b.mu.Unlock()
			return <-w.ready
		}
		b.removeLocked(w)
		b.acquireTimeouts++
		b.mu.Unlock()
		return ErrAcquireTimeout

	case <-ctx.Done():
		b.mu.Lock()
		if w.resolved {
			b.mu.Unlock()
			return <-w.ready
		}
		b.removeLocked(w)
		b.mu.Unlock()
		return ctx.Err()
	}
}

// NotifyRateLimited applies a global pause after an upstream HTTP 429.
//
// The bucket is emptied and all refilling is suspended for the clamped
// Retry-After duration (1s minimum, 10s maximum). Every caller against
// this provider backs off, not just the one that received the 429.
func (b *Bucket) NotifyRateLimited(retryAfter time.Duration) {
	if retryAfter < minPause {
		retryAfter = minPause
	}
	if retryAfter > maxPause {
		retryAfter = maxPause
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.tokens = 0
	b.pausedUntil = now.Add(retryAfter)
	// Elapsed pause time must not count toward the next refill.
	b.lastRefill = b.pausedUntil
	b.pauses++
}

// Stop cancels the background tick and rejects all queued waiters.
// The bucket must not be used after Stop.
func (b *Bucket) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		b.stopped = true
		for _, w := range b.queue {
			w.resolved = true
			w.ready <- ErrStopped
		}
		b.queue = nil
		b.mu.Unlock()
	})
}

// Stats is a point-in-time snapshot of bucket state for the
// observability surface.
type Stats struct {
	// Tokens is the current (fractional) token count.
	Tokens float64

	// Capacity is the current effective capacity (halved in grace mode).
	Capacity float64

	// QueueDepth is the number of waiters currently queued.
	QueueDepth int

	// GraceMode reports whether the bucket is still in grace mode.
	GraceMode bool

	// Paused reports whether a global pause is in effect.
	Paused bool

	// PausedUntil is when the current pause elapses (zero when not paused).
	PausedUntil time.Time

	// TotalAcquired counts all granted acquisitions.
	TotalAcquired uint64

	// ImmediateGrants counts fast-path grants with zero wait.
	ImmediateGrants uint64

	// QueuedGrants counts grants that waited in the queue.
	QueuedGrants uint64

	// RejectedQueueFull counts acquisitions rejected with ErrQueueFull.
	RejectedQueueFull uint64

	// AcquireTimeouts counts waiters whose deadline fired first.
	AcquireTimeouts uint64

	// Pauses counts global pauses applied via NotifyRateLimited.
	Pauses uint64

	// AvgWait is the rolling average wait time of queued grants.
	AvgWait time.Duration
}

// Stats returns a snapshot of the bucket state.
func (b *Bucket) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	s := Stats{
		Tokens:            b.tokens,
		Capacity:          b.capacityLocked(),
		QueueDepth:        len(b.queue),
		GraceMode:         b.grace,
		Paused:            b.pausedLocked(now),
		TotalAcquired:     b.totalAcquired,
		ImmediateGrants:   b.immediateGrants,
		QueuedGrants:      b.queuedGrants,
		RejectedQueueFull: b.rejectedQueueFull,
		AcquireTimeouts:   b.acquireTimeouts,
		Pauses:            b.pauses,
	}
	if s.Paused {
		s.PausedUntil = b.pausedUntil
	}
	if b.queuedGrants > 0 {
		s.AvgWait = b.waitTotal / time.Duration(b.queuedGrants)
	}
	return s
}

// tick refills tokens and grants queued waiters until Stop is called.
func (b *Bucket) tick(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.grant()
		}
	}
}

// grant refills the bucket and resolves queued waiters strictly in
// enqueue order while tokens remain.
func (b *Bucket) grant() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}

	now := b.now()
	b.refillLocked(now)

	if b.pausedLocked(now) {
		return
	}

	for b.tokens >= 1 && len(b.queue) > 0 {
		w := b.queue[0]
		b.queue = b.queue[1:]

		b.tokens--
		b.totalAcquired++
		b.queuedGrants++
		b.waitTotal += now.Sub(w.enqueuedAt)

		w.resolved = true
		w.ready <- nil
	}
}

// refillLocked adds tokens for the wall-clock time elapsed since the
// last refill, capped at the effective capacity. Refilling is suspended
// while a global pause is in effect. Caller must hold the lock.
func (b *Bucket) refillLocked(now time.Time) {
	if now.Before(b.pausedUntil) {
		return
	}
	if !b.pausedUntil.IsZero() {
		// Pause elapsed: resume refilling from the pause end.
		if b.lastRefill.Before(b.pausedUntil) {
			b.lastRefill = b.pausedUntil
		}
		b.pausedUntil = time.Time{}
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed * b.rateLocked()
	if limit := b.capacityLocked(); b.tokens > limit {
		b.tokens = limit
	}
	b.lastRefill = now
}

func (b *Bucket) pausedLocked(now time.Time) bool {
	return now.Before(b.pausedUntil)
}

func (b *Bucket) capacityLocked() float64 {
	if b.grace {
		return b.maxTokens / 2
	}
	return b.maxTokens
}

func (b *Bucket) rateLocked() float64 {
	if b.grace {
		return b.refillRate / 2
	}
	return b.refillRate
}

// removeLocked removes a waiter that resolved itself (deadline or
// context) so the queue never retains dead entries. Caller must hold
// the lock.
func (b *Bucket) removeLocked(target *waiter) {
	for i, w := range b.queue {
		if w == target {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return
		}
	}
}
