package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestBucket(t *testing.T, cfg Config) *Bucket {
	t.Helper()
	b := NewBucket(cfg)
	t.Cleanup(b.Stop)
	return b
}

// ============================================================================
// Fast Path and Capacity Tests
// ============================================================================

func TestBucket_FastPath(t *testing.T) {
	b := newTestBucket(t, Config{MaxTokens: 5, RefillRate: 5, MaxQueueSize: 2})
	b.EndGracePeriod()

	ctx := context.Background()

	// 5 sequential acquisitions resolve with zero wait.
	for i := 0; i < 5; i++ {
		start := time.Now()
		if err := b.Acquire(ctx, time.Second); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("Acquire %d should not suspend, waited %v", i, elapsed)
		}
	}

	stats := b.Stats()
	if stats.ImmediateGrants != 5 {
		t.Errorf("Expected 5 immediate grants, got %d", stats.ImmediateGrants)
	}
}

func TestBucket_QueueFull(t *testing.T) {
	b := newTestBucket(t, Config{MaxTokens: 5, RefillRate: 5, MaxQueueSize: 2})
	b.EndGracePeriod()

	ctx := context.Background()

	// Drain the bucket.
	for i := 0; i < 5; i++ {
		if err := b.Acquire(ctx, time.Second); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}

	// 6th and 7th enqueue; run them in goroutines so they can suspend.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Acquire(ctx, 2*time.Second)
		}()
	}

	// Give the waiters time to enqueue.
	waitFor(t, func() bool { return b.Stats().QueueDepth == 2 })

	// 8th is rejected immediately with queue full.
	if err := b.Acquire(ctx, time.Second); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	wg.Wait()
}

func TestBucket_TokenBounds(t *testing.T) {
	b := newTestBucket(t, Config{MaxTokens: 10, RefillRate: 100, MaxQueueSize: 4})
	b.EndGracePeriod()

	// Let the refill tick run well past the fill point.
	time.Sleep(250 * time.Millisecond)

	stats := b.Stats()
	if stats.Tokens < 0 || stats.Tokens > 10 {
		t.Errorf("Tokens out of bounds: %f", stats.Tokens)
	}
}

// ============================================================================
// Grace Mode Tests
// ============================================================================

func TestBucket_GraceModeHalvesCapacity(t *testing.T) {
	b := newTestBucket(t, Config{MaxTokens: 10, RefillRate: 10, MaxQueueSize: 4})

	stats := b.Stats()
	if !stats.GraceMode {
		t.Fatal("Expected bucket to start in grace mode")
	}
	if stats.Capacity != 5 {
		t.Errorf("Expected grace capacity 5, got %f", stats.Capacity)
	}
	if stats.Tokens > 5 {
		t.Errorf("Grace-mode tokens exceed half capacity: %f", stats.Tokens)
	}

	b.EndGracePeriod()

	stats = b.Stats()
	if stats.GraceMode {
		t.Error("Expected grace mode to end")
	}
	if stats.Capacity != 10 {
		t.Errorf("Expected full capacity 10, got %f", stats.Capacity)
	}
}

// ============================================================================
// FIFO Ordering Tests
// ============================================================================

func TestBucket_FIFOOrder(t *testing.T) {
	// 1 token/sec with a 50ms tick: waiters drain one at a time.
	b := newTestBucket(t, Config{
		MaxTokens:    1,
		RefillRate:   20,
		MaxQueueSize: 8,
		TickInterval: 10 * time.Millisecond,
	})
	b.EndGracePeriod()

	ctx := context.Background()

	// Consume the initial token so all subsequent callers queue.
	if err := b.Acquire(ctx, time.Second); err != nil {
		t.Fatalf("initial Acquire failed: %v", err)
	}

	const n = 5
	order := make(chan int, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := b.Acquire(ctx, 5*time.Second); err != nil {
				t.Errorf("waiter %d failed: %v", id, err)
				return
			}
			order <- id
		}(i)

		// Ensure enqueue order matches goroutine launch order.
		waitFor(t, func() bool { return b.Stats().QueueDepth == i+1 })
	}

	wg.Wait()
	close(order)

	want := 0
	for got := range order {
		if got != want {
			t.Fatalf("FIFO violated: expected waiter %d, got %d", want, got)
		}
		want++
	}
}

// ============================================================================
// Timeout and Cancellation Tests
// ============================================================================

func TestBucket_AcquireTimeout(t *testing.T) {
	b := newTestBucket(t, Config{MaxTokens: 1, RefillRate: 0.01, MaxQueueSize: 4})
	b.EndGracePeriod()

	ctx := context.Background()
	b.Acquire(ctx, time.Second) // drain

	err := b.Acquire(ctx, 50*time.Millisecond)
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("Expected ErrAcquireTimeout, got %v", err)
	}

	// The timed-out waiter must have removed itself from the queue.
	if depth := b.Stats().QueueDepth; depth != 0 {
		t.Errorf("Queue retained dead waiter, depth %d", depth)
	}
	if b.Stats().AcquireTimeouts != 1 {
		t.Errorf("Expected 1 recorded timeout, got %d", b.Stats().AcquireTimeouts)
	}
}

func TestBucket_ContextCancel(t *testing.T) {
	b := newTestBucket(t, Config{MaxTokens: 1, RefillRate: 0.01, MaxQueueSize: 4})
	b.EndGracePeriod()

	b.Acquire(context.Background(), time.Second) // drain

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- b.Acquire(ctx, 5*time.Second)
	}()

	waitFor(t, func() bool { return b.Stats().QueueDepth == 1 })
	cancel()

	if err := <-errChan; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if depth := b.Stats().QueueDepth; depth != 0 {
		t.Errorf("Queue retained cancelled waiter, depth %d", depth)
	}
}

// ============================================================================
// Global Pause Tests
// ============================================================================

func TestBucket_NotifyRateLimited(t *testing.T) {
	b := newTestBucket(t, Config{MaxTokens: 5, RefillRate: 5, MaxQueueSize: 4})
	b.EndGracePeriod()

	b.NotifyRateLimited(2 * time.Second)

	stats := b.Stats()
	if stats.Tokens != 0 {
		t.Errorf("Expected empty bucket after pause, got %f tokens", stats.Tokens)
	}
	if !stats.Paused {
		t.Error("Expected bucket to be paused")
	}
	if stats.Pauses != 1 {
		t.Errorf("Expected 1 recorded pause, got %d", stats.Pauses)
	}
}

func TestBucket_PauseClamp(t *testing.T) {
	clock := time.Now()
	b := newTestBucket(t, Config{
		MaxTokens:    5,
		RefillRate:   5,
		MaxQueueSize: 4,
		Clock:        func() time.Time { return clock },
	})
	b.EndGracePeriod()

	// Below the 1s floor.
	b.NotifyRateLimited(100 * time.Millisecond)
	if until := b.Stats().PausedUntil; until.Sub(clock) != time.Second {
		t.Errorf("Expected pause clamped to 1s, got %v", until.Sub(clock))
	}

	// Above the 10s ceiling.
	b.NotifyRateLimited(time.Minute)
	if until := b.Stats().PausedUntil; until.Sub(clock) != 10*time.Second {
		t.Errorf("Expected pause clamped to 10s, got %v", until.Sub(clock))
	}
}

func TestBucket_PauseSuspendsRefill(t *testing.T) {
	b := newTestBucket(t, Config{
		MaxTokens:    5,
		RefillRate:   1000,
		MaxQueueSize: 4,
		TickInterval: 10 * time.Millisecond,
	})
	b.EndGracePeriod()

	b.NotifyRateLimited(time.Second)

	// Even at 1000 tokens/sec the bucket must stay empty while paused.
	time.Sleep(100 * time.Millisecond)
	if tokens := b.Stats().Tokens; tokens != 0 {
		t.Errorf("Refill ran during pause: %f tokens", tokens)
	}
}

// ============================================================================
// Shutdown Tests
// ============================================================================

func TestBucket_StopRejectsWaiters(t *testing.T) {
	b := NewBucket(Config{MaxTokens: 1, RefillRate: 0.01, MaxQueueSize: 4})
	b.EndGracePeriod()

	b.Acquire(context.Background(), time.Second) // drain

	errChan := make(chan error, 1)
	go func() {
		errChan <- b.Acquire(context.Background(), 5*time.Second)
	}()

	waitFor(t, func() bool { return b.Stats().QueueDepth == 1 })
	b.Stop()

	if err := <-errChan; !errors.Is(err, ErrStopped) {
		t.Fatalf("Expected ErrStopped for queued waiter, got %v", err)
	}
	if err := b.Acquire(context.Background(), time.Second); !errors.Is(err, ErrStopped) {
		t.Fatalf("Expected ErrStopped after Stop, got %v", err)
	}
}

// ============================================================================
// Concurrency Tests
// ============================================================================

func TestBucket_ConcurrentAcquire(t *testing.T) {
	b := newTestBucket(t, Config{MaxTokens: 200, RefillRate: 100, MaxQueueSize: 50})
	b.EndGracePeriod()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Acquire(ctx, time.Second)
		}()
	}
	wg.Wait()

	stats := b.Stats()
	if stats.Tokens < 0 {
		t.Errorf("Token count went negative under concurrency: %f", stats.Tokens)
	}
	if stats.TotalAcquired != 100 {
		t.Errorf("Expected 100 grants, got %d", stats.TotalAcquired)
	}
}

// waitFor polls a condition with a short deadline, failing the test on expiry.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
