package outbound

import (
	"testing"
	"time"
)

// ============================================================================
// Backoff Schedule
// ============================================================================

func TestRetryBackoffDoubles(t *testing.T) {
	p := DefaultRetryPolicy()

	want := []time.Duration{
		300 * time.Millisecond,
		600 * time.Millisecond,
		1200 * time.Millisecond,
		2400 * time.Millisecond,
	}
	for attempt, expected := range want {
		if got := p.Backoff(attempt); got != expected {
			t.Errorf("Backoff(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestRetryBackoffCapped(t *testing.T) {
	p := DefaultRetryPolicy()

	if got := p.Backoff(20); got != 10*time.Second {
		t.Errorf("Backoff(20) = %v, want cap of 10s", got)
	}
}

// ============================================================================
// Decisions
// ============================================================================

func TestRetryDecide(t *testing.T) {
	p := DefaultRetryPolicy()

	transient := &RetryableError{Provider: "cinemeta", StatusCode: 503}
	terminal := &ClientError{Provider: "cinemeta", StatusCode: 404}

	if retry, delay := p.Decide(transient, 0, 3); !retry || delay != 300*time.Millisecond {
		t.Errorf("transient first attempt: retry=%v delay=%v", retry, delay)
	}
	if retry, _ := p.Decide(transient, 3, 3); retry {
		t.Error("retries exhausted, should not retry")
	}
	if retry, _ := p.Decide(terminal, 0, 3); retry {
		t.Error("terminal client error should not retry")
	}
	if retry, _ := p.Decide(nil, 0, 3); retry {
		t.Error("nil error should not retry")
	}
}
