package outbound

import "time"

// RetryPolicy decides whether a failed attempt should be retried and how
// long to back off first.
//
// The policy is a pure decision function: it holds no state and performs
// no sleeping itself. The orchestrator owns the attempt counter and the
// actual delay.
type RetryPolicy struct {
	// BaseDelay is the backoff for the first retry.
	// Default: 300ms.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	// Default: 10s.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used by provider clients:
// 300ms base delay doubling per attempt, capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay: 300 * time.Millisecond,
		MaxDelay:  10 * time.Second,
	}
}

// Decide returns whether the attempt should be retried and the backoff
// delay to apply before the next attempt.
//
// Only transient failures (RetryableError) are retried, and only while
// attempt < maxRetries. The delay grows as BaseDelay * 2^attempt.
func (p RetryPolicy) Decide(err error, attempt, maxRetries int) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}
	if !IsRetryable(err) {
		return false, 0
	}
	if attempt >= maxRetries {
		return false, 0
	}
	return true, p.Backoff(attempt)
}

// Backoff returns the exponential backoff delay for the given attempt
// number (0-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}
