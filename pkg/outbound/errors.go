package outbound

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ConfigurationError indicates the provider is misconfigured (missing
// credentials or host). It is fatal and never retried.
type ConfigurationError struct {
	// Provider is the name of the misconfigured provider
	Provider string

	// Field is the configuration field that is missing or invalid
	Field string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %q configuration error: missing or invalid %s", e.Provider, e.Field)
}

// QuotaExceededError indicates the provider's monthly call budget is
// exhausted. The call is rejected before any network attempt.
type QuotaExceededError struct {
	// Provider is the name of the budget-constrained provider
	Provider string

	// Used is the number of calls recorded this month
	Used int64

	// Budget is the configured monthly call budget
	Budget int64
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("provider %q monthly quota exceeded (%d of %d calls)", e.Provider, e.Used, e.Budget)
}

// CircuitOpenError indicates the circuit breaker is open; the provider
// is considered unhealthy and no network attempt is made.
type CircuitOpenError struct {
	// Provider is the name of the unhealthy provider
	Provider string

	// RetryIn is how long until the cooldown elapses
	RetryIn time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("provider %q circuit open, retry in %s", e.Provider, e.RetryIn)
}

// QueueFullError indicates the rate limiter's waiter queue is saturated.
// Distinct from AcquireTimeoutError: the caller should not retry by waiting.
type QueueFullError struct {
	// Provider is the name of the saturated provider
	Provider string

	// QueueSize is the configured maximum queue size
	QueueSize int
}

// Error implements the error interface.
func (e *QueueFullError) Error() string {
	return fmt.Sprintf("provider %q rate limiter queue full (max %d waiters)", e.Provider, e.QueueSize)
}

// AcquireTimeoutError indicates the caller waited too long for a rate
// limit token. Not retried internally.
type AcquireTimeoutError struct {
	// Provider is the name of the provider
	Provider string

	// Timeout is how long the caller waited
	Timeout time.Duration
}

// Error implements the error interface.
func (e *AcquireTimeoutError) Error() string {
	return fmt.Sprintf("provider %q token acquire timed out after %s", e.Provider, e.Timeout)
}

// ClientError indicates the upstream rejected the request semantics with
// a 4xx status other than 429. Terminal: not retried and does not feed
// the circuit breaker.
type ClientError struct {
	// Provider is the name of the provider
	Provider string

	// StatusCode is the upstream HTTP status
	StatusCode int

	// Message is the upstream error body (truncated)
	Message string
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	return fmt.Sprintf("provider %q rejected request (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// RetryableError indicates a transient failure: HTTP 5xx, HTTP 429, or a
// network transport error. Retried up to the caller's budget; feeds the
// circuit breaker once retries are exhausted.
type RetryableError struct {
	// Provider is the name of the provider
	Provider string

	// StatusCode is the upstream HTTP status (0 for transport errors)
	StatusCode int

	// RetryAfter is the upstream back-off hint, when present (429 only)
	RetryAfter time.Duration

	// Message is the upstream error body (truncated)
	Message string

	// Cause is the underlying transport error, if any
	Cause error
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q transient failure (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q transient failure: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// ParseError indicates the upstream returned a malformed body.
type ParseError struct {
	// Provider is the name of the provider
	Provider string

	// Cause is the underlying decode error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the error represents a transient failure
// that may be retried.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// TripsBreaker reports whether the error class counts toward the circuit
// breaker. Only genuine failed network attempts (5xx, 429, transport
// errors) qualify; fail-fast rejections and terminal 4xx do not.
func TripsBreaker(err error) bool {
	return IsRetryable(err)
}

// HTTPStatus maps an outbound error to the status an inbound surface
// should answer with.
func HTTPStatus(err error) int {
	var (
		configErr  *ConfigurationError
		quotaErr   *QuotaExceededError
		circuitErr *CircuitOpenError
		queueErr   *QueueFullError
		acqErr     *AcquireTimeoutError
		clientErr  *ClientError
		retryErr   *RetryableError
		parseErr   *ParseError
	)

	switch {
	case errors.As(err, &configErr):
		return http.StatusInternalServerError
	case errors.As(err, &quotaErr):
		return http.StatusTooManyRequests
	case errors.As(err, &circuitErr), errors.As(err, &queueErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &acqErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &clientErr):
		return clientErr.StatusCode
	case errors.As(err, &retryErr):
		return http.StatusBadGateway
	case errors.As(err, &parseErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
