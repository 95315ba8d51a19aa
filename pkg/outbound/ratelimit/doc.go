// Package ratelimit implements the per-provider token bucket that admits
// or queues outbound calls against a fixed request-per-second budget.
//
// # Algorithm
//
// Tokens accumulate at a constant refill rate up to the bucket capacity.
// Each granted acquisition consumes exactly one token. When no token is
// available the caller is enqueued in a FIFO queue with its own deadline;
// a periodic background tick refills tokens and grants queued waiters
// strictly in enqueue order.
//
// # Grace mode
//
// A bucket starts in grace mode with capacity and refill rate halved,
// to avoid a burst immediately after startup before downstream consumers
// are warmed up. EndGracePeriod restores the full budget.
//
// # Global pause
//
// NotifyRateLimited is called when the upstream explicitly signals
// overload (HTTP 429). It empties the bucket and suspends all refilling
// for the clamped Retry-After duration. The pause affects every caller
// against the provider, not just the one that received the 429.
//
// # Thread Safety
//
// All mutable bucket state is guarded by a single mutex; the refill tick
// and Acquire never race on the token count. Bucket is safe for use by
// an unbounded number of concurrent callers.
package ratelimit
