// Package outbound implements the provider access layer: the admission
// control and resilience pipeline wrapped around every outbound call to
// a third-party metadata provider.
//
// A single Client.Fetch call sequences:
//
//	quota check -> cache lookup -> circuit check -> rate-limit acquire ->
//	network call -> retry loop -> circuit/quota bookkeeping -> cache write
//
// A cache hit returns immediately and bypasses every other component.
// Rejections that never reach the network (quota, circuit, queue-full)
// are never recorded as provider failures; only genuine failed network
// attempts feed the circuit breaker, and the quota counters record every
// attempted call, successful or not.
//
// The pipeline components live in subpackages (ratelimit, breaker,
// quota) and are constructed once per provider by the composition root,
// then shared by reference across an unbounded number of concurrent
// callers.
package outbound
