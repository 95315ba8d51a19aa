// Package cache provides the key-value cache consumed by the outbound
// provider access layer.
//
// The outbound layer only depends on the Get/Set contract defined by the
// Cache interface. Two backends are provided:
//
//   - MemoryCache: in-process map with TTL expiry, for single-instance
//     deployments and tests
//   - RedisCache: shared cache backed by Redis, for deployments where
//     response caching and quota counters must survive restarts
//
// All request-path consumers should wrap the backend in Safe, which
// degrades every backend failure to a cache miss so that cache outages
// never fail a request.
package cache
