package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is the key-value contract consumed by the outbound layer.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the value for a key.
	// Returns (nil, false, nil) when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under a key with the given TTL.
	// A zero or negative TTL means the entry does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases any resources held by the backend.
	Close() error
}

// Safe wraps a Cache so that backend failures degrade to cache misses.
// A failed Get reports absent; a failed Set is dropped. Failures are
// logged at warn level and never propagate into the request path.
type Safe struct {
	backend Cache
	logger  *slog.Logger
}

// NewSafe wraps the given backend. A nil logger falls back to slog.Default.
func NewSafe(backend Cache, logger *slog.Logger) *Safe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Safe{
		backend: backend,
		logger:  logger.With("component", "cache"),
	}
}

// Get retrieves a value, reporting absent on any backend error.
func (s *Safe) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, found, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache get failed, treating as miss",
			"key", key,
			"error", err,
		)
		return nil, false, nil
	}
	return value, found, nil
}

// Set stores a value, dropping the write on any backend error.
func (s *Safe) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed, dropping write",
			"key", key,
			"error", err,
		)
	}
	return nil
}

// Close closes the underlying backend.
func (s *Safe) Close() error {
	return s.backend.Close()
}
