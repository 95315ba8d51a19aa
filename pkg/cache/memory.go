package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache backed by a map with TTL expiry.
//
// Expired entries are evicted lazily on Get and swept periodically by a
// background janitor. The janitor is stopped by Close, so the cache never
// keeps the process alive after shutdown.
type MemoryCache struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex

	sweepInterval time.Duration
	done          chan struct{}
	closeOnce     sync.Once
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryCache creates a memory cache whose janitor sweeps expired
// entries every minute.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithSweep(time.Minute)
}

// NewMemoryCacheWithSweep creates a memory cache with a custom janitor
// interval. A non-positive interval disables the janitor entirely.
func NewMemoryCacheWithSweep(interval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries:       make(map[string]memoryEntry),
		sweepInterval: interval,
		done:          make(chan struct{}),
	}

	if interval > 0 {
		go c.janitor()
	}

	return c
}

// Get retrieves the value for a key, evicting it if expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under write lock; a concurrent Set may have replaced it.
		if current, still := c.entries[key]; still && !current.expiresAt.IsZero() && time.Now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores a value under a key with the given TTL.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries currently stored, including entries
// that have expired but not yet been swept.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the janitor and clears the cache.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// janitor sweeps expired entries until Close is called.
func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	now := time.Now()

	c.mu.Lock()
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
