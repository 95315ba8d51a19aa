package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ============================================================================
// Memory Cache Tests
// ============================================================================

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCacheWithSweep(0)
	defer c.Close()

	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, found, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected key to be found")
	}
	if string(value) != "v1" {
		t.Errorf("Expected v1, got %s", value)
	}
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCacheWithSweep(0)
	defer c.Close()

	_, found, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Expected miss for absent key")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCacheWithSweep(0)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k1", []byte("v1"), 20*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	_, found, _ := c.Get(ctx, "k1")
	if found {
		t.Error("Expected expired key to be a miss")
	}
}

func TestMemoryCache_NoExpiry(t *testing.T) {
	c := NewMemoryCacheWithSweep(0)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k1", []byte("v1"), 0)

	time.Sleep(20 * time.Millisecond)

	_, found, _ := c.Get(ctx, "k1")
	if !found {
		t.Error("Expected zero-TTL key to persist")
	}
}

func TestMemoryCache_Sweep(t *testing.T) {
	c := NewMemoryCacheWithSweep(20 * time.Millisecond)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k1", []byte("v1"), 10*time.Millisecond)
	c.Set(ctx, "k2", []byte("v2"), time.Minute)

	time.Sleep(80 * time.Millisecond)

	if c.Len() != 1 {
		t.Errorf("Expected janitor to evict expired entry, have %d entries", c.Len())
	}
}

// ============================================================================
// Safe Wrapper Tests
// ============================================================================

// failingCache always errors, to exercise the degrade-to-miss path.
type failingCache struct{}

func (f *failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}

func (f *failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}

func (f *failingCache) Close() error { return nil }

func TestSafe_GetDegradesToMiss(t *testing.T) {
	s := NewSafe(&failingCache{}, nil)

	value, found, err := s.Get(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Safe.Get must not propagate errors, got %v", err)
	}
	if found || value != nil {
		t.Error("Expected degraded miss from failing backend")
	}
}

func TestSafe_SetDropsWrite(t *testing.T) {
	s := NewSafe(&failingCache{}, nil)

	if err := s.Set(context.Background(), "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Safe.Set must not propagate errors, got %v", err)
	}
}

func TestSafe_PassThrough(t *testing.T) {
	s := NewSafe(NewMemoryCacheWithSweep(0), nil)
	defer s.Close()

	ctx := context.Background()
	s.Set(ctx, "k1", []byte("v1"), time.Minute)

	value, found, _ := s.Get(ctx, "k1")
	if !found || string(value) != "v1" {
		t.Errorf("Expected pass-through hit, found=%v value=%s", found, value)
	}
}
