package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_TrackProviderCall(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(Config{}, registry)

	c.TrackProviderCall("cinemeta", 120*time.Millisecond, false)
	c.TrackProviderCall("cinemeta", 300*time.Millisecond, true)

	success := testutil.ToFloat64(c.calls.WithLabelValues("cinemeta", "success"))
	if success != 1 {
		t.Errorf("Expected 1 success call, got %f", success)
	}
	failure := testutil.ToFloat64(c.calls.WithLabelValues("cinemeta", "error"))
	if failure != 1 {
		t.Errorf("Expected 1 error call, got %f", failure)
	}
}

func TestCollector_Gauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(Config{}, registry)

	c.SetLimiterState("cinemeta", 3.5, 2)
	c.SetCircuitOpen("cinemeta", true)
	c.SetQuotaUsedPercent("metadb", 81.5)

	if got := testutil.ToFloat64(c.limiterTokens.WithLabelValues("cinemeta")); got != 3.5 {
		t.Errorf("Expected 3.5 tokens, got %f", got)
	}
	if got := testutil.ToFloat64(c.limiterQueueDepth.WithLabelValues("cinemeta")); got != 2 {
		t.Errorf("Expected queue depth 2, got %f", got)
	}
	if got := testutil.ToFloat64(c.circuitOpen.WithLabelValues("cinemeta")); got != 1 {
		t.Errorf("Expected circuit open gauge 1, got %f", got)
	}
	if got := testutil.ToFloat64(c.quotaUsedPercent.WithLabelValues("metadb")); got != 81.5 {
		t.Errorf("Expected quota gauge 81.5, got %f", got)
	}

	c.SetCircuitOpen("cinemeta", false)
	if got := testutil.ToFloat64(c.circuitOpen.WithLabelValues("cinemeta")); got != 0 {
		t.Errorf("Expected circuit open gauge 0, got %f", got)
	}
}

func TestCollector_CacheCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(Config{}, registry)

	c.RecordCacheHit("cinemeta")
	c.RecordCacheHit("cinemeta")
	c.RecordCacheMiss("cinemeta")

	if got := testutil.ToFloat64(c.cacheHits.WithLabelValues("cinemeta")); got != 2 {
		t.Errorf("Expected 2 cache hits, got %f", got)
	}
	if got := testutil.ToFloat64(c.cacheMisses.WithLabelValues("cinemeta")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %f", got)
	}
}
