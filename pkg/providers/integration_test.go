package providers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"skylight-hq/comet/internal/upstream"
	"skylight-hq/comet/pkg/cache"
	"skylight-hq/comet/pkg/outbound"
)

// ============================================================================
// End-to-End Pipeline
// ============================================================================

func TestRegistryAgainstMockUpstream(t *testing.T) {
	mock := upstream.NewMock()
	defer mock.Close()

	mock.SetResponse("/catalog/movie/top.json", upstream.Response{
		StatusCode: http.StatusOK,
		Body:       upstream.CatalogResponse("tt0111161", "tt0068646"),
	})
	mock.SetResponse("/meta/movie/tt0111161.json", upstream.Response{
		StatusCode: http.StatusOK,
		Body:       upstream.MetaResponse("tt0111161"),
	})

	r := newTestRegistry(t, mock.URL())
	ctx := context.Background()

	catalog, err := r.Fetch(ctx, "cinemeta", ClassCatalog, "/catalog/movie/top.json", nil)
	if err != nil {
		t.Fatalf("catalog fetch failed: %v", err)
	}
	if len(catalog) == 0 {
		t.Fatal("catalog body should not be empty")
	}

	meta, err := r.Fetch(ctx, "cinemeta", ClassMeta, "/meta/movie/tt0111161.json", nil)
	if err != nil {
		t.Fatalf("meta fetch failed: %v", err)
	}
	if len(meta) == 0 {
		t.Fatal("meta body should not be empty")
	}

	// Repeats of both classes are served from cache.
	before := mock.RequestCount()
	if _, err := r.Fetch(ctx, "cinemeta", ClassCatalog, "/catalog/movie/top.json", nil); err != nil {
		t.Fatalf("cached catalog fetch failed: %v", err)
	}
	if _, err := r.Fetch(ctx, "cinemeta", ClassMeta, "/meta/movie/tt0111161.json", nil); err != nil {
		t.Fatalf("cached meta fetch failed: %v", err)
	}
	if got := mock.RequestCount(); got != before {
		t.Errorf("cached fetches should not hit upstream, count %d -> %d", before, got)
	}
}

func TestRegistryUpstreamNotFound(t *testing.T) {
	mock := upstream.NewMock()
	defer mock.Close()

	r := newTestRegistry(t, mock.URL())

	_, err := r.Fetch(context.Background(), "cinemeta", ClassMeta, "/meta/movie/tt9999999.json", nil)
	var clientErr *outbound.ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected ClientError, got %v", err)
	}
	if clientErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", clientErr.StatusCode)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("terminal 404 should not be retried, got %d requests", mock.RequestCount())
	}
}

func TestRegistryUpstreamThrottled(t *testing.T) {
	mock := upstream.NewMock()
	defer mock.Close()
	mock.SetResponse("/catalog/movie/top.json", upstream.ThrottledResponse("1"))

	// Retries disabled so the test does not wait out the pause.
	cfg := testConfig(mock.URL())
	pc := cfg.Providers["cinemeta"]
	pc.MaxRetries = 0
	cfg.Providers["cinemeta"] = pc

	r := NewRegistry(cfg, Deps{
		Cache:  cache.NewMemoryCache(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(r.Close)

	_, err := r.Fetch(context.Background(), "cinemeta", ClassCatalog, "/catalog/movie/top.json", nil)
	if err == nil {
		t.Fatal("throttled upstream should surface an error")
	}
	if !outbound.IsRetryable(err) {
		t.Errorf("429 should classify as retryable: %v", err)
	}

	stats := r.Stats()
	for _, s := range stats {
		if s.Provider == "cinemeta" && s.Limiter.Pauses == 0 {
			t.Error("throttled response should pause the limiter")
		}
	}
}
