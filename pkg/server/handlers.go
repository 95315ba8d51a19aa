package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"skylight-hq/comet/pkg/outbound"
	"skylight-hq/comet/pkg/providers"
)

// HealthHandler answers liveness probes. It reports healthy as long as
// the process is serving requests.
type HealthHandler struct{}

// NewHealthHandler creates a liveness handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler answers readiness probes. The service is ready when at
// least one provider's circuit is closed; with every circuit open there
// is nothing useful it can serve.
type ReadyHandler struct {
	registry *providers.Registry
}

// NewReadyHandler creates a readiness handler over the provider registry.
func NewReadyHandler(registry *providers.Registry) *ReadyHandler {
	return &ReadyHandler{registry: registry}
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	stats := h.registry.Stats()

	available := 0
	for _, s := range stats {
		if !s.Breaker.Open {
			available++
		}
	}

	if len(stats) > 0 && available == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unavailable",
			"providers": len(stats),
			"available": 0,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"providers": len(stats),
		"available": available,
	})
}

// providerStats is the wire form of one provider's snapshot.
type providerStats struct {
	Provider string       `json:"provider"`
	Limiter  limiterStats `json:"limiter"`
	Breaker  breakerStats `json:"breaker"`
	Quota    *quotaStats  `json:"quota,omitempty"`
}

type limiterStats struct {
	Tokens          float64 `json:"tokens"`
	Capacity        float64 `json:"capacity"`
	QueueDepth      int     `json:"queue_depth"`
	GraceMode       bool    `json:"grace_mode"`
	Paused          bool    `json:"paused"`
	TotalAcquired   uint64  `json:"total_acquired"`
	ImmediateGrants uint64  `json:"immediate_grants"`
	QueuedGrants    uint64  `json:"queued_grants"`
	Rejected        uint64  `json:"rejected_queue_full"`
	Timeouts        uint64  `json:"acquire_timeouts"`
	Pauses          uint64  `json:"pauses"`
}

type breakerStats struct {
	Open           bool   `json:"open"`
	RecentFailures int    `json:"recent_failures"`
	Trips          uint64 `json:"trips"`
}

type quotaStats struct {
	RequestsToday     int64            `json:"requests_today"`
	RequestsThisMonth int64            `json:"requests_this_month"`
	Budget            int64            `json:"budget"`
	PercentUsed       float64          `json:"percent_used"`
	Exceeded          bool             `json:"exceeded"`
	PerEndpoint       map[string]int64 `json:"per_endpoint,omitempty"`
}

// ProviderStatsHandler exposes the admission-control state of every
// provider for operational inspection.
type ProviderStatsHandler struct {
	registry *providers.Registry
}

// NewProviderStatsHandler creates the stats handler.
func NewProviderStatsHandler(registry *providers.Registry) *ProviderStatsHandler {
	return &ProviderStatsHandler{registry: registry}
}

func (h *ProviderStatsHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	snapshots := h.registry.Stats()

	out := make([]providerStats, 0, len(snapshots))
	for _, s := range snapshots {
		ps := providerStats{
			Provider: s.Provider,
			Limiter: limiterStats{
				Tokens:          s.Limiter.Tokens,
				Capacity:        s.Limiter.Capacity,
				QueueDepth:      s.Limiter.QueueDepth,
				GraceMode:       s.Limiter.GraceMode,
				Paused:          s.Limiter.Paused,
				TotalAcquired:   s.Limiter.TotalAcquired,
				ImmediateGrants: s.Limiter.ImmediateGrants,
				QueuedGrants:    s.Limiter.QueuedGrants,
				Rejected:        s.Limiter.RejectedQueueFull,
				Timeouts:        s.Limiter.AcquireTimeouts,
				Pauses:          s.Limiter.Pauses,
			},
			Breaker: breakerStats{
				Open:           s.Breaker.Open,
				RecentFailures: s.Breaker.RecentFailures,
				Trips:          s.Breaker.Trips,
			},
		}
		if s.Quota != nil {
			ps.Quota = &quotaStats{
				RequestsToday:     s.Quota.RequestsToday,
				RequestsThisMonth: s.Quota.RequestsThisMonth,
				Budget:            s.Quota.Budget,
				PercentUsed:       s.Quota.PercentUsed,
				Exceeded:          s.Quota.Exceeded,
				PerEndpoint:       s.Quota.PerEndpoint,
			}
		}
		out = append(out, ps)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"providers":    out,
	})
}

// FetchHandler dispatches a request through the provider registry:
// GET /fetch/{provider}/{class}/{endpoint...}. Query parameters are
// forwarded to the upstream.
type FetchHandler struct {
	registry *providers.Registry
}

// NewFetchHandler creates the fetch handler.
func NewFetchHandler(registry *providers.Registry) *FetchHandler {
	return &FetchHandler{registry: registry}
}

func (h *FetchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	class := r.PathValue("class")
	endpoint := r.PathValue("endpoint")

	body, err := h.registry.Fetch(r.Context(), provider, class, endpoint, r.URL.Query())
	if err != nil {
		status := outbound.HTTPStatus(err)
		switch {
		case errors.Is(err, providers.ErrUnknownProvider):
			status = http.StatusNotFound
		case errors.Is(err, providers.ErrUnknownClass):
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
