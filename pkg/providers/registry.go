// Package providers assembles the per-provider outbound pipeline from
// configuration and exposes it as a registry.
//
// Each configured provider gets its own rate limiter, circuit breaker,
// and (when a monthly budget is set) quota governor, all wrapped in an
// outbound.Client. The registry owns the lifecycle of these components:
// grace period expiry, quota restore at startup, and shutdown.
package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"skylight-hq/comet/pkg/cache"
	"skylight-hq/comet/pkg/config"
	"skylight-hq/comet/pkg/outbound"
	"skylight-hq/comet/pkg/outbound/breaker"
	"skylight-hq/comet/pkg/outbound/quota"
	"skylight-hq/comet/pkg/outbound/ratelimit"
	"skylight-hq/comet/pkg/telemetry/metrics"
)

// Result classes map response kinds to cache lifetimes.
const (
	ClassCatalog = "catalog"
	ClassMeta    = "meta"
	ClassSearch  = "search"
)

var (
	// ErrUnknownProvider is returned for a provider name that is not
	// configured.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnknownClass is returned for a result class that is not one of
	// ClassCatalog, ClassMeta, or ClassSearch.
	ErrUnknownClass = errors.New("unknown result class")
)

// Deps are the process-wide collaborators shared by all providers.
type Deps struct {
	// Cache is the shared response cache. Required.
	Cache cache.Cache

	// QuotaCache persists quota counters. Optional; falls back to Cache,
	// letting deployments keep responses in memory while quota counters
	// go to a durable store.
	QuotaCache cache.Cache

	// Metrics receives provider metrics. Optional.
	Metrics *metrics.Collector

	// Logger is the base logger. Optional.
	Logger *slog.Logger
}

// entry holds one provider's pipeline plus the settings the registry
// needs when dispatching calls.
type entry struct {
	client     *outbound.Client
	bucket     *ratelimit.Bucket
	governor   *quota.Governor
	ttl        config.CacheTTLConfig
	maxRetries int
	graceTimer *time.Timer
}

// Registry holds the assembled pipeline for every configured provider.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *slog.Logger
}

// NewRegistry builds the pipeline for every provider in cfg.
func NewRegistry(cfg *config.Config, deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		entries: make(map[string]*entry, len(cfg.Providers)),
		logger:  logger.With("component", "providers"),
	}

	for name, pc := range cfg.Providers {
		r.entries[name] = r.buildEntry(name, pc, deps)
	}

	return r
}

// buildEntry assembles one provider's pipeline.
func (r *Registry) buildEntry(name string, pc config.ProviderConfig, deps Deps) *entry {
	bucket := ratelimit.NewBucket(ratelimit.Config{
		MaxTokens:    pc.RateLimit.MaxTokens,
		RefillRate:   pc.RateLimit.RefillRate,
		MaxQueueSize: pc.RateLimit.MaxQueueSize,
	})

	// The bucket starts at half capacity; restore the full budget once
	// the configured grace period has passed.
	var graceTimer *time.Timer
	if pc.RateLimit.GracePeriod > 0 {
		graceTimer = time.AfterFunc(pc.RateLimit.GracePeriod, func() {
			bucket.EndGracePeriod()
			r.logger.Info("grace period ended", "provider", name)
		})
	} else {
		bucket.EndGracePeriod()
	}

	brk := breaker.New(breaker.Config{
		Threshold: pc.Breaker.Threshold,
		Window:    pc.Breaker.Window,
		Cooldown:  pc.Breaker.Cooldown,
	})

	var governor *quota.Governor
	if pc.Budget.MonthlyBudget > 0 {
		quotaCache := deps.QuotaCache
		if quotaCache == nil {
			quotaCache = deps.Cache
		}
		governor = quota.New(quota.Config{
			Provider:      name,
			MonthlyBudget: pc.Budget.MonthlyBudget,
			WarnPercent:   pc.Budget.WarnPercent,
			LimitPercent:  pc.Budget.LimitPercent,
			Cache:         quotaCache,
			Logger:        r.logger,
		})
	}

	client := outbound.NewClient(outbound.ClientConfig{
		Provider:       name,
		BaseURL:        pc.BaseURL,
		APIKey:         pc.APIKey,
		AuthStyle:      pc.AuthStyle,
		AuthHeader:     pc.AuthHeader,
		AuthPrefix:     pc.AuthPrefix,
		AuthParam:      pc.AuthParam,
		RequestTimeout: pc.RequestTimeout,
		AcquireTimeout: pc.AcquireTimeout,
	}, outbound.Components{
		Limiter: bucket,
		Breaker: brk,
		Quota:   governor,
		Cache:   deps.Cache,
		Metrics: deps.Metrics,
		Logger:  r.logger,
	})

	return &entry{
		client:     client,
		bucket:     bucket,
		governor:   governor,
		ttl:        pc.CacheTTL,
		maxRetries: pc.MaxRetries,
		graceTimer: graceTimer,
	}
}

// Fetch performs one call against the named provider, selecting the
// cache lifetime from the result class (ClassCatalog, ClassMeta, or
// ClassSearch).
func (r *Registry) Fetch(ctx context.Context, provider, class, endpoint string, params url.Values) ([]byte, error) {
	r.mu.RLock()
	e, ok := r.entries[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	var ttl time.Duration
	switch class {
	case ClassCatalog:
		ttl = e.ttl.Catalog
	case ClassMeta:
		ttl = e.ttl.Meta
	case ClassSearch:
		ttl = e.ttl.Search
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}

	return e.client.Fetch(ctx, endpoint, params, ttl, e.maxRetries)
}

// Client returns the named provider's client.
func (r *Registry) Client(provider string) (*outbound.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[provider]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Names returns all provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Governors returns the quota governors of all budget-constrained
// providers, keyed by provider name.
func (r *Registry) Governors() map[string]*quota.Governor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	governors := make(map[string]*quota.Governor)
	for name, e := range r.entries {
		if e.governor != nil {
			governors[name] = e.governor
		}
	}
	return governors
}

// RestoreQuotas loads persisted quota counters for all budget-constrained
// providers. Called once at startup, before traffic is admitted.
func (r *Registry) RestoreQuotas(ctx context.Context) {
	for _, governor := range r.Governors() {
		governor.Restore(ctx)
	}
}

// Stats returns per-provider snapshots in sorted name order.
func (r *Registry) Stats() []outbound.Stats {
	names := r.Names()

	stats := make([]outbound.Stats, 0, len(names))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		stats = append(stats, r.entries[name].client.Stats())
	}
	return stats
}

// Close stops every provider's pipeline: grace timers, rate limiters,
// and idle connections. Callers blocked on a token are rejected.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.entries {
		if e.graceTimer != nil {
			e.graceTimer.Stop()
		}
		e.bucket.Stop()
		if err := e.client.Close(); err != nil {
			r.logger.Warn("failed to close provider client", "provider", name, "error", err)
		}
	}
}
