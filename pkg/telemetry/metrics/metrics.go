// Package metrics provides Prometheus metrics for the outbound provider
// access layer.
//
// Metrics:
//   - comet_outbound_provider_calls_total: provider call count by outcome
//   - comet_outbound_provider_call_duration_seconds: provider call latency
//   - comet_outbound_provider_errors_total: provider errors by kind
//   - comet_outbound_ratelimit_tokens: current token count per provider
//   - comet_outbound_ratelimit_queue_depth: queued waiters per provider
//   - comet_outbound_circuit_open: circuit state (1=open, 0=closed)
//   - comet_outbound_quota_used_percent: monthly quota usage
//   - comet_outbound_cache_hits_total / cache_misses_total: response cache
//
// Metric emission is best-effort and synchronous-cheap: recording a
// metric never fails a request or adds meaningful latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Namespace is the metric namespace. Default: "comet".
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem. Default: "outbound".
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets are the histogram buckets for provider call
	// latency. Defaults cover 50ms to 10s.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// Collector records outbound-layer metrics to a Prometheus registry.
type Collector struct {
	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	callErrors   *prometheus.CounterVec

	limiterTokens     *prometheus.GaugeVec
	limiterQueueDepth *prometheus.GaugeVec
	circuitOpen       *prometheus.GaugeVec
	quotaUsedPercent  *prometheus.GaugeVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
}

// NewCollector creates and registers the outbound metrics with the
// provided registry. If registry is nil a new one is created; use
// Registry-level HTTP handlers to expose it.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "comet"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "outbound"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}
	}

	c := &Collector{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_calls_total",
				Help:      "Total provider network calls by outcome",
			},
			[]string{"provider", "outcome"},
		),

		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_call_duration_seconds",
				Help:      "Provider network call latency in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"provider"},
		),

		callErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_errors_total",
				Help:      "Total provider errors by kind",
			},
			[]string{"provider", "kind"},
		),

		limiterTokens: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ratelimit_tokens",
				Help:      "Current rate limiter token count",
			},
			[]string{"provider"},
		),

		limiterQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ratelimit_queue_depth",
				Help:      "Current rate limiter waiter queue depth",
			},
			[]string{"provider"},
		),

		circuitOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "circuit_open",
				Help:      "Circuit breaker state (1=open, 0=closed)",
			},
			[]string{"provider"},
		),

		quotaUsedPercent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "quota_used_percent",
				Help:      "Monthly quota usage as a percentage of the budget",
			},
			[]string{"provider"},
		),

		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_hits_total",
				Help:      "Response cache hits",
			},
			[]string{"provider"},
		),

		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_misses_total",
				Help:      "Response cache misses",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		c.calls,
		c.callDuration,
		c.callErrors,
		c.limiterTokens,
		c.limiterQueueDepth,
		c.circuitOpen,
		c.quotaUsedPercent,
		c.cacheHits,
		c.cacheMisses,
	)

	return c
}

// TrackProviderCall records one provider network call.
func (c *Collector) TrackProviderCall(provider string, duration time.Duration, isError bool) {
	outcome := "success"
	if isError {
		outcome = "error"
	}
	c.calls.WithLabelValues(provider, outcome).Inc()
	c.callDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordError records a provider error by classification kind.
func (c *Collector) RecordError(provider, kind string) {
	c.callErrors.WithLabelValues(provider, kind).Inc()
}

// SetLimiterState updates the rate limiter gauges for a provider.
func (c *Collector) SetLimiterState(provider string, tokens float64, queueDepth int) {
	c.limiterTokens.WithLabelValues(provider).Set(tokens)
	c.limiterQueueDepth.WithLabelValues(provider).Set(float64(queueDepth))
}

// SetCircuitOpen updates the circuit breaker gauge for a provider.
func (c *Collector) SetCircuitOpen(provider string, open bool) {
	value := 0.0
	if open {
		value = 1.0
	}
	c.circuitOpen.WithLabelValues(provider).Set(value)
}

// SetQuotaUsedPercent updates the quota usage gauge for a provider.
func (c *Collector) SetQuotaUsedPercent(provider string, percent float64) {
	c.quotaUsedPercent.WithLabelValues(provider).Set(percent)
}

// RecordCacheHit records a response cache hit.
func (c *Collector) RecordCacheHit(provider string) {
	c.cacheHits.WithLabelValues(provider).Inc()
}

// RecordCacheMiss records a response cache miss.
func (c *Collector) RecordCacheMiss(provider string) {
	c.cacheMisses.WithLabelValues(provider).Inc()
}
