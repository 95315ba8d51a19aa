package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"skylight-hq/comet/pkg/cache"
	"skylight-hq/comet/pkg/outbound/breaker"
	"skylight-hq/comet/pkg/outbound/quota"
	"skylight-hq/comet/pkg/outbound/ratelimit"
	"skylight-hq/comet/pkg/telemetry/metrics"
)

// Auth styles for provider credentials.
const (
	// AuthStyleHeader sends the API key in a request header.
	AuthStyleHeader = "header"
	// AuthStyleQuery sends the API key as a query parameter.
	AuthStyleQuery = "query"
)

// Upper bound on the Retry-After sleep applied after an upstream 429.
const maxRetryAfterSleep = 10 * time.Second

// How much of an upstream error body is kept in errors and logs.
const maxErrorBodyLen = 200

// ClientConfig configures a provider client.
type ClientConfig struct {
	// Provider is the provider name, used in errors, logs, and metrics.
	Provider string

	// BaseURL is the provider's API root (e.g. "https://api.example.com/3").
	BaseURL string

	// APIKey is the provider credential.
	APIKey string

	// AuthStyle is how the credential is sent: AuthStyleHeader or
	// AuthStyleQuery.
	AuthStyle string

	// AuthHeader is the header name for AuthStyleHeader
	// (e.g. "Authorization"). Default: "Authorization".
	AuthHeader string

	// AuthPrefix is prepended to the key for AuthStyleHeader
	// (e.g. "Bearer "). Default: "Bearer ".
	AuthPrefix string

	// AuthParam is the query parameter name for AuthStyleQuery
	// (e.g. "api_key"). Default: "api_key".
	AuthParam string

	// RequestTimeout bounds each network attempt. Default: 10s.
	RequestTimeout time.Duration

	// AcquireTimeout bounds the wait for a rate-limit token.
	// Default: 30s.
	AcquireTimeout time.Duration

	// MaxIdleConnsPerHost sizes the connection pool. Default: 10.
	MaxIdleConnsPerHost int
}

// Components are the shared per-provider pipeline instances, constructed
// once by the composition root and passed by reference.
type Components struct {
	// Limiter is the provider's token bucket. Required.
	Limiter *ratelimit.Bucket

	// Breaker is the provider's circuit breaker. Required.
	Breaker *breaker.Breaker

	// Quota is the budget governor; nil for providers without a
	// monthly call budget.
	Quota *quota.Governor

	// Cache is the read/write-through response cache. Wrap the backend
	// in cache.Safe so failures degrade to misses. Required.
	Cache cache.Cache

	// Metrics receives provider call metrics. Optional.
	Metrics *metrics.Collector

	// Logger receives per-attempt failure logs. Optional.
	Logger *slog.Logger
}

// Client orchestrates one outbound call through the full admission
// control pipeline. A Client is safe for use by an unbounded number of
// concurrent callers; the only suspension point is the rate-limit
// acquire.
type Client struct {
	config ClientConfig

	limiter *ratelimit.Bucket
	breaker *breaker.Breaker
	quota   *quota.Governor
	cache   cache.Cache
	metrics *metrics.Collector
	logger  *slog.Logger

	http  *http.Client
	retry RetryPolicy

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a provider client around the shared pipeline
// components.
func NewClient(cfg ClientConfig, parts Components) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 30 * time.Second
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 10
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "Authorization"
	}
	if cfg.AuthPrefix == "" {
		cfg.AuthPrefix = "Bearer "
	}
	if cfg.AuthParam == "" {
		cfg.AuthParam = "api_key"
	}

	logger := parts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConnsPerHost * 2,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		config:  cfg,
		limiter: parts.Limiter,
		breaker: parts.Breaker,
		quota:   parts.Quota,
		cache:   parts.Cache,
		metrics: parts.Metrics,
		logger:  logger.With("component", "outbound", "provider", cfg.Provider),
		http: &http.Client{
			Transport: transport,
			// Per-attempt timeouts are enforced via request contexts;
			// this is a hard backstop.
			Timeout: cfg.RequestTimeout + 5*time.Second,
		},
		retry: DefaultRetryPolicy(),
		sleep: sleepCtx,
	}
}

// Fetch performs one logical provider call through the pipeline and
// returns the validated JSON response body.
//
// The cacheTTL applies to the response cache entry written on success.
// maxRetries bounds internal retries of transient failures; fail-fast
// rejections (quota, circuit, queue-full) are never retried.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values, cacheTTL time.Duration, maxRetries int) ([]byte, error) {
	if err := c.validateConfig(); err != nil {
		return nil, err
	}

	// Quota check before anything else: no cache lookup, no network
	// attempt, no counter increment for a rejected call.
	if c.quota != nil && c.quota.IsExceeded() {
		used, budget := c.quota.Used()
		err := &QuotaExceededError{Provider: c.config.Provider, Used: used, Budget: budget}
		c.recordErrorMetric(err)
		return nil, err
	}

	// Cache hit bypasses the breaker and the limiter entirely.
	key := c.cacheKey(endpoint, params)
	if body, found, _ := c.cache.Get(ctx, key); found {
		if c.metrics != nil {
			c.metrics.RecordCacheHit(c.config.Provider)
		}
		return body, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(c.config.Provider)
	}

	if c.breaker.IsOpen() {
		err := &CircuitOpenError{Provider: c.config.Provider, RetryIn: c.breaker.RetryIn()}
		c.recordErrorMetric(err)
		return nil, err
	}

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.acquire(ctx); err != nil {
			c.recordErrorMetric(err)
			return nil, err
		}

		body, err := c.doAttempt(ctx, endpoint, params, attempt)
		if err == nil {
			c.breaker.RecordSuccess()
			_ = c.cache.Set(ctx, key, body, cacheTTL)
			return body, nil
		}
		lastErr = err

		var transient *RetryableError
		if errors.As(err, &transient) && transient.StatusCode == http.StatusTooManyRequests {
			// Global backpressure: every caller against this provider
			// backs off, not just this one.
			c.limiter.NotifyRateLimited(transient.RetryAfter)

			if transient.RetryAfter > 0 {
				wait := transient.RetryAfter
				if wait > maxRetryAfterSleep {
					wait = maxRetryAfterSleep
				}
				if err := c.sleep(ctx, wait); err != nil {
					return nil, err
				}
			}
		}

		retry, delay := c.retry.Decide(err, attempt, maxRetries)
		if !retry {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	if TripsBreaker(lastErr) {
		c.breaker.RecordFailure()
	}
	c.recordErrorMetric(lastErr)
	return nil, lastErr
}

// Stats is the per-provider snapshot consumed by the health surface.
type Stats struct {
	// Provider is the provider name.
	Provider string

	// Limiter is the rate limiter snapshot.
	Limiter ratelimit.Stats

	// Breaker is the circuit breaker snapshot.
	Breaker breaker.Stats

	// Quota is the budget snapshot; nil for providers without one.
	Quota *quota.Stats
}

// Stats returns a snapshot across all pipeline components, publishing
// the gauges to the metrics collector as a side effect.
func (c *Client) Stats() Stats {
	s := Stats{
		Provider: c.config.Provider,
		Limiter:  c.limiter.Stats(),
		Breaker:  c.breaker.Stats(),
	}
	if c.quota != nil {
		q := c.quota.Stats()
		s.Quota = &q
	}

	if c.metrics != nil {
		c.metrics.SetLimiterState(c.config.Provider, s.Limiter.Tokens, s.Limiter.QueueDepth)
		c.metrics.SetCircuitOpen(c.config.Provider, s.Breaker.Open)
		if s.Quota != nil {
			c.metrics.SetQuotaUsedPercent(c.config.Provider, s.Quota.PercentUsed)
		}
	}
	return s
}

// Close releases idle connections. The pipeline components are owned by
// the composition root and stopped there.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// validateConfig checks that the provider is usable at all. A missing
// host or credential is fatal and never retried.
func (c *Client) validateConfig() error {
	if c.config.BaseURL == "" {
		return &ConfigurationError{Provider: c.config.Provider, Field: "base_url"}
	}
	if c.config.APIKey == "" && c.config.AuthStyle != "" {
		return &ConfigurationError{Provider: c.config.Provider, Field: "api_key"}
	}
	return nil
}

// acquire obtains one rate-limit token, mapping limiter sentinels to the
// caller-facing taxonomy.
func (c *Client) acquire(ctx context.Context) error {
	err := c.limiter.Acquire(ctx, c.config.AcquireTimeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ratelimit.ErrQueueFull):
		return &QueueFullError{Provider: c.config.Provider, QueueSize: c.limiter.Stats().QueueDepth}
	case errors.Is(err, ratelimit.ErrAcquireTimeout), errors.Is(err, ratelimit.ErrStopped):
		return &AcquireTimeoutError{Provider: c.config.Provider, Timeout: c.config.AcquireTimeout}
	default:
		// Context cancellation propagates as-is.
		return err
	}
}

// doAttempt executes one network attempt, records it against the quota,
// emits the call metric, and classifies any failure.
func (c *Client) doAttempt(ctx context.Context, endpoint string, params url.Values, attempt int) ([]byte, error) {
	start := time.Now()
	body, err := c.do(ctx, endpoint, params)
	duration := time.Since(start)

	// The network attempt happened, whether it succeeded or not.
	if c.quota != nil {
		c.quota.RecordCall(endpoint)
	}
	if c.metrics != nil {
		c.metrics.TrackProviderCall(c.config.Provider, duration, err != nil)
	}

	if err != nil {
		c.logger.Warn("provider call failed",
			"endpoint", truncate(endpoint, 60),
			"status", statusOf(err),
			"attempt", attempt,
			"duration", duration,
			"error", err,
		)
	}

	return body, err
}

// do executes the HTTP request under the per-attempt timeout and
// classifies the outcome.
func (c *Client) do(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	requestURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, &ConfigurationError{Provider: c.config.Provider, Field: "base_url"}
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.AuthStyle == AuthStyleHeader {
		req.Header.Set(c.config.AuthHeader, c.config.AuthPrefix+c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// The caller going away is not a provider failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RetryableError{Provider: c.config.Provider, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RetryableError{Provider: c.config.Provider, Cause: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if !json.Valid(raw) {
			return nil, &ParseError{Provider: c.config.Provider, Cause: fmt.Errorf("invalid JSON body (%d bytes)", len(raw))}
		}
		return raw, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RetryableError{
			Provider:   c.config.Provider,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    truncate(string(raw), maxErrorBodyLen),
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &ClientError{
			Provider:   c.config.Provider,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(raw), maxErrorBodyLen),
		}

	default:
		return nil, &RetryableError{
			Provider:   c.config.Provider,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(raw), maxErrorBodyLen),
		}
	}
}

// buildURL joins the base URL, endpoint path, and query parameters,
// applying query-style auth.
func (c *Client) buildURL(endpoint string, params url.Values) (string, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", err
	}

	base.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(endpoint, "/")

	query := url.Values{}
	for name, values := range params {
		for _, value := range values {
			query.Add(name, value)
		}
	}
	if c.config.AuthStyle == AuthStyleQuery {
		query.Set(c.config.AuthParam, c.config.APIKey)
	}
	base.RawQuery = query.Encode()

	return base.String(), nil
}

// cacheKey builds the canonical response cache key from the normalized
// request path and sorted query parameters. Credentials never enter the
// key: two configurations with different API keys share cache entries
// for the same logical request.
func (c *Client) cacheKey(endpoint string, params url.Values) string {
	canonical := strings.Trim(endpoint, "/") + "?" + params.Encode() // Encode sorts by key
	digest := xxhash.Sum64String(canonical)
	return fmt.Sprintf("resp:%s:%016x", c.config.Provider, digest)
}

// recordErrorMetric emits the classified error kind.
func (c *Client) recordErrorMetric(err error) {
	if c.metrics == nil || err == nil {
		return
	}
	c.metrics.RecordError(c.config.Provider, errorKind(err))
}

// errorKind names the taxonomy class for metrics labels.
func errorKind(err error) string {
	var (
		configErr  *ConfigurationError
		quotaErr   *QuotaExceededError
		circuitErr *CircuitOpenError
		queueErr   *QueueFullError
		acqErr     *AcquireTimeoutError
		clientErr  *ClientError
		retryErr   *RetryableError
		parseErr   *ParseError
	)

	switch {
	case errors.As(err, &configErr):
		return "configuration"
	case errors.As(err, &quotaErr):
		return "quota_exceeded"
	case errors.As(err, &circuitErr):
		return "circuit_open"
	case errors.As(err, &queueErr):
		return "queue_full"
	case errors.As(err, &acqErr):
		return "acquire_timeout"
	case errors.As(err, &clientErr):
		return "client"
	case errors.As(err, &retryErr):
		return "retryable"
	case errors.As(err, &parseErr):
		return "parse"
	default:
		return "other"
	}
}

// statusOf extracts the upstream status code from a classified error,
// or zero when none applies.
func statusOf(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		return retryErr.StatusCode
	}
	return 0
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date form.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}

// truncate bounds a string for logs and error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// sleepCtx sleeps for d, aborting early when ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
