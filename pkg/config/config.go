package config

import "time"

// Config is the root configuration structure for Comet.
// It contains all configuration sections for the HTTP server, outbound
// providers, caching, quota persistence, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and graceful shutdown settings.
	Server ServerConfig `yaml:"server"`

	// Providers contains configuration for all upstream metadata providers.
	// Keys are provider names (e.g., "cinemeta", "metadb").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Cache contains configuration for the response/quota cache backend.
	Cache CacheConfig `yaml:"cache"`

	// Quota contains process-wide quota settings such as the persistence
	// sweep schedule.
	Quota QuotaConfig `yaml:"quota"`

	// Storage contains configuration for the quota snapshot store.
	Storage StorageConfig `yaml:"storage"`

	// Telemetry contains configuration for observability including
	// logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:7000", "0.0.0.0:7000").
	// Default: "127.0.0.1:7000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are dropped.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProviderConfig contains configuration for a single upstream provider.
type ProviderConfig struct {
	// BaseURL is the base URL for the provider's API endpoint.
	// Example: "https://v3-cinemeta.example.com"
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication credential for the provider.
	// Typically loaded from an environment variable.
	APIKey string `yaml:"api_key"`

	// AuthStyle is how the credential is sent: "header", "query", or
	// empty for unauthenticated providers.
	AuthStyle string `yaml:"auth_style"`

	// AuthHeader is the header name for header-style auth.
	// Default: "Authorization"
	AuthHeader string `yaml:"auth_header"`

	// AuthPrefix is prepended to the key for header-style auth.
	// Default: "Bearer "
	AuthPrefix string `yaml:"auth_prefix"`

	// AuthParam is the query parameter name for query-style auth.
	// Default: "api_key"
	AuthParam string `yaml:"auth_param"`

	// RequestTimeout is the maximum duration for a single network
	// attempt against this provider.
	// Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// AcquireTimeout is the maximum time a caller waits for a rate
	// limit token before giving up.
	// Default: 30s
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`

	// MaxRetries is the maximum number of internal retry attempts for
	// transient failures.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RateLimit contains the provider's token bucket settings.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Breaker contains the provider's circuit breaker settings.
	Breaker BreakerConfig `yaml:"breaker"`

	// Budget contains the provider's monthly call budget settings.
	// A zero monthly budget disables quota governance for the provider.
	Budget BudgetConfig `yaml:"budget"`

	// CacheTTL contains per-result-class cache lifetimes.
	CacheTTL CacheTTLConfig `yaml:"cache_ttl"`
}

// RateLimitConfig contains token bucket settings for one provider.
type RateLimitConfig struct {
	// MaxTokens is the bucket capacity (burst size) at full budget.
	// Default: 20
	MaxTokens float64 `yaml:"max_tokens"`

	// RefillRate is the number of tokens added per second.
	// Default: 5
	RefillRate float64 `yaml:"refill_rate"`

	// MaxQueueSize is the maximum number of callers that may wait for a
	// token before further callers are rejected outright.
	// Default: 100
	MaxQueueSize int `yaml:"max_queue_size"`

	// GracePeriod is how long after startup the bucket operates at
	// half capacity and rate, protecting cold upstreams.
	// Default: 60s
	GracePeriod time.Duration `yaml:"grace_period"`
}

// BreakerConfig contains circuit breaker settings for one provider.
type BreakerConfig struct {
	// Threshold is the number of failures within the window that opens
	// the circuit.
	// Default: 5
	Threshold int `yaml:"threshold"`

	// Window is the sliding window over which failures are counted.
	// Default: 60s
	Window time.Duration `yaml:"window"`

	// Cooldown is how long the circuit stays open before calls are
	// allowed through again.
	// Default: 30s
	Cooldown time.Duration `yaml:"cooldown"`
}

// BudgetConfig contains monthly call budget settings for one provider.
type BudgetConfig struct {
	// MonthlyBudget is the hard monthly call budget. Zero disables
	// quota governance for the provider.
	MonthlyBudget int64 `yaml:"monthly_budget"`

	// WarnPercent is the budget percentage that emits a warning log.
	// Default: 80
	WarnPercent int `yaml:"warn_percent"`

	// LimitPercent is the budget percentage at which calls are rejected.
	// Default: 95
	LimitPercent int `yaml:"limit_percent"`
}

// CacheTTLConfig contains cache lifetimes per result class. Different
// response classes age at different rates: catalog pages churn, item
// metadata is near-immutable, and negative results deserve a short
// memory so transient upstream gaps heal quickly.
type CacheTTLConfig struct {
	// Catalog is the lifetime for catalog page responses.
	// Default: 15m
	Catalog time.Duration `yaml:"catalog"`

	// Meta is the lifetime for item metadata responses.
	// Default: 24h
	Meta time.Duration `yaml:"meta"`

	// Search is the lifetime for search responses.
	// Default: 1h
	Search time.Duration `yaml:"search"`
}

// CacheConfig contains configuration for the shared cache backend.
type CacheConfig struct {
	// Backend selects the cache implementation.
	// Options: "memory", "redis"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SweepInterval is how often the memory backend evicts expired
	// entries. Ignored by the redis backend.
	// Default: 5m
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// Redis contains connection settings for the redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains connection settings for the redis cache backend.
type RedisConfig struct {
	// Addr is the redis server address.
	// Default: "127.0.0.1:6379"
	Addr string `yaml:"addr"`

	// Password is the redis server password. Empty for no auth.
	Password string `yaml:"password"`

	// DB is the redis database number.
	// Default: 0
	DB int `yaml:"db"`

	// DialTimeout is the connection establishment timeout.
	// Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// QuotaConfig contains process-wide quota settings.
type QuotaConfig struct {
	// SweepSchedule is the cron expression for the periodic quota
	// persistence sweep. Empty disables the sweep; per-call async
	// persistence still runs.
	// Default: "*/15 * * * *"
	SweepSchedule string `yaml:"sweep_schedule"`
}

// StorageConfig contains configuration for the quota snapshot store.
type StorageConfig struct {
	// Backend selects the snapshot store.
	// Options: "none", "sqlite"
	// Default: "none"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	// Default: "data/comet.db"
	SQLitePath string `yaml:"sqlite_path"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// Redact controls whether credentials and PII patterns are masked
	// in log output.
	// Default: true
	Redact bool `yaml:"redact"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
