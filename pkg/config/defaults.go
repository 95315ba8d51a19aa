package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:7000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Provider defaults
	DefaultRequestTimeout = 10 * time.Second
	DefaultAcquireTimeout = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultAuthHeader     = "Authorization"
	DefaultAuthPrefix     = "Bearer "
	DefaultAuthParam      = "api_key"

	// Rate limit defaults
	DefaultMaxTokens    = 20.0
	DefaultRefillRate   = 5.0
	DefaultMaxQueueSize = 100
	DefaultGracePeriod  = 60 * time.Second

	// Breaker defaults
	DefaultBreakerThreshold = 5
	DefaultBreakerWindow    = 60 * time.Second
	DefaultBreakerCooldown  = 30 * time.Second

	// Budget defaults
	DefaultWarnPercent  = 80
	DefaultLimitPercent = 95

	// Cache TTL defaults
	DefaultCatalogTTL = 15 * time.Minute
	DefaultMetaTTL    = 24 * time.Hour
	DefaultSearchTTL  = time.Hour

	// Cache backend defaults
	DefaultCacheBackend     = "memory"
	DefaultSweepInterval    = 5 * time.Minute
	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultRedisDialTimeout = 5 * time.Second

	// Quota defaults
	DefaultSweepSchedule = "*/15 * * * *"

	// Storage defaults
	DefaultStorageBackend = "none"
	DefaultSQLitePath     = "data/comet.db"

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultLoggingRedact  = true
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Provider defaults - applied to each provider
	for name, provider := range cfg.Providers {
		applyProviderDefaults(&provider)
		cfg.Providers[name] = provider
	}

	// Cache defaults
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.SweepInterval == 0 {
		cfg.Cache.SweepInterval = DefaultSweepInterval
	}
	if cfg.Cache.Redis.Addr == "" {
		cfg.Cache.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Cache.Redis.DialTimeout == 0 {
		cfg.Cache.Redis.DialTimeout = DefaultRedisDialTimeout
	}

	// Quota defaults
	if cfg.Quota.SweepSchedule == "" {
		cfg.Quota.SweepSchedule = DefaultSweepSchedule
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = DefaultSQLitePath
	}

	// Telemetry defaults. Redact defaults to true, so it is only
	// defaulted when the whole logging section is untouched.
	if cfg.Telemetry.Logging.Level == "" && cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Redact = DefaultLoggingRedact
	}
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		// An untouched metrics section means metrics on by default.
		if !cfg.Telemetry.Metrics.Enabled {
			cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
		}
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// applyProviderDefaults fills zero-valued fields of one provider config.
func applyProviderDefaults(provider *ProviderConfig) {
	if provider.AuthHeader == "" {
		provider.AuthHeader = DefaultAuthHeader
	}
	if provider.AuthPrefix == "" {
		provider.AuthPrefix = DefaultAuthPrefix
	}
	if provider.AuthParam == "" {
		provider.AuthParam = DefaultAuthParam
	}
	if provider.RequestTimeout == 0 {
		provider.RequestTimeout = DefaultRequestTimeout
	}
	if provider.AcquireTimeout == 0 {
		provider.AcquireTimeout = DefaultAcquireTimeout
	}
	if provider.MaxRetries == 0 {
		provider.MaxRetries = DefaultMaxRetries
	}

	if provider.RateLimit.MaxTokens == 0 {
		provider.RateLimit.MaxTokens = DefaultMaxTokens
	}
	if provider.RateLimit.RefillRate == 0 {
		provider.RateLimit.RefillRate = DefaultRefillRate
	}
	if provider.RateLimit.MaxQueueSize == 0 {
		provider.RateLimit.MaxQueueSize = DefaultMaxQueueSize
	}
	if provider.RateLimit.GracePeriod == 0 {
		provider.RateLimit.GracePeriod = DefaultGracePeriod
	}

	if provider.Breaker.Threshold == 0 {
		provider.Breaker.Threshold = DefaultBreakerThreshold
	}
	if provider.Breaker.Window == 0 {
		provider.Breaker.Window = DefaultBreakerWindow
	}
	if provider.Breaker.Cooldown == 0 {
		provider.Breaker.Cooldown = DefaultBreakerCooldown
	}

	if provider.Budget.WarnPercent == 0 {
		provider.Budget.WarnPercent = DefaultWarnPercent
	}
	if provider.Budget.LimitPercent == 0 {
		provider.Budget.LimitPercent = DefaultLimitPercent
	}

	if provider.CacheTTL.Catalog == 0 {
		provider.CacheTTL.Catalog = DefaultCatalogTTL
	}
	if provider.CacheTTL.Meta == 0 {
		provider.CacheTTL.Meta = DefaultMetaTTL
	}
	if provider.CacheTTL.Search == 0 {
		provider.CacheTTL.Search = DefaultSearchTTL
	}
}
