package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "providers.cinemeta.base_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateQuota(&cfg.Quota)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}

	return errs
}

// validateProviders validates all provider configurations.
func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if len(providers) == 0 {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider is required",
		})
		return errs
	}

	for name, provider := range providers {
		prefix := fmt.Sprintf("providers.%s", name)

		if provider.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: "base URL is required",
			})
		} else if u, err := url.Parse(provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: fmt.Sprintf("invalid base URL %q", provider.BaseURL),
			})
		}

		switch provider.AuthStyle {
		case "", "header", "query":
		default:
			errs = append(errs, FieldError{
				Field:   prefix + ".auth_style",
				Message: fmt.Sprintf("invalid auth style %q (must be \"header\" or \"query\")", provider.AuthStyle),
			})
		}
		if provider.AuthStyle != "" && provider.APIKey == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".api_key",
				Message: "api key is required when auth_style is set",
			})
		}

		if provider.MaxRetries < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_retries",
				Message: "max retries must be non-negative",
			})
		}

		if provider.RateLimit.MaxTokens <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".rate_limit.max_tokens",
				Message: "max tokens must be positive",
			})
		}
		if provider.RateLimit.RefillRate <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".rate_limit.refill_rate",
				Message: "refill rate must be positive",
			})
		}
		if provider.RateLimit.MaxQueueSize <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".rate_limit.max_queue_size",
				Message: "max queue size must be positive",
			})
		}

		if provider.Breaker.Threshold <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".breaker.threshold",
				Message: "threshold must be positive",
			})
		}
		if provider.Breaker.Window <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".breaker.window",
				Message: "window must be positive",
			})
		}
		if provider.Breaker.Cooldown <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".breaker.cooldown",
				Message: "cooldown must be positive",
			})
		}

		if provider.Budget.MonthlyBudget < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".budget.monthly_budget",
				Message: "monthly budget must be non-negative",
			})
		}
		if provider.Budget.WarnPercent < 0 || provider.Budget.WarnPercent > 100 {
			errs = append(errs, FieldError{
				Field:   prefix + ".budget.warn_percent",
				Message: "warn percent must be between 0 and 100",
			})
		}
		if provider.Budget.LimitPercent < 0 || provider.Budget.LimitPercent > 100 {
			errs = append(errs, FieldError{
				Field:   prefix + ".budget.limit_percent",
				Message: "limit percent must be between 0 and 100",
			})
		}
		if provider.Budget.WarnPercent > provider.Budget.LimitPercent {
			errs = append(errs, FieldError{
				Field:   prefix + ".budget.warn_percent",
				Message: "warn percent must not exceed limit percent",
			})
		}
	}

	return errs
}

// validateCache validates cache configuration.
func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, FieldError{
			Field:   "cache.backend",
			Message: fmt.Sprintf("invalid backend %q (must be \"memory\" or \"redis\")", cfg.Backend),
		})
	}

	if cfg.Backend == "redis" && cfg.Redis.Addr == "" {
		errs = append(errs, FieldError{
			Field:   "cache.redis.addr",
			Message: "redis address is required for the redis backend",
		})
	}

	return errs
}

// validateQuota validates process-wide quota configuration.
func validateQuota(cfg *QuotaConfig) []FieldError {
	var errs []FieldError

	if cfg.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "quota.sweep_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.SweepSchedule, err),
			})
		}
	}

	return errs
}

// validateStorage validates quota snapshot store configuration.
func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "none", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q (must be \"none\" or \"sqlite\")", cfg.Backend),
		})
	}

	if cfg.Backend == "sqlite" && cfg.SQLitePath == "" {
		errs = append(errs, FieldError{
			Field:   "storage.sqlite_path",
			Message: "sqlite path is required for the sqlite backend",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (must be \"json\" or \"text\")", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	return errs
}
