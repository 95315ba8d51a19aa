package config

import (
	"strings"
	"testing"
)

// validConfig returns a configuration that passes validation, for tests
// to break one field at a time.
func validConfig() *Config {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"cinemeta": {BaseURL: "https://v3-cinemeta.example.com"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("defaulted config should validate: %v", err)
	}
}

func TestValidateFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "" },
			field:  "server.listen_address",
		},
		{
			name:   "no providers",
			mutate: func(c *Config) { c.Providers = nil },
			field:  "providers",
		},
		{
			name: "missing base URL",
			mutate: func(c *Config) {
				p := c.Providers["cinemeta"]
				p.BaseURL = ""
				c.Providers["cinemeta"] = p
			},
			field: "providers.cinemeta.base_url",
		},
		{
			name: "relative base URL",
			mutate: func(c *Config) {
				p := c.Providers["cinemeta"]
				p.BaseURL = "v3-cinemeta.example.com/api"
				c.Providers["cinemeta"] = p
			},
			field: "providers.cinemeta.base_url",
		},
		{
			name: "unknown auth style",
			mutate: func(c *Config) {
				p := c.Providers["cinemeta"]
				p.AuthStyle = "cookie"
				p.APIKey = "k"
				c.Providers["cinemeta"] = p
			},
			field: "providers.cinemeta.auth_style",
		},
		{
			name: "auth style without key",
			mutate: func(c *Config) {
				p := c.Providers["cinemeta"]
				p.AuthStyle = "header"
				c.Providers["cinemeta"] = p
			},
			field: "providers.cinemeta.api_key",
		},
		{
			name: "zero refill rate",
			mutate: func(c *Config) {
				p := c.Providers["cinemeta"]
				p.RateLimit.RefillRate = -1
				c.Providers["cinemeta"] = p
			},
			field: "providers.cinemeta.rate_limit.refill_rate",
		},
		{
			name: "zero breaker threshold",
			mutate: func(c *Config) {
				p := c.Providers["cinemeta"]
				p.Breaker.Threshold = -3
				c.Providers["cinemeta"] = p
			},
			field: "providers.cinemeta.breaker.threshold",
		},
		{
			name: "warn above limit",
			mutate: func(c *Config) {
				p := c.Providers["cinemeta"]
				p.Budget.WarnPercent = 99
				p.Budget.LimitPercent = 90
				c.Providers["cinemeta"] = p
			},
			field: "providers.cinemeta.budget.warn_percent",
		},
		{
			name:   "unknown cache backend",
			mutate: func(c *Config) { c.Cache.Backend = "memcached" },
			field:  "cache.backend",
		},
		{
			name:   "bad sweep schedule",
			mutate: func(c *Config) { c.Quota.SweepSchedule = "every 5 minutes" },
			field:  "quota.sweep_schedule",
		},
		{
			name:   "unknown storage backend",
			mutate: func(c *Config) { c.Storage.Backend = "postgres" },
			field:  "storage.backend",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "loud" },
			field:  "telemetry.logging.level",
		},
		{
			name:   "metrics path without slash",
			mutate: func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			field:  "telemetry.metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}

			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					return
				}
			}
			t.Errorf("no error for field %q in: %v", tt.field, verr)
		})
	}
}

func TestValidationErrorCollectsAll(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ListenAddress = ""
	cfg.Cache.Backend = "memcached"
	cfg.Telemetry.Logging.Format = "xml"

	err := Validate(cfg)
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(verr.Errors), verr)
	}
	if !strings.Contains(verr.Error(), "3 errors") {
		t.Errorf("message should mention error count: %s", verr.Error())
	}
}
