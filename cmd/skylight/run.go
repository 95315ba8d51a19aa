package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"skylight-hq/comet/pkg/cache"
	"skylight-hq/comet/pkg/cli"
	"skylight-hq/comet/pkg/config"
	"skylight-hq/comet/pkg/outbound/quota"
	"skylight-hq/comet/pkg/providers"
	"skylight-hq/comet/pkg/server"
	"skylight-hq/comet/pkg/storage"
	"skylight-hq/comet/pkg/telemetry/logging"
	"skylight-hq/comet/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Comet server",
	Long: `Start the Comet server with the specified configuration.

The server listens on the configured address and serves provider fetches
through the outbound pipeline: quota gate, cache, circuit breaker, and
rate limiter.

Examples:
  # Start with default config
  skylight run

  # Start with custom config
  skylight run --config /etc/skylight/comet.yaml

  # Override listen address
  skylight run --listen 0.0.0.0:7000

  # Validate config without starting the server
  skylight run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload configuration on file change")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
		Redact: cfg.Telemetry.Logging.Redact,
	})
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Printf("✓ Configuration valid (%d providers)\n", len(cfg.Providers))
		return nil
	}

	fmt.Printf("Skylight Comet v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	var promRegistry *prometheus.Registry
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		promRegistry = prometheus.NewRegistry()
		collector = metrics.NewCollector(metrics.Config{}, promRegistry)
	}

	// Response cache backend
	var backend cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:        cfg.Cache.Redis.Addr,
			Password:    cfg.Cache.Redis.Password,
			DB:          cfg.Cache.Redis.DB,
			DialTimeout: cfg.Cache.Redis.DialTimeout,
		})
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("redis cache: %w", err))
		}
		backend = redisCache
	default:
		backend = cache.NewMemoryCacheWithSweep(cfg.Cache.SweepInterval)
	}
	responseCache := cache.NewSafe(backend, logger)
	defer responseCache.Close()
	fmt.Printf("✓ Cache initialized (%s)\n", cfg.Cache.Backend)

	// Durable quota counters. When no snapshot store is configured the
	// registry falls back to the response cache.
	var quotaCache cache.Cache
	if cfg.Storage.Backend == "sqlite" {
		store, err := storage.NewStore(cfg.Storage.SQLitePath)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("quota store: %w", err))
		}
		defer store.Close()
		quotaCache = store
		fmt.Printf("✓ Quota store initialized (%s)\n", cfg.Storage.SQLitePath)
	}

	registry := providers.NewRegistry(cfg, providers.Deps{
		Cache:      responseCache,
		QuotaCache: quotaCache,
		Metrics:    collector,
		Logger:     logger,
	})
	defer registry.Close()
	registry.RestoreQuotas(ctx)
	fmt.Printf("✓ Providers initialized (%d providers)\n", len(cfg.Providers))

	scheduler := quota.NewScheduler(registry.Governors(), cfg.Quota.SweepSchedule, logger)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer scheduler.Stop()

	if runFlags.watch {
		watcher := config.NewWatcher(cfgFile, 0, logger)
		go func() {
			err := watcher.Watch(ctx, func(newCfg *config.Config) {
				// Logging changes apply live; provider topology, cache
				// backend, and listen address need a restart.
				applyReload(cfg, newCfg, logger)
			})
			if err != nil {
				logger.Warn("config watch stopped", "error", err)
			}
		}()
	}

	srv := server.New(cfg, registry, promRegistry, logger)

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

func applyReload(current, next *config.Config, logger *slog.Logger) {
	if next.Telemetry.Logging != current.Telemetry.Logging {
		newLogger, err := logging.New(logging.Config{
			Level:  next.Telemetry.Logging.Level,
			Format: next.Telemetry.Logging.Format,
			Redact: next.Telemetry.Logging.Redact,
		})
		if err != nil {
			logger.Warn("reload: invalid logging config", "error", err)
		} else {
			slog.SetDefault(newLogger)
			logger.Info("reload: logging configuration applied",
				"level", next.Telemetry.Logging.Level)
		}
	}

	if len(next.Providers) != len(current.Providers) ||
		next.Server.ListenAddress != current.Server.ListenAddress ||
		next.Cache.Backend != current.Cache.Backend {
		logger.Warn("reload: topology changes detected, restart required to apply")
	}
}
