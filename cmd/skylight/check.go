package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"skylight-hq/comet/pkg/cli"
	"skylight-hq/comet/pkg/config"
)

var checkFlags struct {
	output string
}

// checkSummary is the per-provider view printed by the check command.
type checkSummary struct {
	ListenAddress  string          `json:"listen_address"`
	CacheBackend   string          `json:"cache_backend"`
	StorageBackend string          `json:"storage_backend"`
	MetricsEnabled bool            `json:"metrics_enabled"`
	Providers      []providerCheck `json:"providers"`
}

type providerCheck struct {
	Name          string  `json:"name"`
	BaseURL       string  `json:"base_url"`
	RefillRate    float64 `json:"refill_rate"`
	MonthlyBudget int64   `json:"monthly_budget"`
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file, then print a summary of the
resolved settings after defaults and environment overrides are applied.

Exits non-zero when the configuration is invalid, listing every failing
field.

Examples:
  # Validate the default config
  skylight check

  # Validate a specific file, JSON summary
  skylight check --config /etc/skylight/comet.yaml --output json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFlags.output, "output", "o", "text", "output format (text, json)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(os.Stderr, "✗ Configuration invalid: %s\n", cfgFile)
			for _, fieldErr := range verr.Errors {
				fmt.Fprintf(os.Stderr, "  - %s: %s\n", fieldErr.Field, fieldErr.Message)
			}
			return cli.NewConfigError(cfgFile, fmt.Sprintf("%d validation errors", len(verr.Errors)))
		}
		return cli.NewConfigError(cfgFile, err.Error())
	}

	summary := checkSummary{
		ListenAddress:  cfg.Server.ListenAddress,
		CacheBackend:   cfg.Cache.Backend,
		StorageBackend: cfg.Storage.Backend,
		MetricsEnabled: cfg.Telemetry.Metrics.Enabled,
	}
	for name, pc := range cfg.Providers {
		summary.Providers = append(summary.Providers, providerCheck{
			Name:          name,
			BaseURL:       pc.BaseURL,
			RefillRate:    pc.RateLimit.RefillRate,
			MonthlyBudget: pc.Budget.MonthlyBudget,
		})
	}
	sort.Slice(summary.Providers, func(i, j int) bool {
		return summary.Providers[i].Name < summary.Providers[j].Name
	})

	if checkFlags.output == "text" {
		fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
		fmt.Printf("  listen: %s  cache: %s  storage: %s\n",
			summary.ListenAddress, summary.CacheBackend, summary.StorageBackend)
		for _, p := range summary.Providers {
			fmt.Printf("  provider %s: %s (refill %g/s, budget %d)\n",
				p.Name, p.BaseURL, p.RefillRate, p.MonthlyBudget)
		}
		return nil
	}

	formatter := cli.NewFormatter(cli.OutputFormat(checkFlags.output))
	return formatter.FormatTo(os.Stdout, summary)
}
