package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "skylight",
	Short: "Skylight Comet - outbound provider access layer",
	Long: `Skylight Comet fronts catalog and metadata providers with a shared
outbound pipeline: token-bucket rate limiting, circuit breaking, monthly
call budgets, and response caching.

Every upstream call flows through the same admission sequence, so a
misbehaving provider is throttled, broken, or budget-capped without
affecting the others.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "comet.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
