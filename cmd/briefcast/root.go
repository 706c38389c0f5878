package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/briefcast/briefcast/internal/logger"
)

var (
	configPath  string
	sourcesPath string
)

var rootCmd = &cobra.Command{
	Use:   "briefcast",
	Short: "Daily AI news podcast briefing generator",
	Long: `briefcast turns a set of RSS feeds into a daily podcast briefing.

Each run syncs the configured sources, fetches and extracts articles,
deduplicates them in Postgres, ranks them by five weighted signals and
writes show notes plus a narration script into the workspace.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&sourcesPath, "sources", "sources.yaml", "path to the sources file")
}

// validateDate checks a --date flag value is a calendar date.
func validateDate(value string) error {
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return nil
}
