package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/briefcast/briefcast/internal/app"
	"github.com/briefcast/briefcast/internal/logger"
	"github.com/briefcast/briefcast/internal/metrics"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/ratelimit"
)

var (
	runDate       string
	runMinutes    int
	runMaxItems   int
	runMaxStories int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the briefing pipeline",
	Long: `Run the full briefing pipeline for one logical date: sync sources,
fetch feeds and articles, store and deduplicate, rank, and generate show
notes plus the narration script. Re-running a date overwrites that date's
run.`,
	RunE: runBriefing,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDate, "date", "", "logical date of the run (YYYY-MM-DD, default today)")
	runCmd.Flags().IntVarP(&runMinutes, "minutes", "m", 0, "target read time in minutes")
	runCmd.Flags().IntVar(&runMaxItems, "max-items", 0, "maximum RSS items to process")
	runCmd.Flags().IntVar(&runMaxStories, "max-stories", 0, "maximum stories in the briefing")
}

func runBriefing(cmd *cobra.Command, args []string) error {
	if runDate != "" {
		if err := validateDate(runDate); err != nil {
			return err
		}
	}

	fmt.Println("Checking database connection...")

	a, err := app.New(configPath, sourcesPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr := a.Config.Monitor.Addr; addr != "" {
		go serveMonitor(a, addr)
	}

	result := a.Run(cmd.Context(), pipeline.Params{
		Date:          runDate,
		TargetMinutes: runMinutes,
		MaxItems:      runMaxItems,
		MaxStories:    runMaxStories,
	})

	printSummary(result, a.Limiter)

	if !result.Succeeded {
		if result.FailedStage != "" {
			return fmt.Errorf("run failed at stage %q", result.FailedStage)
		}
		return errors.New("run failed before the first stage")
	}
	return nil
}

func printSummary(result *pipeline.Result, limiter *ratelimit.Limiter) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	fmt.Printf("\nBriefing run %s\n\n", result.RunDate)

	for _, stage := range result.Stages {
		switch {
		case stage.Success:
			green.Printf("  ✓ %-11s", stage.Name)
			fmt.Printf(" %-38s %s\n", stage.Description, stage.Duration().Round(time.Millisecond))
		case stage.Started():
			red.Printf("  ✗ %-11s", stage.Name)
			fmt.Printf(" %-38s %s  %s\n", stage.Description,
				stage.Duration().Round(time.Millisecond), stage.Error)
		default:
			faint.Printf("  - %-11s %s (not started)\n", stage.Name, stage.Description)
		}
	}

	if len(result.Artifacts) > 0 {
		fmt.Println("\nArtifacts:")
		for _, path := range result.Artifacts {
			fmt.Printf("  %s\n", path)
		}
	}

	if used := limiter.Used(); used > 0 {
		if remaining := limiter.Remaining(); remaining >= 0 {
			fmt.Printf("\nLLM requests: %d used, %d remaining today\n", used, remaining)
		} else {
			fmt.Printf("\nLLM requests: %d used\n", used)
		}
	}

	fmt.Printf("\nFinished in %s\n", result.Duration.Round(time.Millisecond))
}

// serveMonitor exposes health and metrics endpoints while the run executes.
func serveMonitor(a *app.App, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth(a))
	mux.HandleFunc("/metrics", handleMetrics(a))

	logger.Info("monitoring server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("monitoring server stopped", "error", err.Error())
	}
}

func handleHealth(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := metrics.Global.GetStats()

		w.Header().Set("Content-Type", "application/json")

		status := "ok"
		database := "ok"
		if err := a.Store.Ping(r.Context()); err != nil {
			status = "error"
			database = "error"
		}
		if !stats["is_healthy"].(bool) {
			status = "error"
		}
		if status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     status,
			"database":   database,
			"last_run":   stats["last_run_time"],
			"last_error": stats["last_error"],
		})
	}
}

func handleMetrics(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := metrics.Global.GetStats()
		stats["llm_budget"] = a.Limiter.Stats()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}
