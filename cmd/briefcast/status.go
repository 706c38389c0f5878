package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/briefcast/briefcast/internal/config"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/storage"
)

var statusDate string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the run record for a date",
	Long: `Show the stored run record for a logical date: status, timing,
per-stage outcomes and the run directory. Defaults to today.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusDate, "date", "", "logical date of the run (YYYY-MM-DD, default today)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	date := statusDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if err := validateDate(date); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.RunByDate(cmd.Context(), date)
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Printf("No run recorded for %s. Start one with 'briefcast run --date %s'.\n", date, date)
		return nil
	}

	printRun(run, storage.NewWorkspace(cfg.WorkspaceRoot).RunDir(date))
	return nil
}

func printRun(run *storage.Run, runDir string) {
	statusColor := color.New(color.FgYellow)
	switch run.Status {
	case storage.RunStatusSuccess:
		statusColor = color.New(color.FgGreen)
	case storage.RunStatusFailed:
		statusColor = color.New(color.FgRed)
	}

	fmt.Printf("Run %s (id %d)\n", run.RunDate, run.ID)
	fmt.Printf("  status:   ")
	statusColor.Println(run.Status)
	fmt.Printf("  started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Printf("  finished: %s (%s)\n",
			run.FinishedAt.Format(time.RFC3339),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	} else {
		fmt.Println("  finished: -")
	}

	if len(run.Stats) > 0 {
		var stats struct {
			Stages map[string]bool `json:"stages"`
		}
		if err := json.Unmarshal(run.Stats, &stats); err == nil && len(stats.Stages) > 0 {
			fmt.Println("  stages:")
			for _, name := range pipeline.StageNames() {
				ok, recorded := stats.Stages[name]
				if !recorded {
					continue
				}
				mark := "✗"
				if ok {
					mark = "✓"
				}
				fmt.Printf("    %s %s\n", mark, name)
			}
		}
	}

	fmt.Printf("  outputs:  %s\n", runDir)
}
