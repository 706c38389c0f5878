package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/briefcast/briefcast/internal/config"
	"github.com/briefcast/briefcast/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database schema and workspace",
	Long: `Create the database tables and indexes, the workspace directory
skeleton, and seed the sources table from the sources file when one exists.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ok := color.New(color.FgGreen)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer store.Close()
	ok.Println("✓ database connection")

	if err := store.InitSchema(ctx); err != nil {
		return err
	}
	ok.Println("✓ database schema")

	ws := storage.NewWorkspace(cfg.WorkspaceRoot)
	if err := ws.Init(); err != nil {
		return err
	}
	ok.Printf("✓ workspace: %s\n", ws.Root())

	if _, err := os.Stat(sourcesPath); err == nil {
		entries, err := config.LoadSources(sourcesPath)
		if err != nil {
			return err
		}
		if _, err := store.SyncSources(ctx, entries); err != nil {
			return err
		}
		ok.Printf("✓ seeded %d sources from %s\n", len(entries), sourcesPath)
	} else {
		fmt.Printf("no sources file at %s, skipping seed\n", sourcesPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set the LLM API key, e.g. export OPENAI_API_KEY=...")
	fmt.Println("  2. briefcast run")
	return nil
}
