package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/briefcast/briefcast/internal/config"
	"github.com/briefcast/briefcast/internal/storage"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage RSS sources",
}

var sourcesListEnabled bool

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the sources known to the database",
	RunE:  runSourcesList,
}

var sourcesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the sources file into the database",
	RunE:  runSourcesSync,
}

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a source by name",
	Long: `Enable a source in the database. The flag holds until the next sync,
which reapplies the value from the sources file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(cmd, args[0], true)
	},
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a source by name",
	Long: `Disable a source in the database. The flag holds until the next sync,
which reapplies the value from the sources file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesListCmd, sourcesSyncCmd, sourcesEnableCmd, sourcesDisableCmd)

	sourcesListCmd.Flags().BoolVar(&sourcesListEnabled, "enabled", false, "list only enabled sources")
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var sources []storage.Source
	if sourcesListEnabled {
		sources, err = store.EnabledSources(cmd.Context())
	} else {
		sources, err = store.ListSources(cmd.Context())
	}
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println("No sources synced yet. Run 'briefcast sources sync' first.")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithRendition(tw.Rendition{
			Borders:  tw.BorderNone,
			Settings: tw.Settings{Separators: tw.Separators{ShowHeader: tw.Off}},
		}),
	)
	table.Header([]string{"NAME", "CATEGORY", "WEIGHT", "ENABLED", "URL"})

	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		enabled := "✗"
		if src.Enabled {
			enabled = "✓"
		}
		rows = append(rows, []string{
			src.Name,
			src.Category,
			fmt.Sprintf("%.1f", src.Weight),
			enabled,
			src.URL,
		})
	}
	table.Bulk(rows)
	table.Render()

	return nil
}

func runSourcesSync(cmd *cobra.Command, args []string) error {
	entries, err := config.LoadSources(sourcesPath)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.SyncSources(cmd.Context(), entries); err != nil {
		return err
	}

	enabled := 0
	for _, e := range entries {
		if e.Enabled {
			enabled++
		}
	}
	fmt.Printf("Synced %d sources (%d enabled)\n", len(entries), enabled)
	return nil
}

func setSourceEnabled(cmd *cobra.Command, name string, enabled bool) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetSourceEnabled(cmd.Context(), name, enabled); err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Source %q %s\n", name, state)
	return nil
}

func openStore() (*storage.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.Database.DSN())
}
