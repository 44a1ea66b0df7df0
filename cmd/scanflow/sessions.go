package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/ormasoftchile/scanflow/pkg/store"
	"github.com/ormasoftchile/scanflow/pkg/tui"
	"github.com/spf13/cobra"
)

var (
	sessionsStore string
	sessionsJSON  bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List scan sessions saved in a SQLite store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		sessions, err := db.Sessions(cmd.Context())
		if err != nil {
			return err
		}
		if sessionsJSON {
			return printJSON(sessions)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions.")
			return nil
		}
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			Headers("ID", "NAME", "PROFILE", "STARTED")
		for _, s := range sessions {
			t.Row(s.ID, s.Name, s.Profile, time.UnixMilli(s.StartedAt).Format(time.RFC3339))
		}
		fmt.Println(t.Render())
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show the results of one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := db.List(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if sessionsJSON {
			return printJSON(results)
		}
		if len(results) == 0 {
			fmt.Printf("No results for session %s.\n", args[0])
			return nil
		}
		for i, m := range results {
			fmt.Println(tui.RenderResult(i+1, m))
		}
		return nil
	},
}

func openStore() (*store.SQLite, error) {
	if sessionsStore == "" {
		return nil, fmt.Errorf("--store is required")
	}
	if _, err := os.Stat(sessionsStore); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store.NewSQLite(sessionsStore)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsStore, "store", "", "SQLite database written by run --store")
	sessionsCmd.PersistentFlags().BoolVar(&sessionsJSON, "json", false, "Output as JSON")
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}
