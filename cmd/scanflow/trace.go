package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ormasoftchile/scanflow/pkg/ecosystem/inspector"
	"github.com/ormasoftchile/scanflow/pkg/trace"
	"github.com/spf13/cobra"
)

var traceVerifyCmd = &cobra.Command{
	Use:   "verify [trace.jsonl]",
	Short: "Verify trace file integrity (hash chain)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceVerify,
}

func runTraceVerify(cmd *cobra.Command, args []string) error {
	result, err := trace.VerifyFile(args[0])
	if err != nil {
		return err
	}

	if !result.Valid {
		fmt.Printf("✗ Chain broken at event %d\n", result.BrokenAt)
		if result.Error != "" {
			fmt.Printf("  %s\n", result.Error)
		}
		return fmt.Errorf("chain verification failed")
	}

	fmt.Printf("✓ Chain integrity: %d events, no breaks\n", result.EventCount)
	if !result.Complete {
		fmt.Printf("⚠ Trace has no sequence_complete event (interrupted run?)\n")
	}
	return nil
}

var traceInspectCmd = &cobra.Command{
	Use:   "inspect [trace.jsonl]",
	Short: "Browse the passes of a recorded trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := trace.ReadFile(args[0])
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return fmt.Errorf("%s has no events", args[0])
		}
		_, err = tea.NewProgram(inspector.NewModel(events), tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Trace file operations",
	}
	traceCmd.AddCommand(traceVerifyCmd)
	traceCmd.AddCommand(traceInspectCmd)
	rootCmd.AddCommand(traceCmd)
}
