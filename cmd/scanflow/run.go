package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/ormasoftchile/scanflow/pkg/ecosystem/recorder"
	"github.com/ormasoftchile/scanflow/pkg/mode"
	"github.com/ormasoftchile/scanflow/pkg/providers"
	"github.com/ormasoftchile/scanflow/pkg/scanloop"
	"github.com/ormasoftchile/scanflow/pkg/store"
	"github.com/ormasoftchile/scanflow/pkg/trace"
	"github.com/ormasoftchile/scanflow/pkg/tui"
	"github.com/spf13/cobra"
)

// runOptions holds the run command's flags.
type runOptions struct {
	Mode     string
	Scenario string
	DryRun   bool
	Settings string
	Session  string
	Trace    string
	Store    string
	JSONL    string
	Record   string
	TUI      bool
	Verbose  bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [profile.yaml]",
	Short: "Run a scan sequence with a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runProfile(ctx, args[0], runOpts, os.Stdout)
	},
}

// collaborators are the barcode source and prompts of one run.
type collaborators struct {
	source  providers.BarcodeSource
	prompts providers.Collector
	close   func() error
}

// recordable joins a source and prompts for the recorder.
type recordable struct {
	providers.BarcodeRequester
	providers.Collector
}

func buildCollaborators(opts runOptions) (*collaborators, error) {
	noop := func() error { return nil }
	switch {
	case opts.Scenario != "" && opts.DryRun:
		return nil, fmt.Errorf("--scenario and --dry-run are mutually exclusive")
	case opts.Scenario != "":
		s, err := providers.LoadScenario(opts.Scenario)
		if err != nil {
			return nil, err
		}
		sc := providers.NewScenarioCollector(s)
		return &collaborators{source: sc, prompts: sc, close: noop}, nil
	case opts.DryRun:
		dc := &providers.DryRunCollector{Barcodes: 1}
		return &collaborators{source: dc, prompts: dc, close: noop}, nil
	case opts.TUI:
		c := tui.NewCollector()
		return &collaborators{source: c.BarcodeSource(), prompts: c, close: noop}, nil
	default:
		c, err := providers.NewConsoleCollector()
		if err != nil {
			return nil, err
		}
		src := &providers.ManualBarcodeSource{Input: c, Prompt: "barcode> "}
		return &collaborators{source: src, prompts: c, close: c.Close}, nil
	}
}

func openSink(opts runOptions) (store.Sink, error) {
	switch {
	case opts.Store != "" && opts.JSONL != "":
		return nil, fmt.Errorf("--store and --jsonl are mutually exclusive")
	case opts.Store != "":
		s, err := store.NewSQLite(opts.Store)
		if err != nil {
			return nil, err
		}
		return s, nil
	case opts.JSONL != "":
		j, err := store.OpenJSONL(opts.JSONL)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return store.NewMemory(), nil
	}
}

func settingsPath(opts runOptions) string {
	if opts.Settings != "" {
		return opts.Settings
	}
	return os.Getenv("SCANFLOW_SETTINGS")
}

// runProfile runs one scan sequence, printing a card per result.
func runProfile(ctx context.Context, path string, opts runOptions, out io.Writer) error {
	p, err := loadProfile(path)
	if err != nil {
		return err
	}

	var requested mode.Mode
	if opts.Mode != "" {
		if requested, err = mode.Parse(opts.Mode); err != nil {
			return err
		}
	}

	var settingsProvider providers.SettingsProvider = providers.FileSettings{Path: settingsPath(opts)}
	settings, err := settingsProvider.Settings()
	if err != nil {
		return err
	}
	if opts.Session != "" {
		settings.ScanSessionName = opts.Session
		settingsProvider = providers.StaticSettings(*settings)
	}

	collab, err := buildCollaborators(opts)
	if err != nil {
		return err
	}
	defer collab.close()

	var rec *recorder.Recorder
	if opts.Record != "" {
		rec = recorder.New(recordable{BarcodeRequester: collab.source, Collector: collab.prompts})
		collab.source = rec
		collab.prompts = rec
	}

	sink, err := openSink(opts)
	if err != nil {
		return err
	}
	defer sink.Close()

	sess := store.Session{
		ID:        store.NewSessionID(),
		Name:      settings.ScanSessionName,
		Profile:   p.Name,
		StartedAt: time.Now().UnixMilli(),
	}

	var tw *trace.Writer
	if opts.Trace != "" {
		if tw, err = trace.NewFileWriter(opts.Trace, sess.ID); err != nil {
			return err
		}
		defer tw.Close()
	}

	o := &scanloop.Orchestrator{
		Settings: settingsProvider,
		Source:   collab.source,
		Prompts:  collab.prompts,
		Trace:    tw,
	}
	if opts.Verbose {
		o.Log = os.Stderr
	}

	start := time.Now()
	seq := o.Start(ctx, scanloop.Request{Profile: p, Mode: requested})
	results, runErr := store.Drain(ctx, sink, sess, seq, func(n int, m scanloop.ScanModel) {
		fmt.Fprintln(out, tui.RenderResult(n, m))
	})
	fmt.Fprintln(out, tui.RenderSummary(len(results), runErr, time.Since(start)))

	if rec != nil {
		if err := rec.Save(opts.Record); err != nil {
			return err
		}
		fmt.Fprintf(out, "  [record] scenario saved to %s\n", opts.Record)
	}
	if opts.Trace != "" {
		fmt.Fprintf(out, "  [trace] %s\n", opts.Trace)
	}
	if !scanloop.Clean(runErr) {
		return runErr
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runOpts.Mode, "mode", "", "Scan mode: manual, single or continue (default from settings)")
	runCmd.Flags().StringVar(&runOpts.Scenario, "scenario", "", "Answer prompts from a scenario YAML file")
	runCmd.Flags().BoolVar(&runOpts.DryRun, "dry-run", false, "Use placeholder barcodes and default answers")
	runCmd.Flags().StringVar(&runOpts.Settings, "settings", "", "Settings YAML file (default $SCANFLOW_SETTINGS)")
	runCmd.Flags().StringVar(&runOpts.Session, "session", "", "Scan session name (overrides settings)")
	runCmd.Flags().StringVar(&runOpts.Trace, "trace", "", "Append a hash-chained JSONL trace to this file")
	runCmd.Flags().StringVar(&runOpts.Store, "store", "", "Save results to this SQLite database")
	runCmd.Flags().StringVar(&runOpts.JSONL, "jsonl", "", "Append results to this JSONL file")
	runCmd.Flags().StringVar(&runOpts.Record, "record", "", "Save the session's answers as a replayable scenario")
	runCmd.Flags().BoolVar(&runOpts.TUI, "tui", false, "Use interactive terminal prompts")
	runCmd.Flags().BoolVarP(&runOpts.Verbose, "verbose", "v", false, "Log sequence progress to stderr")
	rootCmd.AddCommand(runCmd)
}
