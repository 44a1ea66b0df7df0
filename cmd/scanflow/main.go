package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ormasoftchile/scanflow/pkg/diagram"
	"github.com/ormasoftchile/scanflow/pkg/profile"
	"github.com/ormasoftchile/scanflow/pkg/providers"
	"github.com/ormasoftchile/scanflow/pkg/tui"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory. Variables
// already set in the environment win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scanflow",
	Short: "Scan output profile engine",
	Long:  "scanflow turns barcode scans into formatted records by running output profiles: ordered blocks with conditions, prompts and device variables.",
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [profile.yaml]",
	Short: "Validate a profile YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	p, errs := profile.ValidateFile(filePath)
	printValidationWarnings(errs)
	if profile.HasErrors(errs) {
		n := countValidationErrors(errs)
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", n)
		i := 0
		for _, e := range errs {
			if e.Severity == "warning" {
				continue
			}
			i++
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", n)
	}

	fmt.Printf("✓ %s is valid (%d blocks)\n", p.Name, len(p.Blocks))
	return nil
}

// loadProfile validates a profile file and prints its warnings.
func loadProfile(path string) (*profile.Profile, error) {
	p, errs := profile.ValidateFile(path)
	if profile.HasErrors(errs) {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n", countValidationErrors(errs))
		for _, e := range errs {
			if e.Severity != "warning" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			}
		}
		return nil, fmt.Errorf("profile validation failed")
	}
	printValidationWarnings(errs)
	return p, nil
}

func printValidationWarnings(errs []*profile.ValidationError) {
	for _, w := range errs {
		if w.Severity != "warning" {
			continue
		}
		fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
		}
	}
}

func countValidationErrors(errs []*profile.ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity != "warning" {
			n++
		}
	}
	return n
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaOut string

var schemaExportCmd = &cobra.Command{
	Use:       "export [profile|scenario]",
	Short:     "Export the JSON Schema for profiles or scenarios",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"profile", "scenario"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := "profile"
		if len(args) == 1 {
			kind = args[0]
		}
		var data []byte
		var err error
		switch kind {
		case "profile":
			data, err = profile.GenerateJSONSchema()
		case "scenario":
			data, err = providers.GenerateScenarioSchema()
		default:
			return fmt.Errorf("unknown schema %q: use profile or scenario", kind)
		}
		if err != nil {
			return err
		}
		if schemaOut == "" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(schemaOut, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write schema: %w", err)
		}
		fmt.Printf("✓ %s schema written to %s\n", kind, schemaOut)
		return nil
	},
}

// --- diagram ---

var diagramFormat string

var diagramCmd = &cobra.Command{
	Use:   "diagram [profile.yaml]",
	Short: "Render a profile's block flow as a diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.LoadFile(args[0])
		if err != nil {
			return err
		}
		out, err := diagram.Generate(p, diagram.Format(diagramFormat))
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

// --- describe ---

var describeWidth int

var describeCmd = &cobra.Command{
	Use:   "describe [profile.yaml]",
	Short: "Describe a profile as rendered markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile(args[0])
		if err != nil {
			return err
		}
		fmt.Println(tui.RenderMarkdown(describeMarkdown(p, filepath.Base(args[0])), describeWidth))
		return nil
	},
}

// describeMarkdown documents a profile: its settings and a block table
// with conditional nesting shown by indentation.
func describeMarkdown(p *profile.Profile, source string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	if p.Description != "" {
		b.WriteString(p.Description + "\n\n")
	}
	fmt.Fprintf(&b, "- **Source:** `%s`\n", source)
	if len(p.EnabledFormats) > 0 {
		fmt.Fprintf(&b, "- **Formats:** %s\n", strings.Join(p.EnabledFormats, ", "))
	}
	if p.QuantityType != "" {
		fmt.Fprintf(&b, "- **Quantity type:** %s\n", p.QuantityType)
	}
	if c, err := profile.Compile(p); err == nil {
		fmt.Fprintf(&b, "- **Prompts between scans:** %v\n", c.HasBlockingComponent)
		fmt.Fprintf(&b, "- **Asks for quantity:** %v\n", c.HasQuantityComponent)
	}

	b.WriteString("\n| # | Kind | Label | Value |\n|---|------|-------|-------|\n")
	depth := 0
	for i, blk := range p.Blocks {
		if blk.Kind == profile.KindEndIf && depth > 0 {
			depth--
		}
		kind := strings.Repeat("↳ ", depth) + string(blk.Kind)
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i, kind, mdCell(blk.Label), mdCell(blk.Value))
		if blk.Kind == profile.KindIf {
			depth++
		}
	}
	return b.String()
}

func mdCell(s string) string {
	if s == "" {
		return ""
	}
	return "`" + strings.ReplaceAll(s, "|", `\|`) + "`"
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scanflow %s (commit %s)\n", version, commit)
	},
}

func init() {
	schemaExportCmd.Flags().StringVar(&schemaOut, "out", "", "Write the schema to a file instead of stdout")
	schemaCmd.AddCommand(schemaExportCmd)

	diagramCmd.Flags().StringVar(&diagramFormat, "format", "ascii", "Diagram format: ascii or mermaid")
	describeCmd.Flags().IntVar(&describeWidth, "width", 100, "Word-wrap width (0 disables wrapping)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(versionCmd)
}
