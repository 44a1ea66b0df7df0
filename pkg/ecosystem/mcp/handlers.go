// Package mcp exposes profile validation, scripted runs, schema export and
// diagrams as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ormasoftchile/scanflow/pkg/diagram"
	"github.com/ormasoftchile/scanflow/pkg/interp"
	"github.com/ormasoftchile/scanflow/pkg/mode"
	"github.com/ormasoftchile/scanflow/pkg/profile"
	"github.com/ormasoftchile/scanflow/pkg/providers"
	"github.com/ormasoftchile/scanflow/pkg/scanloop"
	"github.com/ormasoftchile/scanflow/pkg/store"
)

// runTimeout bounds a scripted run; scenarios never wait on a person.
const runTimeout = 30 * time.Second

// HandleValidate implements the scanflow/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	p, errs := profile.ValidateFile(path)
	if profile.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d blocks)", p.Name, len(p.Blocks))
	if warnings := formatWarnings(errs); warnings != "" {
		msg += "\nwarnings: " + warnings
	}
	return textResult(msg), nil
}

// HandleSchema implements the scanflow/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	schemaType, _ := args["type"].(string)

	var data []byte
	var err error

	switch schemaType {
	case "profile":
		data, err = profile.GenerateJSONSchema()
	case "scenario":
		data, err = providers.GenerateScenarioSchema()
	default:
		return errorResult(fmt.Sprintf("unknown schema type %q: use 'profile' or 'scenario'", schemaType)), nil
	}

	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleDiagram implements the scanflow/diagram MCP tool.
func HandleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	format, _ := args["format"].(string)
	if format == "" {
		format = string(diagram.FormatMermaid)
	}

	p, err := profile.LoadFile(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	out, err := diagram.Generate(p, diagram.Format(format))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(out), nil
}

// HandleRun implements the scanflow/run MCP tool.
func HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	p, errs := profile.ValidateFile(path)
	if profile.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	scenario, err := loadScenario(args)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	var requested mode.Mode
	if m, _ := args["mode"].(string); m != "" {
		if requested, err = mode.Parse(m); err != nil {
			return errorResult(err.Error()), nil
		}
	}
	settingsPath, _ := args["settings"].(string)

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	collector := providers.NewScenarioCollector(scenario)
	o := &scanloop.Orchestrator{
		Settings: providers.FileSettings{Path: settingsPath},
		Source:   collector,
		Prompts:  collector,
	}
	sink := store.NewMemory()
	sess := store.Session{ID: store.NewSessionID(), Profile: p.Name, StartedAt: time.Now().UnixMilli()}

	start := time.Now()
	seq := o.Start(ctx, scanloop.Request{Profile: p, Mode: requested})
	results, runErr := store.Drain(ctx, sink, sess, seq, nil)

	// Build response
	response := map[string]any{
		"session":  sess.ID,
		"mode":     string(seq.Mode()),
		"duration": time.Since(start).Truncate(time.Millisecond).String(),
		"results":  results,
	}
	if runErr != nil {
		if reason := interp.Reason(runErr); reason != "" {
			response["reason"] = reason
		} else {
			response["error"] = runErr.Error()
		}
	}
	if alerts := collector.Alerts(); len(alerts) > 0 {
		response["alerts"] = alerts
	}

	data, _ := json.MarshalIndent(response, "", "  ")

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: !scanloop.Clean(runErr),
	}, nil
}

func loadScenario(args map[string]any) (*providers.Scenario, error) {
	if text, _ := args["scenario"].(string); text != "" {
		return providers.ParseScenario([]byte(text))
	}
	if path, _ := args["scenario_path"].(string); path != "" {
		return providers.LoadScenario(path)
	}
	return nil, fmt.Errorf("scenario or scenario_path argument is required")
}

func formatErrors(errs []*profile.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func formatWarnings(errs []*profile.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "warning" {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
