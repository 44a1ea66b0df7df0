package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with scanflow tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"scanflow",
		version,
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.AddTool(
		mcp.NewTool("scanflow/validate",
			mcp.WithDescription("Validate a scan output profile YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the profile YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("scanflow/run",
			mcp.WithDescription("Run a profile against a scripted scenario and return the produced scan results"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the profile YAML file")),
			mcp.WithString("scenario", mcp.Description("Scenario YAML text with the scripted answers")),
			mcp.WithString("scenario_path", mcp.Description("Path to a scenario YAML file (used when scenario is empty)")),
			mcp.WithString("mode", mcp.Description("Scan mode: manual, single or continue")),
			mcp.WithString("settings", mcp.Description("Path to a settings YAML file (optional)")),
		),
		HandleRun,
	)

	s.AddTool(
		mcp.NewTool("scanflow/schema",
			mcp.WithDescription("Export scanflow JSON Schema (profile or scenario)"),
			mcp.WithString("type", mcp.Required(), mcp.Description("Schema type: 'profile' or 'scenario'")),
		),
		HandleSchema,
	)

	s.AddTool(
		mcp.NewTool("scanflow/diagram",
			mcp.WithDescription("Render a profile's block flow as a Mermaid or ASCII diagram"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the profile YAML file")),
			mcp.WithString("format", mcp.Description("Diagram format: mermaid (default) or ascii")),
		),
		HandleDiagram,
	)

	return s
}
