package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

const retailProfile = `apiVersion: profile/v1
name: retail
blocks:
  - kind: literal
    value: SKU
  - kind: barcode
`

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := h(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want text", result.Content[0])
	}
	return result, text.Text
}

func TestHandleValidate_MissingPath(t *testing.T) {
	result, _ := call(t, HandleValidate, map[string]any{})
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleValidate(t *testing.T) {
	result, text := call(t, HandleValidate, map[string]any{"path": writeProfile(t, retailProfile)})
	if result.IsError || !strings.Contains(text, "retail is valid (2 blocks)") {
		t.Errorf("result = %v %q", result.IsError, text)
	}

	bad := writeProfile(t, "apiVersion: profile/v1\nname: bad\nblocks:\n  - kind: if\n    value: \"true\"\n")
	result, text = call(t, HandleValidate, map[string]any{"path": bad})
	if !result.IsError || !strings.Contains(text, "endif") {
		t.Errorf("unbalanced profile: %v %q", result.IsError, text)
	}
}

func TestHandleSchema(t *testing.T) {
	for _, typ := range []string{"profile", "scenario"} {
		result, text := call(t, HandleSchema, map[string]any{"type": typ})
		if result.IsError || !strings.Contains(text, typ+"-v1.json") {
			t.Errorf("%s schema: %v", typ, result.IsError)
		}
	}
}

func TestHandleSchema_UnknownType(t *testing.T) {
	result, _ := call(t, HandleSchema, map[string]any{"type": "foo"})
	if !result.IsError {
		t.Error("expected error for unknown schema type")
	}
}

func TestHandleDiagram(t *testing.T) {
	result, text := call(t, HandleDiagram, map[string]any{"path": writeProfile(t, retailProfile)})
	if result.IsError || !strings.Contains(text, "flowchart TD") {
		t.Errorf("diagram = %q", text)
	}
	result, _ = call(t, HandleDiagram, map[string]any{"path": writeProfile(t, retailProfile), "format": "png"})
	if !result.IsError {
		t.Error("expected error for unsupported format")
	}
}

func TestHandleRun(t *testing.T) {
	result, text := call(t, HandleRun, map[string]any{
		"path":     writeProfile(t, retailProfile),
		"mode":     "continue",
		"scenario": "barcodes: [\"111\", \"222\"]\n",
	})
	if result.IsError {
		t.Fatalf("run failed: %s", text)
	}
	var out struct {
		Mode    string `json:"mode"`
		Reason  string `json:"reason"`
		Results []struct {
			DisplayValue string `json:"display_value"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode: %v\n%s", err, text)
	}
	if out.Mode != "continue" || out.Reason != "user-cancelled" {
		t.Errorf("mode = %q reason = %q", out.Mode, out.Reason)
	}
	if len(out.Results) != 2 || out.Results[1].DisplayValue != "SKU 222" {
		t.Errorf("results = %+v", out.Results)
	}
}

func TestHandleRun_Errors(t *testing.T) {
	path := writeProfile(t, retailProfile)
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing path", map[string]any{}},
		{"missing scenario", map[string]any{"path": path}},
		{"bad mode", map[string]any{"path": path, "mode": "burst", "scenario": "barcodes: [\"1\"]"}},
		{"empty scenario", map[string]any{"path": path, "scenario": "add_more: [true]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _ := call(t, HandleRun, tt.args)
			if !result.IsError {
				t.Error("expected error result")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	if s := NewServer("test"); s == nil {
		t.Fatal("nil server")
	}
}
