package diagram

import (
	"errors"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/ormasoftchile/scanflow/pkg/profile"
)

func retail() *profile.Profile {
	return &profile.Profile{
		APIVersion: "profile/v1",
		Name:       "retail",
		Blocks: []profile.Block{
			{Kind: profile.KindLiteral, Value: "SKU"},
			{Kind: profile.KindBarcode},
			{Kind: profile.KindIf, Value: `barcode == "123"`},
			{Kind: profile.KindLiteral, Value: "MATCH"},
			{Kind: profile.KindIf, Value: "quantity != nil"},
			{Kind: profile.KindDeviceVariable, Value: "date"},
			{Kind: profile.KindEndIf},
			{Kind: profile.KindEndIf},
			{Kind: profile.KindSelectOption, Label: "Bin", Value: "north,south"},
		},
	}
}

func TestGenerateMermaid_LinearFlow(t *testing.T) {
	p := &profile.Profile{
		Name: "linear",
		Blocks: []profile.Block{
			{Kind: profile.KindLiteral, Value: "A"},
			{Kind: profile.KindBarcode},
		},
	}
	out, err := Generate(p, FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"flowchart TD", "START([Scan]) --> b0", "b0 --> b1", "b1 --> RESULT", "style b1"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q, got:\n%s", want, out)
		}
	}
}

func TestGenerateMermaid_Branches(t *testing.T) {
	out, err := Generate(retail(), FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		`b2{"◇ if barcode == #quot;123#quot;"}`,
		"b2 -->|true| b3",
		"b2 -->|false| b8",
		"b3 --> b4",
		"b4 -->|true| b5",
		"b4 -->|false| b8",
		"b5 --> b8",
		"b8 --> RESULT",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "b6") || strings.Contains(out, "b7") {
		t.Errorf("endif blocks should not be nodes:\n%s", out)
	}
}

func TestGenerateMermaid_EmptyBranch(t *testing.T) {
	p := &profile.Profile{Name: "empty-if", Blocks: []profile.Block{
		{Kind: profile.KindIf, Value: "true"},
		{Kind: profile.KindEndIf},
	}}
	out, err := Generate(p, FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "b0 -->|true| RESULT") || !strings.Contains(out, "b0 -->|false| RESULT") {
		t.Errorf("empty branch should fall through:\n%s", out)
	}
}

func TestGenerateASCII(t *testing.T) {
	out, err := Generate(retail(), FormatASCII)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"retail", "¶ SKU", "▮ barcode", "◇ if barcode", "  ¶ MATCH", "  ◇ if quantity != nil", "    ⚙ date", "☰ Bin"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q, got:\n%s", want, out)
		}
	}
}

func TestGenerateASCII_BoxesAligned(t *testing.T) {
	out, err := Generate(&profile.Profile{Name: "align", Blocks: []profile.Block{
		{Kind: profile.KindLiteral, Value: "short"},
		{Kind: profile.KindFunction, Value: `upper(barcode) + "-" + device_name`},
	}}, FormatASCII)
	if err != nil {
		t.Fatal(err)
	}
	width := -1
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "│") || strings.TrimSpace(line) == "│" {
			continue
		}
		w := runewidth.StringWidth(line)
		if width >= 0 && w != width {
			t.Errorf("box line width %d, want %d: %q", w, width, line)
		}
		width = w
	}
	if width < 0 {
		t.Fatalf("no box lines in:\n%s", out)
	}
}

func TestGenerateASCII_Empty(t *testing.T) {
	out, err := Generate(&profile.Profile{Name: "nothing"}, FormatASCII)
	if err != nil {
		t.Fatal(err)
	}
	if out != "nothing (empty)\n" {
		t.Errorf("got %q", out)
	}
}

func TestGenerate_Unbalanced(t *testing.T) {
	p := &profile.Profile{Name: "bad", Blocks: []profile.Block{{Kind: profile.KindEndIf}}}
	if _, err := Generate(p, FormatASCII); !errors.Is(err, profile.ErrUnmatchedEndIf) {
		t.Errorf("err = %v, want unmatched endif", err)
	}
	p = &profile.Profile{Name: "bad", Blocks: []profile.Block{{Kind: profile.KindIf, Value: "true"}}}
	if _, err := Generate(p, FormatMermaid); err == nil {
		t.Error("expected error for missing endif")
	}
}

func TestGenerate_UnsupportedFormat(t *testing.T) {
	if _, err := Generate(retail(), Format("svg")); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := Generate(nil, FormatASCII); err == nil {
		t.Error("expected error for nil profile")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 5); got != "ab..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}

func TestCenterPad(t *testing.T) {
	if got := centerPad("ab", 6); got != "  ab  " {
		t.Errorf("centerPad = %q", got)
	}
	if got := centerPad("toolong", 3); got != "toolong" {
		t.Errorf("centerPad = %q", got)
	}
}
