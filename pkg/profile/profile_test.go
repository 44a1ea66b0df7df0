package profile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lit(v string) Block { return Block{Kind: KindLiteral, Value: v} }
func ifb(c string) Block { return Block{Kind: KindIf, Value: c} }
func endif() Block { return Block{Kind: KindEndIf} }
func barcodeBlock() Block { return Block{Kind: KindBarcode} }
func devvar(v string) Block { return Block{Kind: KindDeviceVariable, Value: v} }

func TestMatchEndIf(t *testing.T) {
	tests := []struct {
		name   string
		blocks []Block
		start  int
		want   int
	}{
		{
			name:   "flat",
			blocks: []Block{lit("a"), ifb("true"), lit("b"), endif(), lit("c")},
			start:  1,
			want:   3,
		},
		{
			name:   "empty body",
			blocks: []Block{ifb("true"), endif()},
			start:  0,
			want:   1,
		},
		{
			name:   "one level nested, outer",
			blocks: []Block{ifb("a"), ifb("b"), lit("x"), endif(), lit("y"), endif()},
			start:  0,
			want:   5,
		},
		{
			name:   "one level nested, inner",
			blocks: []Block{ifb("a"), ifb("b"), lit("x"), endif(), lit("y"), endif()},
			start:  1,
			want:   3,
		},
		{
			name: "two levels nested",
			blocks: []Block{
				ifb("a"), ifb("b"), ifb("c"), lit("x"), endif(), endif(), ifb("d"), endif(), endif(),
			},
			start: 0,
			want:  8,
		},
		{
			name:   "siblings",
			blocks: []Block{ifb("a"), endif(), ifb("b"), lit("x"), endif()},
			start:  2,
			want:   4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchEndIf(tt.blocks, tt.start)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("MatchEndIf = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMatchEndIf_Unmatched(t *testing.T) {
	_, err := MatchEndIf([]Block{ifb("a"), ifb("b"), endif()}, 0)
	if !errors.Is(err, ErrUnmatchedIf) {
		t.Fatalf("err = %v, want ErrUnmatchedIf", err)
	}
}

func TestMatchEndIf_NotIf(t *testing.T) {
	if _, err := MatchEndIf([]Block{lit("a")}, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheckBalance(t *testing.T) {
	if err := CheckBalance([]Block{ifb("a"), ifb("b"), endif(), endif()}); err != nil {
		t.Errorf("balanced: %v", err)
	}
	if err := CheckBalance([]Block{endif()}); !errors.Is(err, ErrUnmatchedEndIf) {
		t.Errorf("stray endif: %v", err)
	}
	if err := CheckBalance([]Block{ifb("a")}); !errors.Is(err, ErrUnmatchedIf) {
		t.Errorf("open if: %v", err)
	}
}

func TestCompile_Flags(t *testing.T) {
	tests := []struct {
		name         string
		blocks       []Block
		wantBlocking bool
		wantQuantity bool
	}{
		{"plain", []Block{barcodeBlock()}, false, false},
		{"select", []Block{barcodeBlock(), {Kind: KindSelectOption, Value: "a,b"}}, true, false},
		{"quantity", []Block{barcodeBlock(), devvar(VarQuantity)}, true, true},
		{"device name only", []Block{devvar(VarDeviceName)}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(&Profile{Name: "p", Blocks: tt.blocks})
			if err != nil {
				t.Fatal(err)
			}
			if c.HasBlockingComponent != tt.wantBlocking {
				t.Errorf("blocking = %v, want %v", c.HasBlockingComponent, tt.wantBlocking)
			}
			if c.HasQuantityComponent != tt.wantQuantity {
				t.Errorf("quantity = %v, want %v", c.HasQuantityComponent, tt.wantQuantity)
			}
		})
	}
}

func TestCompile_Unbalanced(t *testing.T) {
	_, err := Compile(&Profile{Name: "p", Blocks: []Block{ifb("x")}})
	if !errors.Is(err, ErrUnmatchedIf) {
		t.Fatalf("err = %v", err)
	}
}

func TestCompile_WorkingCopyIsIndependent(t *testing.T) {
	p := &Profile{Name: "p", Blocks: []Block{lit("a")}}
	c, err := Compile(p)
	if err != nil {
		t.Fatal(err)
	}
	work := c.Blocks()
	work[0].Value = "mutated"
	if c.Profile.Blocks[0].Value != "a" {
		t.Error("compiled master mutated through working copy")
	}
	p.Blocks[0].Value = "changed"
	if c.Profile.Blocks[0].Value != "a" {
		t.Error("compiled master shares storage with source profile")
	}
}

func TestClone(t *testing.T) {
	p := &Profile{Name: "p", EnabledFormats: []string{"EAN_13"}, Blocks: []Block{lit("a")}}
	c := p.Clone()
	c.EnabledFormats[0] = "X"
	c.Blocks[0].Value = "b"
	if p.EnabledFormats[0] != "EAN_13" || p.Blocks[0].Value != "a" {
		t.Error("clone shares storage with original")
	}
	if (*Profile)(nil).Clone() != nil {
		t.Error("nil clone should be nil")
	}
}

const validProfile = `apiVersion: profile/v1
name: warehouse
enabled_formats: [EAN_13, UPC_A]
quantity_type: number
blocks:
  - kind: literal
    value: "L1"
  - kind: barcode
  - kind: if
    value: "barcode == '123'"
  - kind: literal
    value: MATCH
  - kind: endif
  - kind: device_variable
    value: quantity
    label: How many?
`

func TestLoad_Valid(t *testing.T) {
	p, err := Load(strings.NewReader(validProfile))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "warehouse" || len(p.Blocks) != 6 {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.Blocks[5].Label != "How many?" {
		t.Errorf("label = %q", p.Blocks[5].Label)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(strings.NewReader("apiVersion: profile/v1\nname: x\nbogus: 1\nblocks: []\n"))
	if err == nil {
		t.Fatal("expected unknown field rejection")
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.yaml")
	if err := os.WriteFile(path, []byte(validProfile), 0o644); err != nil {
		t.Fatal(err)
	}
	p, errs := ValidateFile(path)
	if HasErrors(errs) {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if p == nil {
		t.Fatal("nil profile")
	}
}

func TestValidateDomain(t *testing.T) {
	p := &Profile{
		APIVersion: "profile/v1",
		Name:       "bad",
		Blocks: []Block{
			ifb("barcode == "),
			devvar("battery"),
			{Kind: KindSelectOption},
			endif(),
			endif(),
		},
	}
	errs := ValidateDomain(p)
	wantPaths := []string{"blocks[0].value", "blocks[1].value", "blocks[2].value", "blocks[4]"}
	for _, want := range wantPaths {
		found := false
		for _, e := range errs {
			if e.Path == want && e.Severity == "error" {
				found = true
			}
		}
		if !found {
			t.Errorf("missing error at %s; got %v", want, errs)
		}
	}
}

func TestValidate_SemanticRejectsUnknownKind(t *testing.T) {
	p := &Profile{
		APIVersion: "profile/v1",
		Name:       "x",
		Blocks:     []Block{{Kind: "teleport"}},
	}
	errs := Validate(p)
	var semantic bool
	for _, e := range errs {
		if e.Phase == "semantic" {
			semantic = true
		}
	}
	if !semantic {
		t.Errorf("expected a semantic error, got %v", errs)
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "select_option") {
		t.Error("schema missing block kind enum")
	}
}
