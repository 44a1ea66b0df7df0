package interp

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ormasoftchile/scanflow/pkg/barcode"
	"github.com/ormasoftchile/scanflow/pkg/profile"
	"github.com/ormasoftchile/scanflow/pkg/providers"
	"github.com/ormasoftchile/scanflow/pkg/trace"
)

func lit(v string) profile.Block { return profile.Block{Kind: profile.KindLiteral, Value: v} }
func ifb(cond string) profile.Block { return profile.Block{Kind: profile.KindIf, Value: cond} }
func endif() profile.Block { return profile.Block{Kind: profile.KindEndIf} }
func scan() profile.Block { return profile.Block{Kind: profile.KindBarcode} }
func devvar(v string) profile.Block { return profile.Block{Kind: profile.KindDeviceVariable, Value: v} }
func fn(src string) profile.Block { return profile.Block{Kind: profile.KindFunction, Value: src} }
func selectb(v string) profile.Block { return profile.Block{Kind: profile.KindSelectOption, Value: v} }

func scripted(barcodes ...string) *providers.ScenarioCollector {
	s := &providers.Scenario{}
	for _, b := range barcodes {
		s.Barcodes = append(s.Barcodes, providers.ScenarioAnswer{Text: b})
	}
	return providers.NewScenarioCollector(s)
}

func newInterp(sc *providers.ScenarioCollector) *Interpreter {
	return &Interpreter{
		Barcodes: sc,
		Quantity: sc,
		Select:   sc,
		Alerts:   sc,
		Settings: providers.Settings{DeviceName: "dock-3", ScanSessionName: "inbound"},
		Now:      func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) },
	}
}

func run(t *testing.T, ip *Interpreter, blocks []profile.Block) *Pass {
	t.Helper()
	p, err := ip.Execute(context.Background(), blocks, NewVars(ip.Settings, ip.now()))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return p
}

func TestExecute_EndToEnd(t *testing.T) {
	blocks := []profile.Block{lit("L1"), scan(), ifb("barcode == '123'"), lit("MATCH"), endif()}

	tests := []struct {
		barcode string
		want    []profile.Block
	}{
		{"123", []profile.Block{lit("L1"), {Kind: profile.KindBarcode, Value: "123"}, lit("MATCH")}},
		{"999", []profile.Block{lit("L1"), {Kind: profile.KindBarcode, Value: "999"}}},
	}
	for _, tt := range tests {
		t.Run(tt.barcode, func(t *testing.T) {
			p := run(t, newInterp(scripted(tt.barcode)), blocks)
			if !reflect.DeepEqual(p.Blocks, tt.want) {
				t.Errorf("blocks = %+v, want %+v", p.Blocks, tt.want)
			}
		})
	}
}

func TestExecute_Nesting(t *testing.T) {
	tests := []struct {
		name   string
		blocks []profile.Block
		want   []string
	}{
		{
			name:   "no branches",
			blocks: []profile.Block{lit("a"), lit("b")},
			want:   []string{"a", "b"},
		},
		{
			name:   "one level true",
			blocks: []profile.Block{lit("a"), ifb("true"), lit("b"), endif(), lit("c")},
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "one level false",
			blocks: []profile.Block{lit("a"), ifb("false"), lit("b"), endif(), lit("c")},
			want:   []string{"a", "c"},
		},
		{
			name: "two levels true true",
			blocks: []profile.Block{
				ifb("true"), lit("a"), ifb("1 < 2"), lit("b"), endif(), lit("c"), endif(), lit("d"),
			},
			want: []string{"a", "b", "c", "d"},
		},
		{
			name: "two levels true false",
			blocks: []profile.Block{
				ifb("true"), lit("a"), ifb("1 > 2"), lit("b"), endif(), lit("c"), endif(), lit("d"),
			},
			want: []string{"a", "c", "d"},
		},
		{
			name: "two levels outer false skips inner",
			blocks: []profile.Block{
				ifb("false"), lit("a"), ifb("true"), lit("b"), endif(), lit("c"), endif(), lit("d"),
			},
			want: []string{"d"},
		},
		{
			name: "adjacent branches",
			blocks: []profile.Block{
				ifb("false"), lit("a"), endif(), ifb("true"), lit("b"), endif(),
			},
			want: []string{"b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := run(t, newInterp(scripted()), tt.blocks)
			var got []string
			for _, b := range p.Blocks {
				got = append(got, b.Value)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("values = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecute_DoesNotMutateInput(t *testing.T) {
	blocks := []profile.Block{scan(), ifb("false"), lit("x"), endif()}
	orig := profile.CloneBlocks(blocks)
	vars := NewVars(providers.Settings{}, time.Now())
	run(t, newInterp(scripted("42")), blocks)

	if !reflect.DeepEqual(blocks, orig) {
		t.Errorf("input blocks mutated: %+v", blocks)
	}
	if _, err := newInterp(scripted("7")).Execute(context.Background(), blocks, vars); err != nil {
		t.Fatal(err)
	}
	if vars[VarBarcode] != "" || len(vars[VarBarcodes].([]string)) != 0 {
		t.Errorf("caller vars mutated: %v", vars)
	}
}

func TestExecute_BarcodesAccumulate(t *testing.T) {
	blocks := []profile.Block{scan(), scan(), fn("len(barcodes)"), fn("barcodes[0] + '-' + barcode")}
	p := run(t, newInterp(scripted("A", "B")), blocks)
	if p.Blocks[2].Value != "2" {
		t.Errorf("len(barcodes) = %q", p.Blocks[2].Value)
	}
	if p.Blocks[3].Value != "A-B" {
		t.Errorf("concat = %q", p.Blocks[3].Value)
	}
	if p.LegacyText() != "A B" {
		t.Errorf("legacy text = %q", p.LegacyText())
	}
}

func TestExecute_DeviceVariables(t *testing.T) {
	blocks := []profile.Block{
		devvar("device_name"), devvar("scan_session_name"), devvar("date"), devvar("time"), devvar("date_time"), devvar("timestamp"),
	}
	p := run(t, newInterp(scripted()), blocks)
	want := []string{"dock-3", "inbound", "2026-03-14", "09:26:53", "2026-03-14 09:26:53", "1773480413000"}
	for i, b := range p.Blocks {
		if b.Value != want[i] {
			t.Errorf("block %d = %q, want %q", i, b.Value, want[i])
		}
	}
}

func TestExecute_Quantity(t *testing.T) {
	sc := providers.NewScenarioCollector(&providers.Scenario{
		Barcodes:   []providers.ScenarioAnswer{{Text: "1"}},
		Quantities: []providers.ScenarioAnswer{{Text: "5"}},
	})
	blocks := []profile.Block{scan(), devvar("quantity"), ifb("quantity == null"), lit("EMPTY"), endif()}
	p := run(t, newInterp(sc), blocks)
	if p.Quantity == nil || *p.Quantity != "5" {
		t.Fatalf("quantity = %v", p.Quantity)
	}
	if p.DisplayValue() != "1 5" {
		t.Errorf("display = %q", p.DisplayValue())
	}
}

func TestExecute_NumericQuantityCondition(t *testing.T) {
	tests := []struct {
		qtyType string
		cond    string
		want    string
	}{
		{profile.QuantityNumber, "quantity > 5", "1 12 BULK"},
		{profile.QuantityNumber, "quantity == 12", "1 12 BULK"},
		{profile.QuantityText, `quantity == "12"`, "1 12 BULK"},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			sc := providers.NewScenarioCollector(&providers.Scenario{
				Barcodes:   []providers.ScenarioAnswer{{Text: "1"}},
				Quantities: []providers.ScenarioAnswer{{Text: "12"}},
			})
			ip := newInterp(sc)
			ip.QuantityType = tt.qtyType
			blocks := []profile.Block{scan(), devvar("quantity"), ifb(tt.cond), lit("BULK"), endif()}
			p := run(t, ip, blocks)
			if got := p.DisplayValue(); got != tt.want {
				t.Errorf("display = %q, want %q", got, tt.want)
			}
			if p.Quantity == nil || *p.Quantity != "12" {
				t.Errorf("quantity = %v, want text 12", p.Quantity)
			}
		})
	}
}

func TestExecute_TimestampMatchesPassStart(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ip := newInterp(scripted())
	blocks := []profile.Block{devvar("timestamp"), ifb("timestamp == 1773478800000"), lit("SAME"), endif()}
	p, err := ip.Execute(context.Background(), blocks, NewVars(ip.Settings, start))
	if err != nil {
		t.Fatal(err)
	}
	if got := p.DisplayValue(); got != "1773478800000 SAME" {
		t.Errorf("display = %q, want the pass start timestamp", got)
	}
}

func TestExecute_QuantityCancelled(t *testing.T) {
	sc := providers.NewScenarioCollector(&providers.Scenario{
		Barcodes:   []providers.ScenarioAnswer{{Text: "1"}},
		Quantities: []providers.ScenarioAnswer{{Cancel: true}},
	})
	blocks := []profile.Block{scan(), devvar("quantity"), lit("after")}
	_, err := newInterp(sc).Execute(context.Background(), blocks, nil)
	if !errors.Is(err, ErrUserCancelled) {
		t.Fatalf("err = %v, want user-cancelled", err)
	}
	if Reason(err) != "user-cancelled" {
		t.Errorf("reason = %q", Reason(err))
	}
}

func TestExecute_BarcodeCancelled(t *testing.T) {
	sc := providers.NewScenarioCollector(&providers.Scenario{
		Barcodes: []providers.ScenarioAnswer{{Cancel: true}},
	})
	_, err := newInterp(sc).Execute(context.Background(), []profile.Block{scan()}, nil)
	if !errors.Is(err, ErrUserCancelled) {
		t.Fatalf("err = %v", err)
	}
}

func TestExecute_InvalidCondition(t *testing.T) {
	sc := scripted()
	blocks := []profile.Block{lit("a"), ifb("barcode =="), lit("b"), endif()}
	_, err := newInterp(sc).Execute(context.Background(), blocks, nil)
	if !errors.Is(err, ErrInvalidCondition) {
		t.Fatalf("err = %v, want invalid-condition", err)
	}
	if len(sc.Alerts()) != 1 {
		t.Errorf("alerts = %v, want one", sc.Alerts())
	}
}

func TestExecute_NonBoolCondition(t *testing.T) {
	_, err := newInterp(scripted()).Execute(context.Background(), []profile.Block{ifb("1 + 1"), endif()}, nil)
	if !errors.Is(err, ErrInvalidCondition) {
		t.Fatalf("err = %v", err)
	}
}

func TestExecute_FunctionFailureIsEmpty(t *testing.T) {
	sc := scripted()
	p := run(t, newInterp(sc), []profile.Block{lit("a"), fn("1 +"), lit("b")})
	if p.Blocks[1].Value != "" {
		t.Errorf("function value = %q", p.Blocks[1].Value)
	}
	if p.DisplayValue() != "a b" {
		t.Errorf("display = %q", p.DisplayValue())
	}
	if len(sc.Alerts()) != 0 {
		t.Error("function failure should not alert")
	}
}

func TestExecute_SelectOption(t *testing.T) {
	sc := providers.NewScenarioCollector(&providers.Scenario{
		Barcodes:   []providers.ScenarioAnswer{{Text: "X"}},
		Selections: []string{"bin-X"},
	})
	p := run(t, newInterp(sc), []profile.Block{scan(), selectb("shelf, bin-{{barcode}} ,,")})
	if p.Blocks[1].Value != "bin-X" {
		t.Errorf("selection = %q", p.Blocks[1].Value)
	}
}

func TestExecute_SideEffectMarkers(t *testing.T) {
	blocks := []profile.Block{
		scan(),
		{Kind: profile.KindDelay, Value: "500"},
		{Kind: profile.KindRunCommand, Value: "echo {{barcode}}"},
		{Kind: profile.KindHTTPCall, Value: "https://inv.example/{{barcode}}"},
	}
	p := run(t, newInterp(scripted("9")), blocks)
	if p.Blocks[2].Value != "echo 9" || p.Blocks[3].Value != "https://inv.example/9" {
		t.Errorf("markers = %+v", p.Blocks)
	}
	if p.DisplayValue() != "9" {
		t.Errorf("display = %q, markers should not render", p.DisplayValue())
	}
}

func TestExecute_RewriteRule(t *testing.T) {
	sc := providers.NewScenarioCollector(&providers.Scenario{
		Barcodes: []providers.ScenarioAnswer{{Text: "012345678905", Format: barcode.FormatUPCA}},
	})
	ip := newInterp(sc)
	ip.EnabledFormats = []string{"EAN_13"}
	p := run(t, ip, []profile.Block{scan(), fn("barcode")})
	if p.Blocks[0].Value != "0012345678905" || p.Blocks[1].Value != "0012345678905" {
		t.Errorf("rewritten = %+v", p.Blocks)
	}
}

// blockingSource parks RequestSingle until release is closed.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) RequestSingle(ctx context.Context) (barcode.Barcode, error) {
	close(b.entered)
	<-b.release
	return barcode.Barcode{Text: "late"}, nil
}

func TestExecute_Superseded(t *testing.T) {
	var gen atomic.Uint64
	gen.Store(1)
	src := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	ip := newInterp(scripted())
	ip.Barcodes = src
	ip.Current = func() bool { return gen.Load() == 1 }

	vars := NewVars(ip.Settings, time.Now())
	done := make(chan error, 1)
	go func() {
		_, err := ip.Execute(context.Background(), []profile.Block{scan(), lit("after")}, vars)
		done <- err
	}()

	<-src.entered
	gen.Store(2)
	close(src.release)

	err := <-done
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want superseded", err)
	}
	if vars[VarBarcode] != "" {
		t.Errorf("vars mutated after supersede: %v", vars)
	}
}

func TestExecute_Trace(t *testing.T) {
	var buf bytes.Buffer
	ip := newInterp(scripted("123"))
	ip.Trace = trace.NewWriter(&buf, "t")
	run(t, ip, []profile.Block{scan(), ifb("barcode == '123'"), lit("M"), endif()})
	out := buf.String()
	if strings.Count(out, `"block_resolved"`) != 2 {
		t.Errorf("trace = %s", out)
	}
	if !strings.Contains(out, `"branch_taken"`) {
		t.Error("missing branch_taken")
	}
}

func TestSplitOptions(t *testing.T) {
	got := SplitOptions(" a, b ,,c ")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("got %v", got)
	}
	if SplitOptions("") != nil {
		t.Error("empty input should yield no options")
	}
}
