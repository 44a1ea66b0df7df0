// Package interp executes one pass over a profile's block list: it resolves
// values, branches on If/EndIf and suspends on the acquisition
// collaborators, producing the resolved blocks of a single scan.
package interp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ormasoftchile/scanflow/pkg/barcode"
	"github.com/ormasoftchile/scanflow/pkg/eval"
	"github.com/ormasoftchile/scanflow/pkg/profile"
	"github.com/ormasoftchile/scanflow/pkg/providers"
	"github.com/ormasoftchile/scanflow/pkg/trace"
)

// Abort reasons. An aborted pass produces no result.
var (
	ErrUserCancelled    = errors.New("user-cancelled")
	ErrInvalidCondition = errors.New("invalid-condition")
	ErrSuperseded       = errors.New("superseded")
)

// AbortError is returned by Execute when a pass ends without a result.
type AbortError struct {
	Reason error // one of ErrUserCancelled, ErrInvalidCondition, ErrSuperseded
	Block  int   // index of the block being executed, -1 if none
	Err    error // underlying cause, may be nil
}

func (e *AbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pass aborted at block %d: %s: %v", e.Block, e.Reason, e.Err)
	}
	return fmt.Sprintf("pass aborted at block %d: %s", e.Block, e.Reason)
}

func (e *AbortError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// Reason returns the abort reason name of err ("user-cancelled", ...), or
// "" if err is not an abort.
func Reason(err error) string {
	var ae *AbortError
	if errors.As(err, &ae) {
		return ae.Reason.Error()
	}
	return ""
}

// Variable names seeded into every pass.
const (
	VarBarcode         = "barcode"
	VarBarcodes        = "barcodes"
	VarQuantity        = profile.VarQuantity
	VarTimestamp       = profile.VarTimestamp
	VarDeviceName      = profile.VarDeviceName
	VarScanSessionName = profile.VarScanSessionName
)

// NewVars returns the variable context a pass starts from.
func NewVars(s providers.Settings, now time.Time) map[string]any {
	return map[string]any{
		VarBarcode:         "",
		VarBarcodes:        []string{},
		VarQuantity:        nil,
		VarTimestamp:       now.UnixMilli(),
		VarDeviceName:      s.DeviceName,
		VarScanSessionName: s.ScanSessionName,
	}
}

// Interpreter runs passes. The collaborators are shared across passes; the
// variable context and working copy are local to each Execute call.
type Interpreter struct {
	Eval     *eval.Evaluator
	Barcodes providers.BarcodeRequester
	Quantity providers.QuantityPrompt
	Select   providers.SelectPrompt
	Alerts   providers.Alerter
	Settings providers.Settings

	// QuantityType is the profile's expected quantity type; Settings is
	// consulted when empty.
	QuantityType string
	// EnabledFormats drives barcode rewriting.
	EnabledFormats []string

	// Current reports whether the generation this pass was started under is
	// still the active one. Nil means always current.
	Current func() bool

	Trace *trace.Writer
	Now   func() time.Time
}

// Pass is the outcome of one completed scan.
type Pass struct {
	Blocks   []profile.Block
	Quantity *string
	Vars     map[string]any
}

// DisplayValue joins the non-empty values of the output blocks with a
// single space. Delay, RunCommand and HttpCall are not rendered.
func (p *Pass) DisplayValue() string {
	var parts []string
	for _, b := range p.Blocks {
		if b.IsOutput() && b.Value != "" {
			parts = append(parts, b.Value)
		}
	}
	return strings.Join(parts, " ")
}

// LegacyText joins the non-empty Barcode values with a single space.
func (p *Pass) LegacyText() string {
	var parts []string
	for _, b := range p.Blocks {
		if b.Kind == profile.KindBarcode && b.Value != "" {
			parts = append(parts, b.Value)
		}
	}
	return strings.Join(parts, " ")
}

// Execute runs one pass over blocks. blocks is never modified; vars is
// copied before use. The If/EndIf walk appends to the resolved list and
// jumps past false ranges, so nested branches need no splicing.
func (ip *Interpreter) Execute(ctx context.Context, blocks []profile.Block, vars map[string]any) (*Pass, error) {
	env := copyVars(vars)
	if !ip.current() {
		return nil, &AbortError{Reason: ErrSuperseded, Block: -1}
	}

	resolved := make([]profile.Block, 0, len(blocks))
	var open []int // EndIf indices of branches taken
	var quantity *string

	for i := 0; i < len(blocks); i++ {
		b := blocks[i]

		if n := len(open); n > 0 && open[n-1] == i {
			open = open[:n-1]
			continue
		}

		switch b.Kind {
		case profile.KindIf:
			end, err := profile.MatchEndIf(blocks, i)
			if err != nil {
				return nil, ip.invalidCondition(i, b, err)
			}
			ok, err := ip.evaluator().EvalBool(b.Value, env)
			if err != nil {
				return nil, ip.invalidCondition(i, b, err)
			}
			ip.Trace.EmitBranchTaken(i, b.Value, ok)
			if ok {
				open = append(open, end)
			} else {
				i = end
			}
			continue
		case profile.KindEndIf:
			// unbalanced lists are rejected by profile.Compile
			continue
		}

		out, err := ip.resolve(ctx, i, b, env)
		if err != nil {
			return nil, err
		}
		ip.Trace.EmitBlockResolved(i, string(out.Kind), out.Value)
		resolved = append(resolved, out)
		if b.IsQuantity() {
			q := out.Value
			quantity = &q
		}
	}

	return &Pass{Blocks: resolved, Quantity: quantity, Vars: env}, nil
}

func (ip *Interpreter) resolve(ctx context.Context, i int, b profile.Block, env map[string]any) (profile.Block, error) {
	switch b.Kind {
	case profile.KindLiteral, profile.KindDelay:
		return b, nil

	case profile.KindRunCommand, profile.KindHTTPCall:
		b.Value = ip.evaluator().Interpolate(b.Value, env)
		return b, nil

	case profile.KindFunction:
		v, err := ip.evaluator().Evaluate(b.Value, env)
		if err != nil {
			b.Value = ""
		} else {
			b.Value = eval.Format(v)
		}
		return b, nil

	case profile.KindDeviceVariable:
		return ip.deviceVariable(ctx, i, b, env)

	case profile.KindSelectOption:
		options := SplitOptions(ip.evaluator().Interpolate(b.Value, env))
		if len(options) == 0 {
			b.Value = ""
			return b, nil
		}
		if ip.Select == nil {
			b.Value = options[0]
			return b, nil
		}
		choice, err := ip.Select.PromptSelect(ctx, b.Label, options)
		if err := ip.resumed(ctx, i, err); err != nil {
			return b, err
		}
		b.Value = choice
		return b, nil

	case profile.KindBarcode:
		if ip.Barcodes == nil {
			return b, fmt.Errorf("block %d: no barcode source", i)
		}
		bc, err := ip.Barcodes.RequestSingle(ctx)
		if err := ip.resumed(ctx, i, err); err != nil {
			return b, err
		}
		bc = barcode.Normalize(bc, ip.EnabledFormats)
		env[VarBarcode] = bc.Text
		list, _ := env[VarBarcodes].([]string)
		env[VarBarcodes] = append(list, bc.Text)
		b.Value = bc.Text
		return b, nil
	}
	return b, fmt.Errorf("block %d: unknown kind %q", i, b.Kind)
}

func (ip *Interpreter) deviceVariable(ctx context.Context, i int, b profile.Block, env map[string]any) (profile.Block, error) {
	now := ip.now()
	s := ip.Settings
	switch b.Value {
	case profile.VarDeviceName:
		b.Value = s.DeviceName
	case profile.VarScanSessionName:
		b.Value = s.ScanSessionName
	case profile.VarTimestamp:
		ts, ok := env[VarTimestamp].(int64)
		if !ok {
			ts = now.UnixMilli()
		}
		b.Value = strconv.FormatInt(ts, 10)
	case profile.VarDate:
		b.Value = now.Format(layout(s.DateFormat, providers.DefaultDateFormat))
	case profile.VarTime:
		b.Value = now.Format(layout(s.TimeFormat, providers.DefaultTimeFormat))
	case profile.VarDateTime:
		b.Value = now.Format(layout(s.DateFormat, providers.DefaultDateFormat) + " " + layout(s.TimeFormat, providers.DefaultTimeFormat))
	case profile.VarQuantity:
		if ip.Quantity == nil {
			return b, fmt.Errorf("block %d: no quantity prompt", i)
		}
		q, err := ip.Quantity.PromptQuantity(ctx, b.Label, ip.quantityType())
		if err := ip.resumed(ctx, i, err); err != nil {
			return b, err
		}
		env[VarQuantity] = quantityValue(q, ip.quantityType())
		b.Value = q
	default:
		return b, fmt.Errorf("block %d: unknown device variable %q", i, b.Value)
	}
	return b, nil
}

// resumed classifies the state after a suspension point returns. The
// generation is checked before the acquisition error, so a stale pass
// reports superseded even if its prompt was also cancelled.
func (ip *Interpreter) resumed(ctx context.Context, i int, err error) error {
	if !ip.current() || ctx.Err() != nil {
		return &AbortError{Reason: ErrSuperseded, Block: i, Err: ctx.Err()}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, providers.ErrCancelled):
		return &AbortError{Reason: ErrUserCancelled, Block: i}
	}
	return fmt.Errorf("block %d: %w", i, err)
}

func (ip *Interpreter) invalidCondition(i int, b profile.Block, err error) error {
	if ip.Alerts != nil {
		ip.Alerts.Alert("Invalid condition", fmt.Sprintf("block %d (%q): %v", i, b.Value, err))
	}
	return &AbortError{Reason: ErrInvalidCondition, Block: i, Err: err}
}

func (ip *Interpreter) current() bool {
	return ip.Current == nil || ip.Current()
}

var defaultEval = eval.New(eval.DefaultCacheSize)

func (ip *Interpreter) evaluator() *eval.Evaluator {
	if ip.Eval == nil {
		return defaultEval
	}
	return ip.Eval
}

func (ip *Interpreter) now() time.Time {
	if ip.Now != nil {
		return ip.Now()
	}
	return time.Now()
}

func (ip *Interpreter) quantityType() string {
	if ip.QuantityType != "" {
		return ip.QuantityType
	}
	if ip.Settings.QuantityType != "" {
		return ip.Settings.QuantityType
	}
	return profile.QuantityNumber
}

// quantityValue is the value conditions see for an entered quantity: a
// float64 for the number type when the text parses, the text otherwise.
func quantityValue(q, expectedType string) any {
	if expectedType != profile.QuantityNumber {
		return q
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
	if err != nil {
		return q
	}
	return f
}

func layout(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// SplitOptions splits a comma separated option list, trimming each entry
// and dropping empties.
func SplitOptions(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func copyVars(vars map[string]any) map[string]any {
	env := make(map[string]any, len(vars)+6)
	for k, v := range vars {
		env[k] = v
	}
	if list, ok := env[VarBarcodes].([]string); ok {
		env[VarBarcodes] = append([]string(nil), list...)
	} else {
		env[VarBarcodes] = []string{}
	}
	if _, ok := env[VarBarcode]; !ok {
		env[VarBarcode] = ""
	}
	return env
}
