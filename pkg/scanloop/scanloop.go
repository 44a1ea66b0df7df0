// Package scanloop drives repeated interpreter passes for a scan sequence.
//
// An Orchestrator owns a monotonically increasing generation counter. Every
// Start mints a new generation and cancels the sequence that was active
// before it; a pass captured under an older generation checks it at each
// resumption point and ends as superseded without emitting a result.
package scanloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ormasoftchile/scanflow/pkg/eval"
	"github.com/ormasoftchile/scanflow/pkg/interp"
	"github.com/ormasoftchile/scanflow/pkg/mode"
	"github.com/ormasoftchile/scanflow/pkg/profile"
	"github.com/ormasoftchile/scanflow/pkg/providers"
	"github.com/ormasoftchile/scanflow/pkg/trace"
)

// ErrLoopStopped ends a sequence when the user chose to stop after the
// loop guard fired.
var ErrLoopStopped = errors.New("infinite-loop-suspected: stopped by user")

// ScanModel is the result record of one completed pass.
type ScanModel struct {
	ID             int64           `json:"id"`
	Date           int64           `json:"date"`
	Quantity       *string         `json:"quantity"`
	ResolvedBlocks []profile.Block `json:"resolved_blocks"`
	LegacyText     string          `json:"legacy_text"`
	DisplayValue   string          `json:"display_value"`
	Profile        string          `json:"profile,omitempty"`
	Session        string          `json:"session,omitempty"`
}

// Prompts are the collaborators the loop and interpreter suspend on,
// besides the barcode source.
type Prompts interface {
	providers.QuantityPrompt
	providers.SelectPrompt
	providers.AddMorePrompt
	providers.LoopConfirm
	providers.Alerter
}

// Request starts a sequence.
type Request struct {
	Profile *profile.Profile
	// Mode overrides the settings' scan mode when set.
	Mode mode.Mode
}

// Orchestrator runs at most one active sequence at a time.
type Orchestrator struct {
	Settings providers.SettingsProvider
	Source   providers.BarcodeSource
	// Manual is the barcode source used in manual mode; Source when nil.
	Manual  providers.BarcodeRequester
	Prompts Prompts
	Eval    *eval.Evaluator
	Trace   *trace.Writer
	Log     io.Writer // progress lines; nil discards
	Now     func() time.Time

	mu     sync.Mutex
	gen    atomic.Uint64
	active *Sequence
	lastID int64
}

// Sequence is one lazy, cancellable stream of results. It is not
// restartable.
type Sequence struct {
	gen     uint64
	results chan ScanModel
	done    chan struct{}
	cancel  context.CancelFunc

	mu   sync.Mutex
	err  error
	mode mode.Mode
}

// Generation returns the generation the sequence runs under.
func (s *Sequence) Generation() uint64 { return s.gen }

// Results yields one ScanModel per completed pass. The loop does not start
// the next pass until the previous result is received. The channel is
// closed when the sequence completes.
func (s *Sequence) Results() <-chan ScanModel { return s.results }

// Done is closed after the sequence completed and Results was closed.
func (s *Sequence) Done() <-chan struct{} { return s.done }

// Stop completes the sequence. Any suspended pass ends as superseded.
func (s *Sequence) Stop() { s.cancel() }

// Err returns the reason the sequence completed: nil for a normal end, an
// *interp.AbortError for an aborted pass, ErrLoopStopped, or a setup error.
func (s *Sequence) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Mode returns the effective acquisition mode, empty until selected.
func (s *Sequence) Mode() mode.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Generation returns the current generation.
func (o *Orchestrator) Generation() uint64 { return o.gen.Load() }

// Start mints a new generation, completes the previously active sequence
// and starts a new one.
func (o *Orchestrator) Start(ctx context.Context, req Request) *Sequence {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	seq := &Sequence{
		gen:     o.gen.Add(1),
		results: make(chan ScanModel),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	prev := o.active
	o.active = seq
	o.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	go o.run(ctx, seq, req)
	return seq
}

// Stop completes the active sequence, if any.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	seq := o.active
	o.mu.Unlock()
	if seq != nil {
		seq.Stop()
	}
}

// Run starts a sequence and collects all its results.
func (o *Orchestrator) Run(ctx context.Context, req Request) ([]ScanModel, error) {
	seq := o.Start(ctx, req)
	var out []ScanModel
	for m := range seq.Results() {
		out = append(out, m)
	}
	<-seq.Done()
	return out, seq.Err()
}

// Clean reports whether a sequence error is an ordinary completion: nil, a
// user cancellation, or a superseded pass.
func Clean(err error) bool {
	return err == nil || errors.Is(err, interp.ErrUserCancelled) || errors.Is(err, interp.ErrSuperseded)
}

func (o *Orchestrator) run(ctx context.Context, seq *Sequence, req Request) {
	start := o.now()
	results, err := o.loop(ctx, seq, req)

	seq.mu.Lock()
	seq.err = err
	seq.mu.Unlock()

	reason := ""
	if err != nil {
		reason = interp.Reason(err)
		if reason == "" {
			reason = err.Error()
		}
	}
	o.Trace.EmitSequenceComplete(results, reason, o.now().Sub(start))
	o.logf("sequence %d complete: %d result(s)", seq.gen, results)

	seq.cancel()
	close(seq.results)
	close(seq.done)
}

func (o *Orchestrator) loop(ctx context.Context, seq *Sequence, req Request) (int, error) {
	if o.Settings == nil {
		return 0, fmt.Errorf("no settings provider")
	}
	settings, err := o.Settings.Settings()
	if err != nil {
		return 0, fmt.Errorf("read settings: %w", err)
	}
	compiled, err := profile.Compile(req.Profile)
	if err != nil {
		return 0, err
	}
	requested := req.Mode
	if requested == "" {
		if requested, err = mode.Parse(settings.ScanMode); err != nil {
			return 0, err
		}
	}
	effective := mode.Select(mode.Input{
		Requested:            requested,
		HasBlockingComponent: compiled.HasBlockingComponent,
		ContinuousSupported:  settings.SupportsContinuous(),
		ContinueTimeout:      settings.ContinueTimeout(),
	})
	seq.mu.Lock()
	seq.mode = effective
	seq.mu.Unlock()

	current := func() bool { return o.gen.Load() == seq.gen }
	superseded := func() error { return &interp.AbortError{Reason: interp.ErrSuperseded, Block: -1, Err: ctx.Err()} }

	enabled := compiled.Profile.EnabledFormats
	if len(enabled) == 0 {
		enabled = settings.EnabledFormats
	}
	quantityType := compiled.Profile.QuantityType
	if quantityType == "" {
		quantityType = settings.QuantityType
	}
	ip := &interp.Interpreter{
		Eval:           o.Eval,
		Barcodes:       o.Source,
		Settings:       *settings,
		QuantityType:   quantityType,
		EnabledFormats: enabled,
		Current:        current,
		Trace:          o.Trace,
		Now:            o.Now,
	}
	if o.Prompts != nil {
		ip.Quantity = o.Prompts
		ip.Select = o.Prompts
		ip.Alerts = o.Prompts
	}

	switch effective {
	case mode.Manual:
		if o.Manual != nil {
			ip.Barcodes = o.Manual
		}
	case mode.Continue:
		if o.Source == nil {
			return 0, fmt.Errorf("continue mode needs a barcode source")
		}
		stream := o.Source.Subscribe(ctx)
		defer stream.Stop()
		ip.Barcodes = stream
	}

	o.Trace.EmitSequenceStart(compiled.Profile.Name, string(effective), seq.gen)
	o.logf("sequence %d: profile %q, mode %s", seq.gen, compiled.Profile.Name, effective)

	guard := NewLoopGuard(o.now)
	emitted := 0
	for pass := 1; ; pass++ {
		if !current() || ctx.Err() != nil {
			return emitted, superseded()
		}
		o.Trace.EmitPassStart(pass)

		p, err := ip.Execute(ctx, compiled.Blocks(), interp.NewVars(*settings, o.now()))
		if err != nil {
			var ae *interp.AbortError
			if errors.As(err, &ae) {
				o.Trace.EmitPassAborted(pass, ae.Reason.Error(), errString(ae.Err))
			} else {
				o.Trace.EmitPassAborted(pass, "error", err.Error())
			}
			return emitted, err
		}
		if !current() {
			return emitted, superseded()
		}

		model := o.newModel(p, compiled.Profile.Name, settings.ScanSessionName)
		o.Trace.EmitPassComplete(pass, model.DisplayValue, len(model.ResolvedBlocks))
		if err := o.emit(ctx, seq, model, current); err != nil {
			return emitted, superseded()
		}
		emitted++

		if repeats, crossed := guard.Observe(model.DisplayValue); crossed {
			if o.Prompts == nil {
				return emitted, ErrLoopStopped
			}
			more, err := o.Prompts.PromptContinue(ctx, repeats)
			if !current() || ctx.Err() != nil {
				return emitted, superseded()
			}
			if err != nil && !errors.Is(err, providers.ErrCancelled) {
				return emitted, fmt.Errorf("loop confirmation: %w", err)
			}
			o.Trace.EmitLoopSuspected(repeats, model.DisplayValue, more && err == nil)
			if !more || err != nil {
				return emitted, ErrLoopStopped
			}
		}

		switch effective {
		case mode.Single:
			return emitted, nil
		case mode.MixedContinue:
			more, err := o.addMore(ctx, settings.ContinueTimeout())
			if !current() || ctx.Err() != nil {
				return emitted, superseded()
			}
			if err != nil {
				return emitted, err
			}
			if !more {
				return emitted, nil
			}
		}
	}
}

// emit hands model to the reader. A cancelled or stale sequence never
// sends: both are checked immediately before the send, and cancellation is
// preferred over a ready reader.
func (o *Orchestrator) emit(ctx context.Context, seq *Sequence, model ScanModel, current func() bool) error {
	if !current() {
		return interp.ErrSuperseded
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case seq.results <- model:
		return nil
	}
}

// addMore asks whether to keep scanning. An expired countdown accepts.
func (o *Orchestrator) addMore(ctx context.Context, countdown time.Duration) (bool, error) {
	if o.Prompts == nil {
		return false, nil
	}
	pctx := ctx
	if countdown > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, countdown)
		defer cancel()
	}
	more, err := o.Prompts.PromptAddMore(pctx, countdown)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return true, nil
	case errors.Is(err, providers.ErrCancelled):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("add more: %w", err)
	}
	return more, nil
}

func (o *Orchestrator) newModel(p *interp.Pass, profileName, session string) ScanModel {
	o.mu.Lock()
	id := o.now().UnixMilli()
	if id <= o.lastID {
		id = o.lastID + 1
	}
	o.lastID = id
	o.mu.Unlock()

	return ScanModel{
		ID:             id,
		Date:           id,
		Quantity:       p.Quantity,
		ResolvedBlocks: p.Blocks,
		LegacyText:     p.LegacyText(),
		DisplayValue:   p.DisplayValue(),
		Profile:        profileName,
		Session:        session,
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.Log != nil {
		fmt.Fprintf(o.Log, format+"\n", args...)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
