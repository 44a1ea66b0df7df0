// Package recorder captures a live scan session as a replayable scenario.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ormasoftchile/scanflow/pkg/barcode"
	"github.com/ormasoftchile/scanflow/pkg/providers"
	"gopkg.in/yaml.v3"
)

// Inner is what the recorder wraps: a barcode source plus the prompts.
type Inner interface {
	providers.BarcodeRequester
	providers.Collector
}

// Recorder wraps a collector and records every answer it gives.
type Recorder struct {
	inner   Inner
	mu      sync.Mutex
	rec     providers.Scenario
	secrets []string // env var names whose values should be redacted
}

// New creates a recording wrapper around an existing collector.
func New(inner Inner) *Recorder {
	return &Recorder{inner: inner}
}

// SetSecrets configures secret env var names whose values are redacted in recorded answers.
func (r *Recorder) SetSecrets(envVars []string) {
	r.secrets = envVars
}

// Scenario returns a copy of what was recorded so far.
func (r *Recorder) Scenario() *providers.Scenario {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := providers.Scenario{
		Barcodes:    append([]providers.ScenarioAnswer(nil), r.rec.Barcodes...),
		Text:        append([]providers.ScenarioAnswer(nil), r.rec.Text...),
		Quantities:  append([]providers.ScenarioAnswer(nil), r.rec.Quantities...),
		Selections:  append([]string(nil), r.rec.Selections...),
		AddMore:     append([]bool(nil), r.rec.AddMore...),
		LoopConfirm: append([]bool(nil), r.rec.LoopConfirm...),
	}
	return &s
}

// Save writes the recorded scenario as YAML.
func (r *Recorder) Save(path string) error {
	data, err := yaml.Marshal(r.Scenario())
	if err != nil {
		return fmt.Errorf("marshal scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	return nil
}

func (r *Recorder) RequestSingle(ctx context.Context) (barcode.Barcode, error) {
	b, err := r.inner.RequestSingle(ctx)
	if a, ok := r.answer(b.Text, err); ok {
		a.Format = b.Format
		r.record(func(s *providers.Scenario) { s.Barcodes = append(s.Barcodes, a) })
	}
	return b, err
}

// Subscribe streams through RequestSingle so every acquisition is recorded.
func (r *Recorder) Subscribe(ctx context.Context) *providers.Stream {
	return providers.NewPullStream(ctx, r)
}

func (r *Recorder) PromptText(ctx context.Context, prompt string) (string, error) {
	v, err := r.inner.PromptText(ctx, prompt)
	if a, ok := r.answer(v, err); ok {
		r.record(func(s *providers.Scenario) { s.Text = append(s.Text, a) })
	}
	return v, err
}

func (r *Recorder) PromptQuantity(ctx context.Context, label, expectedType string) (string, error) {
	v, err := r.inner.PromptQuantity(ctx, label, expectedType)
	if a, ok := r.answer(v, err); ok {
		r.record(func(s *providers.Scenario) { s.Quantities = append(s.Quantities, a) })
	}
	return v, err
}

func (r *Recorder) PromptSelect(ctx context.Context, label string, options []string) (string, error) {
	v, err := r.inner.PromptSelect(ctx, label, options)
	if err == nil {
		r.record(func(s *providers.Scenario) { s.Selections = append(s.Selections, v) })
	}
	return v, err
}

func (r *Recorder) PromptAddMore(ctx context.Context, countdown time.Duration) (bool, error) {
	v, err := r.inner.PromptAddMore(ctx, countdown)
	switch {
	case err == nil:
		r.record(func(s *providers.Scenario) { s.AddMore = append(s.AddMore, v) })
	case errors.Is(err, context.DeadlineExceeded):
		r.record(func(s *providers.Scenario) { s.AddMore = append(s.AddMore, true) })
	}
	return v, err
}

func (r *Recorder) PromptContinue(ctx context.Context, repeats int) (bool, error) {
	v, err := r.inner.PromptContinue(ctx, repeats)
	if err == nil {
		r.record(func(s *providers.Scenario) { s.LoopConfirm = append(s.LoopConfirm, v) })
	}
	return v, err
}

func (r *Recorder) Alert(title, message string) {
	r.inner.Alert(title, message)
}

// answer converts a prompt outcome into a scenario entry. Errors other
// than a user cancellation are not replayable and are skipped.
func (r *Recorder) answer(text string, err error) (providers.ScenarioAnswer, bool) {
	switch {
	case err == nil:
		return providers.ScenarioAnswer{Text: r.redact(text)}, true
	case errors.Is(err, providers.ErrCancelled):
		return providers.ScenarioAnswer{Cancel: true}, true
	default:
		return providers.ScenarioAnswer{}, false
	}
}

func (r *Recorder) record(fn func(*providers.Scenario)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.rec)
}

// redact replaces secret values with <REDACTED>.
func (r *Recorder) redact(s string) string {
	for _, envVar := range r.secrets {
		val := os.Getenv(envVar)
		if val != "" {
			s = strings.ReplaceAll(s, val, "<REDACTED>")
		}
	}
	return s
}

var (
	_ providers.BarcodeSource = (*Recorder)(nil)
	_ providers.Collector     = (*Recorder)(nil)
)
