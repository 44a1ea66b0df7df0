// Package providers defines the collaborator interfaces the scan engine
// suspends on (barcode source, prompts, alerts, settings) and their stock
// implementations.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/ormasoftchile/scanflow/pkg/barcode"
)

// ErrCancelled is returned by an acquisition the user cancelled.
var ErrCancelled = errors.New("cancelled by user")

// Acquisition is one value delivered by a Stream: either a barcode or an
// error (ErrCancelled when the user stopped the stream).
type Acquisition struct {
	Barcode barcode.Barcode
	Err     error
}

// BarcodeRequester yields one barcode per call.
type BarcodeRequester interface {
	RequestSingle(ctx context.Context) (barcode.Barcode, error)
}

// BarcodeSource abstracts the camera/decoder.
// Implementations: ConsoleCollector (via ManualBarcodeSource), ScenarioCollector, DryRunCollector.
type BarcodeSource interface {
	BarcodeRequester
	// Subscribe opens a continuous stream for one sequence. The caller
	// stops it when the sequence ends.
	Subscribe(ctx context.Context) *Stream
}

// TextInput reads one line of manual input.
type TextInput interface {
	PromptText(ctx context.Context, prompt string) (string, error)
}

// QuantityPrompt asks for a quantity. expectedType is "number" or "text".
type QuantityPrompt interface {
	PromptQuantity(ctx context.Context, label, expectedType string) (string, error)
}

// SelectPrompt asks the user to pick one option. It always resolves; the
// first option is the default.
type SelectPrompt interface {
	PromptSelect(ctx context.Context, label string, options []string) (string, error)
}

// AddMorePrompt asks whether to keep scanning. The engine treats an expired
// countdown as acceptance.
type AddMorePrompt interface {
	PromptAddMore(ctx context.Context, countdown time.Duration) (bool, error)
}

// LoopConfirm asks whether to continue after the same value was produced
// too many times in a row.
type LoopConfirm interface {
	PromptContinue(ctx context.Context, repeats int) (bool, error)
}

// Alerter shows a non-blocking message to the user.
type Alerter interface {
	Alert(title, message string)
}

// Collector bundles every prompt the engine needs. The stock collectors
// implement all of them.
type Collector interface {
	TextInput
	QuantityPrompt
	SelectPrompt
	AddMorePrompt
	LoopConfirm
	Alerter
}
