// Package mode selects how barcodes are acquired for a scan sequence.
//
// Select is the single dispatch point: it combines the requested mode with
// the profile's derived flags and the platform capabilities and returns the
// mode the scan loop actually runs.
package mode

import (
	"fmt"
	"strings"
	"time"
)

// Mode is an acquisition mode.
type Mode string

const (
	// Manual reads typed barcodes, one pass per entry, until cancelled.
	Manual Mode = "manual"
	// Single runs exactly one pass.
	Single Mode = "single"
	// Continue subscribes to the barcode stream and runs a pass per
	// barcode without prompting between passes.
	Continue Mode = "continue"
	// MixedContinue runs one-shot passes and asks "add more?" after each.
	MixedContinue Mode = "mixed_continue"
)

// Modes lists every mode a user may request.
var Modes = []Mode{Manual, Single, Continue}

// Parse validates a requested mode name. Empty means Single.
// MixedContinue is only ever selected, never requested.
func Parse(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Single, nil
	case Manual, Single, Continue:
		return m, nil
	}
	return "", fmt.Errorf("unknown scan mode %q (want manual, single or continue)", s)
}

// Input holds everything Select looks at.
type Input struct {
	Requested            Mode
	HasBlockingComponent bool
	ContinuousSupported  bool
	ContinueTimeout      time.Duration
}

// Select returns the effective mode. A continue request only runs as pure
// continue when nothing in the profile prompts between acquisitions, the
// platform can stream, and no add-more countdown is configured; otherwise
// it degrades to MixedContinue.
func Select(in Input) Mode {
	switch in.Requested {
	case Manual, Single, MixedContinue:
		return in.Requested
	case Continue:
		if !in.HasBlockingComponent && in.ContinuousSupported && in.ContinueTimeout == 0 {
			return Continue
		}
		return MixedContinue
	}
	return Single
}

// Repeats reports whether the scan loop runs another pass after a
// completed one without asking.
func (m Mode) Repeats() bool {
	return m == Manual || m == Continue
}
