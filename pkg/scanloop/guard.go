package scanloop

import "time"

// Loop guard defaults.
const (
	DefaultLoopIdle      = 500 * time.Millisecond
	DefaultLoopThreshold = 30
)

// LoopGuard counts consecutive passes that rendered the same display value.
// A different value resets the count; so does an idle gap of at least Idle
// between passes. When the count exceeds Threshold, Observe reports a
// crossing once and starts counting again from zero.
type LoopGuard struct {
	Threshold int
	Idle      time.Duration

	now    func() time.Time
	last   string
	lastAt time.Time
	seen   bool
	count  int
}

// NewLoopGuard creates a guard with the default window and threshold. now
// may be nil.
func NewLoopGuard(now func() time.Time) *LoopGuard {
	if now == nil {
		now = time.Now
	}
	return &LoopGuard{Threshold: DefaultLoopThreshold, Idle: DefaultLoopIdle, now: now}
}

// Observe records the display value of a completed pass. crossed is true
// when the repeat count went past the threshold; repeats is the count at
// that moment.
func (g *LoopGuard) Observe(display string) (repeats int, crossed bool) {
	now := g.now()
	if g.idle(now) {
		g.count = 0
	}
	if g.seen && display == g.last {
		g.count++
	} else {
		g.count = 0
	}
	g.last, g.lastAt, g.seen = display, now, true

	if g.count > g.Threshold {
		repeats = g.count
		g.count = 0
		return repeats, true
	}
	return g.count, false
}

// Count returns the current repeat count, zero once the idle window has
// elapsed since the last pass.
func (g *LoopGuard) Count() int {
	if g.idle(g.now()) {
		return 0
	}
	return g.count
}

func (g *LoopGuard) idle(now time.Time) bool {
	return g.seen && now.Sub(g.lastAt) >= g.Idle
}
