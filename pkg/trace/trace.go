// Package trace implements the append-only JSONL audit trail of a scan
// sequence. Each event carries the SHA-256 of the previous line so a trace
// file can be checked for tampering or truncation with Verify.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// EventType enumerates all trace event types.
type EventType string

const (
	EventSequenceStart    EventType = "sequence_start"
	EventSequenceComplete EventType = "sequence_complete"
	EventPassStart        EventType = "pass_start"
	EventPassComplete     EventType = "pass_complete"
	EventPassAborted      EventType = "pass_aborted"
	EventBlockResolved    EventType = "block_resolved"
	EventBranchTaken      EventType = "branch_taken"
	EventLoopSuspected    EventType = "loop_suspected"
)

// Genesis is the prev_hash of the first event in a stream.
var Genesis = strings.Repeat("0", 64)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	PrevHash  string         `json:"prev_hash"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer writes trace events to an append-only JSONL stream. It is safe
// for concurrent use.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	runID    string
	prevHash string
	now      func() time.Time
}

// NewWriter creates a trace writer that writes to the given io.Writer.
func NewWriter(w io.Writer, runID string) *Writer {
	return &Writer{
		w:        w,
		runID:    runID,
		prevHash: Genesis,
		now:      time.Now,
	}
}

// NewFileWriter creates a trace writer that appends to a JSONL file.
func NewFileWriter(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, runID)
	tw.closer = f
	return tw, nil
}

// RunID returns the identifier stamped on every event.
func (tw *Writer) RunID() string { return tw.runID }

// Close closes the underlying file, if the writer opened one.
func (tw *Writer) Close() error {
	if tw == nil || tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}

// Emit writes a single trace event. A nil Writer discards the event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	if tw == nil {
		return nil
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()

	evt := Event{
		Type:      eventType,
		Timestamp: tw.now().UTC(),
		RunID:     tw.runID,
		PrevHash:  tw.prevHash,
		Data:      data,
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	line = append(line, '\n')
	if _, err := tw.w.Write(line); err != nil {
		return fmt.Errorf("write trace event: %w", err)
	}
	h := sha256.Sum256(line[:len(line)-1])
	tw.prevHash = hex.EncodeToString(h[:])
	return nil
}

// EmitSequenceStart emits a sequence_start event.
func (tw *Writer) EmitSequenceStart(profile, mode string, generation uint64) error {
	return tw.Emit(EventSequenceStart, map[string]any{
		"profile":    profile,
		"mode":       mode,
		"generation": generation,
	})
}

// EmitSequenceComplete emits a sequence_complete event. reason is empty on
// normal completion.
func (tw *Writer) EmitSequenceComplete(results int, reason string, duration time.Duration) error {
	data := map[string]any{
		"results":  results,
		"duration": duration.String(),
	}
	if reason != "" {
		data["reason"] = reason
	}
	return tw.Emit(EventSequenceComplete, data)
}

// EmitPassStart emits a pass_start event.
func (tw *Writer) EmitPassStart(pass int) error {
	return tw.Emit(EventPassStart, map[string]any{"pass": pass})
}

// EmitPassComplete emits a pass_complete event.
func (tw *Writer) EmitPassComplete(pass int, displayValue string, blocks int) error {
	return tw.Emit(EventPassComplete, map[string]any{
		"pass":          pass,
		"display_value": displayValue,
		"blocks":        blocks,
	})
}

// EmitPassAborted emits a pass_aborted event.
func (tw *Writer) EmitPassAborted(pass int, reason, message string) error {
	data := map[string]any{
		"pass":   pass,
		"reason": reason,
	}
	if message != "" {
		data["message"] = message
	}
	return tw.Emit(EventPassAborted, data)
}

// EmitBlockResolved emits a block_resolved event.
func (tw *Writer) EmitBlockResolved(index int, kind, value string) error {
	return tw.Emit(EventBlockResolved, map[string]any{
		"index": index,
		"kind":  kind,
		"value": value,
	})
}

// EmitBranchTaken emits a branch_taken event for an If block.
func (tw *Writer) EmitBranchTaken(index int, condition string, taken bool) error {
	return tw.Emit(EventBranchTaken, map[string]any{
		"index":     index,
		"condition": condition,
		"taken":     taken,
	})
}

// EmitLoopSuspected emits a loop_suspected event with the user's answer.
func (tw *Writer) EmitLoopSuspected(repeats int, displayValue string, resumed bool) error {
	return tw.Emit(EventLoopSuspected, map[string]any{
		"repeats":       repeats,
		"display_value": displayValue,
		"resumed":       resumed,
	})
}
