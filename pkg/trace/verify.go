package trace

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// VerifyResult is the outcome of verifying a trace file.
type VerifyResult struct {
	EventCount int
	Valid      bool
	BrokenAt   int // -1 if no break
	Complete   bool
	Error      string
}

// VerifyFile verifies the hash chain of a trace file.
func VerifyFile(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return Verify(f)
}

// Verify checks hash chain integrity. Complete reports whether the last
// event is a sequence_complete.
func Verify(r io.Reader) (*VerifyResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB max line

	expected := Genesis
	count := 0
	var last Event

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		count++

		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return broken(count, fmt.Sprintf("event %d: invalid JSON: %v", count, err)), nil
		}
		if evt.PrevHash != expected {
			return broken(count, fmt.Sprintf("event %d: prev_hash mismatch (expected %s, got %s)", count, short(expected), short(evt.PrevHash))), nil
		}
		h := sha256.Sum256(line)
		expected = hex.EncodeToString(h[:])
		last = evt
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	return &VerifyResult{
		EventCount: count,
		Valid:      true,
		BrokenAt:   -1,
		Complete:   last.Type == EventSequenceComplete,
	}, nil
}

func broken(at int, msg string) *VerifyResult {
	return &VerifyResult{EventCount: at, BrokenAt: at, Error: msg}
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}

// ReadFile decodes every event of a trace file without checking the chain.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a JSONL trace stream.
func Read(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var events []Event
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return events, fmt.Errorf("event %d: %w", len(events)+1, err)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("read trace: %w", err)
	}
	return events, nil
}
