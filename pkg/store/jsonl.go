package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ormasoftchile/scanflow/pkg/scanloop"
)

// JSONL appends one JSON object per line: a "session" record from Begin and
// a "scan" record per result.
type JSONL struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

type jsonlRecord struct {
	Type    string              `json:"type"`
	Session *Session            `json:"session,omitempty"`
	ID      string              `json:"session_id,omitempty"`
	Scan    *scanloop.ScanModel `json:"scan,omitempty"`
}

// NewJSONL writes records to w.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{enc: json.NewEncoder(w)}
}

// OpenJSONL appends records to a file, creating it if needed.
func OpenJSONL(path string) (*JSONL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	j := NewJSONL(f)
	j.closer = f
	return j, nil
}

func (j *JSONL) Begin(ctx context.Context, s Session) error {
	return j.write(jsonlRecord{Type: "session", Session: &s})
}

func (j *JSONL) Save(ctx context.Context, sessionID string, m scanloop.ScanModel) error {
	return j.write(jsonlRecord{Type: "scan", ID: sessionID, Scan: &m})
}

func (j *JSONL) write(r jsonlRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(r); err != nil {
		return fmt.Errorf("write %s record: %w", r.Type, err)
	}
	return nil
}

func (j *JSONL) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
