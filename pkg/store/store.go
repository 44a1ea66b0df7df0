// Package store hands completed scan results off to persistence.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ormasoftchile/scanflow/pkg/scanloop"
)

// Session identifies one top-level invocation whose results are stored
// together.
type Session struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Profile   string `json:"profile"`
	StartedAt int64  `json:"started_at"` // Unix millis
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Sink is the interface for result persistence.
type Sink interface {
	// Begin records a session before its first result.
	Begin(ctx context.Context, s Session) error
	// Save stores one result under a session.
	Save(ctx context.Context, sessionID string, m scanloop.ScanModel) error
	// Close releases resources.
	Close() error
}

// Lister reads stored results back.
type Lister interface {
	List(ctx context.Context, sessionID string) ([]scanloop.ScanModel, error)
	Sessions(ctx context.Context) ([]Session, error)
}

// Drain records a session, saves every result the sequence yields under it
// and returns them in order together with the sequence's completion error.
// onResult, when set, is called after each save. A failed save stops the
// sequence.
func Drain(ctx context.Context, sink Sink, sess Session, seq *scanloop.Sequence, onResult func(n int, m scanloop.ScanModel)) ([]scanloop.ScanModel, error) {
	if err := sink.Begin(ctx, sess); err != nil {
		seq.Stop()
		for range seq.Results() {
		}
		return nil, fmt.Errorf("begin session: %w", err)
	}
	var (
		out     []scanloop.ScanModel
		saveErr error
	)
	for m := range seq.Results() {
		if saveErr != nil {
			continue
		}
		if m.Session == "" {
			m.Session = sess.Name
		}
		if err := sink.Save(ctx, sess.ID, m); err != nil {
			saveErr = fmt.Errorf("save result %d: %w", m.ID, err)
			seq.Stop()
			continue
		}
		out = append(out, m)
		if onResult != nil {
			onResult(len(out), m)
		}
	}
	<-seq.Done()
	if saveErr != nil {
		return out, saveErr
	}
	return out, seq.Err()
}
