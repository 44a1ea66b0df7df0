package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ormasoftchile/scanflow/pkg/scanloop"
)

// Memory is an in-memory sink for tests and dry runs.
type Memory struct {
	mu       sync.RWMutex
	sessions []Session
	results  map[string][]scanloop.ScanModel
}

// NewMemory creates a new in-memory sink.
func NewMemory() *Memory {
	return &Memory{results: make(map[string][]scanloop.ScanModel)}
}

func (m *Memory) Begin(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions = append(m.sessions, s)
	m.results[s.ID] = nil
	return nil
}

func (m *Memory) Save(ctx context.Context, sessionID string, r scanloop.ScanModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[sessionID]; !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}
	m.results[sessionID] = append(m.results[sessionID], r)
	return nil
}

func (m *Memory) List(ctx context.Context, sessionID string) ([]scanloop.ScanModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]scanloop.ScanModel(nil), m.results[sessionID]...), nil
}

func (m *Memory) Sessions(ctx context.Context) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Session(nil), m.sessions...), nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
