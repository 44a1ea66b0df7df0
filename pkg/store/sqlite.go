package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ormasoftchile/scanflow/pkg/profile"
	"github.com/ormasoftchile/scanflow/pkg/scanloop"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = "1"

// SQLite is a SQLite-backed sink.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens (or creates) a result database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			profile TEXT NOT NULL,
			started_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS scans (
			session_id TEXT NOT NULL,
			id INTEGER NOT NULL,
			date INTEGER NOT NULL,
			quantity TEXT,
			legacy_text TEXT NOT NULL,
			display_value TEXT NOT NULL,
			resolved_blocks TEXT NOT NULL,
			PRIMARY KEY (session_id, id),
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create result tables: %w", err)
	}

	s := &SQLite{db: db}
	version, err := s.metadata("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}
	switch version {
	case "":
		if _, err := db.Exec(`INSERT INTO metadata (key, value) VALUES ('schema_version', ?)`, SchemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("set schema version: %w", err)
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}
	return s, nil
}

func (s *SQLite) metadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read metadata %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLite) Begin(ctx context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, profile, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Profile, sess.StartedAt)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLite) Save(ctx context.Context, sessionID string, m scanloop.ScanModel) error {
	blocks, err := json.Marshal(m.ResolvedBlocks)
	if err != nil {
		return fmt.Errorf("encode resolved blocks: %w", err)
	}
	var quantity sql.NullString
	if m.Quantity != nil {
		quantity = sql.NullString{String: *m.Quantity, Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (session_id, id, date, quantity, legacy_text, display_value, resolved_blocks)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sessionID, m.ID, m.Date, quantity, m.LegacyText, m.DisplayValue, string(blocks))
	if err != nil {
		return fmt.Errorf("insert scan %d: %w", m.ID, err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, sessionID string) ([]scanloop.ScanModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT sc.id, sc.date, sc.quantity, sc.legacy_text, sc.display_value, sc.resolved_blocks, se.profile, se.name
		FROM scans sc JOIN sessions se ON se.id = sc.session_id
		WHERE sc.session_id = ?
		ORDER BY sc.id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []scanloop.ScanModel
	for rows.Next() {
		var (
			m        scanloop.ScanModel
			quantity sql.NullString
			blocks   string
		)
		if err := rows.Scan(&m.ID, &m.Date, &quantity, &m.LegacyText, &m.DisplayValue, &blocks, &m.Profile, &m.Session); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if quantity.Valid {
			q := quantity.String
			m.Quantity = &q
		}
		var resolved []profile.Block
		if err := json.Unmarshal([]byte(blocks), &resolved); err != nil {
			return nil, fmt.Errorf("decode resolved blocks of scan %d: %w", m.ID, err)
		}
		m.ResolvedBlocks = resolved
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) Sessions(ctx context.Context) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, profile, started_at FROM sessions ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.Profile, &sess.StartedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
