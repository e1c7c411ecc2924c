// CLAUDE:SUMMARY SQLite persistence for capture payloads, keyed by run ID.
// Package store persists assembled capture payloads. Payloads are
// immutable once saved; a run ID maps to exactly one payload. Listing
// returns metadata only — bodies carry inlined attachments and can run
// to tens of megabytes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/convocap/dbopen"
	"github.com/hazyhaar/convocap/turn"
)

// ErrNotFound is returned when no payload exists for a run ID.
var ErrNotFound = errors.New("store: capture not found")

const schema = `
CREATE TABLE IF NOT EXISTS captures (
	run_id      TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	page_url    TEXT NOT NULL,
	title       TEXT NOT NULL,
	captured_at TEXT NOT NULL,
	version     INTEGER NOT NULL,
	turn_count  INTEGER NOT NULL,
	warning     TEXT NOT NULL DEFAULT '',
	payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_captures_source ON captures(source, captured_at);
`

// Meta is the listing view of one saved capture.
type Meta struct {
	RunID      string      `json:"run_id"`
	Source     turn.Source `json:"source"`
	PageURL    string      `json:"page_url"`
	Title      string      `json:"title"`
	CapturedAt time.Time   `json:"captured_at"`
	TurnCount  int         `json:"turn_count"`
	Warning    string      `json:"warning,omitempty"`
}

// Store persists capture payloads in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the capture database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open database, applying the schema. Used
// by tests with in-memory databases.
func NewWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save persists a payload under its run ID. Saving the same run ID
// twice is an error: payloads are immutable.
func (s *Store) Save(ctx context.Context, runID string, p *turn.Payload, warning string) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: marshal payload: %w", err)
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO captures (run_id, source, page_url, title, captured_at, version, turn_count, warning, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, string(p.Source), p.PageURL, p.Title,
			p.CapturedAt.UTC().Format(time.RFC3339Nano), p.Version, len(p.Turns), warning, string(body))
		if err != nil {
			return fmt.Errorf("store: insert capture %s: %w", runID, err)
		}
		return nil
	})
}

// Get loads the full payload for a run ID.
func (s *Store) Get(ctx context.Context, runID string) (*turn.Payload, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM captures WHERE run_id = ?`, runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", runID, err)
	}
	var p turn.Payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("store: unmarshal %s: %w", runID, err)
	}
	return &p, nil
}

// List returns capture metadata, newest first, up to limit (<=0 means
// a default page of 50).
func (s *Store) List(ctx context.Context, limit int) ([]Meta, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, source, page_url, title, captured_at, turn_count, warning
		FROM captures ORDER BY captured_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Meta
	for rows.Next() {
		var m Meta
		var src, capturedAt string
		if err := rows.Scan(&m.RunID, &src, &m.PageURL, &m.Title, &capturedAt, &m.TurnCount, &m.Warning); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		m.Source = turn.Source(src)
		if ts, err := time.Parse(time.RFC3339Nano, capturedAt); err == nil {
			m.CapturedAt = ts
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a saved capture.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM captures WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
