// Package store persists evaluation verdicts in a local sqlite database
// for later reporting.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts        TEXT NOT NULL,
	origin    TEXT NOT NULL,
	input     TEXT NOT NULL,
	source    TEXT NOT NULL,
	action    TEXT NOT NULL,
	blocked   INTEGER NOT NULL,
	findings  INTEGER NOT NULL,
	units     INTEGER NOT NULL,
	chunks    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evaluations_ts ON evaluations(ts);
`

// Record is one persisted verdict covering a whole text or stream.
type Record struct {
	Origin   string // cli|stream|watch|mcp
	Input    string // file name, model id, or "-"
	Source   string
	Action   string
	Blocked  bool
	Findings int
	Units    int
	Chunks   int
}

// Summary aggregates the store for reporting.
type Summary struct {
	Total      int `json:"total"`
	Blocked    int `json:"blocked"`
	Intervened int `json:"intervened"`
	Units      int `json:"units"`
}

// Store wraps the verdict database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the verdict store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert persists one verdict.
func (s *Store) Insert(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (ts, origin, input, source, action, blocked, findings, units, chunks)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		r.Origin, r.Input, r.Source, r.Action, boolToInt(r.Blocked), r.Findings, r.Units, r.Chunks)
	if err != nil {
		return fmt.Errorf("store: insert verdict: %w", err)
	}
	return nil
}

// Summarize aggregates all persisted verdicts.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(blocked), 0),
		        COALESCE(SUM(CASE WHEN action = 'INTERVENED' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(units), 0)
		 FROM evaluations`).
		Scan(&sum.Total, &sum.Blocked, &sum.Intervened, &sum.Units)
	if err != nil {
		return Summary{}, fmt.Errorf("store: summarize: %w", err)
	}
	return sum, nil
}

// Recent returns the newest n verdicts, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT origin, input, source, action, blocked, findings, units, chunks
		 FROM evaluations ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: query recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var blocked int
		if err := rows.Scan(&r.Origin, &r.Input, &r.Source, &r.Action, &blocked,
			&r.Findings, &r.Units, &r.Chunks); err != nil {
			return nil, fmt.Errorf("store: scan verdict: %w", err)
		}
		r.Blocked = blocked != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
