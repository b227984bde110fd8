package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRunStore persists run snapshots on disk, so paused runs survive a
// daemon restart. Snapshots are stored as JSON keyed by run ID; the state
// column is duplicated for inspection without unmarshalling.
type SQLiteRunStore struct {
	db *sql.DB
}

var _ RunStore = (*SQLiteRunStore)(nil)

// NewSQLiteRunStore opens (creating if needed) the run database under dir,
// applying WAL mode and the schema migration.
func NewSQLiteRunStore(dir string) (*SQLiteRunStore, error) {
	if dir == "" {
		return nil, errors.New("runstore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("runstore: create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("runstore: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("runstore: pragma %q: %w", p, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	snapshot   TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runstore: migrate: %w", err)
	}

	return &SQLiteRunStore{db: db}, nil
}

// Put stores or replaces the snapshot.
func (s *SQLiteRunStore) Put(ctx context.Context, snap Snapshot) error {
	snap.UpdatedAt = time.Now()

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("runstore: marshal snapshot %s: %w", snap.RunID, err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, state, snapshot, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	state      = excluded.state,
	snapshot   = excluded.snapshot,
	updated_at = excluded.updated_at`,
		snap.RunID, string(snap.State), string(payload), snap.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("runstore: put %s: %w", snap.RunID, err)
	}
	return nil
}

// Get returns the stored snapshot, or ErrRunNotFound.
func (s *SQLiteRunStore) Get(ctx context.Context, runID string) (Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM runs WHERE id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("runstore: get %s: %w", runID, err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("runstore: unmarshal %s: %w", runID, err)
	}
	return snap, nil
}

// List returns all stored run IDs, most recently updated first.
func (s *SQLiteRunStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("runstore: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("runstore: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}
