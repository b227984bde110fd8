package digitize

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

// maxPatternLength bounds learnable substitutions. Longer corrections are
// one-off rewrites, not recurring digitization mistakes.
const maxPatternLength = 50

// PatternStore persists learned correction patterns per source kind.
// Implementations must be safe for concurrent use.
type PatternStore interface {
	// Record learns from one human correction. Corrections too long to be
	// a substitution pattern are accepted and ignored.
	Record(ctx context.Context, source problem.SourceKind, original, corrected string) error

	// Patterns returns the learned original → corrected map for a source
	// kind, originals lowercased.
	Patterns(ctx context.Context, source problem.SourceKind) (map[string]string, error)

	Close() error
}

// patternID derives a stable key so repeated corrections of the same text
// update one row.
func patternID(source problem.SourceKind, original string) string {
	sum := sha256.Sum256([]byte(string(source) + ":" + strings.ToLower(original)))
	return hex.EncodeToString(sum[:16])
}

// learnable reports whether a correction is a reusable substitution.
func learnable(original, corrected string) bool {
	return original != "" && corrected != "" &&
		len(original) <= maxPatternLength && len(corrected) <= maxPatternLength &&
		!strings.EqualFold(original, corrected)
}

// SQLitePatternStore persists patterns in their own SQLite file.
type SQLitePatternStore struct {
	db *sql.DB
}

var _ PatternStore = (*SQLitePatternStore)(nil)

// NewSQLitePatternStore opens (or creates) the pattern database under dir.
func NewSQLitePatternStore(dir string) (*SQLitePatternStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("pattern store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("pattern store: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "corrections.db"))
	if err != nil {
		return nil, fmt.Errorf("pattern store: open database: %w", err)
	}
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pattern store: pragma %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS corrections (
			id             TEXT PRIMARY KEY,
			source_kind    TEXT NOT NULL,
			original_text  TEXT NOT NULL,
			corrected_text TEXT NOT NULL,
			frequency      INTEGER NOT NULL DEFAULT 1,
			created_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_corrections_kind
			ON corrections(source_kind);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("pattern store: migration: %w", err)
	}
	return &SQLitePatternStore{db: db}, nil
}

// Record upserts a pattern, bumping its frequency when seen again.
func (s *SQLitePatternStore) Record(ctx context.Context, source problem.SourceKind, original, corrected string) error {
	if !learnable(original, corrected) {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO corrections
			(id, source_kind, original_text, corrected_text, frequency, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			corrected_text = excluded.corrected_text,
			frequency = frequency + 1`,
		patternID(source, original), string(source),
		strings.ToLower(original), corrected,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("pattern store: record: %w", err)
	}
	return nil
}

// Patterns returns the learned map for one source kind.
func (s *SQLitePatternStore) Patterns(ctx context.Context, source problem.SourceKind) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT original_text, corrected_text FROM corrections WHERE source_kind = ?`,
		string(source))
	if err != nil {
		return nil, fmt.Errorf("pattern store: query: %w", err)
	}
	defer rows.Close()

	patterns := make(map[string]string)
	for rows.Next() {
		var original, corrected string
		if err := rows.Scan(&original, &corrected); err != nil {
			return nil, fmt.Errorf("pattern store: scan: %w", err)
		}
		patterns[original] = corrected
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pattern store: rows: %w", err)
	}
	return patterns, nil
}

// Close closes the database.
func (s *SQLitePatternStore) Close() error {
	return s.db.Close()
}

// InMemoryPatternStore implements PatternStore for tests and the
// zero-config CLI path.
type InMemoryPatternStore struct {
	mu       sync.RWMutex
	patterns map[problem.SourceKind]map[string]string
}

var _ PatternStore = (*InMemoryPatternStore)(nil)

// NewInMemoryPatternStore creates an empty store.
func NewInMemoryPatternStore() *InMemoryPatternStore {
	return &InMemoryPatternStore{patterns: make(map[problem.SourceKind]map[string]string)}
}

func (s *InMemoryPatternStore) Record(_ context.Context, source problem.SourceKind, original, corrected string) error {
	if !learnable(original, corrected) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.patterns[source]
	if m == nil {
		m = make(map[string]string)
		s.patterns[source] = m
	}
	m[strings.ToLower(original)] = corrected
	return nil
}

func (s *InMemoryPatternStore) Patterns(_ context.Context, source problem.SourceKind) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.patterns[source]))
	for k, v := range s.patterns[source] {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryPatternStore) Close() error { return nil }
