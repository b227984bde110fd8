package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/mentord/internal/embeddings"
)

// indexCollection holds the similarity index over problem texts.
const indexCollection = "mentord_memory"

// queryOversample is how many index hits are fetched per requested result,
// leaving room for the per-signature dedup to discard superseded records.
const queryOversample = 4

// Config holds store configuration.
type Config struct {
	// Path is the directory holding the SQLite archive. Empty is invalid.
	Path string

	// IndexPath is the directory for the persistent similarity index.
	// Empty keeps the index in memory, so only records appended during
	// this process lifetime are searchable.
	IndexPath string
}

// SQLiteStore implements Store on a SQLite archive plus a chromem-go
// similarity index.
type SQLiteStore struct {
	db       *sql.DB
	index    *chromem.DB
	embedder embeddings.Embedder
	logger   *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the archive at cfg.Path, applying WAL mode and the
// schema migration.
func NewSQLiteStore(cfg Config, embedder embeddings.Embedder, logger *zap.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidRecord)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidRecord)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.Path, "memory.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	var index *chromem.DB
	if cfg.IndexPath == "" {
		index = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.IndexPath, 0o700); err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: create index dir: %w", err)
		}
		index, err = chromem.NewPersistentDB(cfg.IndexPath, false)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: open similarity index: %w", err)
		}
	}

	s := &SQLiteStore{db: db, index: index, embedder: embedder, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: migration: %w", err)
	}

	logger.Info("memory store opened",
		zap.String("path", dbPath),
		zap.String("index_path", cfg.IndexPath),
	)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id               TEXT PRIMARY KEY,
			run_id           TEXT NOT NULL,
			signature        TEXT NOT NULL,
			problem_text     TEXT NOT NULL,
			topic            TEXT NOT NULL DEFAULT '',
			subtopic         TEXT NOT NULL DEFAULT '',
			source_kind      TEXT NOT NULL DEFAULT '',
			strategy         TEXT NOT NULL DEFAULT '',
			answer           TEXT NOT NULL DEFAULT '',
			explanation      TEXT NOT NULL DEFAULT '',
			confidence       REAL NOT NULL,
			quality          TEXT NOT NULL,
			feedback         TEXT NOT NULL DEFAULT '',
			feedback_comment TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_signature
			ON records(signature, created_at);

		CREATE INDEX IF NOT EXISTS idx_records_topic
			ON records(topic, subtopic);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the archive. The similarity index needs no teardown.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Append persists rec and indexes its problem text. The archive write is
// authoritative: an index failure is logged and the append still succeeds,
// costing similarity recall for this record only.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records
		(id, run_id, signature, problem_text, topic, subtopic, source_kind,
		 strategy, answer, explanation, confidence, quality, feedback,
		 feedback_comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Signature, rec.ProblemText, rec.Topic,
		rec.Subtopic, rec.SourceKind, rec.Strategy, rec.Answer,
		rec.Explanation, rec.Confidence, string(rec.Quality),
		string(rec.Feedback), rec.FeedbackComment,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("memory: insert record: %w", err)
	}

	if err := s.indexRecord(ctx, rec); err != nil {
		s.logger.Warn("similarity index write failed",
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *SQLiteStore) indexRecord(ctx context.Context, rec Record) error {
	collection, err := s.index.GetOrCreateCollection(indexCollection, nil, s.embeddingFunc())
	if err != nil {
		return err
	}
	doc := chromem.Document{
		ID:      rec.ID,
		Content: rec.ProblemText,
		Metadata: map[string]string{
			"signature": rec.Signature,
			"topic":     rec.Topic,
		},
	}
	return collection.AddDocuments(ctx, []chromem.Document{doc}, 1)
}

// Get returns a record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, signature, problem_text, topic, subtopic,
		        source_kind, strategy, answer, explanation, confidence,
		        quality, feedback, feedback_comment, created_at
		 FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("memory: get record: %w", err)
	}
	return rec, nil
}

// QuerySimilar searches the index and resolves hits against the archive,
// keeping the newest record per signature.
func (s *SQLiteStore) QuerySimilar(ctx context.Context, problemText string, topK int) ([]Record, error) {
	if problemText == "" || topK <= 0 {
		return []Record{}, nil
	}

	collection := s.index.GetCollection(indexCollection, s.embeddingFunc())
	if collection == nil {
		return []Record{}, nil
	}
	count := collection.Count()
	if count == 0 {
		return []Record{}, nil
	}

	n := topK * queryOversample
	if n > count {
		n = count
	}

	results, err := collection.Query(ctx, problemText, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("memory: similarity query: %w", err)
	}

	seen := make(map[string]bool, len(results))
	records := make([]Record, 0, topK)
	for _, r := range results {
		sig := r.Metadata["signature"]
		if seen[sig] {
			continue
		}
		rec, err := s.latestBySignature(ctx, sig)
		if errors.Is(err, ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		seen[sig] = true
		records = append(records, rec)
		if len(records) == topK {
			break
		}
	}
	return records, nil
}

// latestBySignature returns the newest record carrying sig.
func (s *SQLiteStore) latestBySignature(ctx context.Context, sig string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, signature, problem_text, topic, subtopic,
		        source_kind, strategy, answer, explanation, confidence,
		        quality, feedback, feedback_comment, created_at
		 FROM records WHERE signature = ?
		 ORDER BY created_at DESC LIMIT 1`, sig)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: signature %s", ErrRecordNotFound, sig)
	}
	if err != nil {
		return Record{}, fmt.Errorf("memory: lookup by signature: %w", err)
	}
	return rec, nil
}

// UpdateFeedback sets the user judgment on a stored record.
func (s *SQLiteStore) UpdateFeedback(ctx context.Context, id string, feedback Feedback, comment string) error {
	if !feedback.Valid() || feedback == FeedbackNone {
		return fmt.Errorf("%w: %q", ErrInvalidFeedback, feedback)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET feedback = ?, feedback_comment = ? WHERE id = ?`,
		string(feedback), comment, id)
	if err != nil {
		return fmt.Errorf("memory: update feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("memory: update feedback: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// Stats aggregates all retained records, superseded ones included.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByQuality: make(map[Quality]int),
		ByTopic:   make(map[string]TopicStats),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, quality, feedback, COUNT(*)
		 FROM records GROUP BY topic, quality, feedback`)
	if err != nil {
		return Stats{}, fmt.Errorf("memory: stats query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var topic, quality, feedback string
		var count int
		if err := rows.Scan(&topic, &quality, &feedback, &count); err != nil {
			return Stats{}, fmt.Errorf("memory: stats scan: %w", err)
		}

		stats.Total += count
		stats.ByQuality[Quality(quality)] += count

		ts := stats.ByTopic[topic]
		ts.Count += count
		switch Quality(quality) {
		case QualityAccepted:
			ts.Accepted += count
		case QualityAbandoned:
			ts.Abandoned += count
		case QualityCorrected:
			ts.Corrected += count
		}
		switch Feedback(feedback) {
		case FeedbackCorrect:
			ts.FeedbackCorrect += count
		case FeedbackIncorrect:
			ts.FeedbackIncorrect += count
		}
		stats.ByTopic[topic] = ts
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("memory: stats rows: %w", err)
	}

	for topic, ts := range stats.ByTopic {
		if judged := ts.FeedbackCorrect + ts.FeedbackIncorrect; judged > 0 {
			ts.Accuracy = float64(ts.FeedbackCorrect) / float64(judged)
		}
		stats.ByTopic[topic] = ts
	}
	return stats, nil
}

// scannable covers *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (Record, error) {
	var rec Record
	var quality, feedback, createdAt string
	err := row.Scan(&rec.ID, &rec.RunID, &rec.Signature, &rec.ProblemText,
		&rec.Topic, &rec.Subtopic, &rec.SourceKind, &rec.Strategy,
		&rec.Answer, &rec.Explanation, &rec.Confidence, &quality,
		&feedback, &rec.FeedbackComment, &createdAt)
	if err != nil {
		return Record{}, err
	}
	rec.Quality = Quality(quality)
	rec.Feedback = Feedback(feedback)
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return rec, nil
}
