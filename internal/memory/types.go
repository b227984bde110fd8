package memory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRecord indicates a record that fails validation.
	ErrInvalidRecord = errors.New("invalid memory record")

	// ErrRecordNotFound indicates the requested record does not exist.
	ErrRecordNotFound = errors.New("memory record not found")

	// ErrInvalidFeedback indicates an unknown feedback value.
	ErrInvalidFeedback = errors.New("invalid feedback value")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("memory store is closed")
)

// Quality flags how a run ended.
type Quality string

const (
	// QualityAccepted marks a run whose answer passed verification.
	QualityAccepted Quality = "accepted"

	// QualityAbandoned marks a run the user gave up on.
	QualityAbandoned Quality = "abandoned"

	// QualityCorrected marks a run that finished after human correction.
	QualityCorrected Quality = "corrected"
)

// Valid reports whether q is a known quality flag.
func (q Quality) Valid() bool {
	switch q {
	case QualityAccepted, QualityAbandoned, QualityCorrected:
		return true
	}
	return false
}

// Feedback is the user's after-the-fact judgment of a record's answer.
type Feedback string

const (
	FeedbackNone      Feedback = ""
	FeedbackCorrect   Feedback = "correct"
	FeedbackIncorrect Feedback = "incorrect"
)

// Valid reports whether f is a known feedback value.
func (f Feedback) Valid() bool {
	switch f {
	case FeedbackNone, FeedbackCorrect, FeedbackIncorrect:
		return true
	}
	return false
}

// Record is the persisted summary of one run. Written exactly once when the
// run reaches a terminal state; only the feedback fields change afterwards.
type Record struct {
	ID              string    `json:"id"`
	RunID           string    `json:"run_id"`
	Signature       string    `json:"signature"`
	ProblemText     string    `json:"problem_text"`
	Topic           string    `json:"topic"`
	Subtopic        string    `json:"subtopic"`
	SourceKind      string    `json:"source_kind"`
	Strategy        string    `json:"strategy"`
	Answer          string    `json:"answer"`
	Explanation     string    `json:"explanation"`
	Confidence      float64   `json:"confidence"`
	Quality         Quality   `json:"quality"`
	Feedback        Feedback  `json:"feedback"`
	FeedbackComment string    `json:"feedback_comment,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks the record before persistence.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if r.RunID == "" {
		return fmt.Errorf("%w: run_id is required", ErrInvalidRecord)
	}
	if r.Signature == "" {
		return fmt.Errorf("%w: signature is required", ErrInvalidRecord)
	}
	if r.ProblemText == "" {
		return fmt.Errorf("%w: problem_text is required", ErrInvalidRecord)
	}
	if !r.Quality.Valid() {
		return fmt.Errorf("%w: unknown quality %q", ErrInvalidRecord, r.Quality)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f outside [0,1]", ErrInvalidRecord, r.Confidence)
	}
	if !r.Feedback.Valid() {
		return fmt.Errorf("%w: unknown feedback %q", ErrInvalidRecord, r.Feedback)
	}
	return nil
}

// TopicStats aggregates records for one topic.
type TopicStats struct {
	Count     int `json:"count"`
	Accepted  int `json:"accepted"`
	Abandoned int `json:"abandoned"`
	Corrected int `json:"corrected"`

	// FeedbackCorrect and FeedbackIncorrect count user judgments;
	// Accuracy is their ratio, 0 when no feedback exists.
	FeedbackCorrect   int     `json:"feedback_correct"`
	FeedbackIncorrect int     `json:"feedback_incorrect"`
	Accuracy          float64 `json:"accuracy"`
}

// Stats is the store-wide aggregate view.
type Stats struct {
	Total     int                   `json:"total"`
	ByQuality map[Quality]int       `json:"by_quality"`
	ByTopic   map[string]TopicStats `json:"by_topic"`
}

// Store is the memory collaborator contract. Implementations must be safe
// for concurrent use by independent runs: appends never block queries from
// other runs, and a completed append is visible to queries issued after it
// returns.
type Store interface {
	// Append persists a record. Exactly one call per run.
	Append(ctx context.Context, rec Record) error

	// Get returns a record by ID.
	Get(ctx context.Context, id string) (Record, error)

	// QuerySimilar returns up to topK records similar to the given problem
	// text, most similar first, at most one per problem signature
	// (most recent wins).
	QuerySimilar(ctx context.Context, problemText string, topK int) ([]Record, error)

	// UpdateFeedback attaches a user judgment to a stored record.
	UpdateFeedback(ctx context.Context, id string, feedback Feedback, comment string) error

	// Stats returns aggregate counts over all retained records.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the underlying resources.
	Close() error
}
