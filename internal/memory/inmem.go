package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryStore implements Store with a map and token-overlap similarity.
// It exists for tests and the zero-config CLI path; production deployments
// use SQLiteStore.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

// Append stores rec.
func (s *InMemoryStore) Append(_ context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = rec
	return nil
}

// Get returns a record by ID.
func (s *InMemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return rec, nil
}

// QuerySimilar ranks records by token overlap with the query text, keeping
// the newest record per signature.
func (s *InMemoryStore) QuerySimilar(_ context.Context, problemText string, topK int) ([]Record, error) {
	if problemText == "" || topK <= 0 {
		return []Record{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest record per signature.
	latest := make(map[string]Record)
	for _, rec := range s.records {
		if cur, ok := latest[rec.Signature]; !ok || rec.CreatedAt.After(cur.CreatedAt) {
			latest[rec.Signature] = rec
		}
	}

	queryTokens := tokenSet(problemText)
	type scored struct {
		rec   Record
		score float64
	}
	candidates := make([]scored, 0, len(latest))
	for _, rec := range latest {
		score := jaccard(queryTokens, tokenSet(rec.ProblemText))
		if score > 0 {
			candidates = append(candidates, scored{rec, score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rec.CreatedAt.After(candidates[j].rec.CreatedAt)
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]Record, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out, nil
}

// UpdateFeedback sets the user judgment on a stored record.
func (s *InMemoryStore) UpdateFeedback(_ context.Context, id string, feedback Feedback, comment string) error {
	if !feedback.Valid() || feedback == FeedbackNone {
		return fmt.Errorf("%w: %q", ErrInvalidFeedback, feedback)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	rec.Feedback = feedback
	rec.FeedbackComment = comment
	s.records[id] = rec
	return nil
}

// Stats aggregates all records.
func (s *InMemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		ByQuality: make(map[Quality]int),
		ByTopic:   make(map[string]TopicStats),
	}
	for _, rec := range s.records {
		stats.Total++
		stats.ByQuality[rec.Quality]++

		ts := stats.ByTopic[rec.Topic]
		ts.Count++
		switch rec.Quality {
		case QualityAccepted:
			ts.Accepted++
		case QualityAbandoned:
			ts.Abandoned++
		case QualityCorrected:
			ts.Corrected++
		}
		switch rec.Feedback {
		case FeedbackCorrect:
			ts.FeedbackCorrect++
		case FeedbackIncorrect:
			ts.FeedbackIncorrect++
		}
		stats.ByTopic[rec.Topic] = ts
	}
	for topic, ts := range stats.ByTopic {
		if judged := ts.FeedbackCorrect + ts.FeedbackIncorrect; judged > 0 {
			ts.Accuracy = float64(ts.FeedbackCorrect) / float64(judged)
		}
		stats.ByTopic[topic] = ts
	}
	return stats, nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
