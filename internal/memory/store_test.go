package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/mentord/internal/embeddings"
	"github.com/fyrsmithlabs/mentord/internal/problem"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	embedder := embeddings.NewLocalProvider()

	store, err := NewSQLiteStore(Config{Path: t.TempDir()}, embedder, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id, text string, quality Quality) Record {
	return Record{
		ID:          id,
		RunID:       "run-" + id,
		Signature:   problem.SignatureOf(text),
		ProblemText: text,
		Topic:       "algebra",
		Subtopic:    "quadratic_equations",
		SourceKind:  "text",
		Strategy:    "algebraic",
		Answer:      "x = -1, x = -2",
		Confidence:  0.9,
		Quality:     quality,
	}
}

// storeImpls runs the same contract tests against both implementations.
func storeImpls(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": newSQLiteStore(t),
		"inmem":  NewInMemoryStore(),
	}
}

func TestStore_AppendAndGet(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := testRecord("r1", "solve x^2 + 3x + 2 = 0", QualityAccepted)

			require.NoError(t, store.Append(ctx, rec))

			got, err := store.Get(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, rec.Signature, got.Signature)
			assert.Equal(t, rec.Answer, got.Answer)
			assert.Equal(t, QualityAccepted, got.Quality)
			assert.False(t, got.CreatedAt.IsZero())

			_, err = store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestStore_AppendValidation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	bad := testRecord("r1", "solve x^2 = 4", QualityAccepted)
	bad.Quality = "exceptional"
	assert.ErrorIs(t, store.Append(ctx, bad), ErrInvalidRecord)

	bad = testRecord("r2", "solve x^2 = 4", QualityAccepted)
	bad.Confidence = 1.5
	assert.ErrorIs(t, store.Append(ctx, bad), ErrInvalidRecord)

	bad = testRecord("r3", "solve x^2 = 4", QualityAccepted)
	bad.Signature = ""
	assert.ErrorIs(t, store.Append(ctx, bad), ErrInvalidRecord)
}

func TestStore_QuerySimilar(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Append(ctx, testRecord("r1", "solve the quadratic equation x^2 + 5x + 6 = 0", QualityAccepted)))
			require.NoError(t, store.Append(ctx, testRecord("r2", "compute the derivative of x^3 + 2x", QualityAccepted)))

			results, err := store.QuerySimilar(ctx, "solve the quadratic equation x^2 - 4x + 3 = 0", 1)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "r1", results[0].ID)
		})
	}
}

func TestStore_QuerySimilar_MostRecentWinsPerSignature(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			text := "solve x^2 + 3x + 2 = 0"

			older := testRecord("r1", text, QualityAbandoned)
			older.CreatedAt = time.Now().UTC().Add(-time.Hour)
			newer := testRecord("r2", text, QualityAccepted)
			newer.CreatedAt = time.Now().UTC()

			require.NoError(t, store.Append(ctx, older))
			require.NoError(t, store.Append(ctx, newer))

			results, err := store.QuerySimilar(ctx, text, 5)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "r2", results[0].ID)

			// Both stay retained for statistics.
			stats, err := store.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, stats.Total)
		})
	}
}

func TestStore_QuerySimilar_EmptyStore(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			results, err := store.QuerySimilar(context.Background(), "anything", 3)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestStore_UpdateFeedback(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Append(ctx, testRecord("r1", "solve x^2 = 9", QualityAccepted)))

			require.NoError(t, store.UpdateFeedback(ctx, "r1", FeedbackCorrect, "nice"))

			got, err := store.Get(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, FeedbackCorrect, got.Feedback)
			assert.Equal(t, "nice", got.FeedbackComment)

			assert.ErrorIs(t, store.UpdateFeedback(ctx, "missing", FeedbackCorrect, ""), ErrRecordNotFound)
			assert.ErrorIs(t, store.UpdateFeedback(ctx, "r1", Feedback("great"), ""), ErrInvalidFeedback)
			assert.ErrorIs(t, store.UpdateFeedback(ctx, "r1", FeedbackNone, ""), ErrInvalidFeedback)
		})
	}
}

func TestStore_Stats(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			accepted := testRecord("r1", "solve x^2 + x = 0", QualityAccepted)
			require.NoError(t, store.Append(ctx, accepted))

			abandoned := testRecord("r2", "integrate sin(x) dx", QualityAbandoned)
			abandoned.Topic = "calculus"
			require.NoError(t, store.Append(ctx, abandoned))

			corrected := testRecord("r3", "solve 2x + 1 = 7", QualityCorrected)
			require.NoError(t, store.Append(ctx, corrected))

			require.NoError(t, store.UpdateFeedback(ctx, "r1", FeedbackCorrect, ""))
			require.NoError(t, store.UpdateFeedback(ctx, "r3", FeedbackIncorrect, ""))

			stats, err := store.Stats(ctx)
			require.NoError(t, err)

			assert.Equal(t, 3, stats.Total)
			assert.Equal(t, 1, stats.ByQuality[QualityAccepted])
			assert.Equal(t, 1, stats.ByQuality[QualityAbandoned])
			assert.Equal(t, 1, stats.ByQuality[QualityCorrected])

			algebra := stats.ByTopic["algebra"]
			assert.Equal(t, 2, algebra.Count)
			assert.Equal(t, 1, algebra.FeedbackCorrect)
			assert.Equal(t, 1, algebra.FeedbackIncorrect)
			assert.InDelta(t, 0.5, algebra.Accuracy, 1e-9)

			calculus := stats.ByTopic["calculus"]
			assert.Equal(t, 1, calculus.Abandoned)
			assert.Zero(t, calculus.Accuracy)
		})
	}
}

func TestStore_ConcurrentAppendAndQuery(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	done := make(chan error, 20)
	for i := 0; i < 10; i++ {
		go func(i int) {
			text := fmt.Sprintf("solve x^2 + %dx = 0", i)
			done <- store.Append(ctx, testRecord(fmt.Sprintf("r%d", i), text, QualityAccepted))
		}(i)
		go func() {
			_, err := store.QuerySimilar(ctx, "solve x^2", 3)
			done <- err
		}()
	}
	for i := 0; i < 20; i++ {
		assert.NoError(t, <-done)
	}
}
