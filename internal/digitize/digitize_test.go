package digitize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

func TestTextDigitizer_Passthrough(t *testing.T) {
	d := NewTextDigitizer(nil, zaptest.NewLogger(t))

	res, err := d.Digitize(context.Background(), problem.SourceText, "  solve   x^2 + 3x\n+ 2 = 0  ")
	require.NoError(t, err)
	assert.Equal(t, "solve x^2 + 3x + 2 = 0", res.Text)
	assert.Equal(t, 1.0, res.Confidence)
	assert.False(t, res.Modified)
}

func TestTextDigitizer_EmptyInput(t *testing.T) {
	d := NewTextDigitizer(nil, zaptest.NewLogger(t))

	_, err := d.Digitize(context.Background(), problem.SourceText, "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTextDigitizer_UnsupportedSources(t *testing.T) {
	d := NewTextDigitizer(nil, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := d.Digitize(ctx, problem.SourceImage, "scan.png")
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	_, err = d.Digitize(ctx, problem.SourceAudio, "dictation.wav")
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	_, err = d.Digitize(ctx, problem.SourceKind("video"), "clip.mp4")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestTextDigitizer_AppliesLearnedPatterns(t *testing.T) {
	store := NewInMemoryPatternStore()
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, problem.SourceText, "x2", "x^2"))

	d := NewTextDigitizer(store, zaptest.NewLogger(t))

	res, err := d.Digitize(ctx, problem.SourceText, "solve X2 + 3x + 2 = 0")
	require.NoError(t, err)
	assert.Equal(t, "solve x^2 + 3x + 2 = 0", res.Text)
	assert.True(t, res.Modified)
}

func TestTextDigitizer_OverlappingPatternsDeterministic(t *testing.T) {
	store := NewInMemoryPatternStore()
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, problem.SourceText, "ab", "cd"))
	require.NoError(t, store.Record(ctx, problem.SourceText, "cd", "ef"))

	d := NewTextDigitizer(store, zaptest.NewLogger(t))

	// "ab" sorts before "cd" at equal length, so "ab" rewrites to "cd"
	// and the later "cd" pass carries it on to "ef". The result must not
	// depend on map iteration order.
	for i := 0; i < 20; i++ {
		res, err := d.Digitize(ctx, problem.SourceText, "ab")
		require.NoError(t, err)
		assert.Equal(t, "ef", res.Text)
	}
}

func TestTextDigitizer_PatternsScopedBySource(t *testing.T) {
	store := NewInMemoryPatternStore()
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, problem.SourceImage, "l", "1"))

	d := NewTextDigitizer(store, zaptest.NewLogger(t))

	// An OCR pattern must not rewrite direct text input.
	res, err := d.Digitize(ctx, problem.SourceText, "solve for l in 2l = 4")
	require.NoError(t, err)
	assert.Equal(t, "solve for l in 2l = 4", res.Text)
	assert.False(t, res.Modified)
}

func TestPatternStores(t *testing.T) {
	stores := map[string]PatternStore{
		"inmem": NewInMemoryPatternStore(),
	}
	sqlite, err := NewSQLitePatternStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	stores["sqlite"] = sqlite

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Record(ctx, problem.SourceText, "Qudratic", "quadratic"))
			require.NoError(t, store.Record(ctx, problem.SourceText, "qudratic", "quadratic"))

			patterns, err := store.Patterns(ctx, problem.SourceText)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"qudratic": "quadratic"}, patterns)

			// Identity and oversized corrections are not learned.
			require.NoError(t, store.Record(ctx, problem.SourceText, "same", "SAME"))
			long := make([]byte, maxPatternLength+1)
			for i := range long {
				long[i] = 'a'
			}
			require.NoError(t, store.Record(ctx, problem.SourceText, string(long), "short"))

			patterns, err = store.Patterns(ctx, problem.SourceText)
			require.NoError(t, err)
			assert.Len(t, patterns, 1)
		})
	}
}

func TestReplaceFold(t *testing.T) {
	assert.Equal(t, "a^2 + a^2", replaceFold("a2 + A2", "a2", "a^2"))
	assert.Equal(t, "unchanged", replaceFold("unchanged", "zz", "yy"))
	assert.Equal(t, "s", replaceFold("s", "", "x"))
}
