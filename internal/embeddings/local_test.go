package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_Deterministic(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	a, err := p.EmbedQuery(ctx, "solve x^2 - 5x + 6 = 0")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "solve x^2 - 5x + 6 = 0")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, p.Dimension())
}

func TestLocalProvider_Normalized(t *testing.T) {
	p := NewLocalProvider()

	vec, err := p.EmbedQuery(context.Background(), "derivative of x^3")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestLocalProvider_SimilarTextScoresHigher(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	query, err := p.EmbedQuery(ctx, "solve the quadratic equation x^2 - 5x + 6 = 0")
	require.NoError(t, err)

	docs, err := p.EmbedDocuments(ctx, []string{
		"quadratic equation roots via the quadratic formula x^2",
		"probability of drawing two aces from a deck",
	})
	require.NoError(t, err)

	assert.Greater(t, cosine(query, docs[0]), cosine(query, docs[1]))
}

func TestLocalProvider_EmptyInput(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	_, err := p.EmbedQuery(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedDocuments(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "cloudy"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProvider_DefaultIsLocal(t *testing.T) {
	p, err := NewProvider(ProviderConfig{})
	require.NoError(t, err)
	assert.IsType(t, &LocalProvider{}, p)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
