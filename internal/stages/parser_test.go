package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

func TestParser_Parse(t *testing.T) {
	p := NewParser(zaptest.NewLogger(t))
	ctx := context.Background()

	res, err := p.Parse(ctx, problem.SourceText, "Solve x² + 3x + 2 = 0", 1.0)
	require.NoError(t, err)

	assert.Equal(t, "Solve x^2 + 3x + 2 = 0", res.Problem.Text)
	assert.Equal(t, 1, res.Problem.Version)
	assert.Contains(t, res.Problem.Variables, "x")
	assert.Equal(t, "algebra", res.Problem.Topic)
	assert.False(t, res.Ambiguous)
	assert.Greater(t, res.Confidence, 0.8)
}

func TestParser_ConfidenceScalesWithDigitization(t *testing.T) {
	p := NewParser(zaptest.NewLogger(t))
	ctx := context.Background()

	clean, err := p.Parse(ctx, problem.SourceText, "solve x^2 - 4 = 0", 1.0)
	require.NoError(t, err)

	noisy, err := p.Parse(ctx, problem.SourceImage, "solve x^2 - 4 = 0", 0.5)
	require.NoError(t, err)

	assert.InDelta(t, clean.Confidence*0.5, noisy.Confidence, 1e-9)
}

func TestParser_DetectsAmbiguousExponent(t *testing.T) {
	p := NewParser(zaptest.NewLogger(t))

	res, err := p.Parse(context.Background(), problem.SourceImage, "solve 2x2 + 3x = 5", 0.8)
	require.NoError(t, err)

	assert.True(t, res.Ambiguous)
	assert.Contains(t, res.AmbiguityReason, "x2")
}

func TestParser_LowCertaintyForProse(t *testing.T) {
	p := NewParser(zaptest.NewLogger(t))

	res, err := p.Parse(context.Background(), problem.SourceText, "hello there general text", 1.0)
	require.NoError(t, err)

	assert.Less(t, res.Confidence, 0.6)
	assert.False(t, res.Ambiguous)
}

func TestParser_ExtractsConstraints(t *testing.T) {
	p := NewParser(zaptest.NewLogger(t))

	res, err := p.Parse(context.Background(), problem.SourceText, "solve x^2 = 4 for x > 0", 1.0)
	require.NoError(t, err)

	assert.Contains(t, res.Problem.Constraints, "x > 0")
}

func TestParser_ReparsePreservesVersionChain(t *testing.T) {
	p := NewParser(zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := p.Parse(ctx, problem.SourceImage, "solve 2x2 + 3x = 5", 0.8)
	require.NoError(t, err)

	corrected, err := first.Problem.WithCorrection("solve 2x^2 + 3x = 5", problem.CorrectionUserEdit)
	require.NoError(t, err)

	res, err := p.Reparse(ctx, corrected)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Problem.Version)
	assert.Equal(t, first.Problem.ID, res.Problem.PredecessorID)
	assert.False(t, res.Ambiguous)
	assert.Greater(t, res.Confidence, 0.8)
}

func TestParser_EmptyInput(t *testing.T) {
	p := NewParser(zaptest.NewLogger(t))

	_, err := p.Parse(context.Background(), problem.SourceText, "", 1.0)
	assert.ErrorIs(t, err, problem.ErrEmptyText)
}
