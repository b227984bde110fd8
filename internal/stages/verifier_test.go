package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

func verifyText(t *testing.T, text, answer string) problem.Verdict {
	t.Helper()
	prob, err := problem.New(problem.SourceText, text, NormalizeMathText(text), 1.0)
	require.NoError(t, err)

	candidate := problem.Candidate{
		Answer:     answer,
		Steps:      []problem.Step{{Statement: "claimed derivation"}},
		Strategy:   problem.Strategy{Kind: problem.StrategyAlgebraic},
		Confidence: 0.9,
	}

	verdict, err := NewVerifier(zaptest.NewLogger(t)).Verify(context.Background(), prob, candidate)
	require.NoError(t, err)
	return verdict
}

func TestVerifier_AcceptsCorrectRoots(t *testing.T) {
	verdict := verifyText(t, "solve x^2 + 3x + 2 = 0", "x = -2, x = -1")

	assert.True(t, verdict.Accept)
	assert.GreaterOrEqual(t, verdict.Confidence, acceptConfident)
	assert.Equal(t, "x = -2, x = -1", verdict.CheckedAnswer)
}

func TestVerifier_RejectsWrongRootWithHighConfidence(t *testing.T) {
	verdict := verifyText(t, "solve x^2 + 3x + 2 = 0", "x = 5")

	assert.False(t, verdict.Accept)
	assert.GreaterOrEqual(t, verdict.Confidence, rejectConfident)
	require.NotEmpty(t, verdict.Flags)
	assert.Contains(t, verdict.Flags[0].Reason, "residual")
	assert.Equal(t, "x = -2, x = -1", verdict.CheckedAnswer)
}

func TestVerifier_RejectsIncompleteRootSet(t *testing.T) {
	verdict := verifyText(t, "solve x^2 + 3x + 2 = 0", "x = -1")

	assert.False(t, verdict.Accept)
	assert.GreaterOrEqual(t, verdict.Confidence, rejectConfident)
	require.NotEmpty(t, verdict.Flags)
	assert.Contains(t, verdict.Flags[0].Reason, "incomplete")
}

func TestVerifier_RejectsUninterpretableAnswerWithLowConfidence(t *testing.T) {
	verdict := verifyText(t, "solve x^2 + 3x + 2 = 0", "the roots are negative")

	assert.False(t, verdict.Accept)
	// Suspicious but unproven: this routes to a human, not a retry.
	assert.LessOrEqual(t, verdict.Confidence, rejectUncertain)
}

func TestVerifier_AcceptsNoRealSolutions(t *testing.T) {
	verdict := verifyText(t, "solve x^2 + 1 = 0", "no real solutions")

	assert.True(t, verdict.Accept)
	assert.GreaterOrEqual(t, verdict.Confidence, acceptConfident)
}

func TestVerifier_RejectsFalseNoRealSolutions(t *testing.T) {
	verdict := verifyText(t, "solve x^2 - 4 = 0", "no real solutions")

	assert.False(t, verdict.Accept)
	assert.GreaterOrEqual(t, verdict.Confidence, rejectConfident)
	assert.Contains(t, verdict.Flags[0].Reason, "real solutions exist")
}

func TestVerifier_Derivative(t *testing.T) {
	correct := verifyText(t, "find the derivative of x^3 + 2x", "3x^2 + 2")
	assert.True(t, correct.Accept)

	wrong := verifyText(t, "find the derivative of x^3 + 2x", "3x^2 + 2x")
	assert.False(t, wrong.Accept)
	assert.GreaterOrEqual(t, wrong.Confidence, rejectConfident)
	assert.Equal(t, "3x^2 + 2", wrong.CheckedAnswer)
}

func TestVerifier_Count(t *testing.T) {
	correct := verifyText(t, "compute C(5, 2)", "C(5, 2) = 10")
	assert.True(t, correct.Accept)

	wrong := verifyText(t, "compute C(5, 2)", "C(5, 2) = 20")
	assert.False(t, wrong.Accept)
	assert.Equal(t, "10", wrong.CheckedAnswer)
}

func TestVerifier_Determinant(t *testing.T) {
	correct := verifyText(t, "find the determinant of [[1, 2], [3, 4]]", "determinant = -2")
	assert.True(t, correct.Accept)

	wrong := verifyText(t, "find the determinant of [[1, 2], [3, 4]]", "determinant = 2")
	assert.False(t, wrong.Accept)
	assert.Equal(t, "-2", wrong.CheckedAnswer)
}

func TestVerifier_UnverifiableAcceptsWithLowConfidence(t *testing.T) {
	verdict := verifyText(t, "describe the geometric meaning of a dot product", "a projection scaled by lengths")

	assert.True(t, verdict.Accept)
	assert.InDelta(t, acceptUnverifiable, verdict.Confidence, 1e-9)
	assert.Empty(t, verdict.CheckedAnswer)
}

func TestVerifier_IndependenceFromSolverSteps(t *testing.T) {
	// Misleading steps with a correct answer still pass: only the problem
	// text and the answer participate in the check.
	prob, err := problem.New(problem.SourceText, "solve 2x + 1 = 7", "solve 2x + 1 = 7", 1.0)
	require.NoError(t, err)

	candidate := problem.Candidate{
		Answer:     "x = 3",
		Steps:      []problem.Step{{Statement: "guessed"}},
		Strategy:   problem.Strategy{Kind: problem.StrategyAlgebraic},
		Confidence: 0.2,
	}

	verdict, err := NewVerifier(zaptest.NewLogger(t)).Verify(context.Background(), prob, candidate)
	require.NoError(t, err)
	assert.True(t, verdict.Accept)
	assert.GreaterOrEqual(t, verdict.Confidence, acceptConfident)
}
