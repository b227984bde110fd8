package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

func routeText(t *testing.T, text string) RouteResult {
	t.Helper()
	prob, err := problem.New(problem.SourceText, text, NormalizeMathText(text), 1.0)
	require.NoError(t, err)

	res, err := NewRouter(zaptest.NewLogger(t)).Route(context.Background(), prob)
	require.NoError(t, err)
	return res
}

func TestRouter_Route(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantKind     problem.StrategyKind
		wantTopic    string
		wantSubtopic string
	}{
		{
			name:         "quadratic",
			text:         "solve the quadratic equation x^2 + 3x + 2 = 0",
			wantKind:     problem.StrategyAlgebraic,
			wantTopic:    "algebra",
			wantSubtopic: "quadratic_equations",
		},
		{
			name:         "derivative",
			text:         "differentiate x^3 + 2x and find the derivative",
			wantKind:     problem.StrategyCalculus,
			wantTopic:    "calculus",
			wantSubtopic: "derivatives",
		},
		{
			name:         "combinatorics",
			text:         "how many ways are there to choose 2 items from 5",
			wantKind:     problem.StrategyProbability,
			wantTopic:    "probability",
			wantSubtopic: "permutations_combinations",
		},
		{
			name:         "determinant",
			text:         "compute the determinant of the matrix [[1,2],[3,4]]",
			wantKind:     problem.StrategyLinearAlgebra,
			wantTopic:    "linear_algebra",
			wantSubtopic: "determinants",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := routeText(t, tt.text)
			assert.Equal(t, tt.wantKind, res.Strategy.Kind)
			assert.Equal(t, tt.wantTopic, res.Topic)
			assert.Equal(t, tt.wantSubtopic, res.Subtopic)
			assert.Greater(t, res.Confidence, 0.5)
			assert.NotEmpty(t, res.Strategy.Tools)
		})
	}
}

func TestRouter_UnclassifiableFallsBackToFormula(t *testing.T) {
	res := routeText(t, "what is the airspeed velocity of an unladen swallow")

	assert.Equal(t, problem.StrategyFormula, res.Strategy.Kind)
	assert.Empty(t, res.Topic)
	assert.InDelta(t, 0.3, res.Confidence, 1e-9)
}

func TestRouter_MarginDrivesConfidence(t *testing.T) {
	// One topic only: full margin.
	clear := routeText(t, "compute the determinant of the matrix")

	// Keywords from two topics: thinner margin, lower confidence.
	mixed := routeText(t, "solve the equation for the probability that the dice total exceeds the limit")

	assert.Greater(t, clear.Confidence, mixed.Confidence)
}

func TestRouter_AdvancedComplexityLowersConfidence(t *testing.T) {
	basic := routeText(t, "find the derivative of x^2")
	advanced := routeText(t, "prove the derivative of x^2 is 2x using the limit definition and show that it holds")

	assert.Equal(t, ComplexityBasic, basic.Complexity)
	assert.Equal(t, ComplexityAdvanced, advanced.Complexity)
	assert.Less(t, advanced.Confidence, basic.Confidence)
}

func TestAssessComplexity(t *testing.T) {
	assert.Equal(t, ComplexityBasic, assessComplexity("solve x + 1 = 2"))
	assert.Equal(t, ComplexityIntermediate, assessComplexity("use the chain rule to differentiate"))
	assert.Equal(t, ComplexityAdvanced, assessComplexity("prove that the sequence converges"))
}
