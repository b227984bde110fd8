package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

func TestExplainer_NarratesSteps(t *testing.T) {
	prob, err := problem.New(problem.SourceText, "solve x^2 + 3x + 2 = 0", "solve x^2 + 3x + 2 = 0", 1.0)
	require.NoError(t, err)
	prob.Topic = "algebra"
	prob.Subtopic = "quadratic_equations"

	candidate := problem.Candidate{
		Answer: "x = -2, x = -1",
		Steps: []problem.Step{
			{Statement: "identify a=1, b=3, c=2", Justification: "standard form"},
			{Statement: "apply the quadratic formula"},
		},
		Strategy:   problem.Strategy{Kind: problem.StrategyAlgebraic, Tools: []string{"quadratic formula"}},
		Confidence: 0.95,
	}
	verdict := problem.Verdict{Accept: true, Confidence: 0.95, CheckedAnswer: "x = -2, x = -1"}

	exp := NewExplainer(zaptest.NewLogger(t)).Explain(context.Background(), prob, candidate, verdict)

	assert.Equal(t, "Solution: algebra (quadratic equations)", exp.Title)
	assert.Contains(t, exp.Summary, "x = -2, x = -1")
	assert.Contains(t, exp.Summary, "independent check confirmed")
	require.Len(t, exp.Steps, 2)
	assert.Equal(t, 1, exp.Steps[0].Number)
	assert.Equal(t, "identify a=1, b=3, c=2", exp.Steps[0].Action)
	assert.Equal(t, "standard form", exp.Steps[0].Why)
	assert.Equal(t, "x = -2, x = -1", exp.Answer)
	assert.Equal(t, []string{"quadratic formula"}, exp.KeyConcepts)
}

func TestExplainer_DivergentCheckMentioned(t *testing.T) {
	prob, err := problem.New(problem.SourceText, "solve 2x = 6", "solve 2x = 6", 1.0)
	require.NoError(t, err)

	candidate := problem.Candidate{Answer: "x equals 3", Confidence: 0.5}
	verdict := problem.Verdict{Accept: true, Confidence: 0.95, CheckedAnswer: "x = 3"}

	exp := NewExplainer(nil).Explain(context.Background(), prob, candidate, verdict)

	assert.Contains(t, exp.Summary, "arrived at x = 3")
}

func TestExplainer_EmptyStepsFallback(t *testing.T) {
	prob, err := problem.New(problem.SourceText, "state the answer", "state the answer", 1.0)
	require.NoError(t, err)

	candidate := problem.Candidate{Answer: "42", Confidence: 0.5}

	exp := NewExplainer(nil).Explain(context.Background(), prob, candidate, problem.Verdict{Accept: true, Confidence: 0.5})

	assert.Equal(t, "Solution", exp.Title)
	require.Len(t, exp.Steps, 1)
	assert.Equal(t, "42", exp.Steps[0].Action)
	assert.NotContains(t, exp.Summary, "independent check")
}

func TestExplanation_Markdown(t *testing.T) {
	exp := Explanation{
		Title:   "Solution: algebra",
		Summary: "The answer is x = 3.",
		Steps: []NarratedStep{
			{Number: 1, Action: "isolate x", Why: "divide both sides by 2"},
			{Number: 2, Action: "read off the root", Citation: &problem.Citation{SourceID: "algebra/linear.md"}},
		},
		Answer:      "x = 3",
		KeyConcepts: []string{"linear equations"},
	}

	md := exp.Markdown()

	assert.Contains(t, md, "## Solution: algebra")
	assert.Contains(t, md, "1. isolate x")
	assert.Contains(t, md, "_divide both sides by 2_")
	assert.Contains(t, md, "(see algebra/linear.md)")
	assert.Contains(t, md, "**Answer:** x = 3")
	assert.Contains(t, md, "**Key concepts:** linear equations")
}
