package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/mentord/internal/config"
)

func testEvaluator() *Evaluator {
	return NewEvaluator(config.NewDefaultConfig().Pipeline)
}

func TestEvaluator_Decide(t *testing.T) {
	e := testEvaluator()

	tests := []struct {
		name       string
		stage      Stage
		confidence float64
		ambiguous  bool
		attempt    int
		want       Decision
	}{
		{"above threshold continues", StageParser, 0.8, false, 0, DecisionContinue},
		{"at threshold continues", StageParser, 0.6, false, 0, DecisionContinue},
		{"below threshold retries first", StageParser, 0.4, false, 0, DecisionRetry},
		{"budget exhausted pauses", StageParser, 0.4, false, 1, DecisionPause},
		{"ambiguity always pauses", StageParser, 0.99, true, 0, DecisionPause},
		{"digitize never retries", StageDigitize, 0.3, false, 0, DecisionPause},
		{"digitize above threshold continues", StageDigitize, 0.9, false, 0, DecisionContinue},
		{"solver has a deeper budget", StageSolver, 0.2, false, 1, DecisionRetry},
		{"solver budget exhausted", StageSolver, 0.2, false, 2, DecisionPause},
		{"verifier gate", StageVerifier, 0.69, false, 1, DecisionPause},
		{"unknown stage pauses", Stage("mystery"), 0.99, false, 0, DecisionPause},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Decide(tt.stage, tt.confidence, tt.ambiguous, tt.attempt)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_Deterministic(t *testing.T) {
	e := testEvaluator()
	for i := 0; i < 10; i++ {
		assert.Equal(t, DecisionRetry, e.Decide(StageSolver, 0.5, false, 0))
	}
}

func TestEvaluator_Threshold(t *testing.T) {
	e := testEvaluator()
	assert.InDelta(t, 0.6, e.Threshold(StageParser), 1e-9)
	assert.InDelta(t, 0.7, e.Threshold(StageVerifier), 1e-9)
}
