package pipeline

import (
	"github.com/fyrsmithlabs/mentord/internal/config"
)

// Decision is the trigger evaluator's verdict on one stage output.
type Decision string

const (
	// DecisionContinue advances the run to the next state.
	DecisionContinue Decision = "CONTINUE"

	// DecisionRetry re-invokes the same stage with an incremented attempt
	// counter.
	DecisionRetry Decision = "RETRY"

	// DecisionPause suspends the run and emits a PauseRequest.
	DecisionPause Decision = "PAUSE_FOR_HUMAN"
)

// Stage names the gated pipeline stages.
type Stage string

const (
	// StageDigitize gates the digitization confidence before parsing. A low
	// score here means the input itself is unreliable; retrying the pipeline
	// cannot improve it, so the stage is not retryable.
	StageDigitize Stage = "digitize"

	StageParser   Stage = "parser"
	StageRouter   Stage = "router"
	StageSolver   Stage = "solver"
	StageVerifier Stage = "verifier"

	// StageExplainer appears in traces only; it is never gated.
	StageExplainer Stage = "explainer"
)

// stagePolicy is the per-stage gate: the confidence threshold, the retry
// budget beyond the first attempt, and whether retrying can help at all.
type stagePolicy struct {
	threshold   float64
	maxAttempts int
	retryable   bool
}

// Evaluator is the pure trigger decision function. It holds only immutable
// policy; identical inputs always yield identical decisions, which keeps
// the orchestrator's traces replayable.
type Evaluator struct {
	policies map[Stage]stagePolicy
}

// NewEvaluator builds an Evaluator from validated pipeline configuration.
func NewEvaluator(cfg config.PipelineConfig) *Evaluator {
	return &Evaluator{policies: map[Stage]stagePolicy{
		StageDigitize: {threshold: cfg.Thresholds.Parser, maxAttempts: 0, retryable: false},
		StageParser:   {threshold: cfg.Thresholds.Parser, maxAttempts: cfg.MaxAttempts.Parser, retryable: true},
		StageRouter:   {threshold: cfg.Thresholds.Router, maxAttempts: cfg.MaxAttempts.Router, retryable: true},
		StageSolver:   {threshold: cfg.Thresholds.Solver, maxAttempts: cfg.MaxAttempts.Solver, retryable: true},
		StageVerifier: {threshold: cfg.Thresholds.Verifier, maxAttempts: cfg.MaxAttempts.Verifier, retryable: true},
	}}
}

// Decide gates one stage output. attempt counts retries already spent on
// this stage within the current pass (0 for the first invocation).
//
// Ambiguity always pauses: retrying cannot disambiguate identical input.
// Below-threshold confidence retries up to the stage's budget, except for
// stages where retrying cannot help, which pause immediately.
func (e *Evaluator) Decide(stage Stage, confidence float64, ambiguous bool, attempt int) Decision {
	if ambiguous {
		return DecisionPause
	}

	policy, known := e.policies[stage]
	if !known {
		return DecisionPause
	}
	if confidence >= policy.threshold {
		return DecisionContinue
	}
	if !policy.retryable {
		return DecisionPause
	}
	if attempt < policy.maxAttempts {
		return DecisionRetry
	}
	return DecisionPause
}

// Threshold exposes the configured gate for a stage, for pause payloads.
func (e *Evaluator) Threshold(stage Stage) float64 {
	return e.policies[stage].threshold
}
