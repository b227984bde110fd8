package problem

import "errors"

// ErrUnknownStrategy indicates a strategy kind outside the closed set.
var ErrUnknownStrategy = errors.New("unknown strategy kind")

// StrategyKind is the closed set of solving approaches. Adding a topic means
// adding a kind here and registering a handler for it with the Solver; the
// dispatch logic itself never changes.
type StrategyKind string

const (
	// StrategyAlgebraic covers equations, polynomials and inequalities.
	StrategyAlgebraic StrategyKind = "algebraic"

	// StrategyCalculus covers limits, derivatives and integrals.
	StrategyCalculus StrategyKind = "calculus"

	// StrategyProbability covers probability and combinatorics.
	StrategyProbability StrategyKind = "probability"

	// StrategyLinearAlgebra covers matrices, determinants and vectors.
	StrategyLinearAlgebra StrategyKind = "linear_algebra"

	// StrategyFormula is the reference-lookup fallback when no specialized
	// handler applies. It leans entirely on retrieved material.
	StrategyFormula StrategyKind = "formula"
)

// AllStrategyKinds returns the closed set of strategy kinds.
func AllStrategyKinds() []StrategyKind {
	return []StrategyKind{
		StrategyAlgebraic,
		StrategyCalculus,
		StrategyProbability,
		StrategyLinearAlgebra,
		StrategyFormula,
	}
}

// Valid reports whether the kind belongs to the closed set.
func (k StrategyKind) Valid() bool {
	switch k {
	case StrategyAlgebraic, StrategyCalculus, StrategyProbability,
		StrategyLinearAlgebra, StrategyFormula:
		return true
	}
	return false
}

// Strategy is the Router's decision: which solving approach to use and with
// what hints. Immutable once assigned; a correction restarts routing and
// yields a fresh Strategy.
type Strategy struct {
	// Kind selects the solver handler.
	Kind StrategyKind `json:"kind"`

	// Hint is a free-form refinement (usually the subtopic).
	Hint string `json:"hint,omitempty"`

	// Tools lists computation aids the handler may lean on.
	Tools []string `json:"tools,omitempty"`
}

// Validate checks the strategy kind against the closed set.
func (s Strategy) Validate() error {
	if !s.Kind.Valid() {
		return ErrUnknownStrategy
	}
	return nil
}
