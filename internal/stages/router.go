package stages

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

// Complexity grades a problem for routing confidence and retrieval depth.
type Complexity string

const (
	ComplexityBasic        Complexity = "basic"
	ComplexityIntermediate Complexity = "intermediate"
	ComplexityAdvanced     Complexity = "advanced"
)

// RouteResult is the Router stage output.
type RouteResult struct {
	Strategy   problem.Strategy
	Topic      string
	Subtopic   string
	Complexity Complexity

	// Confidence is the normalized classification margin: how far the top
	// topic score is ahead of the runner-up.
	Confidence float64
}

// topicKeywords drive the lexical classifier. Scores are occurrence counts.
var topicKeywords = map[string][]string{
	"algebra": {
		"solve", "equation", "quadratic", "polynomial", "roots", "factor",
		"inequality", "logarithm", "progression", "sequence", "linear equation",
	},
	"probability": {
		"probability", "dice", "coin", "cards", "choose", "combination",
		"combinations", "permutation", "permutations", "arrange", "random",
		"distribution", "factorial",
	},
	"calculus": {
		"derivative", "differentiate", "integral", "integrate", "limit",
		"maximum", "minimum", "rate of change", "tangent", "slope",
	},
	"linear_algebra": {
		"matrix", "matrices", "determinant", "vector", "eigenvalue",
		"dot product", "cross product", "transpose",
	},
}

var subtopicKeywords = map[string]map[string][]string{
	"algebra": {
		"quadratic_equations": {"quadratic", "x^2", "discriminant"},
		"polynomials":         {"polynomial", "cubic", "degree"},
		"inequalities":        {"inequality", "greater", "less than"},
		"progressions":        {"progression", "sequence", "arithmetic", "geometric"},
		"logarithms":          {"logarithm", "log", "ln"},
	},
	"probability": {
		"permutations_combinations": {"choose", "combination", "permutation", "arrange", "factorial"},
		"basic_probability":         {"dice", "coin", "cards", "probability"},
		"distributions":             {"distribution", "binomial", "normal"},
	},
	"calculus": {
		"derivatives": {"derivative", "differentiate", "rate of change", "tangent", "slope"},
		"integration": {"integral", "integrate", "area under"},
		"limits":      {"limit", "approaches", "tends to"},
		"applications": {"maximum", "minimum", "optimize", "optimization"},
	},
	"linear_algebra": {
		"determinants": {"determinant"},
		"matrices":     {"matrix", "matrices", "transpose"},
		"vectors":      {"vector", "dot product", "cross product"},
	},
}

// topicStrategies maps each topic onto its closed strategy variant.
var topicStrategies = map[string]problem.StrategyKind{
	"algebra":        problem.StrategyAlgebraic,
	"probability":    problem.StrategyProbability,
	"calculus":       problem.StrategyCalculus,
	"linear_algebra": problem.StrategyLinearAlgebra,
}

// strategyTools lists the computation aids each strategy leans on.
var strategyTools = map[problem.StrategyKind][]string{
	problem.StrategyAlgebraic:     {"quadratic_formula", "factoring", "substitution"},
	problem.StrategyCalculus:      {"power_rule", "numeric_differentiation"},
	problem.StrategyProbability:   {"factorial", "combinations", "permutations"},
	problem.StrategyLinearAlgebra: {"determinant_expansion", "row_reduction"},
	problem.StrategyFormula:       {"formula_lookup"},
}

var advancedKeywords = []string{
	"prove", "derive", "show that", "if and only if", "eigenvalue",
	"taylor series", "partial derivative", "triple integral",
}

var intermediateKeywords = []string{
	"implicit", "parametric", "integration by parts", "bayes",
	"conditional probability", "system of equations", "chain rule",
}

// Router classifies a problem and selects a solving strategy.
type Router struct {
	logger *zap.Logger
}

// NewRouter builds a Router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{logger: logger}
}

// Route selects topic, subtopic and strategy for a parsed problem.
// It never signals ambiguity; a thin classification margin simply yields
// low confidence.
func (r *Router) Route(_ context.Context, prob *problem.Problem) (RouteResult, error) {
	text := strings.ToLower(prob.Text)

	topic, margin := bestTopic(text)
	subtopic := bestSubtopic(text, topic)
	complexity := assessComplexity(text)

	kind, ok := topicStrategies[topic]
	if !ok {
		kind = problem.StrategyFormula
	}

	confidence := 0.3
	if topic != "" {
		confidence = 0.5 + 0.5*margin
	}
	// Harder problems stretch the lexical classifier thinner.
	if complexity == ComplexityAdvanced {
		confidence -= 0.1
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	result := RouteResult{
		Strategy: problem.Strategy{
			Kind:  kind,
			Hint:  subtopic,
			Tools: strategyTools[kind],
		},
		Topic:      topic,
		Subtopic:   subtopic,
		Complexity: complexity,
		Confidence: confidence,
	}

	r.logger.Debug("routed problem",
		zap.String("problem_id", prob.ID),
		zap.String("topic", topic),
		zap.String("subtopic", subtopic),
		zap.String("strategy", string(kind)),
		zap.Float64("confidence", confidence),
	)
	return result, nil
}

// bestTopic scores every topic and returns the winner with the normalized
// top-minus-runner-up margin. An empty topic means no keyword matched.
func bestTopic(text string) (string, float64) {
	best, runnerUp := 0, 0
	bestName := ""
	// Fixed iteration order keeps classification deterministic on ties.
	for _, topic := range []string{"algebra", "calculus", "linear_algebra", "probability"} {
		score := 0
		for _, kw := range topicKeywords[topic] {
			if strings.Contains(text, kw) {
				score++
			}
		}
		switch {
		case score > best:
			runnerUp = best
			best = score
			bestName = topic
		case score > runnerUp:
			runnerUp = score
		}
	}
	if best == 0 {
		return "", 0
	}
	return bestName, float64(best-runnerUp) / float64(best)
}

// bestSubtopic refines the topic with its own keyword table.
func bestSubtopic(text, topic string) string {
	table, ok := subtopicKeywords[topic]
	if !ok {
		return ""
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	best := 0
	bestName := ""
	for _, subtopic := range names {
		score := 0
		for _, kw := range table[subtopic] {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > best {
			best = score
			bestName = subtopic
		}
	}
	return bestName
}

// assessComplexity grades the problem from lexical cues.
func assessComplexity(text string) Complexity {
	for _, kw := range advancedKeywords {
		if strings.Contains(text, kw) {
			return ComplexityAdvanced
		}
	}
	for _, kw := range intermediateKeywords {
		if strings.Contains(text, kw) {
			return ComplexityIntermediate
		}
	}
	return ComplexityBasic
}
