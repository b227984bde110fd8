package stages

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

// ParseResult is the Parser stage output.
type ParseResult struct {
	// Problem is the structured problem version, text normalized and
	// lexically classified.
	Problem *problem.Problem

	// Confidence is digitization confidence times structural certainty.
	Confidence float64

	// Ambiguous is set when the input admits more than one structural
	// reading; retrying cannot resolve it.
	Ambiguous bool

	// AmbiguityReason names the conflicting readings for the pause payload.
	AmbiguityReason string
}

var (
	// ambiguousExponentRe matches a letter directly followed by a digit,
	// e.g. "x2": coefficient reversal or a lost caret.
	ambiguousExponentRe = regexp.MustCompile(`(?:^|[^a-zA-Z])([a-z])(\d)`)

	constraintRe = regexp.MustCompile(`\b([a-z])\s*(>=|<=|!=|>|<)\s*(-?\d+(?:\.\d+)?)`)

	questionVerbs = []string{
		"solve", "find", "compute", "evaluate", "calculate", "determine",
		"differentiate", "integrate", "simplify", "prove", "show",
	}
)

// Parser turns digitized input into a structured Problem.
type Parser struct {
	logger *zap.Logger
}

// NewParser builds a Parser.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse creates the first problem version from digitized input.
func (p *Parser) Parse(ctx context.Context, source problem.SourceKind, raw string, digitizationConfidence float64) (ParseResult, error) {
	text := NormalizeMathText(raw)
	prob, err := problem.New(source, raw, text, digitizationConfidence)
	if err != nil {
		return ParseResult{}, fmt.Errorf("building problem: %w", err)
	}
	return p.analyze(ctx, prob)
}

// Reparse re-runs structural analysis on an existing problem version, used
// after a human correction so the version chain is preserved.
func (p *Parser) Reparse(ctx context.Context, prob *problem.Problem) (ParseResult, error) {
	if err := prob.Validate(); err != nil {
		return ParseResult{}, err
	}
	normalized := *prob
	normalized.Text = NormalizeMathText(prob.Text)
	return p.analyze(ctx, &normalized)
}

func (p *Parser) analyze(_ context.Context, prob *problem.Problem) (ParseResult, error) {
	text := strings.ToLower(prob.Text)

	variables := extractVariables(text)
	constraints := extractConstraints(text)
	topic, _ := bestTopic(text)

	certainty := structuralCertainty(text, variables, topic)
	ambiguous, reason := detectAmbiguity(text)

	classified := prob.WithClassification(topic, "", variables, constraints)
	confidence := prob.DigitizationConfidence * certainty

	p.logger.Debug("parsed problem",
		zap.String("problem_id", classified.ID),
		zap.String("topic_hint", topic),
		zap.Float64("confidence", confidence),
		zap.Bool("ambiguous", ambiguous),
	)

	return ParseResult{
		Problem:         classified,
		Confidence:      confidence,
		Ambiguous:       ambiguous,
		AmbiguityReason: reason,
	}, nil
}

// structuralCertainty scores how cleanly the text matches a problem shape:
// a question verb, an equation or expression, and known symbols each add
// evidence on top of a floor.
func structuralCertainty(text string, variables []string, topic string) float64 {
	certainty := 0.4

	for _, verb := range questionVerbs {
		if strings.Contains(text, verb) {
			certainty += 0.2
			break
		}
	}
	if strings.ContainsAny(text, "=^") || strings.Contains(text, "derivative") ||
		strings.Contains(text, "probability") || strings.Contains(text, "determinant") {
		certainty += 0.2
	}
	if len(variables) > 0 {
		certainty += 0.1
	}
	if topic != "" {
		certainty += 0.1
	}
	if certainty > 1.0 {
		certainty = 1.0
	}
	return certainty
}

// detectAmbiguity finds inputs with more than one structural reading.
func detectAmbiguity(text string) (bool, string) {
	if m := ambiguousExponentRe.FindStringSubmatch(text); m != nil {
		return true, fmt.Sprintf(
			"%q can read as %s^%s or %s*%s; rewrite with an explicit operator",
			m[1]+m[2], m[1], m[2], m[2], m[1])
	}
	return false, ""
}

// extractVariables finds standalone letters used in math context.
func extractVariables(text string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, v := range []string{"x", "y", "z", "t", "n"} {
		if !seen[v] && variableRe(v).MatchString(text) {
			seen[v] = true
			vars = append(vars, v)
		}
	}
	return vars
}

// extractConstraints pulls side conditions like "x > 0".
func extractConstraints(text string) []string {
	matches := constraintRe.FindAllStringSubmatch(text, -1)
	constraints := make([]string, 0, len(matches))
	for _, m := range matches {
		constraints = append(constraints, fmt.Sprintf("%s %s %s", m[1], m[2], m[3]))
	}
	return constraints
}
