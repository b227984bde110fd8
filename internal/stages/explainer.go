package stages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

// NarratedStep is one step of the student-facing explanation.
type NarratedStep struct {
	Number   int               `json:"number"`
	Action   string            `json:"action"`
	Why      string            `json:"why,omitempty"`
	Citation *problem.Citation `json:"citation,omitempty"`
}

// Explanation is the Explainer stage output: an ordered narrative over the
// accepted candidate's derivation.
type Explanation struct {
	Title       string         `json:"title"`
	Summary     string         `json:"summary"`
	Steps       []NarratedStep `json:"steps"`
	Answer      string         `json:"answer"`
	KeyConcepts []string       `json:"key_concepts,omitempty"`
}

// Markdown renders the explanation for display.
func (e Explanation) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n%s\n\n", e.Title, e.Summary)
	for _, step := range e.Steps {
		fmt.Fprintf(&b, "%d. %s", step.Number, step.Action)
		if step.Why != "" {
			fmt.Fprintf(&b, "\n   _%s_", step.Why)
		}
		if step.Citation != nil {
			fmt.Fprintf(&b, "\n   (see %s)", step.Citation.SourceID)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n**Answer:** %s\n", e.Answer)
	if len(e.KeyConcepts) > 0 {
		fmt.Fprintf(&b, "\n**Key concepts:** %s\n", strings.Join(e.KeyConcepts, ", "))
	}
	return b.String()
}

// Explainer expands an accepted candidate into a narrative. It runs after
// acceptance only and is never confidence-gated; when it cannot do better
// it degrades to restating the raw steps.
type Explainer struct {
	logger *zap.Logger
}

// NewExplainer builds an Explainer.
func NewExplainer(logger *zap.Logger) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explainer{logger: logger}
}

// Explain builds the narrative. It never returns an error: correctness
// already holds once the candidate is accepted, so the worst case is a
// minimal rendering.
func (e *Explainer) Explain(_ context.Context, prob *problem.Problem, candidate problem.Candidate, verdict problem.Verdict) Explanation {
	title := "Solution"
	if prob.Topic != "" {
		title = "Solution: " + strings.ReplaceAll(prob.Topic, "_", " ")
		if prob.Subtopic != "" {
			title += " (" + strings.ReplaceAll(prob.Subtopic, "_", " ") + ")"
		}
	}

	summary := fmt.Sprintf("The answer is %s.", candidate.Answer)
	if verdict.CheckedAnswer != "" && verdict.CheckedAnswer != candidate.Answer {
		summary += fmt.Sprintf(" An independent check arrived at %s.", verdict.CheckedAnswer)
	} else if verdict.CheckedAnswer != "" {
		summary += " An independent check confirmed it."
	}

	steps := make([]NarratedStep, 0, len(candidate.Steps))
	for i, step := range candidate.Steps {
		steps = append(steps, NarratedStep{
			Number:   i + 1,
			Action:   step.Statement,
			Why:      step.Justification,
			Citation: step.Citation,
		})
	}
	if len(steps) == 0 {
		steps = append(steps, NarratedStep{Number: 1, Action: candidate.Answer})
	}

	e.logger.Debug("explained solution",
		zap.String("problem_id", prob.ID),
		zap.Int("steps", len(steps)),
	)

	return Explanation{
		Title:       title,
		Summary:     summary,
		Steps:       steps,
		Answer:      candidate.Answer,
		KeyConcepts: candidate.Strategy.Tools,
	}
}
