package problem

import "errors"

// Errors for candidate and verdict validation.
var (
	ErrEmptyAnswer = errors.New("candidate answer cannot be empty")
	ErrNoSteps     = errors.New("candidate must have at least one step")
)

// Citation points at a retrieved reference snippet a step relies on.
type Citation struct {
	// SourceID identifies the reference document.
	SourceID string `json:"source_id"`

	// Relevance is the retrieval score of the cited snippet.
	Relevance float64 `json:"relevance"`

	// Excerpt is a short quote from the snippet.
	Excerpt string `json:"excerpt,omitempty"`
}

// Step is one derivation step of a candidate solution.
type Step struct {
	// Statement is what the step asserts or computes.
	Statement string `json:"statement"`

	// Justification is why the step is valid.
	Justification string `json:"justification,omitempty"`

	// Citation references retrieved material backing the step, if any.
	Citation *Citation `json:"citation,omitempty"`
}

// Candidate is a Solver-produced solution awaiting verification.
type Candidate struct {
	// Answer is the final answer in normalized form.
	Answer string `json:"answer"`

	// Steps is the ordered derivation.
	Steps []Step `json:"steps"`

	// Strategy is the approach that produced this candidate.
	Strategy Strategy `json:"strategy"`

	// Confidence is the solver's calibrated self-estimate in [0,1]. It never
	// exceeds the relevance of any citation the candidate directly relies on
	// for a non-derivable fact.
	Confidence float64 `json:"confidence"`

	// Notes carries solver observations (uncertain steps, assumptions).
	Notes string `json:"notes,omitempty"`
}

// Validate checks structural invariants of a candidate.
func (c *Candidate) Validate() error {
	if c.Answer == "" {
		return ErrEmptyAnswer
	}
	if len(c.Steps) == 0 {
		return ErrNoSteps
	}
	if c.Confidence < 0.0 || c.Confidence > 1.0 {
		return ErrInvalidConfidence
	}
	return c.Strategy.Validate()
}

// StepFlag marks a derivation step the Verifier objected to.
type StepFlag struct {
	// Index is the position of the flagged step in Candidate.Steps.
	Index int `json:"index"`

	// Reason explains the objection.
	Reason string `json:"reason"`
}

// Verdict is the Verifier's independent assessment of a candidate.
//
// When Accept is false, Confidence reflects how certain the rejection is,
// not how good the rejected candidate was. A high-confidence rejection means
// the candidate is demonstrably wrong; a low-confidence rejection means the
// verifier is suspicious but could not prove anything.
type Verdict struct {
	// Accept is true when the candidate checks out.
	Accept bool `json:"accept"`

	// Confidence is in [0,1]; see type comment for rejection semantics.
	Confidence float64 `json:"confidence"`

	// Flags lists objected steps with reasons.
	Flags []StepFlag `json:"flags,omitempty"`

	// CheckedAnswer is the answer the verifier independently derived, when
	// it managed to. Useful in pause payloads and explanations.
	CheckedAnswer string `json:"checked_answer,omitempty"`
}

// Validate checks the verdict's confidence bound.
func (v *Verdict) Validate() error {
	if v.Confidence < 0.0 || v.Confidence > 1.0 {
		return ErrInvalidConfidence
	}
	return nil
}

// Hints renders rejection flags as solver hints for a re-solve cycle.
func (v *Verdict) Hints() []string {
	if v.Accept || len(v.Flags) == 0 {
		return nil
	}
	hints := make([]string, 0, len(v.Flags))
	for _, f := range v.Flags {
		hints = append(hints, f.Reason)
	}
	return hints
}
