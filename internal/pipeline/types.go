package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/mentord/internal/problem"
	"github.com/fyrsmithlabs/mentord/internal/stages"
)

// Common pipeline errors.
var (
	ErrRunNotFound       = errors.New("run not found")
	ErrRunNotPaused      = errors.New("run is not paused")
	ErrRunActive         = errors.New("run has an active invocation")
	ErrRunTerminal       = errors.New("run already reached a terminal state")
	ErrInvalidCorrection = errors.New("invalid correction")
	ErrEmptyInput        = errors.New("input cannot be empty")
)

// State is the orchestrator's position in the pipeline.
type State string

const (
	StateParsing    State = "PARSING"
	StateRouting    State = "ROUTING"
	StateSolving    State = "SOLVING"
	StateVerifying  State = "VERIFYING"
	StateExplaining State = "EXPLAINING"
	StateDone       State = "DONE"
	StatePaused     State = "PAUSED"
	StateAbandoned  State = "ABANDONED"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAbandoned
}

// Correction target fields accepted while paused.
const (
	// FieldProblemText replaces the problem statement. Accepted at any
	// pause; the run restarts at PARSING and re-routes everything.
	FieldProblemText = "problem_text"

	// FieldStrategy overrides the routed strategy kind. Accepted when
	// paused at ROUTING.
	FieldStrategy = "strategy"

	// FieldAnswer supplies the answer directly. Accepted when paused at
	// SOLVING or VERIFYING.
	FieldAnswer = "answer"
)

// Correction is a human's answer to a PauseRequest.
type Correction struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Validate checks shape only; field applicability depends on the paused
// state and is checked by the orchestrator.
func (c Correction) Validate() error {
	switch c.Field {
	case FieldProblemText, FieldStrategy, FieldAnswer:
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidCorrection, c.Field)
	}
	if c.Value == "" {
		return fmt.Errorf("%w: value cannot be empty", ErrInvalidCorrection)
	}
	return nil
}

// PauseRequest describes why a run suspended and what a human can fix.
// It exists only while the run is paused; a correction or abandon
// discards it.
type PauseRequest struct {
	RunID string `json:"run_id"`

	// Stage and State locate the pause; resumption re-enters State.
	Stage Stage `json:"stage"`
	State State `json:"state"`

	// Fields lists the correction fields this pause accepts.
	Fields []string `json:"fields"`

	// Output is a rendering of the low-confidence stage output.
	Output string `json:"output,omitempty"`

	// Confidence is the triggering score, Threshold the gate it missed.
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`

	// Reason names the trigger (low confidence, ambiguity, budget
	// exhaustion, verification rejection).
	Reason string `json:"reason"`
}

// Result is what a Start, Resume, or Abandon call hands back.
type Result struct {
	RunID string `json:"run_id"`
	State State  `json:"state"`

	// Problem is the current problem version.
	Problem *problem.Problem `json:"problem,omitempty"`

	// Candidate and Verdict are present once solving has produced them.
	Candidate *problem.Candidate `json:"candidate,omitempty"`
	Verdict   *problem.Verdict   `json:"verdict,omitempty"`

	// Explanation is present when the run reached DONE.
	Explanation *stages.Explanation `json:"explanation,omitempty"`

	// Pause is present when the run is PAUSED.
	Pause *PauseRequest `json:"pause,omitempty"`

	// RecordID is the memory record written at a terminal state.
	RecordID string `json:"record_id,omitempty"`
}

// Snapshot is the persisted form of a run: everything needed to resume
// after an unbounded pause. It holds no open resources.
type Snapshot struct {
	RunID string `json:"run_id"`
	State State  `json:"state"`

	// PausedFrom is the state that triggered the pause, re-entered on
	// resume. Empty unless State is PAUSED.
	PausedFrom State `json:"paused_from,omitempty"`

	Problem  *problem.Problem   `json:"problem,omitempty"`
	Topic    string             `json:"topic,omitempty"`
	Subtopic string             `json:"subtopic,omitempty"`
	Strategy problem.Strategy   `json:"strategy"`

	Candidate   *problem.Candidate  `json:"candidate,omitempty"`
	Verdict     *problem.Verdict    `json:"verdict,omitempty"`
	Explanation *stages.Explanation `json:"explanation,omitempty"`

	// Source, RawText and DigitizationConfidence describe the digitized
	// input before the first successful parse produces a Problem.
	Source                 problem.SourceKind `json:"source"`
	RawText                string             `json:"raw_text"`
	DigitizationConfidence float64            `json:"digitization_confidence"`

	// Hints carries verifier rejection reasons into the next solve.
	Hints []string `json:"hints,omitempty"`

	// Attempts is the per-stage retry counter for the current pass.
	Attempts map[Stage]int `json:"attempts,omitempty"`

	// Cycles counts verifier rejections charged against the solve-verify
	// budget.
	Cycles int `json:"cycles"`

	// Corrected is set once any human correction was applied.
	Corrected bool `json:"corrected"`

	// RecordID is set once the terminal memory record was written.
	RecordID string `json:"record_id,omitempty"`

	Pause  *PauseRequest `json:"pause,omitempty"`
	Events []TraceEvent  `json:"events"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
