package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// EventKind classifies trace events.
type EventKind string

const (
	// EventStage records one stage invocation and the decision it drew.
	EventStage EventKind = "stage"

	// EventPause records the transition into PAUSED.
	EventPause EventKind = "pause"

	// EventResume records a human correction resuming the run.
	EventResume EventKind = "resume"

	// EventAbandon records the terminal abandon transition.
	EventAbandon EventKind = "abandon"
)

// TraceEvent is one entry of the run's audit log.
type TraceEvent struct {
	Seq          int       `json:"seq"`
	Kind         EventKind `json:"kind"`
	Stage        Stage     `json:"stage,omitempty"`
	State        State     `json:"state"`
	Attempt      int       `json:"attempt,omitempty"`
	InputDigest  string    `json:"input_digest,omitempty"`
	OutputDigest string    `json:"output_digest,omitempty"`
	Confidence   float64   `json:"confidence"`
	Decision     Decision  `json:"decision,omitempty"`
	Note         string    `json:"note,omitempty"`
	At           time.Time `json:"at"`
}

// Trace is the append-only ordered log of one run. The orchestrator holds
// the only mutable reference; everything handed out is a copy.
type Trace struct {
	events []TraceEvent
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// RestoreTrace rebuilds a trace from persisted events.
func RestoreTrace(events []TraceEvent) *Trace {
	t := &Trace{events: make([]TraceEvent, len(events))}
	copy(t.events, events)
	return t
}

func (t *Trace) append(ev TraceEvent) {
	ev.Seq = len(t.events) + 1
	ev.At = time.Now()
	t.events = append(t.events, ev)
}

// Stage appends a stage invocation event.
func (t *Trace) Stage(stage Stage, state State, attempt int, input, output string, confidence float64, decision Decision, note string) {
	t.append(TraceEvent{
		Kind:         EventStage,
		Stage:        stage,
		State:        state,
		Attempt:      attempt,
		InputDigest:  digest(input),
		OutputDigest: digest(output),
		Confidence:   confidence,
		Decision:     decision,
		Note:         note,
	})
}

// Pause appends a pause event.
func (t *Trace) Pause(stage Stage, state State, confidence float64, note string) {
	t.append(TraceEvent{Kind: EventPause, Stage: stage, State: state, Confidence: confidence, Note: note})
}

// Resume appends a resume event carrying the corrected field.
func (t *Trace) Resume(state State, note string) {
	t.append(TraceEvent{Kind: EventResume, State: state, Note: note})
}

// Abandon appends the terminal abandon event.
func (t *Trace) Abandon(state State, note string) {
	t.append(TraceEvent{Kind: EventAbandon, State: state, Note: note})
}

// Len returns the number of events.
func (t *Trace) Len() int {
	return len(t.events)
}

// Events returns a copy of the log.
func (t *Trace) Events() []TraceEvent {
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Decisions returns the ordered decision sequence of the stage events,
// for replay checks against the trigger evaluator.
func (t *Trace) Decisions() []Decision {
	out := make([]Decision, 0, len(t.events))
	for _, ev := range t.events {
		if ev.Kind == EventStage {
			out = append(out, ev.Decision)
		}
	}
	return out
}

// Summary renders the trace as compact one-per-event lines.
func (t *Trace) Summary() string {
	var b strings.Builder
	for _, ev := range t.events {
		switch ev.Kind {
		case EventStage:
			fmt.Fprintf(&b, "%d. %s [%s] attempt=%d confidence=%.2f -> %s",
				ev.Seq, ev.Stage, ev.State, ev.Attempt, ev.Confidence, ev.Decision)
		default:
			fmt.Fprintf(&b, "%d. %s [%s]", ev.Seq, ev.Kind, ev.State)
		}
		if ev.Note != "" {
			fmt.Fprintf(&b, " (%s)", ev.Note)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// digest gives a short stable fingerprint of stage inputs and outputs, so
// the trace can prove what each invocation saw without storing payloads.
func digest(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
