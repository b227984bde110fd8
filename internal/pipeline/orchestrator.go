package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/config"
	"github.com/fyrsmithlabs/mentord/internal/digitize"
	"github.com/fyrsmithlabs/mentord/internal/logging"
	"github.com/fyrsmithlabs/mentord/internal/memory"
	"github.com/fyrsmithlabs/mentord/internal/problem"
	"github.com/fyrsmithlabs/mentord/internal/stages"
)

var pipelineTracer = otel.Tracer("mentord.pipeline")

// Stage contracts the orchestrator drives. The concrete implementations
// live in internal/stages; each is stateless per invocation.
type (
	// ParserStage turns digitized input into a structured problem.
	ParserStage interface {
		Parse(ctx context.Context, source problem.SourceKind, raw string, digitizationConfidence float64) (stages.ParseResult, error)
		Reparse(ctx context.Context, prob *problem.Problem) (stages.ParseResult, error)
	}

	// RouterStage classifies a problem and selects a strategy.
	RouterStage interface {
		Route(ctx context.Context, prob *problem.Problem) (stages.RouteResult, error)
	}

	// SolverStage produces a candidate solution.
	SolverStage interface {
		Solve(ctx context.Context, in stages.SolveInput) (problem.Candidate, error)
	}

	// VerifierStage independently checks a candidate.
	VerifierStage interface {
		Verify(ctx context.Context, prob *problem.Problem, candidate problem.Candidate) (problem.Verdict, error)
	}

	// ExplainerStage narrates an accepted candidate.
	ExplainerStage interface {
		Explain(ctx context.Context, prob *problem.Problem, candidate problem.Candidate, verdict problem.Verdict) stages.Explanation
	}
)

// Deps wires the orchestrator's stages and collaborators. Parser, Router,
// Solver, Verifier, Explainer and Runs are required. Digitizer, Patterns
// and Memory may be nil: a missing digitizer degrades to a conservative
// confidence, a missing memory store skips record persistence with a
// warning.
type Deps struct {
	Digitizer digitize.Digitizer
	Patterns  digitize.PatternStore
	Parser    ParserStage
	Router    RouterStage
	Solver    SolverStage
	Verifier  VerifierStage
	Explainer ExplainerStage
	Memory    memory.Store
	Runs      RunStore
	Config    config.PipelineConfig
	Logger    *logging.Logger
}

// Orchestrator drives runs through the pipeline state machine. A run is
// never re-entered concurrently: Start, Resume and Abandon hold the run's
// activity slot for the duration of the call, and no lock or connection is
// held while a run sits in PAUSED.
type Orchestrator struct {
	deps    Deps
	trigger *Evaluator
	logger  *logging.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewOrchestrator validates the wiring and builds an Orchestrator.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Parser == nil || deps.Router == nil || deps.Solver == nil ||
		deps.Verifier == nil || deps.Explainer == nil {
		return nil, errors.New("all five stages are required")
	}
	if deps.Runs == nil {
		return nil, errors.New("run store is required")
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}

	return &Orchestrator{
		deps:    deps,
		trigger: NewEvaluator(deps.Config),
		logger:  deps.Logger,
		active:  make(map[string]struct{}),
	}, nil
}

// run is the in-flight working form of a snapshot.
type run struct {
	snap  Snapshot
	trace *Trace
}

func (r *run) attempt(stage Stage) int {
	return r.snap.Attempts[stage]
}

// Start creates a run for raw input and drives it until it terminates or
// pauses.
func (o *Orchestrator) Start(ctx context.Context, source problem.SourceKind, rawInput string) (Result, error) {
	if strings.TrimSpace(rawInput) == "" {
		return Result{}, ErrEmptyInput
	}
	if !source.Valid() {
		return Result{}, problem.ErrInvalidSource
	}

	r := &run{
		snap: Snapshot{
			RunID:     uuid.New().String(),
			State:     StateParsing,
			Source:    source,
			Attempts:  make(map[Stage]int),
			CreatedAt: time.Now(),
		},
		trace: NewTrace(),
	}
	o.acquire(r.snap.RunID)
	defer o.release(r.snap.RunID)
	RunsStarted.Inc()
	ctx = logging.ContextWithRun(ctx, r.snap.RunID, "")

	if paused := o.digitizeInput(ctx, r, rawInput); paused {
		return o.finish(ctx, r)
	}
	return o.drive(ctx, r)
}

// digitizeInput runs the digitizer and gates its confidence. Returns true
// when the run paused on unreliable input.
func (o *Orchestrator) digitizeInput(ctx context.Context, r *run, rawInput string) bool {
	ctx = logging.ContextWithRun(ctx, r.snap.RunID, string(StageDigitize))
	text, conf := rawInput, 1.0
	note := ""
	if o.deps.Digitizer != nil {
		res, err := o.deps.Digitizer.Digitize(ctx, r.snap.Source, rawInput)
		if err != nil {
			// Degraded input, not a failed run: proceed on the raw text
			// with a conservative confidence and let the gate decide.
			conf = 0.5
			note = "digitizer unavailable: " + err.Error()
			o.logger.Warn(ctx, "digitizer failed, proceeding on raw input", zap.Error(err))
		} else {
			text, conf = res.Text, res.Confidence
			if res.Modified {
				note = "correction patterns applied"
			}
		}
	}
	r.snap.RawText = text
	r.snap.DigitizationConfidence = conf

	decision := o.trigger.Decide(StageDigitize, conf, false, 0)
	StageDecisions.WithLabelValues(string(StageDigitize), string(decision)).Inc()
	r.trace.Stage(StageDigitize, StateParsing, 0, rawInput, text, conf, decision, note)

	if decision == DecisionPause {
		o.pause(ctx, r, StageDigitize, StateParsing, conf,
			"digitization confidence below threshold", []string{FieldProblemText}, text)
		return true
	}
	return false
}

// Resume applies a correction to a paused run and drives it onward. The
// corrected stage's attempt counter starts over; a problem text correction
// restarts at PARSING and re-routes everything downstream.
func (o *Orchestrator) Resume(ctx context.Context, runID string, corr Correction) (Result, error) {
	if err := corr.Validate(); err != nil {
		return Result{}, err
	}
	if !o.acquire(runID) {
		return Result{}, ErrRunActive
	}
	defer o.release(runID)

	r, err := o.load(ctx, runID)
	if err != nil {
		return Result{}, err
	}
	if r.snap.State.Terminal() {
		return Result{}, ErrRunTerminal
	}
	if r.snap.State != StatePaused {
		return Result{}, ErrRunNotPaused
	}

	ctx = logging.ContextWithRun(ctx, runID, "")
	if err := o.applyCorrection(ctx, r, corr); err != nil {
		return Result{}, err
	}
	return o.drive(ctx, r)
}

func (o *Orchestrator) applyCorrection(ctx context.Context, r *run, corr Correction) error {
	switch corr.Field {
	case FieldProblemText:
		o.learnPattern(ctx, r, corr.Value)
		if r.snap.Problem != nil {
			next, err := r.snap.Problem.WithCorrection(corr.Value, problem.CorrectionUserEdit)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrInvalidCorrection, err)
			}
			r.snap.Problem = next
		} else {
			r.snap.RawText = corr.Value
			r.snap.DigitizationConfidence = 1.0
		}
		// Corrected text invalidates everything downstream.
		r.snap.State = StateParsing
		r.snap.Strategy = problem.Strategy{}
		r.snap.Topic, r.snap.Subtopic = "", ""
		r.snap.Candidate, r.snap.Verdict = nil, nil
		r.snap.Hints = nil
		r.snap.Cycles = 0
		r.snap.Attempts = make(map[Stage]int)

	case FieldStrategy:
		if r.snap.PausedFrom != StateRouting {
			return fmt.Errorf("%w: strategy can only be corrected while paused at ROUTING", ErrInvalidCorrection)
		}
		strategy := problem.Strategy{Kind: problem.StrategyKind(corr.Value)}
		if err := strategy.Validate(); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidCorrection, err)
		}
		// The human supplied the router's output; solving starts directly.
		r.snap.Strategy = strategy
		r.snap.State = StateSolving
		r.snap.Attempts[StageRouter] = 0

	case FieldAnswer:
		if r.snap.PausedFrom != StateSolving && r.snap.PausedFrom != StateVerifying {
			return fmt.Errorf("%w: answer can only be corrected while paused at SOLVING or VERIFYING", ErrInvalidCorrection)
		}
		// The supplied answer still goes through independent verification.
		r.snap.Candidate = &problem.Candidate{
			Answer:     corr.Value,
			Steps:      []problem.Step{{Statement: "answer supplied by human correction"}},
			Strategy:   r.snap.Strategy,
			Confidence: 1.0,
		}
		r.snap.State = StateVerifying
		r.snap.Hints = nil
		r.snap.Cycles = 0
		r.snap.Attempts[StageSolver] = 0
		r.snap.Attempts[StageVerifier] = 0

	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidCorrection, corr.Field)
	}

	r.snap.Corrected = true
	r.snap.Pause = nil
	r.snap.PausedFrom = ""
	r.trace.Resume(r.snap.State, "correction applied to "+corr.Field)
	return nil
}

// learnPattern records the human's text fix as a reusable digitizer
// substitution.
func (o *Orchestrator) learnPattern(ctx context.Context, r *run, corrected string) {
	if o.deps.Patterns == nil {
		return
	}
	original := r.snap.RawText
	if r.snap.Problem != nil {
		original = r.snap.Problem.Text
	}
	if original == corrected {
		return
	}
	if err := o.deps.Patterns.Record(ctx, r.snap.Source, original, corrected); err != nil {
		o.logger.Warn(ctx, "failed to record correction pattern", zap.Error(err))
	}
}

// Abandon terminates a paused run. The pause request is discarded and an
// "abandoned" memory record is written.
func (o *Orchestrator) Abandon(ctx context.Context, runID string) (Result, error) {
	if !o.acquire(runID) {
		return Result{}, ErrRunActive
	}
	defer o.release(runID)

	r, err := o.load(ctx, runID)
	if err != nil {
		return Result{}, err
	}
	if r.snap.State.Terminal() {
		return Result{}, ErrRunTerminal
	}
	if r.snap.State != StatePaused {
		return Result{}, ErrRunNotPaused
	}

	o.abandonRun(logging.ContextWithRun(ctx, runID, ""), r, "abandoned by user")
	return o.finish(ctx, r)
}

// Get returns the persisted snapshot of a run.
func (o *Orchestrator) Get(ctx context.Context, runID string) (Snapshot, error) {
	return o.deps.Runs.Get(ctx, runID)
}

// TraceSummary renders the run's audit log.
func (o *Orchestrator) TraceSummary(ctx context.Context, runID string) (string, error) {
	snap, err := o.deps.Runs.Get(ctx, runID)
	if err != nil {
		return "", err
	}
	return RestoreTrace(snap.Events).Summary(), nil
}

// drive executes states until the run pauses or terminates.
func (o *Orchestrator) drive(ctx context.Context, r *run) (Result, error) {
	for r.snap.State != StatePaused && !r.snap.State.Terminal() {
		if ctx.Err() != nil {
			// External cancellation is a safety stop from any active state.
			o.abandonRun(ctx, r, "cancelled: "+ctx.Err().Error())
			break
		}
		switch r.snap.State {
		case StateParsing:
			o.stepParse(ctx, r)
		case StateRouting:
			o.stepRoute(ctx, r)
		case StateSolving:
			o.stepSolve(ctx, r)
		case StateVerifying:
			o.stepVerify(ctx, r)
		case StateExplaining:
			o.stepExplain(ctx, r)
		default:
			return Result{}, fmt.Errorf("unexpected state %s", r.snap.State)
		}
	}
	return o.finish(ctx, r)
}

func (o *Orchestrator) stepParse(ctx context.Context, r *run) {
	attempt := r.attempt(StageParser)
	ctx, end := o.startSpan(ctx, r, StageParser, attempt)

	var (
		pr  stages.ParseResult
		err error
	)
	if r.snap.Problem != nil {
		pr, err = o.deps.Parser.Reparse(ctx, r.snap.Problem)
	} else {
		pr, err = o.deps.Parser.Parse(ctx, r.snap.Source, r.snap.RawText, r.snap.DigitizationConfidence)
	}

	conf, ambiguous, note, output := 0.0, false, "", ""
	if err != nil {
		note = "parse failed: " + err.Error()
	} else {
		conf, ambiguous, note, output = pr.Confidence, pr.Ambiguous, pr.AmbiguityReason, pr.Problem.Text
	}

	decision := o.trigger.Decide(StageParser, conf, ambiguous, attempt)
	if err != nil && decision == DecisionContinue {
		decision = DecisionPause
	}
	o.record(r, StageParser, StateParsing, attempt, r.snap.RawText, output, conf, decision, note)
	end(conf, decision, err)

	switch decision {
	case DecisionContinue:
		r.snap.Problem = pr.Problem
		r.snap.State = StateRouting
	case DecisionRetry:
		r.snap.Attempts[StageParser]++
	case DecisionPause:
		reason := "parser confidence below threshold"
		if ambiguous {
			reason = "ambiguous input: " + note
		} else if err != nil {
			reason = note
		}
		o.pause(ctx, r, StageParser, StateParsing, conf, reason, []string{FieldProblemText}, output)
	}
}

func (o *Orchestrator) stepRoute(ctx context.Context, r *run) {
	attempt := r.attempt(StageRouter)
	ctx, end := o.startSpan(ctx, r, StageRouter, attempt)

	rr, err := o.deps.Router.Route(ctx, r.snap.Problem)
	conf, note := rr.Confidence, ""
	if err != nil {
		conf, note = 0, "routing failed: "+err.Error()
	}

	decision := o.trigger.Decide(StageRouter, conf, false, attempt)
	if err != nil && decision == DecisionContinue {
		decision = DecisionPause
	}
	o.record(r, StageRouter, StateRouting, attempt, r.snap.Problem.Text, string(rr.Strategy.Kind), conf, decision, note)
	end(conf, decision, err)

	switch decision {
	case DecisionContinue:
		r.snap.Strategy = rr.Strategy
		r.snap.Topic, r.snap.Subtopic = rr.Topic, rr.Subtopic
		r.snap.State = StateSolving
	case DecisionRetry:
		r.snap.Attempts[StageRouter]++
	case DecisionPause:
		o.pause(ctx, r, StageRouter, StateRouting, conf,
			"routing confidence below threshold", []string{FieldStrategy, FieldProblemText},
			string(rr.Strategy.Kind))
	}
}

func (o *Orchestrator) stepSolve(ctx context.Context, r *run) {
	attempt := r.attempt(StageSolver)
	ctx, end := o.startSpan(ctx, r, StageSolver, attempt)

	cand, err := o.deps.Solver.Solve(ctx, stages.SolveInput{
		Problem:  r.snap.Problem,
		Strategy: r.snap.Strategy,
		Hints:    r.snap.Hints,
	})
	conf, note := cand.Confidence, cand.Notes
	if err != nil {
		conf, note = 0, "solve failed: "+err.Error()
	}

	decision := o.trigger.Decide(StageSolver, conf, false, attempt)
	if err != nil && decision == DecisionContinue {
		decision = DecisionPause
	}
	o.record(r, StageSolver, StateSolving, attempt, r.snap.Problem.Text, cand.Answer, conf, decision, note)
	end(conf, decision, err)

	switch decision {
	case DecisionContinue:
		r.snap.Candidate = &cand
		r.snap.State = StateVerifying
	case DecisionRetry:
		r.snap.Attempts[StageSolver]++
	case DecisionPause:
		o.pause(ctx, r, StageSolver, StateSolving, conf,
			"solver confidence below threshold", []string{FieldAnswer, FieldProblemText}, cand.Answer)
	}
}

func (o *Orchestrator) stepVerify(ctx context.Context, r *run) {
	attempt := r.attempt(StageVerifier)
	ctx, end := o.startSpan(ctx, r, StageVerifier, attempt)

	verdict, err := o.deps.Verifier.Verify(ctx, r.snap.Problem, *r.snap.Candidate)
	if err != nil {
		// An unverifiable candidate is suspicion, not proof.
		verdict = problem.Verdict{Accept: false, Confidence: 0}
	}
	r.snap.Verdict = &verdict

	if verdict.Accept {
		decision := o.trigger.Decide(StageVerifier, verdict.Confidence, false, attempt)
		o.record(r, StageVerifier, StateVerifying, attempt,
			r.snap.Candidate.Answer, verdict.CheckedAnswer, verdict.Confidence, decision, "accepted")
		end(verdict.Confidence, decision, err)

		switch decision {
		case DecisionContinue:
			r.snap.State = StateExplaining
		case DecisionRetry:
			r.snap.Attempts[StageVerifier]++
		case DecisionPause:
			o.pause(ctx, r, StageVerifier, StateVerifying, verdict.Confidence,
				"verification confidence below threshold", []string{FieldAnswer, FieldProblemText},
				r.snap.Candidate.Answer)
		}
		return
	}

	// Rejection. A confident rejection re-solves with hints while the
	// solve-verify budget lasts; an uncertain one goes to a human.
	r.snap.Cycles++
	SolveVerifyCycles.Observe(float64(r.snap.Cycles))
	confident := verdict.Confidence >= o.trigger.Threshold(StageVerifier)

	if confident && r.snap.Cycles < o.deps.Config.SolveVerifyCycles {
		decision := DecisionRetry
		o.record(r, StageVerifier, StateVerifying, attempt,
			r.snap.Candidate.Answer, verdict.CheckedAnswer, verdict.Confidence, decision,
			"rejected, re-solving")
		end(verdict.Confidence, decision, err)

		r.snap.Hints = verdict.Hints()
		if len(r.snap.Hints) == 0 {
			r.snap.Hints = []string{"previous candidate rejected"}
		}
		r.snap.Attempts[StageSolver] = 0
		r.snap.Attempts[StageVerifier] = 0
		r.snap.State = StateSolving
		return
	}

	reason := "rejection unproven, needs a human look"
	if confident {
		reason = "solve-verify budget exhausted"
	}
	o.record(r, StageVerifier, StateVerifying, attempt,
		r.snap.Candidate.Answer, verdict.CheckedAnswer, verdict.Confidence, DecisionPause, "rejected")
	end(verdict.Confidence, DecisionPause, err)
	o.pause(ctx, r, StageVerifier, StateVerifying, verdict.Confidence, reason,
		[]string{FieldAnswer, FieldProblemText}, r.snap.Candidate.Answer)
}

func (o *Orchestrator) stepExplain(ctx context.Context, r *run) {
	ctx, end := o.startSpan(ctx, r, StageExplainer, 0)

	// No gate here: the candidate is already accepted and a thin narrative
	// is still a valid result.
	exp := o.deps.Explainer.Explain(ctx, r.snap.Problem, *r.snap.Candidate, *r.snap.Verdict)
	r.snap.Explanation = &exp
	o.record(r, StageExplainer, StateExplaining, 0,
		r.snap.Candidate.Answer, exp.Summary, r.snap.Verdict.Confidence, DecisionContinue, "")
	end(r.snap.Verdict.Confidence, DecisionContinue, nil)

	r.snap.State = StateDone
	o.writeRecord(ctx, r)
}

// pause suspends the run with a request describing what a human can fix.
func (o *Orchestrator) pause(ctx context.Context, r *run, stage Stage, from State, conf float64, reason string, fields []string, output string) {
	r.snap.PausedFrom = from
	r.snap.State = StatePaused
	r.snap.Pause = &PauseRequest{
		RunID:      r.snap.RunID,
		Stage:      stage,
		State:      from,
		Fields:     fields,
		Output:     output,
		Confidence: conf,
		Threshold:  o.trigger.Threshold(stage),
		Reason:     reason,
	}
	r.trace.Pause(stage, from, conf, reason)
	Pauses.WithLabelValues(string(stage)).Inc()

	o.logger.Info(ctx, "run paused for human input",
		zap.Float64("confidence", conf),
		zap.String("reason", reason),
	)
}

// abandonRun moves the run to ABANDONED, discarding any pause request.
func (o *Orchestrator) abandonRun(ctx context.Context, r *run, note string) {
	from := r.snap.State
	if r.snap.State == StatePaused && r.snap.PausedFrom != "" {
		from = r.snap.PausedFrom
	}
	r.snap.Pause = nil
	r.snap.PausedFrom = ""
	r.snap.State = StateAbandoned
	r.trace.Abandon(from, note)
	o.writeRecord(ctx, r)

	o.logger.Info(ctx, "run abandoned",
		zap.String("from", string(from)),
		zap.String("note", note),
	)
}

// writeRecord persists the run's single terminal memory record. A failing
// memory store loses the record but never fails the run.
func (o *Orchestrator) writeRecord(ctx context.Context, r *run) {
	if r.snap.RecordID != "" {
		return
	}

	quality := memory.QualityAccepted
	switch {
	case r.snap.State == StateAbandoned:
		quality = memory.QualityAbandoned
	case r.snap.Corrected:
		quality = memory.QualityCorrected
	}
	RunsTerminated.WithLabelValues(string(quality)).Inc()

	if o.deps.Memory == nil {
		o.logger.Warn(ctx, "no memory store configured, run outcome not recorded")
		return
	}

	text := r.snap.RawText
	topic, subtopic := r.snap.Topic, r.snap.Subtopic
	if r.snap.Problem != nil {
		text = r.snap.Problem.Text
	}
	rec := memory.Record{
		ID:          uuid.New().String(),
		RunID:       r.snap.RunID,
		Signature:   problem.SignatureOf(text),
		ProblemText: text,
		Topic:       topic,
		Subtopic:    subtopic,
		SourceKind:  string(r.snap.Source),
		Strategy:    string(r.snap.Strategy.Kind),
		Quality:     quality,
		CreatedAt:   time.Now(),
	}
	if r.snap.Candidate != nil {
		rec.Answer = r.snap.Candidate.Answer
		rec.Confidence = r.snap.Candidate.Confidence
	}
	if r.snap.Verdict != nil {
		rec.Confidence = r.snap.Verdict.Confidence
	}
	if r.snap.Explanation != nil {
		rec.Explanation = r.snap.Explanation.Markdown()
	}

	// The write must survive the cancellation that may have ended the run.
	if err := o.deps.Memory.Append(context.WithoutCancel(ctx), rec); err != nil {
		MemoryWriteFailures.Inc()
		o.logger.Error(ctx, "failed to write memory record", zap.Error(err))
		return
	}
	r.snap.RecordID = rec.ID
}

// finish persists the snapshot and renders the caller-facing result.
func (o *Orchestrator) finish(ctx context.Context, r *run) (Result, error) {
	r.snap.Events = r.trace.Events()
	if err := o.deps.Runs.Put(context.WithoutCancel(ctx), r.snap); err != nil {
		return Result{}, fmt.Errorf("persisting run %s: %w", r.snap.RunID, err)
	}
	return resultFromSnapshot(r.snap), nil
}

// ResultFromSnapshot renders a stored run for status queries.
func ResultFromSnapshot(snap Snapshot) Result {
	return resultFromSnapshot(snap)
}

func resultFromSnapshot(snap Snapshot) Result {
	return Result{
		RunID:       snap.RunID,
		State:       snap.State,
		Problem:     snap.Problem,
		Candidate:   snap.Candidate,
		Verdict:     snap.Verdict,
		Explanation: snap.Explanation,
		Pause:       snap.Pause,
		RecordID:    snap.RecordID,
	}
}

func (o *Orchestrator) load(ctx context.Context, runID string) (*run, error) {
	snap, err := o.deps.Runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if snap.Attempts == nil {
		snap.Attempts = make(map[Stage]int)
	}
	return &run{snap: snap, trace: RestoreTrace(snap.Events)}, nil
}

// record appends a stage trace event and counts the decision.
func (o *Orchestrator) record(r *run, stage Stage, state State, attempt int, input, output string, conf float64, decision Decision, note string) {
	r.trace.Stage(stage, state, attempt, input, output, conf, decision, note)
	StageDecisions.WithLabelValues(string(stage), string(decision)).Inc()
}

// startSpan opens an otel span and a latency timer for one stage
// invocation. The returned context carries the span and the run
// correlation data, so the stage call logs with run.id/run.stage and its
// own spans nest under this one; the returned func closes span and timer.
func (o *Orchestrator) startSpan(ctx context.Context, r *run, stage Stage, attempt int) (context.Context, func(conf float64, decision Decision, err error)) {
	ctx = logging.ContextWithRun(ctx, r.snap.RunID, string(stage))
	ctx, span := pipelineTracer.Start(ctx, "pipeline."+string(stage),
		oteltrace.WithAttributes(
			attribute.String("run_id", r.snap.RunID),
			attribute.Int("attempt", attempt),
		))
	start := time.Now()

	return ctx, func(conf float64, decision Decision, err error) {
		StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
		span.SetAttributes(
			attribute.Float64("confidence", conf),
			attribute.String("decision", string(decision)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// acquire claims the run's single activity slot.
func (o *Orchestrator) acquire(runID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[runID]; busy {
		return false
	}
	o.active[runID] = struct{}{}
	return true
}

func (o *Orchestrator) release(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, runID)
}
