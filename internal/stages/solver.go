package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/memory"
	"github.com/fyrsmithlabs/mentord/internal/problem"
	"github.com/fyrsmithlabs/mentord/internal/retrieval"
)

// ErrNoCandidate indicates the solver produced nothing usable.
var ErrNoCandidate = errors.New("solver produced no candidate")

// SolveInput bundles everything a solve attempt needs.
type SolveInput struct {
	Problem  *problem.Problem
	Strategy problem.Strategy

	// Hints carries rejection reasons from a prior Verifier pass.
	Hints []string
}

// SolverConfig bounds the solver's collaborator queries.
type SolverConfig struct {
	RetrievalTopK int
	MemoryTopK    int
}

// ApplyDefaults fills zero values.
func (c *SolverConfig) ApplyDefaults() {
	if c.RetrievalTopK <= 0 {
		c.RetrievalTopK = 3
	}
	if c.MemoryTopK <= 0 {
		c.MemoryTopK = 2
	}
}

// handler is one strategy-specific solving routine. It reports ok=false
// when the problem shape is outside what it can derive, sending the solve
// to the formula fallback.
type handler func(in SolveInput, snippets []retrieval.Snippet) (problem.Candidate, bool)

// Solver derives solution candidates by strategy dispatch, consulting the
// retrieval and memory collaborators read-only.
type Solver struct {
	retriever retrieval.Retriever
	mem       memory.Store
	cfg       SolverConfig
	handlers  map[problem.StrategyKind]handler
	logger    *zap.Logger
}

// NewSolver builds a Solver. retriever and mem may be nil, degrading to
// derivation without references or priors.
func NewSolver(retriever retrieval.Retriever, mem memory.Store, cfg SolverConfig, logger *zap.Logger) *Solver {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	s := &Solver{retriever: retriever, mem: mem, cfg: cfg, logger: logger}
	s.handlers = map[problem.StrategyKind]handler{
		problem.StrategyAlgebraic:     solveAlgebraic,
		problem.StrategyCalculus:      solveCalculus,
		problem.StrategyProbability:   solveProbability,
		problem.StrategyLinearAlgebra: solveLinearAlgebra,
	}
	return s
}

// Solve produces one candidate. Pure with respect to its inputs: the same
// problem, strategy, hints and collaborator contents yield the same
// candidate.
func (s *Solver) Solve(ctx context.Context, in SolveInput) (problem.Candidate, error) {
	if err := in.Strategy.Validate(); err != nil {
		return problem.Candidate{}, err
	}

	snippets := s.retrieve(ctx, in)
	priors := s.recall(ctx, in)

	candidate, ok := problem.Candidate{}, false
	if h, registered := s.handlers[in.Strategy.Kind]; registered {
		candidate, ok = h(in, snippets)
	}
	if !ok {
		candidate, ok = solveFromReferences(in, snippets)
	}
	if !ok {
		return problem.Candidate{}, fmt.Errorf("%w: strategy %s", ErrNoCandidate, in.Strategy.Kind)
	}

	s.applyPriors(&candidate, in, priors)
	if len(in.Hints) > 0 {
		candidate.Notes = appendNote(candidate.Notes,
			"re-solved after rejection: "+strings.Join(in.Hints, "; "))
	}

	if err := candidate.Validate(); err != nil {
		return problem.Candidate{}, fmt.Errorf("invalid candidate: %w", err)
	}

	s.logger.Debug("solved",
		zap.String("problem_id", in.Problem.ID),
		zap.String("strategy", string(candidate.Strategy.Kind)),
		zap.String("answer", candidate.Answer),
		zap.Float64("confidence", candidate.Confidence),
	)
	return candidate, nil
}

// retrieve queries the knowledge base; a missing or failing retriever
// degrades to solving without references.
func (s *Solver) retrieve(ctx context.Context, in SolveInput) []retrieval.Snippet {
	if s.retriever == nil {
		return nil
	}
	query := buildQuery(in)
	snippets, err := s.retriever.Retrieve(ctx, query, in.Problem.Topic, s.cfg.RetrievalTopK)
	if err != nil {
		s.logger.Warn("retrieval failed, solving without references", zap.Error(err))
		return nil
	}
	return snippets
}

// recall queries memory for similar solved problems.
func (s *Solver) recall(ctx context.Context, in SolveInput) []memory.Record {
	if s.mem == nil {
		return nil
	}
	records, err := s.mem.QuerySimilar(ctx, in.Problem.Text, s.cfg.MemoryTopK)
	if err != nil {
		s.logger.Warn("memory query failed, solving without priors", zap.Error(err))
		return nil
	}
	return records
}

// applyPriors folds similar past runs into the candidate: an identical
// problem solved before with the same answer raises confidence; an
// identical problem whose answer was judged incorrect adds a caution note.
func (s *Solver) applyPriors(c *problem.Candidate, in SolveInput, priors []memory.Record) {
	signature := problem.SignatureOf(in.Problem.Text)
	for _, rec := range priors {
		if rec.Signature != signature {
			continue
		}
		switch {
		case rec.Feedback == memory.FeedbackIncorrect:
			c.Notes = appendNote(c.Notes, "a previous answer to this problem was judged incorrect")
		case rec.Quality == memory.QualityAccepted && rec.Answer == c.Answer:
			if c.Confidence < 0.95 {
				c.Confidence += 0.03
				if c.Confidence > 0.95 {
					c.Confidence = 0.95
				}
			}
			c.Notes = appendNote(c.Notes, "matches a previously accepted answer")
		}
		return
	}
}

// buildQuery combines classification with the statement for retrieval.
func buildQuery(in SolveInput) string {
	parts := make([]string, 0, 3)
	if in.Problem.Topic != "" {
		parts = append(parts, in.Problem.Topic)
	}
	if in.Strategy.Hint != "" {
		parts = append(parts, in.Strategy.Hint)
	}
	text := in.Problem.Text
	if len(text) > 200 {
		text = text[:200]
	}
	parts = append(parts, text)
	return strings.Join(parts, " ")
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "; " + note
}
