// Prometheus metrics for pipeline health monitoring.
package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsStarted counts pipeline runs created.
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mentord",
			Subsystem: "pipeline",
			Name:      "runs_started_total",
			Help:      "Total number of pipeline runs started",
		},
	)

	// RunsTerminated counts runs reaching a terminal state.
	// Labels: quality (accepted, corrected, abandoned)
	RunsTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mentord",
			Subsystem: "pipeline",
			Name:      "runs_terminated_total",
			Help:      "Total number of runs reaching DONE or ABANDONED, by outcome quality",
		},
		[]string{"quality"},
	)

	// StageDecisions counts trigger evaluator outcomes.
	// Labels: stage, decision
	StageDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mentord",
			Subsystem: "pipeline",
			Name:      "stage_decisions_total",
			Help:      "Trigger evaluator decisions per stage",
		},
		[]string{"stage", "decision"},
	)

	// Pauses counts HITL suspensions by triggering stage.
	Pauses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mentord",
			Subsystem: "pipeline",
			Name:      "pauses_total",
			Help:      "Total number of pauses for human input, by stage",
		},
		[]string{"stage"},
	)

	// StageDuration tracks per-stage invocation latency.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mentord",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of stage invocations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// SolveVerifyCycles observes rejection-driven re-solve counts per run.
	SolveVerifyCycles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mentord",
			Subsystem: "pipeline",
			Name:      "solve_verify_cycles",
			Help:      "Verifier rejections charged against the cycle budget per run",
			Buckets:   []float64{0, 1, 2, 3, 5},
		},
	)

	// MemoryWriteFailures counts terminal records that could not be
	// persisted. The run still terminates; the record is lost.
	MemoryWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mentord",
			Subsystem: "pipeline",
			Name:      "memory_write_failures_total",
			Help:      "Total number of terminal memory records that failed to persist",
		},
	)
)
