package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type runCtxKey struct{}

// runInfo is the per-run correlation data carried in a context.
type runInfo struct {
	RunID string
	Stage string
}

// ContextWithRun attaches pipeline run correlation data to the context.
func ContextWithRun(ctx context.Context, runID, stage string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runInfo{RunID: runID, Stage: stage})
}

// RunIDFromContext returns the run ID set by ContextWithRun, or "".
func RunIDFromContext(ctx context.Context) string {
	if info, ok := ctx.Value(runCtxKey{}).(runInfo); ok {
		return info.RunID
	}
	return ""
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	// Run correlation
	if info, ok := ctx.Value(runCtxKey{}).(runInfo); ok {
		fields = append(fields, zap.String("run.id", info.RunID))
		if info.Stage != "" {
			fields = append(fields, zap.String("run.stage", info.Stage))
		}
	}

	return fields
}
