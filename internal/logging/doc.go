// Package logging wraps zap with context-aware helpers for mentord.
//
// Loggers carry correlation fields pulled from the request context: the
// OpenTelemetry trace/span IDs when a span is active, plus the pipeline run
// ID and stage set via ContextWithRun. Constructors across the codebase
// accept a *Logger and fall back to a no-op logger when given nil, so tests
// stay quiet unless they opt into zaptest.
package logging
