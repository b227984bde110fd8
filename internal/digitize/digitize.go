package digitize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

var (
	// ErrUnsupportedSource indicates a source kind without an engine.
	ErrUnsupportedSource = errors.New("unsupported input source")

	// ErrEmptyInput indicates raw input with no content.
	ErrEmptyInput = errors.New("empty input")
)

// Result is the outcome of digitizing one raw input.
type Result struct {
	// Text is the digitized text after pattern application.
	Text string

	// Confidence is the digitization engine's certainty in Text.
	// Text passthrough is always 1.0; OCR/ASR engines report their own.
	Confidence float64

	// Modified is true when learned patterns changed the engine output.
	Modified bool
}

// Digitizer converts raw input into problem text.
type Digitizer interface {
	Digitize(ctx context.Context, source problem.SourceKind, raw string) (Result, error)
}

// TextDigitizer handles direct text input and applies learned correction
// patterns for every source kind.
type TextDigitizer struct {
	patterns PatternStore
	logger   *zap.Logger
}

var _ Digitizer = (*TextDigitizer)(nil)

// NewTextDigitizer builds a digitizer. patterns may be nil, disabling
// learned corrections.
func NewTextDigitizer(patterns PatternStore, logger *zap.Logger) *TextDigitizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextDigitizer{patterns: patterns, logger: logger}
}

// Digitize implements Digitizer for the text source kind.
func (d *TextDigitizer) Digitize(ctx context.Context, source problem.SourceKind, raw string) (Result, error) {
	switch source {
	case problem.SourceText:
	case problem.SourceImage, problem.SourceAudio:
		return Result{}, fmt.Errorf("%w: %s requires an external engine", ErrUnsupportedSource, source)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
	}

	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return Result{}, ErrEmptyInput
	}

	corrected, modified, err := d.applyPatterns(ctx, source, text)
	if err != nil {
		// Pattern lookup failure falls back to the uncorrected text.
		d.logger.Warn("correction pattern lookup failed", zap.Error(err))
		corrected, modified = text, false
	}

	return Result{Text: corrected, Confidence: 1.0, Modified: modified}, nil
}

// applyPatterns substitutes every learned pattern for the source kind,
// matching case-insensitively. Patterns apply longest-original first,
// lexically tie-broken, so overlapping patterns resolve the same way
// on every run.
func (d *TextDigitizer) applyPatterns(ctx context.Context, source problem.SourceKind, text string) (string, bool, error) {
	if d.patterns == nil {
		return text, false, nil
	}

	patterns, err := d.patterns.Patterns(ctx, source)
	if err != nil {
		return text, false, err
	}

	originals := make([]string, 0, len(patterns))
	for original := range patterns {
		originals = append(originals, original)
	}
	sort.Slice(originals, func(i, j int) bool {
		if len(originals[i]) != len(originals[j]) {
			return len(originals[i]) > len(originals[j])
		}
		return originals[i] < originals[j]
	})

	modified := false
	for _, original := range originals {
		next := replaceFold(text, original, patterns[original])
		if next != text {
			modified = true
			text = next
		}
	}
	return text, modified, nil
}

// replaceFold replaces every case-insensitive occurrence of old with repl.
func replaceFold(s, old, repl string) string {
	if old == "" {
		return s
	}
	lower := strings.ToLower(s)
	oldLower := strings.ToLower(old)

	var b strings.Builder
	for {
		i := strings.Index(lower, oldLower)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(repl)
		s = s[i+len(oldLower):]
		lower = lower[i+len(oldLower):]
	}
}
