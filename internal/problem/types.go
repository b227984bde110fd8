package problem

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors for problem construction and validation.
var (
	ErrEmptyText         = errors.New("problem text cannot be empty")
	ErrInvalidConfidence = errors.New("confidence must be between 0.0 and 1.0")
	ErrInvalidSource     = errors.New("source must be 'text', 'image' or 'audio'")
)

// SourceKind identifies the input modality a problem arrived through.
type SourceKind string

const (
	// SourceText is directly typed input (digitization confidence 1.0).
	SourceText SourceKind = "text"

	// SourceImage is input digitized by OCR.
	SourceImage SourceKind = "image"

	// SourceAudio is input transcribed by ASR.
	SourceAudio SourceKind = "audio"
)

// Valid reports whether the source kind is one of the known modalities.
func (k SourceKind) Valid() bool {
	return k == SourceText || k == SourceImage || k == SourceAudio
}

// CorrectionSource identifies where a corrected problem version came from.
type CorrectionSource string

const (
	// CorrectionUserEdit is a correction typed by the human during a pause.
	CorrectionUserEdit CorrectionSource = "user_edit"
)

// Problem is an immutable structured representation of a math problem.
//
// The Parser creates the first version. A human correction produces a new
// version via WithCorrection; the original is never mutated.
type Problem struct {
	// ID uniquely identifies this problem version.
	ID string `json:"id"`

	// Version is 1 for the parsed original, incremented per correction.
	Version int `json:"version"`

	// PredecessorID references the version this one corrects, if any.
	PredecessorID string `json:"predecessor_id,omitempty"`

	// CorrectionSource records what produced this version (empty for v1).
	CorrectionSource CorrectionSource `json:"correction_source,omitempty"`

	// Source is the input modality the raw input arrived through.
	Source SourceKind `json:"source"`

	// RawInput is the text as delivered by the digitizer, before cleanup.
	RawInput string `json:"raw_input"`

	// Text is the normalized problem statement.
	Text string `json:"text"`

	// Topic is the detected topic. Empty until the Router has run, except
	// when the Parser can already tell from lexical evidence.
	Topic string `json:"topic,omitempty"`

	// Subtopic refines the topic (e.g. "quadratic_equations").
	Subtopic string `json:"subtopic,omitempty"`

	// Variables are the symbols found in the statement.
	Variables []string `json:"variables,omitempty"`

	// Constraints are side conditions found in the statement (e.g. "x > 0").
	Constraints []string `json:"constraints,omitempty"`

	// DigitizationConfidence is the OCR/ASR confidence, 1.0 for typed text.
	DigitizationConfidence float64 `json:"digitization_confidence"`

	// CreatedAt is when this version was created.
	CreatedAt time.Time `json:"created_at"`
}

// New creates the first version of a problem.
func New(source SourceKind, rawInput, text string, digitizationConfidence float64) (*Problem, error) {
	if !source.Valid() {
		return nil, ErrInvalidSource
	}
	if text == "" {
		return nil, ErrEmptyText
	}
	if digitizationConfidence < 0.0 || digitizationConfidence > 1.0 {
		return nil, ErrInvalidConfidence
	}

	return &Problem{
		ID:                     uuid.New().String(),
		Version:                1,
		Source:                 source,
		RawInput:               rawInput,
		Text:                   text,
		DigitizationConfidence: digitizationConfidence,
		CreatedAt:              time.Now(),
	}, nil
}

// WithCorrection returns a new problem version carrying the corrected text.
// The receiver is left untouched. Topic and subtopic are cleared because any
// downstream classification must be re-derived from the corrected text.
func (p *Problem) WithCorrection(text string, source CorrectionSource) (*Problem, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	next := *p
	next.ID = uuid.New().String()
	next.Version = p.Version + 1
	next.PredecessorID = p.ID
	next.CorrectionSource = source
	next.Text = text
	next.Topic = ""
	next.Subtopic = ""
	next.Variables = nil
	next.Constraints = nil
	// A human looked at the text, so digitization noise no longer applies.
	next.DigitizationConfidence = 1.0
	next.CreatedAt = time.Now()
	return &next, nil
}

// WithClassification returns a copy carrying topic metadata from the Parser
// or Router. Used at creation time only; versions already handed to the
// pipeline are never reclassified in place.
func (p *Problem) WithClassification(topic, subtopic string, variables, constraints []string) *Problem {
	next := *p
	next.Topic = topic
	next.Subtopic = subtopic
	next.Variables = variables
	next.Constraints = constraints
	return &next
}

// Validate checks structural invariants of a problem version.
func (p *Problem) Validate() error {
	if p.ID == "" {
		return errors.New("problem ID cannot be empty")
	}
	if p.Text == "" {
		return ErrEmptyText
	}
	if !p.Source.Valid() {
		return ErrInvalidSource
	}
	if p.DigitizationConfidence < 0.0 || p.DigitizationConfidence > 1.0 {
		return ErrInvalidConfidence
	}
	if p.Version < 1 {
		return fmt.Errorf("invalid version %d", p.Version)
	}
	if p.Version > 1 && p.PredecessorID == "" {
		return errors.New("corrected version must reference its predecessor")
	}
	return nil
}
