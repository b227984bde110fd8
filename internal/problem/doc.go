// Package problem defines the core data model for the mentoring pipeline:
// structured problems and their correction chain, solving strategies,
// solution candidates, and verification verdicts.
//
// Problems are immutable once created. A human correction never edits a
// Problem in place; it produces a new version that references its
// predecessor, so the pipeline always operates on exactly one current
// version while the full chain stays available for auditing.
package problem
