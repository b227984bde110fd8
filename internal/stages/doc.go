// Package stages implements the five pipeline stages: Parser, Router,
// Solver, Verifier and Explainer.
//
// Parser and Router are lexical: normalization, variable and constraint
// extraction, keyword-margin topic classification. The Solver dispatches on
// the closed strategy set to deterministic handlers (equation solving,
// polynomial derivatives, combinatorics, determinants) with a
// reference-lookup fallback, consulting the retrieval and memory
// collaborators read-only. The Verifier re-derives the answer from the
// problem text alone, never reusing the Solver's intermediate state, so
// agreement between the two is an independent correctness signal.
package stages
