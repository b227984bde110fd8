// Package memory persists one record per completed or abandoned run and
// serves similarity queries over past problems.
//
// The archive of record rows lives in SQLite (modernc.org/sqlite, pure Go);
// similarity queries run against a chromem-go index over the problem text.
// The archive is authoritative: an index write failure degrades similarity
// recall but never loses a record. Records are append-only; the single
// mutable field is the user feedback signal attached after the fact.
//
// When several records share a problem signature, QuerySimilar returns only
// the most recent one per signature; Stats still counts them all.
package memory
