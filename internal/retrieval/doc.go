// Package retrieval provides the reference knowledge base consulted by the
// solver: an embedded chromem-go vector store over chunked reference
// material, queried by problem text with an optional topic filter.
//
// Retrieval is a read-only collaborator of the pipeline. When the knowledge
// base is absent or a query fails, callers receive an empty ranked list and
// are expected to continue in a degraded low-confidence mode rather than
// fail the run.
package retrieval
