package retrieval

import (
	"context"
	"errors"
)

// Sentinel errors for knowledge base operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid retrieval configuration")

	// ErrEmptyQuery indicates an empty query string.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Snippet is one ranked reference chunk with provenance.
type Snippet struct {
	// Content is the chunk text.
	Content string `json:"content"`

	// SourceID identifies the originating reference document.
	SourceID string `json:"source_id"`

	// Topic is the topic the chunk was indexed under.
	Topic string `json:"topic,omitempty"`

	// Relevance is the similarity score in [0,1], higher is better.
	Relevance float64 `json:"relevance"`
}

// Document is a reference chunk to be indexed.
type Document struct {
	// ID is the unique chunk identifier.
	ID string

	// Content is the chunk text.
	Content string

	// SourceID identifies the originating reference document.
	SourceID string

	// Topic tags the chunk for filtered retrieval.
	Topic string
}

// Retriever returns ranked reference snippets for a query.
//
// Implementations must be safe for concurrent use by independent runs.
type Retriever interface {
	// Retrieve returns up to topK snippets ordered by relevance. The topic
	// filter narrows the search when non-empty; implementations widen to an
	// unfiltered search when the filtered result set is empty. A missing or
	// failing knowledge base yields an empty slice, not an error.
	Retrieve(ctx context.Context, query, topic string, topK int) ([]Snippet, error)
}
