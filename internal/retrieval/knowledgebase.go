package retrieval

import (
	"context"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/embeddings"
)

// kbTracer for OpenTelemetry instrumentation.
var kbTracer = otel.Tracer("mentord.retrieval")

// kbCollection is the chromem collection holding reference chunks.
const kbCollection = "mentord_kb"

// Config holds knowledge base configuration.
type Config struct {
	// Path is the directory for persistent storage. Empty means in-memory.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// KnowledgeBase implements Retriever on an embedded chromem-go store.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: no external service, pure Go, persistence to gob files.
type KnowledgeBase struct {
	db       *chromem.DB
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewKnowledgeBase opens (or creates) the knowledge base at cfg.Path.
func NewKnowledgeBase(cfg Config, embedder embeddings.Embedder, logger *zap.Logger) (*KnowledgeBase, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	kb := &KnowledgeBase{db: db, embedder: embedder, logger: logger}

	logger.Info("knowledge base opened",
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress),
	)
	return kb, nil
}

// embeddingFunc adapts the Embedder to chromem's callback type.
func (kb *KnowledgeBase) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return kb.embedder.EmbedQuery(ctx, text)
	}
}

// Add indexes reference chunks.
func (kb *KnowledgeBase) Add(ctx context.Context, docs []Document) error {
	ctx, span := kbTracer.Start(ctx, "KnowledgeBase.Add")
	defer span.End()

	if len(docs) == 0 {
		return nil
	}

	collection, err := kb.db.GetOrCreateCollection(kbCollection, nil, kb.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting collection: %w", err)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	vectors, err := kb.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:      doc.ID,
			Content: doc.Content,
			Metadata: map[string]string{
				"source": doc.SourceID,
				"topic":  doc.Topic,
			},
			Embedding: vectors[i],
		}
	}

	// Concurrency of 1: embeddings are already computed.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	span.SetAttributes(attribute.Int("documents_added", len(docs)))
	kb.logger.Debug("indexed reference chunks", zap.Int("count", len(docs)))
	return nil
}

// Retrieve returns up to topK snippets ordered by relevance.
//
// A topic filter narrows the search; when the filtered set comes back empty
// the search widens to the whole knowledge base. An absent knowledge base
// yields an empty result, letting the solver continue degraded.
func (kb *KnowledgeBase) Retrieve(ctx context.Context, query, topic string, topK int) ([]Snippet, error) {
	ctx, span := kbTracer.Start(ctx, "KnowledgeBase.Retrieve")
	defer span.End()

	span.SetAttributes(
		attribute.String("topic", topic),
		attribute.Int("top_k", topK),
	)

	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, topK)
	}

	collection := kb.db.GetCollection(kbCollection, kb.embeddingFunc())
	if collection == nil {
		// Knowledge base never built: degraded mode, not an error.
		kb.logger.Warn("knowledge base empty, retrieval disabled")
		span.SetStatus(codes.Ok, "empty knowledge base")
		return []Snippet{}, nil
	}

	snippets, err := kb.query(ctx, collection, query, topic, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Widen to an unfiltered search when the topic filter found nothing.
	if len(snippets) == 0 && topic != "" {
		snippets, err = kb.query(ctx, collection, query, "", topK)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(snippets)))
	span.SetStatus(codes.Ok, "success")
	return snippets, nil
}

// query runs one similarity search against the collection.
func (kb *KnowledgeBase) query(ctx context.Context, collection *chromem.Collection, query, topic string, topK int) ([]Snippet, error) {
	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return []Snippet{}, nil
	}
	if topK > count {
		topK = count
	}

	var where map[string]string
	if topic != "" {
		where = map[string]string{"topic": topic}
	}

	results, err := collection.Query(ctx, query, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge base: %w", err)
	}

	snippets := make([]Snippet, len(results))
	for i, r := range results {
		snippets[i] = Snippet{
			Content:   r.Content,
			SourceID:  r.Metadata["source"],
			Topic:     r.Metadata["topic"],
			Relevance: float64(r.Similarity),
		}
	}
	return snippets, nil
}

// Count returns the number of indexed chunks.
func (kb *KnowledgeBase) Count() int {
	collection := kb.db.GetCollection(kbCollection, kb.embeddingFunc())
	if collection == nil {
		return 0
	}
	return collection.Count()
}
