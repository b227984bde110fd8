package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
)

// IngestConfig controls how reference material is chunked.
type IngestConfig struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int

	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int
}

// ApplyDefaults fills zero values with sensible defaults.
func (c *IngestConfig) ApplyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 800
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 4
	}
}

// Ingester walks a directory of reference material (.md and .txt files),
// splits each file into overlapping chunks, and indexes them into the
// knowledge base. The first-level subdirectory a file lives under becomes
// its topic, so a layout like
//
//	kb/algebra/quadratics.md
//	kb/calculus/derivatives.md
//
// produces topic-tagged chunks that the topic filter in Retrieve can use.
type Ingester struct {
	kb       *KnowledgeBase
	splitter textsplitter.RecursiveCharacter
	logger   *zap.Logger
}

// NewIngester builds an Ingester writing into kb.
func NewIngester(kb *KnowledgeBase, cfg IngestConfig, logger *zap.Logger) (*Ingester, error) {
	if kb == nil {
		return nil, fmt.Errorf("%w: knowledge base is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
	)

	return &Ingester{kb: kb, splitter: splitter, logger: logger}, nil
}

// IngestDir indexes every .md and .txt file under root. It returns the
// number of chunks indexed. Unreadable files abort the walk.
func (ing *Ingester) IngestDir(ctx context.Context, root string) (int, error) {
	ctx, span := kbTracer.Start(ctx, "Ingester.IngestDir")
	defer span.End()

	info, err := os.Stat(root)
	if err != nil {
		return 0, fmt.Errorf("reading knowledge base directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%w: %s is not a directory", ErrInvalidConfig, root)
	}

	total := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		n, err := ing.ingestFile(ctx, root, path)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return total, err
	}

	ing.logger.Info("knowledge base ingestion complete",
		zap.String("root", root),
		zap.Int("chunks", total),
	)
	return total, nil
}

// ingestFile splits one file and indexes its chunks.
func (ing *Ingester) ingestFile(ctx context.Context, root, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}

	chunks, err := ing.splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("splitting %s: %w", path, err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	docs := make([]Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, Document{
			ID:       fmt.Sprintf("%s#%d", filepath.ToSlash(rel), i),
			Content:  chunk,
			SourceID: filepath.ToSlash(rel),
			Topic:    topicForPath(rel),
		})
	}

	if err := ing.kb.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("indexing %s: %w", path, err)
	}

	ing.logger.Debug("ingested file",
		zap.String("file", rel),
		zap.Int("chunks", len(docs)),
	)
	return len(docs), nil
}

// topicForPath derives a topic from the first path element, so files at
// the knowledge base root carry no topic.
func topicForPath(rel string) string {
	rel = filepath.ToSlash(rel)
	if i := strings.IndexByte(rel, '/'); i > 0 {
		return rel[:i]
	}
	return ""
}
