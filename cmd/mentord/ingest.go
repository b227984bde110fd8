package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/mentord/internal/config"
	"github.com/fyrsmithlabs/mentord/internal/embeddings"
	"github.com/fyrsmithlabs/mentord/internal/logging"
	"github.com/fyrsmithlabs/mentord/internal/retrieval"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Index reference material into the knowledge base",
	Long: `Index a directory of reference material (.md and .txt files) into
the knowledge base the solver retrieves from.

The first-level subdirectory a file lives under becomes its topic:

  kb/algebra/quadratics.md
  kb/calculus/derivatives.md

Examples:
  mentord ingest ./kb`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("init embeddings: %w", err)
	}
	defer provider.Close()

	kbPath, err := config.ExpandPath(cfg.Retrieval.Path)
	if err != nil {
		return err
	}
	kb, err := retrieval.NewKnowledgeBase(retrieval.Config{Path: kbPath}, provider, logger.Zap())
	if err != nil {
		return fmt.Errorf("open knowledge base: %w", err)
	}

	ing, err := retrieval.NewIngester(kb, retrieval.IngestConfig{
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
	}, logger.Zap())
	if err != nil {
		return fmt.Errorf("create ingester: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chunks, err := ing.IngestDir(ctx, args[0])
	if err != nil {
		return fmt.Errorf("ingest %s: %w", args[0], err)
	}

	fmt.Printf("Indexed %d chunks from %s into %s\n", chunks, args[0], kbPath)
	return nil
}
