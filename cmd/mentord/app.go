package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/config"
	"github.com/fyrsmithlabs/mentord/internal/digitize"
	"github.com/fyrsmithlabs/mentord/internal/embeddings"
	"github.com/fyrsmithlabs/mentord/internal/logging"
	"github.com/fyrsmithlabs/mentord/internal/memory"
	"github.com/fyrsmithlabs/mentord/internal/pipeline"
	"github.com/fyrsmithlabs/mentord/internal/retrieval"
	"github.com/fyrsmithlabs/mentord/internal/stages"
)

// app holds the wired pipeline and its collaborators. Built once per
// command invocation; Close releases everything in reverse order.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	provider embeddings.Provider
	kb       *retrieval.KnowledgeBase
	memory   *memory.SQLiteStore
	patterns *digitize.SQLitePatternStore
	runs     *pipeline.SQLiteRunStore
	orch     *pipeline.Orchestrator
}

// newApp loads configuration and wires the full pipeline: embedding
// provider, knowledge base, memory archive, correction patterns, the
// five stages and the orchestrator.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zl := logger.Zap()

	a := &app{cfg: cfg, logger: logger}

	a.provider, err = embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init embeddings: %w", err)
	}

	kbPath, err := config.ExpandPath(cfg.Retrieval.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.kb, err = retrieval.NewKnowledgeBase(retrieval.Config{Path: kbPath}, a.provider, zl)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}

	memPath, err := config.ExpandPath(cfg.Memory.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	indexPath, err := config.ExpandPath(cfg.Memory.IndexPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.memory, err = memory.NewSQLiteStore(memory.Config{
		Path:      memPath,
		IndexPath: indexPath,
	}, a.provider, zl)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open memory archive: %w", err)
	}

	a.patterns, err = digitize.NewSQLitePatternStore(memPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open pattern store: %w", err)
	}

	a.runs, err = pipeline.NewSQLiteRunStore(memPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open run store: %w", err)
	}

	a.orch, err = pipeline.NewOrchestrator(pipeline.Deps{
		Digitizer: digitize.NewTextDigitizer(a.patterns, zl),
		Patterns:  a.patterns,
		Parser:    stages.NewParser(zl),
		Router:    stages.NewRouter(zl),
		Solver: stages.NewSolver(a.kb, a.memory, stages.SolverConfig{
			RetrievalTopK: cfg.Retrieval.TopK,
			MemoryTopK:    cfg.Memory.TopK,
		}, zl),
		Verifier:  stages.NewVerifier(zl),
		Explainer: stages.NewExplainer(zl),
		Memory:    a.memory,
		Runs:      a.runs,
		Config:    cfg.Pipeline,
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("wire pipeline: %w", err)
	}

	logger.Info(context.Background(), "pipeline wired",
		zap.String("embeddings_provider", cfg.Embeddings.Provider),
		zap.String("kb_path", kbPath),
		zap.String("memory_path", memPath))

	return a, nil
}

// Close releases all resources. Safe to call on a partially built app.
func (a *app) Close() {
	if a.runs != nil {
		_ = a.runs.Close()
	}
	if a.patterns != nil {
		_ = a.patterns.Close()
	}
	if a.memory != nil {
		_ = a.memory.Close()
	}
	if a.provider != nil {
		_ = a.provider.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
