// Package config provides configuration loading for mentord.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables. All confidence thresholds and budgets are structured, bounded
// fields validated at load; there are no free-form dynamic lookups.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/mentord/internal/logging"
)

// Config holds the complete mentord configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    logging.Config   `koanf:"logging"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Memory     MemoryConfig     `koanf:"memory"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`

	// Metrics controls the /metrics Prometheus endpoint.
	Metrics bool `koanf:"metrics"`
}

// StageThresholds holds the per-stage confidence thresholds, each in [0,1].
type StageThresholds struct {
	Parser   float64 `koanf:"parser"`
	Router   float64 `koanf:"router"`
	Solver   float64 `koanf:"solver"`
	Verifier float64 `koanf:"verifier"`
}

// StageAttempts holds the per-stage retry budgets (attempts beyond the
// first invocation), each >= 0.
type StageAttempts struct {
	Parser   int `koanf:"parser"`
	Router   int `koanf:"router"`
	Solver   int `koanf:"solver"`
	Verifier int `koanf:"verifier"`
}

// PipelineConfig holds orchestrator thresholds and budgets.
type PipelineConfig struct {
	// Thresholds are the per-stage confidence gates.
	Thresholds StageThresholds `koanf:"thresholds"`

	// MaxAttempts are the per-stage retry budgets.
	MaxAttempts StageAttempts `koanf:"max_attempts"`

	// SolveVerifyCycles bounds how many times a rejecting verdict may route
	// the run back to solving before it pauses for a human.
	SolveVerifyCycles int `koanf:"solve_verify_cycles"`
}

// RetrievalConfig holds knowledge base retrieval configuration.
type RetrievalConfig struct {
	// TopK is how many reference snippets the solver receives.
	TopK int `koanf:"top_k"`

	// Path is the chromem persistence directory for the knowledge base.
	Path string `koanf:"path"`

	// ChunkSize and ChunkOverlap control ingestion splitting (characters).
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// MemoryConfig holds solved-problem memory configuration.
type MemoryConfig struct {
	// TopK is how many similar past problems the solver receives.
	TopK int `koanf:"top_k"`

	// Path is the directory holding the SQLite record archive.
	Path string `koanf:"path"`

	// IndexPath is the chromem persistence directory for similarity search.
	IndexPath string `koanf:"index_path"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider is "fastembed" or "local".
	Provider string `koanf:"provider"`

	// Model is the embedding model name (fastembed only).
	Model string `koanf:"model"`

	// CacheDir caches downloaded model files (fastembed only).
	CacheDir string `koanf:"cache_dir"`
}

// NewDefaultConfig returns a config with working defaults for a local setup.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8970,
			ShutdownTimeout: Duration(10 * time.Second),
			Metrics:         true,
		},
		Logging: *logging.NewDefaultConfig(),
		Pipeline: PipelineConfig{
			Thresholds: StageThresholds{
				Parser:   0.6,
				Router:   0.55,
				Solver:   0.65,
				Verifier: 0.7,
			},
			MaxAttempts: StageAttempts{
				Parser:   1,
				Router:   1,
				Solver:   2,
				Verifier: 1,
			},
			SolveVerifyCycles: 2,
		},
		Retrieval: RetrievalConfig{
			TopK:         3,
			Path:         "~/.local/share/mentord/kb",
			ChunkSize:    800,
			ChunkOverlap: 50,
		},
		Memory: MemoryConfig{
			TopK:      2,
			Path:      "~/.local/share/mentord",
			IndexPath: "~/.local/share/mentord/memory-index",
		},
		Embeddings: EmbeddingsConfig{
			Provider: "local",
			Model:    "BAAI/bge-small-en-v1.5",
			CacheDir: "~/.cache/mentord/models",
		},
	}
}

// Validate checks all bounded fields.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.ChunkSize <= 0 {
		return fmt.Errorf("retrieval chunk_size must be positive, got %d", c.Retrieval.ChunkSize)
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval chunk_overlap must be in [0, chunk_size), got %d", c.Retrieval.ChunkOverlap)
	}
	if c.Memory.TopK <= 0 {
		return fmt.Errorf("memory top_k must be positive, got %d", c.Memory.TopK)
	}
	return nil
}

// Validate checks thresholds and budgets.
func (p *PipelineConfig) Validate() error {
	for name, v := range map[string]float64{
		"parser":   p.Thresholds.Parser,
		"router":   p.Thresholds.Router,
		"solver":   p.Thresholds.Solver,
		"verifier": p.Thresholds.Verifier,
	} {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%s threshold must be in [0,1], got %v", name, v)
		}
	}
	for name, v := range map[string]int{
		"parser":   p.MaxAttempts.Parser,
		"router":   p.MaxAttempts.Router,
		"solver":   p.MaxAttempts.Solver,
		"verifier": p.MaxAttempts.Verifier,
	} {
		if v < 0 {
			return fmt.Errorf("%s max attempts cannot be negative, got %d", name, v)
		}
	}
	if p.SolveVerifyCycles < 0 {
		return fmt.Errorf("solve_verify_cycles cannot be negative, got %d", p.SolveVerifyCycles)
	}
	return nil
}
