package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.6, cfg.Pipeline.Thresholds.Parser)
	assert.Equal(t, 0.7, cfg.Pipeline.Thresholds.Verifier)
	assert.Equal(t, 2, cfg.Pipeline.SolveVerifyCycles)
	assert.Positive(t, cfg.Retrieval.TopK)
	assert.Positive(t, cfg.Memory.TopK)
}

func TestConfig_Validate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.Pipeline.Thresholds.Solver = 1.5 }},
		{"threshold negative", func(c *Config) { c.Pipeline.Thresholds.Parser = -0.1 }},
		{"negative attempts", func(c *Config) { c.Pipeline.MaxAttempts.Verifier = -1 }},
		{"negative cycles", func(c *Config) { c.Pipeline.SolveVerifyCycles = -1 }},
		{"zero retrieval top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"zero memory top_k", func(c *Config) { c.Memory.TopK = 0 }},
		{"overlap >= chunk size", func(c *Config) { c.Retrieval.ChunkOverlap = c.Retrieval.ChunkSize }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig().Pipeline, cfg.Pipeline)
}

func TestLoad_YAMLOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("pipeline:\n  solve_verify_cycles: 5\n  thresholds:\n    parser: 0.8\nretrieval:\n  top_k: 7\n")
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.SolveVerifyCycles)
	assert.Equal(t, 0.8, cfg.Pipeline.Thresholds.Parser)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	// Unset fields keep defaults.
	assert.Equal(t, 0.7, cfg.Pipeline.Thresholds.Verifier)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 7\n"), 0600))

	t.Setenv("MENTORD_RETRIEVAL_TOP_K", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Retrieval.TopK)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  thresholds:\n    solver: 3.0\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, "1m30s", d.Duration().String())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
