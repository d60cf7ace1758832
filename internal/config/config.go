// Package config loads the patchformer YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/patchformer/internal/fusion"
	"github.com/born-ml/patchformer/internal/parallel"
)

// Environment variables that override file settings.
const (
	EnvWeights = "PATCHFORMER_WEIGHTS"
	EnvAddr    = "PATCHFORMER_ADDR"
	EnvWorkers = "PATCHFORMER_WORKERS"
)

// Config holds all patchformer configuration.
type Config struct {
	// Encoder architecture
	Model fusion.Config `yaml:"model"`

	// Descriptor embedding table
	Descriptors DescriptorsConfig `yaml:"descriptors"`

	// Checkpoint to load (.safetensors, .pt); empty means random weights
	Weights string `yaml:"weights"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// CPU parallelism
	Parallel ParallelConfig `yaml:"parallel"`
}

// DescriptorsConfig sizes the descriptor embedding table.
type DescriptorsConfig struct {
	Vocab int `yaml:"vocab"`
	Dim   int `yaml:"dim"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	MaxBatch int    `yaml:"max_batch"`
}

// ParallelConfig configures the CPU backend worker pool.
type ParallelConfig struct {
	Workers      int `yaml:"workers"` // 0 means one per CPU
	MinChunkSize int `yaml:"min_chunk_size"`
}

// DefaultConfig returns the default configuration: the standard patch
// transformer with 64-wide object features, up to 10 objects and a 64-wide
// descriptor table of 100 entries.
func DefaultConfig() *Config {
	return &Config{
		Model: fusion.DefaultConfig(64, 10),
		Descriptors: DescriptorsConfig{
			Vocab: 100,
			Dim:   64,
		},
		Server: ServerConfig{
			Addr:     "127.0.0.1:8090",
			MaxBatch: 32,
		},
		Parallel: ParallelConfig{
			MinChunkSize: parallel.DefaultConfig().MinChunkSize,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // config files are not secret
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if path := os.Getenv(EnvWeights); path != "" {
		c.Weights = path
	}
	if addr := os.Getenv(EnvAddr); addr != "" {
		c.Server.Addr = addr
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s: invalid worker count %q", EnvWorkers, v)
		}
		c.Parallel.Workers = n
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if c.Descriptors.Vocab <= 0 || c.Descriptors.Dim <= 0 {
		return fmt.Errorf("descriptors: vocab (%d) and dim (%d) must be positive", c.Descriptors.Vocab, c.Descriptors.Dim)
	}
	if c.Server.MaxBatch < 0 {
		return fmt.Errorf("server: max_batch must be non-negative, got %d", c.Server.MaxBatch)
	}
	if c.Parallel.Workers < 0 {
		return fmt.Errorf("parallel: workers must be non-negative, got %d", c.Parallel.Workers)
	}
	return nil
}

// ParallelOptions returns the worker pool settings for the CPU backend.
func (c *Config) ParallelOptions() parallel.Config {
	workers := c.Parallel.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return parallel.Config{
		Enabled:      workers > 1,
		NumWorkers:   workers,
		MinChunkSize: max(c.Parallel.MinChunkSize, 1),
	}
}
