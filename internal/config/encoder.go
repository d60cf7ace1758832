package config

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/fusion"
	"github.com/born-ml/patchformer/internal/loader"
)

// Encoder is the CPU encoder built from a Config.
type Encoder = fusion.Encoder[*cpu.CPUBackend]

// NewEncoder validates c, builds the encoder on a CPU backend sized by the
// parallel settings and, when Weights is set, loads the checkpoint.
func (c *Config) NewEncoder() (*Encoder, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	backend := cpu.NewWithConfig(c.ParallelOptions())
	table := fusion.NewEmbeddingTable(c.Descriptors.Vocab, c.Descriptors.Dim, backend)
	enc := fusion.New(c.Model, table, backend)

	if c.Weights == "" {
		return enc, nil
	}

	stateDict, err := loader.LoadStateDict(c.Weights, backend)
	if err != nil {
		return nil, fmt.Errorf("load weights %s: %w", c.Weights, err)
	}
	if err := enc.LoadStateDict(stateDict); err != nil {
		return nil, fmt.Errorf("load weights %s: %w", c.Weights, err)
	}
	return enc, nil
}
