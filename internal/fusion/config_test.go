package fusion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(64, 5)

	want := Config{
		NumPatches:          30,
		PatchDim:            2048,
		OutDim:              2048,
		EmbeddingDim:        768,
		NumHeads:            4,
		NumLayers:           1,
		HiddenDim:           2048,
		ObjMaxNum:           5,
		ObjDim:              64,
		DropoutRate:         0.1,
		UseRepresentation:   true,
		PositionalEncoding:  "learned",
		ReturnAllEmbeddings: true,
	}
	assert.Empty(t, cmp.Diff(want, cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 31, cfg.SequenceLength())
	assert.Equal(t, 36, cfg.MaxSequenceLength())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero patches", func(c *Config) { c.NumPatches = 0 }, "num_patches must be positive"},
		{"negative obj dim", func(c *Config) { c.ObjDim = -1 }, "obj_dim must be positive"},
		{"indivisible heads", func(c *Config) { c.NumHeads = 5 }, "must be divisible by num_heads"},
		{"dropout one", func(c *Config) { c.DropoutRate = 1 }, "dropout_rate"},
		{"negative attn dropout", func(c *Config) { c.AttnDropoutRate = -0.1 }, "attn_dropout_rate"},
		{"unknown encoding", func(c *Config) { c.PositionalEncoding = "rotary" }, "positional_encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(64, 5)
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
