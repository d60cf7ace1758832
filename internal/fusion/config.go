package fusion

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/nn"
)

// Config holds every construction parameter of the encoder.
type Config struct {
	NumPatches          int     `yaml:"num_patches" json:"num_patches"`
	PatchDim            int     `yaml:"patch_dim" json:"patch_dim"`
	OutDim              int     `yaml:"out_dim" json:"out_dim"`
	EmbeddingDim        int     `yaml:"embedding_dim" json:"embedding_dim"`
	NumHeads            int     `yaml:"num_heads" json:"num_heads"`
	NumLayers           int     `yaml:"num_layers" json:"num_layers"`
	HiddenDim           int     `yaml:"hidden_dim" json:"hidden_dim"`
	ObjMaxNum           int     `yaml:"obj_max_num" json:"obj_max_num"`
	ObjDim              int     `yaml:"obj_dim" json:"obj_dim"` // raw object feature width, without the descriptor embedding
	DropoutRate         float32 `yaml:"dropout_rate" json:"dropout_rate"`
	AttnDropoutRate     float32 `yaml:"attn_dropout_rate" json:"attn_dropout_rate"`
	UseRepresentation   bool    `yaml:"use_representation" json:"use_representation"`
	PositionalEncoding  string  `yaml:"positional_encoding" json:"positional_encoding"` // "learned" or "fixed"
	ReturnAllEmbeddings bool    `yaml:"return_all_embeddings" json:"return_all_embeddings"`
}

// DefaultConfig returns the standard patch transformer: 30 patches of 2048
// features, 768-wide embeddings, 4 heads, one layer, 2048 hidden units,
// dropout 0.1 and a learned positional encoding.
func DefaultConfig(objDim, objMaxNum int) Config {
	return Config{
		NumPatches:          30,
		PatchDim:            2048,
		OutDim:              2048,
		EmbeddingDim:        768,
		NumHeads:            4,
		NumLayers:           1,
		HiddenDim:           2048,
		ObjMaxNum:           objMaxNum,
		ObjDim:              objDim,
		DropoutRate:         0.1,
		AttnDropoutRate:     0,
		UseRepresentation:   true,
		PositionalEncoding:  nn.PositionalLearned,
		ReturnAllEmbeddings: true,
	}
}

// SequenceLength is the patch sequence length including the class token.
func (c Config) SequenceLength() int {
	return c.NumPatches + 1
}

// MaxSequenceLength is the longest fused sequence the encoder accepts:
// class token, every patch and ObjMaxNum objects.
func (c Config) MaxSequenceLength() int {
	return c.SequenceLength() + c.ObjMaxNum
}

// Validate reports the first problem with c, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"num_patches", c.NumPatches},
		{"patch_dim", c.PatchDim},
		{"out_dim", c.OutDim},
		{"embedding_dim", c.EmbeddingDim},
		{"num_heads", c.NumHeads},
		{"num_layers", c.NumLayers},
		{"hidden_dim", c.HiddenDim},
		{"obj_max_num", c.ObjMaxNum},
		{"obj_dim", c.ObjDim},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}

	if c.EmbeddingDim%c.NumHeads != 0 {
		return fmt.Errorf("%w: embedding_dim (%d) must be divisible by num_heads (%d)",
			ErrInvalidConfig, c.EmbeddingDim, c.NumHeads)
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 {
		return fmt.Errorf("%w: dropout_rate must be in [0, 1), got %v", ErrInvalidConfig, c.DropoutRate)
	}
	if c.AttnDropoutRate < 0 || c.AttnDropoutRate >= 1 {
		return fmt.Errorf("%w: attn_dropout_rate must be in [0, 1), got %v", ErrInvalidConfig, c.AttnDropoutRate)
	}

	switch c.PositionalEncoding {
	case nn.PositionalLearned, nn.PositionalFixed:
	default:
		return fmt.Errorf("%w: positional_encoding must be %q or %q, got %q",
			ErrInvalidConfig, nn.PositionalLearned, nn.PositionalFixed, c.PositionalEncoding)
	}
	return nil
}
