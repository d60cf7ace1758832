package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/patchformer/internal/tensor"
)

// TransformerConfig defines the configuration of a TransformerModel.
type TransformerConfig struct {
	EmbedDim        int     // d_model (e.g., 768)
	Depth           int     // Number of blocks
	NumHeads        int     // Number of attention heads
	HiddenDim       int     // FFN hidden dimension
	DropoutRate     float32 // Residual-branch and FFN dropout
	AttnDropoutRate float32 // Dropout on attention weights and the attention projection
	NormEps         float32 // LayerNorm epsilon (1e-5 typical)
}

// TransformerBlock implements one pre-norm transformer block.
//
// Architecture:
//
//	x → LayerNorm → SelfAttention → Dropout → + → LayerNorm → FFN → + → output
//	↑_______________________________________|  ↑_____________________|
//	              (residual)                         (residual)
//
// Example:
//
//	config := nn.TransformerConfig{EmbedDim: 768, NumHeads: 4, HiddenDim: 2048, NormEps: 1e-5}
//	block := nn.NewTransformerBlock(config, backend)
//	output := block.Forward(x)  // [batch, seq, 768] -> [batch, seq, 768]
type TransformerBlock[B tensor.Backend] struct {
	Config    TransformerConfig
	AttnNorm  *LayerNorm[B]
	Attention *SelfAttention[B]
	AttnDrop  *Dropout[B]
	FFNNorm   *LayerNorm[B]
	FFN       *FeedForward[B]
}

// NewTransformerBlock creates a new pre-norm transformer block.
func NewTransformerBlock[B tensor.Backend](config TransformerConfig, backend B) *TransformerBlock[B] {
	if config.EmbedDim <= 0 {
		panic(fmt.Sprintf("TransformerBlock: embedDim must be positive, got %d", config.EmbedDim))
	}
	if config.NumHeads <= 0 {
		panic(fmt.Sprintf("TransformerBlock: numHeads must be positive, got %d", config.NumHeads))
	}
	if config.EmbedDim%config.NumHeads != 0 {
		panic(fmt.Sprintf("TransformerBlock: embedDim (%d) must be divisible by numHeads (%d)",
			config.EmbedDim, config.NumHeads))
	}
	if config.HiddenDim <= 0 {
		panic(fmt.Sprintf("TransformerBlock: hiddenDim must be positive, got %d", config.HiddenDim))
	}
	if config.NormEps <= 0 {
		panic(fmt.Sprintf("TransformerBlock: normEps must be positive, got %f", config.NormEps))
	}

	return &TransformerBlock[B]{
		Config:    config,
		AttnNorm:  NewLayerNorm(config.EmbedDim, config.NormEps, backend),
		Attention: NewSelfAttention(config.EmbedDim, config.NumHeads, config.AttnDropoutRate, backend),
		AttnDrop:  NewDropout[B](config.DropoutRate),
		FFNNorm:   NewLayerNorm(config.EmbedDim, config.NormEps, backend),
		FFN:       NewFeedForward(config.EmbedDim, config.HiddenDim, config.DropoutRate, backend),
	}
}

// Forward computes the block output. Shape: [batch, seq, embed_dim] in and out.
func (t *TransformerBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	attnOut := t.AttnDrop.Forward(t.Attention.Forward(t.AttnNorm.Forward(x)))
	x = x.Add(attnOut)

	ffnOut := t.FFN.Forward(t.FFNNorm.Forward(x))
	return x.Add(ffnOut)
}

// Parameters returns all trainable parameters in the block.
func (t *TransformerBlock[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	params = append(params, t.AttnNorm.Parameters()...)
	params = append(params, t.Attention.Parameters()...)
	params = append(params, t.FFNNorm.Parameters()...)
	params = append(params, t.FFN.Parameters()...)
	return params
}

// SetTraining toggles every dropout in the block.
func (t *TransformerBlock[B]) SetTraining(training bool) {
	t.Attention.SetTraining(training)
	t.AttnDrop.SetTraining(training)
	t.FFN.SetTraining(training)
}

// StateDict returns attn_norm.*, attn.*, ffn_norm.* and ffn.* entries.
func (t *TransformerBlock[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeState(stateDict, "attn_norm", t.AttnNorm.StateDict())
	mergeState(stateDict, "attn", t.Attention.StateDict())
	mergeState(stateDict, "ffn_norm", t.FFNNorm.StateDict())
	mergeState(stateDict, "ffn", t.FFN.StateDict())
	return stateDict
}

// LoadStateDict loads the block's weights.
func (t *TransformerBlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	children := []struct {
		prefix string
		module Stateful
	}{
		{"attn_norm", t.AttnNorm},
		{"attn", t.Attention},
		{"ffn_norm", t.FFNNorm},
		{"ffn", t.FFN},
	}
	for _, c := range children {
		if err := loadChild(c.module, c.prefix, stateDict); err != nil {
			return err
		}
	}
	return nil
}

// TransformerModel stacks Depth pre-norm blocks.
//
// Example:
//
//	model := nn.NewTransformerModel(nn.TransformerConfig{
//	    EmbedDim: 768, Depth: 1, NumHeads: 4, HiddenDim: 2048,
//	    DropoutRate: 0.1, NormEps: nn.DefaultLayerNormEps,
//	}, backend)
//	out := model.Forward(x) // [batch, seq, 768]
type TransformerModel[B tensor.Backend] struct {
	Config TransformerConfig
	Blocks []*TransformerBlock[B]
}

// NewTransformerModel creates Depth blocks from config. NormEps defaults to
// DefaultLayerNormEps when zero.
func NewTransformerModel[B tensor.Backend](config TransformerConfig, backend B) *TransformerModel[B] {
	if config.Depth <= 0 {
		panic(fmt.Sprintf("TransformerModel: depth must be positive, got %d", config.Depth))
	}
	if config.NormEps == 0 {
		config.NormEps = DefaultLayerNormEps
	}

	blocks := make([]*TransformerBlock[B], config.Depth)
	for i := range blocks {
		blocks[i] = NewTransformerBlock(config, backend)
	}
	return &TransformerModel[B]{Config: config, Blocks: blocks}
}

// Forward runs x through every block.
func (m *TransformerModel[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, block := range m.Blocks {
		x = block.Forward(x)
	}
	return x
}

// ForwardIntermediate runs x through every block and returns each block's
// output in order. The last element equals Forward(x).
func (m *TransformerModel[B]) ForwardIntermediate(x *tensor.Tensor[float32, B]) []*tensor.Tensor[float32, B] {
	outputs := make([]*tensor.Tensor[float32, B], 0, len(m.Blocks))
	for _, block := range m.Blocks {
		x = block.Forward(x)
		outputs = append(outputs, x)
	}
	return outputs
}

// Parameters returns the parameters of every block.
func (m *TransformerModel[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, block := range m.Blocks {
		params = append(params, block.Parameters()...)
	}
	return params
}

// SetTraining propagates the mode to every block.
func (m *TransformerModel[B]) SetTraining(training bool) {
	for _, block := range m.Blocks {
		block.SetTraining(training)
	}
}

// StateDict returns blocks.{i}.* entries.
func (m *TransformerModel[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, block := range m.Blocks {
		mergeState(stateDict, "blocks."+strconv.Itoa(i), block.StateDict())
	}
	return stateDict
}

// LoadStateDict loads every block.
func (m *TransformerModel[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, block := range m.Blocks {
		if err := loadChild(block, "blocks."+strconv.Itoa(i), stateDict); err != nil {
			return err
		}
	}
	return nil
}
