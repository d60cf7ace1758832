// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/patchformer/internal/nn"
	"github.com/born-ml/patchformer/internal/tensor"
)

// Module is implemented by every layer.
type Module[B tensor.Backend] = nn.Module[B]

// Stateful is implemented by modules whose weights can be saved and restored.
type Stateful = nn.Stateful

// Parameter is a trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// SetTraining switches m between training and inference mode when m has
// dropout.
func SetTraining(m any, training bool) {
	nn.SetTraining(m, training)
}

// CountParameters returns the number of scalar weights in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.CountParameters(params)
}

// Layers

// Linear is a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier initialization.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// LayerNorm normalizes over the last dimension.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// DefaultLayerNormEps is the epsilon used by the encoder's layer norms.
const DefaultLayerNormEps = nn.DefaultLayerNormEps

// NewLayerNorm creates a layer norm with unit weight and zero bias.
func NewLayerNorm[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm(normalizedShape, epsilon, backend)
}

// Embedding is a lookup table of dense vectors.
type Embedding[B tensor.Backend] = nn.Embedding[B]

// NewEmbedding creates a normally initialized embedding table.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	return nn.NewEmbedding(numEmbeddings, embeddingDim, backend)
}

// Dropout zeroes activations with probability p in training mode.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a dropout layer.
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	return nn.NewDropout[B](p)
}

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential from modules in order.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Activations

// ReLU is max(x, 0).
type ReLU[B tensor.Backend] = nn.ReLU[B]

// GELU is the Gaussian error linear unit.
type GELU[B tensor.Backend] = nn.GELU[B]

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// NewGELU creates a GELU activation.
func NewGELU[B tensor.Backend]() *GELU[B] {
	return nn.NewGELU[B]()
}

// Attention

// SelfAttention is multi-head self-attention with a fused QKV projection.
type SelfAttention[B tensor.Backend] = nn.SelfAttention[B]

// NewSelfAttention creates a self-attention layer. It panics when dim is not
// divisible by numHeads.
func NewSelfAttention[B tensor.Backend](dim, numHeads int, attnDropout float32, backend B) *SelfAttention[B] {
	return nn.NewSelfAttention(dim, numHeads, attnDropout, backend)
}

// FeedForward is Linear, GELU, Dropout, Linear, Dropout.
type FeedForward[B tensor.Backend] = nn.FeedForward[B]

// NewFeedForward creates a feed-forward block.
func NewFeedForward[B tensor.Backend](dim, hiddenDim int, dropout float32, backend B) *FeedForward[B] {
	return nn.NewFeedForward(dim, hiddenDim, dropout, backend)
}

// TransformerConfig configures a TransformerModel.
type TransformerConfig = nn.TransformerConfig

// TransformerBlock is one pre-norm transformer block.
type TransformerBlock[B tensor.Backend] = nn.TransformerBlock[B]

// TransformerModel stacks TransformerBlocks.
type TransformerModel[B tensor.Backend] = nn.TransformerModel[B]

// NewTransformerModel creates config.Depth blocks.
func NewTransformerModel[B tensor.Backend](config TransformerConfig, backend B) *TransformerModel[B] {
	return nn.NewTransformerModel(config, backend)
}

// Positional encodings

// PositionalEncoding adds position information to a [batch, seq, dim] input.
type PositionalEncoding[B tensor.Backend] = nn.PositionalEncoding[B]

// Positional encoding kinds.
const (
	PositionalLearned = nn.PositionalLearned
	PositionalFixed   = nn.PositionalFixed
)

// NewPositionalEncoding creates a learned or fixed positional encoding.
func NewPositionalEncoding[B tensor.Backend](kind string, maxLen, dim int, backend B) (PositionalEncoding[B], error) {
	return nn.NewPositionalEncoding(kind, maxLen, dim, backend)
}
