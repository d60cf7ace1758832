// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package fusion provides the patch/object fusion encoder.
//
// The encoder projects image patch features and object features (each object
// concatenated with its descriptor embedding) to a common width, prepends a
// class token, adds positional encodings, and runs the combined sequence
// through a transformer:
//
//	[cls | patch_1 ... patch_P | object_1 ... object_K] -> [batch, 1+P+K, E]
//
// Example:
//
//	backend := cpu.New()
//	cfg := fusion.DefaultConfig(64, 10)
//	enc := fusion.New(cfg, fusion.NewEmbeddingTable(100, 64, backend), backend)
//
//	res, err := enc.Encode(ctx, fusion.Input[*cpu.Backend]{
//	    Patches:     patches,     // [batch, 30, 2048]
//	    Objects:     objects,     // [batch, count, 64]
//	    Descriptors: descriptors, // [batch, count, 1] int32
//	})
package fusion

import (
	"github.com/born-ml/patchformer/internal/fusion"
	"github.com/born-ml/patchformer/tensor"
)

// Config holds every construction parameter of the encoder.
type Config = fusion.Config

// DefaultConfig returns the standard patch transformer for objects of
// objDim features and at most objMaxNum objects.
func DefaultConfig(objDim, objMaxNum int) Config {
	return fusion.DefaultConfig(objDim, objMaxNum)
}

// Encoder is the fusion encoder.
type Encoder[B tensor.Backend] = fusion.Encoder[B]

// Input groups the tensors of one Encode call.
type Input[B tensor.Backend] = fusion.Input[B]

// Result is the output of Encode.
type Result[B tensor.Backend] = fusion.Result[B]

// NamedParameter pairs a state dict key with its tensor.
type NamedParameter = fusion.NamedParameter

// DescriptorEmbedder maps descriptor ids to dense vectors.
type DescriptorEmbedder[B tensor.Backend] = fusion.DescriptorEmbedder[B]

// EmbeddingTable is a DescriptorEmbedder backed by a lookup table.
type EmbeddingTable[B tensor.Backend] = fusion.EmbeddingTable[B]

// Sentinel errors.
var (
	ErrInvalidConfig = fusion.ErrInvalidConfig
	ErrShapeMismatch = fusion.ErrShapeMismatch
	ErrMissingTensor = fusion.ErrMissingTensor
)

// New builds an encoder. It panics when cfg.EmbeddingDim is not divisible by
// cfg.NumHeads.
func New[B tensor.Backend](cfg Config, descriptors DescriptorEmbedder[B], backend B) *Encoder[B] {
	return fusion.New(cfg, descriptors, backend)
}

// NewEmbeddingTable creates a randomly initialized descriptor table.
func NewEmbeddingTable[B tensor.Backend](vocab, dim int, backend B) *EmbeddingTable[B] {
	return fusion.NewEmbeddingTable(vocab, dim, backend)
}
