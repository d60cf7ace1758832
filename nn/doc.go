// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers the fusion encoder is built from.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, LayerNorm, Embedding, Dropout
//   - Activations: ReLU, GELU, Identity
//   - Attention: SelfAttention, FeedForward, TransformerBlock, TransformerModel
//   - Positional encodings: learned and fixed sinusoidal
//   - Utilities: Sequential, Module, Stateful, Parameter
//
// # Basic Usage
//
//	backend := cpu.New()
//	model := nn.NewTransformerModel(nn.TransformerConfig{
//	    EmbedDim:  768,
//	    Depth:     1,
//	    NumHeads:  4,
//	    HiddenDim: 2048,
//	    NormEps:   nn.DefaultLayerNormEps,
//	}, backend)
//	y := model.Forward(x) // [batch, seq, 768]
//
// # Training and Inference
//
// Modules start in inference mode. SetTraining(m, true) enables dropout in m
// and the modules it contains.
//
// # State Dicts
//
// Stateful modules expose their weights as a map of dot-separated names
// ("blocks.0.attn.qkv.weight") to RawTensors sharing memory with the module.
package nn
