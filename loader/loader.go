// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader reads encoder checkpoints.
//
// Supported formats:
//   - .safetensors (F32, F16, BF16, I32, I64)
//   - PyTorch state dicts saved with torch.save (.pt, .pth, .bin)
//
// PyTorch checkpoints of the original patch transformer use different
// parameter names ("transformer.net.0.fn.norm.weight"); they are detected and
// renamed to the encoder layout ("transformer.blocks.0.attn_norm.weight").
//
// Example:
//
//	backend := cpu.New()
//	stateDict, err := loader.LoadStateDict("encoder.pt", backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := enc.LoadStateDict(stateDict); err != nil {
//	    log.Fatal(err)
//	}
package loader

import (
	"github.com/born-ml/patchformer/internal/loader"
	"github.com/born-ml/patchformer/tensor"
)

// ModelFormat is a checkpoint file format.
type ModelFormat = loader.ModelFormat

// Supported checkpoint formats.
const (
	FormatUnknown     ModelFormat = loader.FormatUnknown
	FormatSafeTensors ModelFormat = loader.FormatSafeTensors
	FormatTorch       ModelFormat = loader.FormatTorch
)

// Weight name layouts.
const (
	ArchitecturePatchTransformer = loader.ArchitecturePatchTransformer
	ArchitectureNative           = loader.ArchitectureNative
)

// ErrUnknownFormat is returned for unsupported file extensions.
var ErrUnknownFormat = loader.ErrUnknownFormat

// ModelReader provides uniform access to checkpoint tensors.
type ModelReader = loader.ModelReader

// WeightMapper renames checkpoint tensors to encoder state dict keys.
type WeightMapper = loader.WeightMapper

// DetectFormat returns the format implied by the file extension.
func DetectFormat(path string) ModelFormat {
	return loader.DetectFormat(path)
}

// OpenModel opens a checkpoint, detecting its format and weight layout.
func OpenModel(path string) (ModelReader, error) {
	return loader.OpenModel(path)
}

// LoadStateDict reads every tensor of the checkpoint at path, renamed to the
// encoder layout.
func LoadStateDict(path string, backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
	return loader.LoadStateDict(path, backend)
}

// LoadStateDictWithMapper is LoadStateDict with an explicit mapper. A nil
// mapper selects the detected one.
func LoadStateDictWithMapper(path string, mapper WeightMapper, backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
	return loader.LoadStateDictWithMapper(path, mapper, backend)
}

// GetMapper returns the mapper for a weight layout.
func GetMapper(architecture string) WeightMapper {
	return loader.GetMapper(architecture)
}
