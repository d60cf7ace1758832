// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of patchformer.
//
// The package defines the types every other package is generic over:
//   - Tensor[T, B]: typed tensor computed by backend B
//   - RawTensor: untyped, reference-counted storage
//   - Backend: operations a compute backend provides
//   - Shape, DataType, Device
//
// Element types are float32 (activations and weights) and int32 (descriptor
// and position ids).
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Randn[float32](tensor.Shape{2, 31, 2048}, backend)
//	ids, err := tensor.FromSlice([]int32{3, 7}, tensor.Shape{1, 2, 1}, backend)
package tensor
