// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/parallel"
	"github.com/born-ml/patchformer/tensor"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// ParallelConfig sizes the backend's worker pool.
type ParallelConfig = parallel.Config

// New creates a CPU backend using one worker per CPU.
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with an explicit worker pool.
func NewWithConfig(cfg ParallelConfig) *Backend {
	return internalcpu.NewWithConfig(cfg)
}

// DefaultParallelConfig returns one worker per CPU.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

// Sequential returns a config running every loop on the calling goroutine.
func Sequential() ParallelConfig {
	return parallel.Sequential()
}
