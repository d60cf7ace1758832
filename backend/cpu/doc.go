// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// Matrix products go through gonum's float32 BLAS; batched and row-wise
// operations are split across a bounded goroutine pool.
//
//	backend := cpu.New()
//	enc := fusion.New(cfg, fusion.NewEmbeddingTable(100, 64, backend), backend)
//
// Use NewWithConfig to size the pool or run everything on the calling
// goroutine:
//
//	backend := cpu.NewWithConfig(cpu.Sequential())
//
// The backend holds no mutable state and is safe for concurrent use.
package cpu
