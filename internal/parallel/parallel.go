// Package parallel runs index loops across a bounded set of goroutines.
package parallel

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Maximum number of goroutines running at once.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Sequential returns a config that always runs loops on the caller's goroutine.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// WithMinChunkSize returns a copy of c with a different chunk floor.
// Expensive per-item work (a whole GEMM per index) wants a floor of 1.
func (c Config) WithMinChunkSize(n int) Config {
	c.MinChunkSize = n
	return c
}

// For executes f(i) for i in [0, n).
// Falls back to sequential execution if parallelism is disabled or n is too
// small. A panic inside f is re-raised on the calling goroutine once every
// chunk has finished.
func For(n int, f func(i int), cfg Config) {
	minChunk := max(cfg.MinChunkSize, 1)
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*minChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, minChunk)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &workerPanic{value: r}
				}
			}()
			for i := start; i < end; i++ {
				f(i)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if wp, ok := err.(*workerPanic); ok {
			panic(wp.value)
		}
		panic(err)
	}
}

// ForBatch iterates a batch × inner grid, e.g. batch × heads in attention.
func ForBatch(batch, inner int, f func(b, i int), cfg Config) {
	For(batch*inner, func(k int) {
		f(k/inner, k%inner)
	}, cfg)
}

type workerPanic struct {
	value any
}

func (w *workerPanic) Error() string {
	return fmt.Sprintf("parallel worker panicked: %v", w.value)
}
