package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/patchformer/internal/tensor"
)

func TestCPUBackend_Embedding(t *testing.T) {
	backend := newTestBackend()

	weight := rawFromSlice(t, []float32{
		0, 0,
		1, 1,
		2, 2,
		3, 3,
	}, tensor.Shape{4, 2})
	// Descriptor layout [batch=2, objects=2, 1].
	ids := rawInt32(t, []int32{3, 0, 1, 2}, tensor.Shape{2, 2, 1})

	out := backend.Embedding(weight, ids)
	assert.Equal(t, tensor.Shape{2, 2, 1, 2}, out.Shape())
	assert.Equal(t, []float32{3, 3, 0, 0, 1, 1, 2, 2}, out.AsFloat32())
}

func TestCPUBackend_EmbeddingOutOfRange(t *testing.T) {
	backend := newTestBackend()

	weight := rawFromSlice(t, make([]float32, 8), tensor.Shape{4, 2})
	ids := rawInt32(t, []int32{1, 4}, tensor.Shape{2})

	assert.PanicsWithValue(t, "embedding: index 4 out of range [0, 4)",
		func() { backend.Embedding(weight, ids) })
}

func TestCPUBackend_EmbeddingRequiresInt32(t *testing.T) {
	backend := newTestBackend()

	weight := rawFromSlice(t, make([]float32, 8), tensor.Shape{4, 2})
	ids := rawFromSlice(t, []float32{1}, tensor.Shape{1})
	assert.Panics(t, func() { backend.Embedding(weight, ids) })
}
