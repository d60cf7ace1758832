package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/tensor"
)

func TestScaledDotProductAttention_UniformScores(t *testing.T) {
	backend := cpu.New()

	// Identical keys give uniform weights, so the output is the mean of V.
	q := tensor.Randn[float32](tensor.Shape{1, 1, 2, 4}, backend)
	k := constant(1, tensor.Shape{1, 1, 3, 4}, backend)
	v := fromSlice(t, []float32{
		0, 0, 0, 0,
		3, 3, 3, 3,
		6, 6, 6, 6,
	}, tensor.Shape{1, 1, 3, 4}, backend)

	out, weights := ScaledDotProductAttention(q, k, v, nil, 0)
	assert.Equal(t, tensor.Shape{1, 1, 2, 4}, out.Shape())
	assert.Equal(t, tensor.Shape{1, 1, 2, 3}, weights.Shape())
	for _, w := range weights.Data() {
		assert.InDelta(t, 1.0/3.0, w, 1e-6)
	}
	for _, o := range out.Data() {
		assert.InDelta(t, 3.0, o, 1e-5)
	}
}

func TestScaledDotProductAttention_Validation(t *testing.T) {
	backend := cpu.New()
	q := tensor.Randn[float32](tensor.Shape{1, 1, 2, 4}, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 1, 3, 4}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 1, 2, 4}, backend)

	assert.Panics(t, func() { ScaledDotProductAttention(q, k, v, nil, 0) })
	assert.Panics(t, func() { ScaledDotProductAttention(q.Reshape(2, 4), k, k, nil, 0) })
}

func TestSelfAttention_Forward(t *testing.T) {
	backend := cpu.New()
	attn := NewSelfAttention(16, 4, 0, backend)

	assert.Equal(t, 4, attn.HeadDim)
	assert.Nil(t, attn.QKV.Bias())
	assert.Equal(t, tensor.Shape{48, 16}, attn.QKV.Weight().Tensor().Shape())

	x := tensor.Randn[float32](tensor.Shape{2, 5, 16}, backend)
	out, weights := attn.ForwardWithWeights(x)
	assert.Equal(t, tensor.Shape{2, 5, 16}, out.Shape())
	assert.Equal(t, tensor.Shape{2, 4, 5, 5}, weights.Shape())

	// Each attention row is a distribution.
	w := weights.Data()
	for row := 0; row < len(w)/5; row++ {
		sum := float32(0)
		for _, p := range w[row*5 : row*5+5] {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
}

func TestSelfAttention_BatchIndependence(t *testing.T) {
	backend := cpu.New()
	attn := NewSelfAttention(8, 2, 0, backend)

	x := tensor.Randn[float32](tensor.Shape{2, 3, 8}, backend)
	full := attn.Forward(x).Data()

	second := fromSlice(t, x.Data()[24:], tensor.Shape{1, 3, 8}, backend)
	assert.InDeltaSlice(t, full[24:], attn.Forward(second).Data(), 1e-5)
}

func TestSelfAttention_PanicsOnIndivisibleHeads(t *testing.T) {
	backend := cpu.New()
	assert.PanicsWithValue(t, "SelfAttention: embed_dim (10) must be divisible by num_heads (4)", func() {
		NewSelfAttention(10, 4, 0, backend)
	})
}

func TestSelfAttention_StateDict(t *testing.T) {
	backend := cpu.New()
	src := NewSelfAttention(8, 2, 0, backend)
	dst := NewSelfAttention(8, 2, 0, backend)

	assert.Equal(t, []string{"proj.bias", "proj.weight", "qkv.weight"}, StateKeys(src.StateDict()))
	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	x := tensor.Randn[float32](tensor.Shape{1, 4, 8}, backend)
	assert.Equal(t, src.Forward(x).Data(), dst.Forward(x).Data())
}
