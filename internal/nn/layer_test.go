package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/tensor"
)

func TestLayerNorm_Forward(t *testing.T) {
	backend := cpu.New()
	ln := NewLayerNorm(4, DefaultLayerNormEps, backend)

	x := fromSlice(t, []float32{1, 2, 3, 4, 10, 10, 10, 10}, tensor.Shape{2, 4}, backend)
	out := ln.Forward(x).Data()

	// mean 2.5, biased variance 1.25
	inv := 1 / math.Sqrt(1.25+1e-5)
	want := []float32{
		float32(-1.5 * inv), float32(-0.5 * inv), float32(0.5 * inv), float32(1.5 * inv),
		0, 0, 0, 0,
	}
	assert.InDeltaSlice(t, want, out, 1e-5)
}

func TestLayerNorm_AffineAndState(t *testing.T) {
	backend := cpu.New()
	ln := NewLayerNorm(2, DefaultLayerNormEps, backend)

	state := map[string]*tensor.RawTensor{
		"weight": fromSlice(t, []float32{2, 2}, tensor.Shape{2}, backend).Raw(),
		"bias":   fromSlice(t, []float32{1, 1}, tensor.Shape{2}, backend).Raw(),
	}
	require.NoError(t, ln.LoadStateDict(state))

	x := fromSlice(t, []float32{-1, 1}, tensor.Shape{1, 1, 2}, backend)
	assert.InDeltaSlice(t, []float32{-1, 3}, ln.Forward(x).Data(), 1e-4)
	assert.Equal(t, []string{"bias", "weight"}, StateKeys(ln.StateDict()))
}

func TestEmbedding_Forward(t *testing.T) {
	backend := cpu.New()
	weight := fromSlice(t, []float32{0, 0, 1, 1, 2, 2}, tensor.Shape{3, 2}, backend)
	embed := NewEmbeddingWithWeight(weight)

	ids, err := tensor.FromSlice([]int32{2, 1}, tensor.Shape{1, 2, 1}, backend)
	require.NoError(t, err)

	out := embed.Forward(ids)
	assert.Equal(t, tensor.Shape{1, 2, 1, 2}, out.Shape())
	assert.Equal(t, []float32{2, 2, 1, 1}, out.Data())

	bad, err := tensor.FromSlice([]int32{3}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	assert.Panics(t, func() { embed.Forward(bad) })
}

func TestDropout_Modes(t *testing.T) {
	backend := cpu.New()
	x := constant(1, tensor.Shape{64, 64}, backend)

	d := NewDropout[testBackend](0.5)
	assert.False(t, d.Training())
	assert.Same(t, x, d.Forward(x), "eval mode must be the identity")

	d.SetTraining(true)
	out := d.Forward(x).Data()
	zeros := 0
	for _, v := range out {
		if v == 0 {
			zeros++
		} else {
			assert.InDelta(t, 2.0, v, 1e-6)
		}
	}
	assert.Greater(t, zeros, 0)
	assert.Less(t, zeros, len(out))

	none := NewDropout[testBackend](0)
	none.SetTraining(true)
	assert.Same(t, x, none.Forward(x))

	assert.Panics(t, func() { NewDropout[testBackend](1.5) })
}

func TestActivations(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, []float32{-1, 0, 2}, tensor.Shape{1, 3}, backend)

	assert.Equal(t, []float32{0, 0, 2}, NewReLU[testBackend]().Forward(x).Data())
	assert.InDeltaSlice(t, []float32{-0.15865526, 0, 1.9544997}, NewGELU[testBackend]().Forward(x).Data(), 1e-5)
	assert.Same(t, x, NewIdentity[testBackend]().Forward(x))
	assert.Nil(t, NewReLU[testBackend]().Parameters())
}

func TestSequential_StateDictUsesIndices(t *testing.T) {
	backend := cpu.New()
	head := NewSequential[testBackend](
		NewLinear(4, 8, backend),
		NewReLU[testBackend](),
		NewLinear(8, 2, backend),
	)

	assert.Equal(t, 3, head.Len())
	assert.Len(t, head.Parameters(), 4)
	assert.Equal(t, []string{"0.bias", "0.weight", "2.bias", "2.weight"}, StateKeys(head.StateDict()))

	out := head.Forward(tensor.Randn[float32](tensor.Shape{3, 4}, backend))
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())

	other := NewSequential[testBackend](
		NewLinear(4, 8, backend),
		NewReLU[testBackend](),
		NewLinear(8, 2, backend),
	)
	require.NoError(t, other.LoadStateDict(head.StateDict()))
	assert.Equal(t, head.Module(2).Parameters()[0].Tensor().Data(), other.Module(2).Parameters()[0].Tensor().Data())

	err := other.LoadStateDict(map[string]*tensor.RawTensor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0: missing weight")
}
