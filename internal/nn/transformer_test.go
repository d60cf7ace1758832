package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/tensor"
)

func smallConfig() TransformerConfig {
	return TransformerConfig{
		EmbedDim:    16,
		Depth:       2,
		NumHeads:    4,
		HiddenDim:   32,
		DropoutRate: 0.1,
		NormEps:     DefaultLayerNormEps,
	}
}

func TestFeedForward_Forward(t *testing.T) {
	backend := cpu.New()
	ffn := NewFeedForward(8, 32, 0.1, backend)

	out := ffn.Forward(tensor.Randn[float32](tensor.Shape{2, 3, 8}, backend))
	assert.Equal(t, tensor.Shape{2, 3, 8}, out.Shape())
	assert.Len(t, ffn.Parameters(), 4)
	assert.Equal(t, []string{"fc1.bias", "fc1.weight", "fc2.bias", "fc2.weight"}, StateKeys(ffn.StateDict()))
}

func TestTransformerBlock_ResidualWithZeroBranches(t *testing.T) {
	backend := cpu.New()
	block := NewTransformerBlock(smallConfig(), backend)

	// Zeroed output projections turn both branches off.
	for _, p := range []*Parameter[testBackend]{
		block.Attention.Proj.Weight(), block.Attention.Proj.Bias(),
		block.FFN.FC2.Weight(), block.FFN.FC2.Bias(),
	} {
		clear(p.Tensor().Data())
	}

	x := tensor.Randn[float32](tensor.Shape{2, 5, 16}, backend)
	before := append([]float32(nil), x.Data()...)

	out := block.Forward(x)
	assert.Equal(t, before, out.Data())
	assert.Equal(t, before, x.Data(), "input must not be modified")
}

func TestTransformerBlock_Validation(t *testing.T) {
	backend := cpu.New()

	cfg := smallConfig()
	cfg.NumHeads = 3
	assert.Panics(t, func() { NewTransformerBlock(cfg, backend) })

	cfg = smallConfig()
	cfg.HiddenDim = 0
	assert.Panics(t, func() { NewTransformerBlock(cfg, backend) })
}

func TestTransformerModel_Forward(t *testing.T) {
	backend := cpu.New()
	model := NewTransformerModel(smallConfig(), backend)
	require.Len(t, model.Blocks, 2)

	x := tensor.Randn[float32](tensor.Shape{2, 7, 16}, backend)
	out := model.Forward(x)
	assert.Equal(t, tensor.Shape{2, 7, 16}, out.Shape())

	// Eval mode is deterministic.
	assert.Equal(t, out.Data(), model.Forward(x).Data())

	steps := model.ForwardIntermediate(x)
	require.Len(t, steps, 2)
	assert.Equal(t, out.Data(), steps[1].Data())
	assert.Equal(t, model.Blocks[0].Forward(x).Data(), steps[0].Data())
}

func TestTransformerModel_TrainingMode(t *testing.T) {
	backend := cpu.New()
	cfg := smallConfig()
	cfg.DropoutRate = 0.5
	model := NewTransformerModel(cfg, backend)

	SetTraining(model, true)
	assert.True(t, model.Blocks[1].FFN.Dropout2.Training())
	assert.True(t, model.Blocks[0].AttnDrop.Training())

	SetTraining(model, false)
	assert.False(t, model.Blocks[1].FFN.Dropout2.Training())
}

func TestTransformerModel_StateDict(t *testing.T) {
	backend := cpu.New()
	src := NewTransformerModel(smallConfig(), backend)
	dst := NewTransformerModel(smallConfig(), backend)

	state := src.StateDict()
	assert.Contains(t, state, "blocks.1.attn.qkv.weight")
	assert.Contains(t, state, "blocks.0.ffn_norm.weight")
	assert.Len(t, state, 2*11)

	require.NoError(t, dst.LoadStateDict(state))
	x := tensor.Randn[float32](tensor.Shape{1, 3, 16}, backend)
	assert.Equal(t, src.Forward(x).Data(), dst.Forward(x).Data())

	delete(state, "blocks.1.attn.proj.bias")
	err := dst.LoadStateDict(state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocks.1: attn: proj: missing bias")

	assert.Equal(t, CountParameters(src.Parameters()), 2*(2*16*2+3*16*16+16*16+16+16*32+32+32*16+16))
}
