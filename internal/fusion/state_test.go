package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/patchformer/internal/nn"
	"github.com/born-ml/patchformer/internal/tensor"
)

func TestEncoder_StateDictKeys(t *testing.T) {
	enc := newTestEncoder(smallConfig())
	state := enc.StateDict()

	for _, key := range []string{
		"cls_token",
		"linear_encoding.weight",
		"linear_obj_encoding.bias",
		"position_encoding.pe.weight",
		"obj_position_encoding.pe.weight",
		"transformer.blocks.1.attn.qkv.weight",
		"transformer.blocks.0.ffn.fc2.bias",
		"pre_head_ln.weight",
		"mlp_head.0.weight",
		"weight_embed.weight",
	} {
		assert.Contains(t, state, key)
	}
	assert.Equal(t, tensor.Shape{1, 1, 16}, state["cls_token"].Shape())
	assert.Equal(t, tensor.Shape{16, 5 + testDescDim}, state["linear_obj_encoding.weight"].Shape())
	assert.Equal(t, tensor.Shape{5, 16}, state["position_encoding.pe.weight"].Shape())
	assert.Equal(t, tensor.Shape{3, 16}, state["obj_position_encoding.pe.weight"].Shape())

	named := enc.NamedParameters()
	require.Len(t, named, len(state))
	assert.Equal(t, "cls_token", named[0].Name)

	total := 0
	for _, p := range named {
		total += p.Tensor.NumElements()
	}
	assert.Equal(t, total, enc.NumParameters())
}

func TestEncoder_FixedEncodingHasNoTable(t *testing.T) {
	cfg := smallConfig()
	cfg.PositionalEncoding = nn.PositionalFixed
	enc := newTestEncoder(cfg)

	assert.NotContains(t, enc.StateDict(), "position_encoding.pe.weight")
}

func TestEncoder_LoadStateDict(t *testing.T) {
	cfg := smallConfig()
	src := newTestEncoder(cfg)
	dst := newTestEncoder(cfg)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	in := randomInput(t, cfg, 1, 2, src.Backend())
	assert.Equal(t,
		src.Forward(in.Patches, in.Objects, in.Descriptors).Data(),
		dst.Forward(in.Patches, in.Objects, in.Descriptors).Data())

	partial := src.StateDict()
	delete(partial, "transformer.blocks.0.attn.proj.weight")
	err := dst.LoadStateDict(partial)
	assert.ErrorIs(t, err, ErrMissingTensor)
	assert.Contains(t, err.Error(), "transformer.blocks.0.attn.proj.weight")

	wrong := src.StateDict()
	wrong["cls_token"] = tensor.Zeros[float32](tensor.Shape{1, 16}, src.Backend()).Raw()
	err = dst.LoadStateDict(wrong)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cls_token shape mismatch")
}

func TestEncoder_LoadStateDict_FailureLeavesWeights(t *testing.T) {
	cfg := smallConfig()
	src := newTestEncoder(cfg)
	dst := newTestEncoder(cfg)

	before := make(map[string][]float32)
	for name, raw := range dst.StateDict() {
		before[name] = append([]float32(nil), raw.AsFloat32()...)
	}

	bad := src.StateDict()
	bad["pre_head_ln.weight"] = tensor.Zeros[float32](tensor.Shape{1, 1}, src.Backend()).Raw()
	err := dst.LoadStateDict(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pre_head_ln.weight shape mismatch")

	ids := src.StateDict()
	ids["mlp_head.0.bias"] = tensor.Zeros[int32](ids["mlp_head.0.bias"].Shape(), src.Backend()).Raw()
	err = dst.LoadStateDict(ids)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mlp_head.0.bias dtype mismatch")

	for name, raw := range dst.StateDict() {
		assert.Equal(t, before[name], raw.AsFloat32(), name)
	}
}
