package fusion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/nn"
	"github.com/born-ml/patchformer/internal/tensor"
)

type testBackend = *cpu.CPUBackend

const (
	testVocab   = 7
	testDescDim = 3
)

func smallConfig() Config {
	return Config{
		NumPatches:          4,
		PatchDim:            12,
		OutDim:              6,
		EmbeddingDim:        16,
		NumHeads:            4,
		NumLayers:           2,
		HiddenDim:           32,
		ObjMaxNum:           3,
		ObjDim:              5,
		UseRepresentation:   true,
		PositionalEncoding:  nn.PositionalLearned,
		ReturnAllEmbeddings: true,
	}
}

func newTestEncoder(cfg Config) *Encoder[testBackend] {
	backend := cpu.New()
	return New(cfg, NewEmbeddingTable(testVocab, testDescDim, backend), backend)
}

func randomInput(t *testing.T, cfg Config, batch, count int, backend testBackend) Input[testBackend] {
	t.Helper()

	ids := make([]int32, batch*count)
	for i := range ids {
		ids[i] = int32(i % testVocab)
	}
	desc, err := tensor.FromSlice(ids, tensor.Shape{batch, count, 1}, backend)
	require.NoError(t, err)

	return Input[testBackend]{
		Patches:     tensor.Randn[float32](tensor.Shape{batch, cfg.NumPatches, cfg.PatchDim}, backend),
		Objects:     tensor.Randn[float32](tensor.Shape{batch, count, cfg.ObjDim}, backend),
		Descriptors: desc,
	}
}

func TestEncoder_DefaultScenarioShape(t *testing.T) {
	backend := cpu.New()
	cfg := DefaultConfig(64, 5)
	enc := New(cfg, NewEmbeddingTable(10, 64, backend), backend)

	in := randomInput(t, cfg, 1, 5, backend) // ids stay below 7
	out := enc.Forward(in.Patches, in.Objects, in.Descriptors)
	assert.Equal(t, tensor.Shape{1, 36, 768}, out.Shape())
}

func TestEncoder_PanicsOnIndivisibleHeads(t *testing.T) {
	cfg := smallConfig()
	cfg.EmbeddingDim = 10

	assert.PanicsWithValue(t, "fusion.New: embedding_dim (10) must be divisible by num_heads (4)", func() {
		newTestEncoder(cfg)
	})
}

func TestEncoder_ShapesForBatchAndCounts(t *testing.T) {
	cfg := smallConfig()
	enc := newTestEncoder(cfg)
	backend := enc.Backend()

	for _, count := range []int{1, 2, 3} {
		in := randomInput(t, cfg, 2, count, backend)
		out := enc.Forward(in.Patches, in.Objects, in.Descriptors)
		assert.Equal(t, tensor.Shape{2, 1 + cfg.NumPatches + count, cfg.EmbeddingDim}, out.Shape())
	}

	in := randomInput(t, cfg, 1, 4, backend)
	assert.Panics(t, func() { enc.Forward(in.Patches, in.Objects, in.Descriptors) })
}

func TestEncoder_DeterministicInEvalMode(t *testing.T) {
	cfg := smallConfig()
	cfg.DropoutRate = 0.3
	enc := newTestEncoder(cfg)
	in := randomInput(t, cfg, 2, 3, enc.Backend())

	first := enc.Forward(in.Patches, in.Objects, in.Descriptors).Data()
	second := enc.Forward(in.Patches, in.Objects, in.Descriptors).Data()
	assert.Equal(t, first, second)

	enc.SetTraining(true)
	assert.True(t, enc.Training())
	noisy := enc.Forward(in.Patches, in.Objects, in.Descriptors).Data()
	assert.NotEqual(t, first, noisy)
}

func TestEncoder_ClassRegionIgnoresObjects(t *testing.T) {
	cfg := smallConfig()
	enc := newTestEncoder(cfg)
	backend := enc.Backend()

	in := randomInput(t, cfg, 1, 2, backend)
	other := in
	other.Objects = tensor.Randn[float32](in.Objects.Shape(), backend)

	a := enc.Embed(in.Patches, in.Objects, in.Descriptors).Data()
	b := enc.Embed(other.Patches, other.Objects, other.Descriptors).Data()

	patchRegion := cfg.SequenceLength() * cfg.EmbeddingDim
	assert.Equal(t, a[:patchRegion], b[:patchRegion])
	assert.NotEqual(t, a[patchRegion:], b[patchRegion:])

	// The class token starts at zero, so position 0 is its positional encoding.
	pe := enc.positionEncoding.Parameters()[0].Tensor().Data()
	assert.Equal(t, pe[:cfg.EmbeddingDim], a[:cfg.EmbeddingDim])
}

func TestEncoder_LearnedVersusFixed(t *testing.T) {
	cfg := smallConfig()
	learned := newTestEncoder(cfg)

	cfg.PositionalEncoding = nn.PositionalFixed
	fixed := New(cfg, learned.Descriptors(), learned.Backend())
	require.NoError(t, fixed.LoadStateDict(learned.StateDict()))

	in := randomInput(t, cfg, 1, 3, learned.Backend())
	a := learned.Forward(in.Patches, in.Objects, in.Descriptors)
	b := fixed.Forward(in.Patches, in.Objects, in.Descriptors)

	assert.Equal(t, a.Shape(), b.Shape())
	assert.NotEqual(t, a.Data(), b.Data())
}

func TestEncoder_ClassTokenOnly(t *testing.T) {
	cfg := smallConfig()
	all := newTestEncoder(cfg)

	cfg.ReturnAllEmbeddings = false
	clsOnly := New(cfg, all.Descriptors(), all.Backend())
	require.NoError(t, clsOnly.LoadStateDict(all.StateDict()))

	in := randomInput(t, cfg, 2, 2, all.Backend())
	full := all.Forward(in.Patches, in.Objects, in.Descriptors)
	assert.Equal(t, full.Shape(), clsOnly.Forward(in.Patches, in.Objects, in.Descriptors).Shape())

	res, err := clsOnly.Encode(context.Background(), in)
	require.NoError(t, err)
	cls := res.Embeddings

	require.Equal(t, tensor.Shape{2, 1, cfg.EmbeddingDim}, cls.Shape())
	seq := full.Shape()[1]
	for b := 0; b < 2; b++ {
		start := b * seq * cfg.EmbeddingDim
		assert.Equal(t, full.Data()[start:start+cfg.EmbeddingDim], cls.Data()[b*cfg.EmbeddingDim:(b+1)*cfg.EmbeddingDim])
	}
}

func TestEncoder_Classify(t *testing.T) {
	cfg := smallConfig()
	enc := newTestEncoder(cfg)
	in := randomInput(t, cfg, 3, 2, enc.Backend())

	logits := enc.Classify(enc.Forward(in.Patches, in.Objects, in.Descriptors))
	assert.Equal(t, tensor.Shape{3, cfg.OutDim}, logits.Shape())
	assert.Contains(t, enc.StateDict(), "mlp_head.2.weight")

	cfg.UseRepresentation = false
	linear := newTestEncoder(cfg)
	assert.Contains(t, linear.StateDict(), "mlp_head.weight")
	logits = linear.Classify(linear.Forward(in.Patches, in.Objects, in.Descriptors))
	assert.Equal(t, tensor.Shape{3, cfg.OutDim}, logits.Shape())

	assert.Panics(t, func() { enc.Classify(in.Objects) })
}

func TestEncoder_Encode(t *testing.T) {
	cfg := smallConfig()
	enc := newTestEncoder(cfg)
	backend := enc.Backend()
	ctx := context.Background()

	in := randomInput(t, cfg, 2, 3, backend)
	res, err := enc.Encode(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 8, 16}, res.Embeddings.Shape())

	logits, err := enc.ClassifyInput(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, cfg.OutDim}, logits.Shape())
}

func TestEncoder_EncodeErrors(t *testing.T) {
	cfg := smallConfig()
	enc := newTestEncoder(cfg)
	backend := enc.Backend()
	ctx := context.Background()

	wrongPatches := randomInput(t, cfg, 1, 2, backend)
	wrongPatches.Patches = tensor.Randn[float32](tensor.Shape{1, 3, cfg.PatchDim}, backend)
	_, err := enc.Encode(ctx, wrongPatches)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	tooMany := randomInput(t, cfg, 1, 4, backend)
	_, err = enc.Encode(ctx, tooMany)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	batchMismatch := randomInput(t, cfg, 2, 2, backend)
	batchMismatch.Objects = tensor.Randn[float32](tensor.Shape{1, 2, cfg.ObjDim}, backend)
	_, err = enc.Encode(ctx, batchMismatch)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = enc.Encode(ctx, Input[testBackend]{})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	badIDs := randomInput(t, cfg, 1, 2, backend)
	badIDs.Descriptors.Set(testVocab, 0, 1, 0)
	_, err = enc.Encode(ctx, badIDs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding: index 7 out of range")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = enc.Encode(canceled, randomInput(t, cfg, 1, 2, backend))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncoder_FlatDescriptors(t *testing.T) {
	cfg := smallConfig()
	enc := newTestEncoder(cfg)
	in := randomInput(t, cfg, 2, 3, enc.Backend())

	want := enc.Forward(in.Patches, in.Objects, in.Descriptors).Data()
	flat := in.Descriptors.Reshape(2, 3)
	assert.Equal(t, want, enc.Forward(in.Patches, in.Objects, flat).Data())
}
