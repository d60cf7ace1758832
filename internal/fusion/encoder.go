// Package fusion implements the patch/object fusion encoder: a vision
// transformer that prepends a class token to projected image patches,
// appends projected object embeddings (raw object features joined with a
// descriptor embedding), and contextualizes the whole sequence with
// self-attention.
package fusion

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/nn"
	"github.com/born-ml/patchformer/internal/tensor"
)

// Encoder fuses patch features and object metadata into one embedding
// sequence.
//
// Example:
//
//	backend := cpu.New()
//	cfg := fusion.DefaultConfig(64, 5)
//	desc := fusion.NewEmbeddingTable(100, 64, backend)
//	enc := fusion.New(cfg, desc, backend)
//	out := enc.Forward(patches, objects, ids) // [batch, 1+30+objects, 768]
type Encoder[B tensor.Backend] struct {
	cfg     Config
	backend B

	descriptors DescriptorEmbedder[B]

	clsToken            *nn.Parameter[B] // [1, 1, E]
	linearEncoding      *nn.Linear[B]    // patch_dim -> E
	linearObjEncoding   *nn.Linear[B]    // obj_dim + descriptor dim -> E
	positionEncoding    nn.PositionalEncoding[B]
	objPositionEncoding *nn.LearnedPositionalEncoding[B]
	peDropout           *nn.Dropout[B]
	transformer         *nn.TransformerModel[B]
	preHeadLN           *nn.LayerNorm[B]
	mlpHead             nn.Module[B]

	training bool
}

// New builds an encoder from cfg.
//
// Panics if EmbeddingDim is not divisible by NumHeads, or if cfg is
// otherwise unusable. Use cfg.Validate first to get an error instead.
// The encoder starts in evaluation mode.
func New[B tensor.Backend](cfg Config, descriptors DescriptorEmbedder[B], backend B) *Encoder[B] {
	if cfg.NumHeads <= 0 || cfg.EmbeddingDim%cfg.NumHeads != 0 {
		panic(fmt.Sprintf("fusion.New: embedding_dim (%d) must be divisible by num_heads (%d)",
			cfg.EmbeddingDim, cfg.NumHeads))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("fusion.New: %v", err))
	}
	if descriptors == nil {
		panic("fusion.New: descriptor embedder is required")
	}

	e := &Encoder[B]{
		cfg:         cfg,
		backend:     backend,
		descriptors: descriptors,
		clsToken:    nn.NewParameter("cls_token", nn.Zeros(tensor.Shape{1, 1, cfg.EmbeddingDim}, backend)),

		linearEncoding:    nn.NewLinear(cfg.PatchDim, cfg.EmbeddingDim, backend),
		linearObjEncoding: nn.NewLinear(cfg.ObjDim+descriptors.Dim(), cfg.EmbeddingDim, backend),

		objPositionEncoding: nn.NewLearnedPositionalEncoding(cfg.ObjMaxNum, cfg.EmbeddingDim, backend),
		peDropout:           nn.NewDropout[B](cfg.DropoutRate),

		transformer: nn.NewTransformerModel(nn.TransformerConfig{
			EmbedDim:        cfg.EmbeddingDim,
			Depth:           cfg.NumLayers,
			NumHeads:        cfg.NumHeads,
			HiddenDim:       cfg.HiddenDim,
			DropoutRate:     cfg.DropoutRate,
			AttnDropoutRate: cfg.AttnDropoutRate,
			NormEps:         nn.DefaultLayerNormEps,
		}, backend),
		preHeadLN: nn.NewLayerNorm(cfg.EmbeddingDim, nn.DefaultLayerNormEps, backend),
	}

	maxLen := cfg.SequenceLength()
	if cfg.PositionalEncoding == nn.PositionalFixed {
		maxLen = max(nn.DefaultFixedMaxLen, maxLen)
	}
	pe, err := nn.NewPositionalEncoding(cfg.PositionalEncoding, maxLen, cfg.EmbeddingDim, backend)
	if err != nil {
		panic(fmt.Sprintf("fusion.New: %v", err))
	}
	e.positionEncoding = pe

	if cfg.UseRepresentation {
		e.mlpHead = nn.NewSequential[B](
			nn.NewLinear(cfg.EmbeddingDim, cfg.HiddenDim, backend),
			nn.NewReLU[B](),
			nn.NewLinear(cfg.HiddenDim, cfg.OutDim, backend),
		)
	} else {
		e.mlpHead = nn.NewLinear(cfg.EmbeddingDim, cfg.OutDim, backend)
	}

	return e
}

// Config returns the configuration the encoder was built with.
func (e *Encoder[B]) Config() Config {
	return e.cfg
}

// Backend returns the compute backend.
func (e *Encoder[B]) Backend() B {
	return e.backend
}

// Descriptors returns the descriptor embedder.
func (e *Encoder[B]) Descriptors() DescriptorEmbedder[B] {
	return e.descriptors
}

// Forward fuses the inputs and runs the transformer stack.
//
// Shapes:
//   - patches: [batch, num_patches, patch_dim]
//   - objects: [batch, obj_count, obj_dim], obj_count <= ObjMaxNum
//   - descriptors: [batch, obj_count, 1] (or [batch, obj_count]) int32 ids
//
// Returns [batch, 1+num_patches+obj_count, E] regardless of
// ReturnAllEmbeddings; Output applies that flag. Mismatched shapes and
// out-of-range ids panic inside the backend.
func (e *Encoder[B]) Forward(
	patches, objects *tensor.Tensor[float32, B],
	descriptors *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	return e.transformer.Forward(e.Embed(patches, objects, descriptors))
}

// Output selects what Encode reports from a Forward result: the whole
// sequence, or only the class token [batch, 1, E] when ReturnAllEmbeddings
// is false.
func (e *Encoder[B]) Output(encoded *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if e.cfg.ReturnAllEmbeddings {
		return encoded
	}
	return classToken(encoded)
}

// Embed builds the fused sequence fed to the transformer stack:
// [cls; patches] with patch positions, followed by objects with object
// positions. Shape: [batch, 1+num_patches+obj_count, E].
func (e *Encoder[B]) Embed(
	patches, objects *tensor.Tensor[float32, B],
	descriptors *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	x := e.linearEncoding.Forward(patches) // [batch, num_patches, E]

	batch := x.Shape()[0]
	cls := e.clsToken.Tensor().Expand(tensor.Shape{batch, 1, e.cfg.EmbeddingDim})
	x = tensor.Cat([]*tensor.Tensor[float32, B]{cls, x}, 1)
	x = e.peDropout.Forward(e.positionEncoding.Forward(x))

	desc := e.descriptors.Lookup(descriptors) // [batch, obj_count, 1, D]
	if shape := desc.Shape(); len(shape) == 4 && shape[2] == 1 {
		desc = desc.Squeeze(2)
	}
	objInfo := tensor.Cat([]*tensor.Tensor[float32, B]{objects, desc}, 2)
	obj := e.linearObjEncoding.Forward(objInfo) // [batch, obj_count, E]
	obj = e.peDropout.Forward(e.objPositionEncoding.Forward(obj))

	return tensor.Cat([]*tensor.Tensor[float32, B]{x, obj}, 1)
}

// Classify runs the classification head on the class token of an encoded
// sequence [batch, seq, E], returning [batch, OutDim].
func (e *Encoder[B]) Classify(encoded *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := encoded.Shape()
	if len(shape) != 3 || shape[2] != e.cfg.EmbeddingDim {
		panic(fmt.Sprintf("fusion.Classify: expected [batch, seq, %d], got %v", e.cfg.EmbeddingDim, shape))
	}
	cls := classToken(encoded).Reshape(shape[0], e.cfg.EmbeddingDim)
	return e.mlpHead.Forward(e.preHeadLN.Forward(cls))
}

// classToken returns x[:, 0:1, :].
func classToken[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	seq := x.Shape()[1]
	if seq == 1 {
		return x
	}
	return x.Split([]int{1, seq - 1}, 1)[0]
}

// SetTraining enables or disables dropout throughout the encoder.
func (e *Encoder[B]) SetTraining(training bool) {
	e.training = training
	e.peDropout.SetTraining(training)
	e.transformer.SetTraining(training)
	nn.SetTraining(e.mlpHead, training)
}

// Training reports whether dropout is active.
func (e *Encoder[B]) Training() bool {
	return e.training
}

// Parameters returns every trainable parameter, including the descriptor
// table when it has any.
func (e *Encoder[B]) Parameters() []*nn.Parameter[B] {
	params := []*nn.Parameter[B]{e.clsToken}
	params = append(params, e.linearEncoding.Parameters()...)
	params = append(params, e.linearObjEncoding.Parameters()...)
	params = append(params, e.positionEncoding.Parameters()...)
	params = append(params, e.objPositionEncoding.Parameters()...)
	params = append(params, e.transformer.Parameters()...)
	params = append(params, e.preHeadLN.Parameters()...)
	params = append(params, e.mlpHead.Parameters()...)
	if m, ok := e.descriptors.(interface{ Parameters() []*nn.Parameter[B] }); ok {
		params = append(params, m.Parameters()...)
	}
	return params
}

// NumParameters returns the number of scalar weights.
func (e *Encoder[B]) NumParameters() int {
	return nn.CountParameters(e.Parameters())
}
