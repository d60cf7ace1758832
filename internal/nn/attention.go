package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/patchformer/internal/tensor"
)

// ScaledDotProductAttention computes attention scores using the scaled dot-product mechanism.
//
// This is the core attention mechanism used in transformers, implementing:
//
//	Attention(Q, K, V) = softmax(QK^T / sqrt(d_k)) * V
//
// Parameters:
//   - query: Query tensor [batch, heads, seq_q, head_dim]
//   - key: Key tensor [batch, heads, seq_k, head_dim]
//   - value: Value tensor [batch, heads, seq_k, head_dim]
//   - mask: Optional additive mask broadcastable to [batch, heads, seq_q, seq_k], or nil
//   - scale: Scaling factor (0 for auto-compute as 1/sqrt(head_dim))
//
// Returns:
//   - output: Attended values [batch, heads, seq_q, head_dim]
//   - weights: Attention weights [batch, heads, seq_q, seq_k]
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	scale float32,
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	return attend(query, key, value, mask, scale, nil)
}

// attend is ScaledDotProductAttention with optional dropout applied to the
// attention weights before they are multiplied with V.
func attend[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	scale float32,
	dropout *Dropout[B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	validateAttentionInputs(query, key, value)

	if scale == 0 {
		scale = float32(1.0 / math.Sqrt(float64(query.Shape()[3])))
	}

	// [batch, heads, seq_q, head_dim] @ [batch, heads, head_dim, seq_k]
	scores := query.BatchMatMul(key.Transpose(0, 1, 3, 2)).MulScalar(scale)
	if mask != nil {
		scores = scores.Add(mask)
	}

	weights := scores.Softmax(-1)
	if dropout != nil {
		weights = dropout.Forward(weights)
	}

	return weights.BatchMatMul(value), weights
}

func validateAttentionInputs[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
) {
	if len(query.Shape()) != 4 {
		panic("ScaledDotProductAttention: query must be 4D [batch, heads, seq_q, head_dim]")
	}
	if len(key.Shape()) != 4 {
		panic("ScaledDotProductAttention: key must be 4D [batch, heads, seq_k, head_dim]")
	}
	if len(value.Shape()) != 4 {
		panic("ScaledDotProductAttention: value must be 4D [batch, heads, seq_k, head_dim]")
	}
	if query.Shape()[3] != key.Shape()[3] {
		panic("ScaledDotProductAttention: query and key must have same head_dim")
	}
	if key.Shape()[2] != value.Shape()[2] {
		panic("ScaledDotProductAttention: key and value must have same seq length")
	}
}

// SelfAttention is multi-head self-attention with a fused QKV projection.
//
// Architecture:
//
//	q, k, v = split(QKV(x))           // QKV: Linear(dim, 3*dim), no bias
//	h_i     = Dropout(softmax(q_i k_iᵀ / sqrt(d))) v_i
//	out     = Dropout(Proj(concat(h_1..h_n)))
//
// Both dropouts use the attention dropout rate.
//
// Example:
//
//	attn := nn.NewSelfAttention(768, 4, 0.0, backend)
//	out := attn.Forward(x) // [batch, seq, 768] -> [batch, seq, 768]
type SelfAttention[B tensor.Backend] struct {
	QKV      *Linear[B] // [3*dim, dim], no bias
	Proj     *Linear[B] // [dim, dim]
	AttnDrop *Dropout[B]
	ProjDrop *Dropout[B]
	NumHeads int
	HeadDim  int
	EmbedDim int
	Scale    float32
}

// NewSelfAttention creates a self-attention module.
// Panics unless dim is divisible by numHeads.
func NewSelfAttention[B tensor.Backend](dim, numHeads int, attnDropout float32, backend B) *SelfAttention[B] {
	if numHeads <= 0 || dim%numHeads != 0 {
		panic(fmt.Sprintf("SelfAttention: embed_dim (%d) must be divisible by num_heads (%d)", dim, numHeads))
	}
	headDim := dim / numHeads

	return &SelfAttention[B]{
		QKV:      NewLinearNoBias(dim, 3*dim, backend),
		Proj:     NewLinear(dim, dim, backend),
		AttnDrop: NewDropout[B](attnDropout),
		ProjDrop: NewDropout[B](attnDropout),
		NumHeads: numHeads,
		HeadDim:  headDim,
		EmbedDim: dim,
		Scale:    float32(1.0 / math.Sqrt(float64(headDim))),
	}
}

// Forward computes self-attention over x [batch, seq, dim].
func (a *SelfAttention[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out, _ := a.ForwardWithWeights(x)
	return out
}

// ForwardWithWeights is Forward that also returns the attention weights
// [batch, heads, seq, seq].
func (a *SelfAttention[B]) ForwardWithWeights(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	shape := x.Shape()
	if len(shape) != 3 || shape[2] != a.EmbedDim {
		panic(fmt.Sprintf("SelfAttention.Forward: expected [batch, seq, %d], got %v", a.EmbedDim, shape))
	}
	batch, seq := shape[0], shape[1]

	// [batch, seq, 3*dim] -> [batch, seq, 3, heads, head_dim] -> [3, batch, heads, seq, head_dim]
	qkv := a.QKV.Forward(x).
		Reshape(batch, seq, 3, a.NumHeads, a.HeadDim).
		Transpose(2, 0, 3, 1, 4)
	parts := qkv.Split([]int{1, 1, 1}, 0)
	q, k, v := parts[0].Squeeze(0), parts[1].Squeeze(0), parts[2].Squeeze(0)

	attnOut, weights := attend(q, k, v, nil, a.Scale, a.AttnDrop)

	// [batch, heads, seq, head_dim] -> [batch, seq, dim]
	attnOut = attnOut.Transpose(0, 2, 1, 3).Reshape(batch, seq, a.EmbedDim)
	return a.ProjDrop.Forward(a.Proj.Forward(attnOut)), weights
}

// Parameters returns the QKV and output projection weights.
func (a *SelfAttention[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 3)
	params = append(params, a.QKV.Parameters()...)
	params = append(params, a.Proj.Parameters()...)
	return params
}

// SetTraining toggles both dropouts.
func (a *SelfAttention[B]) SetTraining(training bool) {
	a.AttnDrop.SetTraining(training)
	a.ProjDrop.SetTraining(training)
}

// StateDict returns qkv.* and proj.* entries.
func (a *SelfAttention[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeState(stateDict, "qkv", a.QKV.StateDict())
	mergeState(stateDict, "proj", a.Proj.StateDict())
	return stateDict
}

// LoadStateDict loads qkv.* and proj.* entries.
func (a *SelfAttention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadChild(a.QKV, "qkv", stateDict); err != nil {
		return err
	}
	return loadChild(a.Proj, "proj", stateDict)
}
