package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/patchformer/internal/tensor"
)

// Positional encoding kinds accepted by NewPositionalEncoding.
const (
	PositionalLearned = "learned"
	PositionalFixed   = "fixed"
)

// DefaultFixedMaxLen is the length of the precomputed sinusoidal table.
const DefaultFixedMaxLen = 5000

// PositionalEncoding adds position information to a [batch, seq, dim]
// sequence.
type PositionalEncoding[B tensor.Backend] interface {
	Module[B]
	MaxLen() int
}

// NewPositionalEncoding builds a learned or fixed encoding.
//
// Example:
//
//	pe, err := nn.NewPositionalEncoding[B](nn.PositionalLearned, 31, 768, backend)
func NewPositionalEncoding[B tensor.Backend](kind string, maxLen, dim int, backend B) (PositionalEncoding[B], error) {
	switch kind {
	case PositionalLearned:
		return NewLearnedPositionalEncoding(maxLen, dim, backend), nil
	case PositionalFixed:
		return NewFixedPositionalEncoding(maxLen, dim, backend), nil
	default:
		return nil, fmt.Errorf("unknown positional encoding %q (want %q or %q)", kind, PositionalLearned, PositionalFixed)
	}
}

// LearnedPositionalEncoding adds a trainable vector per position.
//
// Position i of the input receives row i of the table, so sequences shorter
// than MaxLen use the leading rows.
//
// Example:
//
//	pe := nn.NewLearnedPositionalEncoding(31, 768, backend)
//	x = pe.Forward(x) // [batch, 31, 768]
type LearnedPositionalEncoding[B tensor.Backend] struct {
	PE      *Embedding[B] // [max_len, dim]
	backend B
}

// NewLearnedPositionalEncoding creates a learned table of maxLen positions.
func NewLearnedPositionalEncoding[B tensor.Backend](maxLen, dim int, backend B) *LearnedPositionalEncoding[B] {
	if maxLen <= 0 {
		panic(fmt.Sprintf("LearnedPositionalEncoding: maxLen must be positive, got %d", maxLen))
	}
	return &LearnedPositionalEncoding[B]{
		PE:      NewEmbedding(maxLen, dim, backend),
		backend: backend,
	}
}

// Forward returns x + table[0:seq]. Panics when seq exceeds MaxLen.
func (l *LearnedPositionalEncoding[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	seq := sequenceLength("LearnedPositionalEncoding", x, l.PE.EmbeddingDim)
	if seq > l.PE.NumEmbeddings {
		panic(fmt.Sprintf("LearnedPositionalEncoding: sequence length %d exceeds maximum %d", seq, l.PE.NumEmbeddings))
	}

	ids := tensor.Arange[int32](0, int32(seq), l.backend).Reshape(1, seq)
	return x.Add(l.PE.Forward(ids)) // [1, seq, dim] broadcasts over batch
}

// MaxLen returns the number of learned positions.
func (l *LearnedPositionalEncoding[B]) MaxLen() int {
	return l.PE.NumEmbeddings
}

// Parameters returns the position table.
func (l *LearnedPositionalEncoding[B]) Parameters() []*Parameter[B] {
	return l.PE.Parameters()
}

// StateDict returns {"pe.weight": table}.
func (l *LearnedPositionalEncoding[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeState(stateDict, "pe", l.PE.StateDict())
	return stateDict
}

// LoadStateDict loads the position table.
func (l *LearnedPositionalEncoding[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadChild(l.PE, "pe", stateDict)
}

// FixedPositionalEncoding adds the sinusoidal encoding from "Attention is All
// You Need":
//
//	PE(pos, 2i)   = sin(pos / 10000^(2i/d))
//	PE(pos, 2i+1) = cos(pos / 10000^(2i/d))
//
// The table is not trainable.
type FixedPositionalEncoding[B tensor.Backend] struct {
	encoding []float32 // [max_len, dim], row-major
	maxLen   int
	dim      int
	backend  B
}

// NewFixedPositionalEncoding precomputes maxLen positions.
func NewFixedPositionalEncoding[B tensor.Backend](maxLen, dim int, backend B) *FixedPositionalEncoding[B] {
	if maxLen <= 0 {
		panic(fmt.Sprintf("FixedPositionalEncoding: maxLen must be positive, got %d", maxLen))
	}
	if dim <= 0 {
		panic(fmt.Sprintf("FixedPositionalEncoding: dim must be positive, got %d", dim))
	}

	encoding := make([]float32, maxLen*dim)
	for pos := 0; pos < maxLen; pos++ {
		row := encoding[pos*dim : (pos+1)*dim]
		for i := 0; i < dim; i += 2 {
			freq := math.Exp(float64(i) * -math.Log(10000.0) / float64(dim))
			angle := float64(pos) * freq
			row[i] = float32(math.Sin(angle))
			if i+1 < dim {
				row[i+1] = float32(math.Cos(angle))
			}
		}
	}

	return &FixedPositionalEncoding[B]{
		encoding: encoding,
		maxLen:   maxLen,
		dim:      dim,
		backend:  backend,
	}
}

// Forward returns x + PE[0:seq] over the sequence axis.
func (f *FixedPositionalEncoding[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	seq := sequenceLength("FixedPositionalEncoding", x, f.dim)
	if seq > f.maxLen {
		panic(fmt.Sprintf("FixedPositionalEncoding: sequence length %d exceeds maximum %d", seq, f.maxLen))
	}

	pe, err := tensor.FromSlice(f.encoding[:seq*f.dim], tensor.Shape{1, seq, f.dim}, f.backend)
	if err != nil {
		panic(fmt.Sprintf("FixedPositionalEncoding: %v", err))
	}
	return x.Add(pe)
}

// Encoding returns the table row for pos.
func (f *FixedPositionalEncoding[B]) Encoding(pos int) []float32 {
	return f.encoding[pos*f.dim : (pos+1)*f.dim]
}

// MaxLen returns the number of precomputed positions.
func (f *FixedPositionalEncoding[B]) MaxLen() int {
	return f.maxLen
}

// Parameters returns nil; the table is fixed.
func (f *FixedPositionalEncoding[B]) Parameters() []*Parameter[B] {
	return nil
}

func sequenceLength[B tensor.Backend](op string, x *tensor.Tensor[float32, B], dim int) int {
	shape := x.Shape()
	if len(shape) != 3 || shape[2] != dim {
		panic(fmt.Sprintf("%s: expected [batch, seq, %d], got %v", op, dim, shape))
	}
	return shape[1]
}
