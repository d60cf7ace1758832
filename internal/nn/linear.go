package nn

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/tensor"
)

// Linear is a dense layer computing y = x·Wᵀ + b over the last axis of x.
// W is [out, in]; inputs of any rank >= 2 are flattened to [N, in] for the
// product and reshaped back, so [batch, seq, in] gives [batch, seq, out].
//
//	proj := nn.NewLinear(2048, 768, backend)
//	emb := proj.Forward(patches) // [4, 30, 2048] -> [4, 30, 768]
//
// W starts Xavier-uniform, b at zero.
type Linear[B tensor.Backend] struct {
	in, out int
	weight  *Parameter[B]
	bias    *Parameter[B] // nil for NewLinearNoBias
}

func NewLinear[B tensor.Backend](in, out int, backend B) *Linear[B] {
	l := NewLinearNoBias(in, out, backend)
	l.bias = NewParameter("bias", Zeros(tensor.Shape{out}, backend))
	return l
}

func NewLinearNoBias[B tensor.Backend](in, out int, backend B) *Linear[B] {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("Linear: features must be positive, got in=%d out=%d", in, out))
	}
	return &Linear[B]{
		in:     in,
		out:    out,
		weight: NewParameter("weight", Xavier(in, out, tensor.Shape{out, in}, backend)),
	}
}

func (l *Linear[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	rank := len(shape)
	switch {
	case rank < 2:
		panic(fmt.Sprintf("Linear.Forward: expected at least 2D input [batch, features], got shape %v", shape))
	case shape[rank-1] != l.in:
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.in, shape[rank-1]))
	}

	y := x.Reshape(-1, l.in).MatMulTransposed(l.weight.Tensor())
	if l.bias != nil {
		y = y.Add(l.bias.Tensor().Reshape(1, l.out))
	}
	if rank == 2 {
		return y
	}
	return y.Reshape(append(shape[:rank-1].Clone(), l.out)...)
}

// Parameters returns the weight, then the bias if present.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.bias == nil {
		return []*Parameter[B]{l.weight}
	}
	return []*Parameter[B]{l.weight, l.bias}
}

func (l *Linear[B]) Weight() *Parameter[B] { return l.weight }
func (l *Linear[B]) Bias() *Parameter[B]   { return l.bias }
func (l *Linear[B]) InFeatures() int       { return l.in }
func (l *Linear[B]) OutFeatures() int      { return l.out }

func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return paramState(l.Parameters())
}

func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(l.Parameters(), stateDict)
}
