package nn

import (
	"github.com/born-ml/patchformer/internal/tensor"
)

// DefaultLayerNormEps matches torch.nn.LayerNorm.
const DefaultLayerNormEps = 1e-5

// LayerNorm normalises the last axis to zero mean and unit (biased) variance,
// then applies the learned scale Gamma and shift Beta.
type LayerNorm[B tensor.Backend] struct {
	Gamma   *Parameter[B] // "weight", starts at 1
	Beta    *Parameter[B] // "bias", starts at 0
	Epsilon float32
}

func NewLayerNorm[B tensor.Backend](dim int, epsilon float32, backend B) *LayerNorm[B] {
	return &LayerNorm[B]{
		Gamma:   NewParameter("weight", Ones(tensor.Shape{dim}, backend)),
		Beta:    NewParameter("bias", Zeros(tensor.Shape{dim}, backend)),
		Epsilon: epsilon,
	}
}

func (l *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	centered := x.Sub(x.MeanDim(-1, true))
	inv := centered.Mul(centered).MeanDim(-1, true).AddScalar(l.Epsilon).Rsqrt()
	return centered.Mul(inv).Mul(l.Gamma.Tensor()).Add(l.Beta.Tensor())
}

func (l *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.Gamma, l.Beta}
}

func (l *LayerNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return paramState(l.Parameters())
}

func (l *LayerNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(l.Parameters(), stateDict)
}
