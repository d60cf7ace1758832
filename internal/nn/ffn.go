package nn

import (
	"github.com/born-ml/patchformer/internal/tensor"
)

// FeedForward implements the transformer MLP.
//
// Architecture:
//
//	FFN(x) = Dropout(FC2(Dropout(GELU(FC1(x)))))
//
// Where:
//   - FC1: [dim → hidden_dim] (expansion)
//   - FC2: [hidden_dim → dim] (projection back)
//
// Example:
//
//	ffn := nn.NewFeedForward(768, 2048, 0.1, backend)
//	output := ffn.Forward(x)  // [batch, seq, 768] -> [batch, seq, 768]
type FeedForward[B tensor.Backend] struct {
	FC1      *Linear[B]
	FC2      *Linear[B]
	GELU     *GELU[B]
	Dropout1 *Dropout[B]
	Dropout2 *Dropout[B]
}

// NewFeedForward creates a new feed-forward block.
func NewFeedForward[B tensor.Backend](dim, hiddenDim int, dropout float32, backend B) *FeedForward[B] {
	return &FeedForward[B]{
		FC1:      NewLinear(dim, hiddenDim, backend),
		FC2:      NewLinear(hiddenDim, dim, backend),
		GELU:     NewGELU[B](),
		Dropout1: NewDropout[B](dropout),
		Dropout2: NewDropout[B](dropout),
	}
}

// Forward computes the MLP output; the shape is preserved.
func (f *FeedForward[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = f.FC1.Forward(x)
	x = f.GELU.Forward(x)
	x = f.Dropout1.Forward(x)
	x = f.FC2.Forward(x)
	return f.Dropout2.Forward(x)
}

// Parameters returns all trainable parameters (FC1 and FC2).
func (f *FeedForward[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 4)
	params = append(params, f.FC1.Parameters()...)
	params = append(params, f.FC2.Parameters()...)
	return params
}

// SetTraining toggles both dropouts.
func (f *FeedForward[B]) SetTraining(training bool) {
	f.Dropout1.SetTraining(training)
	f.Dropout2.SetTraining(training)
}

// StateDict returns fc1.* and fc2.* entries.
func (f *FeedForward[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeState(stateDict, "fc1", f.FC1.StateDict())
	mergeState(stateDict, "fc2", f.FC2.StateDict())
	return stateDict
}

// LoadStateDict loads fc1.* and fc2.* entries.
func (f *FeedForward[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadChild(f.FC1, "fc1", stateDict); err != nil {
		return err
	}
	return loadChild(f.FC2, "fc2", stateDict)
}
