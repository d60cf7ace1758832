package nn

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/tensor"
)

// DropoutBackend is an interface for backends that can sample dropout masks.
type DropoutBackend interface {
	Dropout(x *tensor.RawTensor, p float32) *tensor.RawTensor
}

// Dropout randomly zeroes elements with probability P during training and
// rescales survivors by 1/(1-P). In evaluation mode, or when P is 0, it is
// the identity.
//
// Modules start in evaluation mode; call SetTraining(true) to enable masking.
type Dropout[B tensor.Backend] struct {
	P        float32
	training bool
}

// NewDropout creates a Dropout layer. Panics unless 0 <= p <= 1.
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	if p < 0 || p > 1 {
		panic(fmt.Sprintf("Dropout: probability must be in [0, 1], got %v", p))
	}
	return &Dropout[B]{P: p}
}

// Forward applies dropout in training mode and returns input otherwise.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.P == 0 {
		return input
	}

	backend := input.Backend()
	dropoutBackend, ok := any(backend).(DropoutBackend)
	if !ok {
		panic("Dropout: backend must implement Dropout operation")
	}
	return tensor.New[float32, B](dropoutBackend.Dropout(input.Raw(), d.P), backend)
}

// Parameters returns nil.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}

// SetTraining toggles masking.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Training reports whether masking is enabled.
func (d *Dropout[B]) Training() bool {
	return d.training
}
