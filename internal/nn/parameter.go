package nn

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters typically represent weights and biases of layers.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
}

// NewParameter creates a new trainable parameter.
//
// The parameter tensor should be initialized before creating the Parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Load copies raw into the parameter after checking shape and dtype.
func (p *Parameter[B]) Load(raw *tensor.RawTensor) error {
	expected := p.tensor.Shape()
	if !raw.Shape().Equal(expected) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", p.name, expected, raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%s dtype mismatch: expected float32, got %v", p.name, raw.DType())
	}
	copy(p.tensor.Data(), raw.AsFloat32())
	return nil
}

// loadParam looks up key in stateDict and loads it into p.
func loadParam[B tensor.Backend](p *Parameter[B], key string, stateDict map[string]*tensor.RawTensor) error {
	raw, ok := stateDict[key]
	if !ok {
		return fmt.Errorf("missing %s in state dict", key)
	}
	return p.Load(raw)
}

// paramState keys each parameter's tensor by its name.
func paramState[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		state[p.name] = p.tensor.Raw()
	}
	return state
}

// loadParams loads each parameter from the entry named after it.
func loadParams[B tensor.Backend](params []*Parameter[B], stateDict map[string]*tensor.RawTensor) error {
	for _, p := range params {
		if err := loadParam(p, p.name, stateDict); err != nil {
			return err
		}
	}
	return nil
}
