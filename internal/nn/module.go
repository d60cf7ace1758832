// Package nn implements the neural network modules behind the fusion encoder.
//
// This package provides building blocks for constructing vision transformers:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named weight tensors
//   - Linear, Embedding, LayerNorm, Dropout: Basic layers
//   - SelfAttention, FeedForward, TransformerBlock, TransformerModel: Pre-norm transformer stack
//   - Learned and fixed positional encodings
//   - Sequential: Container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/patchformer/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//
// Modules can be composed to build complex architectures:
//
//	head := nn.NewSequential[B](
//	    nn.NewLinear(768, 2048, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(2048, 2048, backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	//
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions).
	Parameters() []*Parameter[B]
}

// Stateful is implemented by modules whose weights can be saved and restored.
//
// State dict keys are dot-separated paths relative to the module
// ("net.0.weight"), the same convention PyTorch uses.
type Stateful interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Trainable is implemented by modules whose behavior differs between
// training and inference (dropout).
type Trainable interface {
	SetTraining(training bool)
}

// SetTraining switches m into training or evaluation mode if it supports it.
func SetTraining(m any, training bool) {
	if t, ok := m.(Trainable); ok {
		t.SetTraining(training)
	}
}

// mergeState copies src into dst with every key prefixed by prefix + ".".
func mergeState(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

// subState returns the entries of stateDict under prefix with the prefix
// stripped.
func subState(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	sub := make(map[string]*tensor.RawTensor)
	p := prefix + "."
	for name, raw := range stateDict {
		if rest, ok := strings.CutPrefix(name, p); ok {
			sub[rest] = raw
		}
	}
	return sub
}

// loadChild loads the prefix section of stateDict into child, wrapping
// errors with the prefix.
func loadChild(child Stateful, prefix string, stateDict map[string]*tensor.RawTensor) error {
	if err := child.LoadStateDict(subState(stateDict, prefix)); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	return nil
}

// StateKeys returns the sorted keys of a state dict.
func StateKeys(stateDict map[string]*tensor.RawTensor) []string {
	keys := make([]string, 0, len(stateDict))
	for k := range stateDict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CountParameters returns the total number of scalar weights in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	total := 0
	for _, p := range params {
		total += p.Tensor().NumElements()
	}
	return total
}
