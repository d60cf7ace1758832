package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/patchformer/internal/tensor"
)

// Sequential feeds each module's output into the next. State dict keys are
// prefixed with the module's index ("0.weight", "2.bias"), matching
// torch.nn.Sequential checkpoints.
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

func (s *Sequential[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, m := range s.modules {
		x = m.Forward(x)
	}
	return x
}

func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

func (s *Sequential[B]) Add(m Module[B]) { s.modules = append(s.modules, m) }

func (s *Sequential[B]) Len() int { return len(s.modules) }

// Module returns the i-th module and panics when i is out of range.
func (s *Sequential[B]) Module(i int) Module[B] {
	if i < 0 || i >= len(s.modules) {
		panic(fmt.Sprintf("Sequential: index %d out of range [0, %d)", i, len(s.modules)))
	}
	return s.modules[i]
}

func (s *Sequential[B]) SetTraining(training bool) {
	for _, m := range s.modules {
		SetTraining(m, training)
	}
}

// stateful yields the index prefix and module of every stateful child.
func (s *Sequential[B]) stateful(yield func(prefix string, m Stateful) bool) {
	for i, m := range s.modules {
		if sm, ok := m.(Stateful); ok && !yield(strconv.Itoa(i), sm) {
			return
		}
	}
}

func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for prefix, m := range s.stateful {
		mergeState(state, prefix, m.StateDict())
	}
	return state
}

func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for prefix, m := range s.stateful {
		if err := loadChild(m, prefix, stateDict); err != nil {
			return err
		}
	}
	return nil
}
