package fusion

import (
	"fmt"
	"strings"

	"github.com/born-ml/patchformer/internal/nn"
	"github.com/born-ml/patchformer/internal/tensor"
)

// State dict prefixes. They follow the attribute names of the PyTorch
// model so converted checkpoints need little renaming.
const (
	keyClsToken            = "cls_token"
	keyLinearEncoding      = "linear_encoding"
	keyLinearObjEncoding   = "linear_obj_encoding"
	keyPositionEncoding    = "position_encoding"
	keyObjPositionEncoding = "obj_position_encoding"
	keyTransformer         = "transformer"
	keyPreHeadLN           = "pre_head_ln"
	keyMLPHead             = "mlp_head"
	keyWeightEmbed         = "weight_embed"
)

// NamedParameter pairs a state dict key with its tensor.
type NamedParameter struct {
	Name   string
	Tensor *tensor.RawTensor
}

type stateChild struct {
	prefix string
	module nn.Stateful
}

func (e *Encoder[B]) stateChildren() []stateChild {
	children := []stateChild{
		{keyLinearEncoding, e.linearEncoding},
		{keyLinearObjEncoding, e.linearObjEncoding},
		{keyObjPositionEncoding, e.objPositionEncoding},
		{keyTransformer, e.transformer},
		{keyPreHeadLN, e.preHeadLN},
	}
	if sm, ok := e.positionEncoding.(nn.Stateful); ok {
		children = append(children, stateChild{keyPositionEncoding, sm})
	}
	if sm, ok := e.mlpHead.(nn.Stateful); ok {
		children = append(children, stateChild{keyMLPHead, sm})
	}
	if sm, ok := e.descriptors.(nn.Stateful); ok {
		children = append(children, stateChild{keyWeightEmbed, sm})
	}
	return children
}

// StateDict returns every weight keyed by its dotted path
// ("transformer.blocks.0.attn.qkv.weight"). Tensors share memory with the
// encoder.
func (e *Encoder[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		keyClsToken: e.clsToken.Tensor().Raw(),
	}
	for _, c := range e.stateChildren() {
		for name, raw := range c.module.StateDict() {
			stateDict[c.prefix+"."+name] = raw
		}
	}
	return stateDict
}

// NamedParameters returns the state dict as a list sorted by name.
func (e *Encoder[B]) NamedParameters() []NamedParameter {
	stateDict := e.StateDict()
	keys := nn.StateKeys(stateDict)
	named := make([]NamedParameter, len(keys))
	for i, k := range keys {
		named[i] = NamedParameter{Name: k, Tensor: stateDict[k]}
	}
	return named
}

// LoadStateDict copies weights from stateDict into the encoder.
//
// Every key of StateDict must be present (ErrMissingTensor otherwise);
// extra keys are ignored. Shapes and dtypes must match exactly. The whole
// dict is checked before any weight is copied, so a failed load leaves the
// encoder unchanged.
func (e *Encoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := checkStateDict(e.StateDict(), stateDict); err != nil {
		return err
	}

	if err := e.clsToken.Load(stateDict[keyClsToken]); err != nil {
		return fmt.Errorf("load state dict: %w", err)
	}
	for _, c := range e.stateChildren() {
		sub := make(map[string]*tensor.RawTensor)
		for name, raw := range stateDict {
			if rest, ok := strings.CutPrefix(name, c.prefix+"."); ok {
				sub[rest] = raw
			}
		}
		if err := c.module.LoadStateDict(sub); err != nil {
			return fmt.Errorf("load state dict: %s: %w", c.prefix, err)
		}
	}
	return nil
}

// checkStateDict verifies that stateDict holds every key of want with the
// same shape and dtype.
func checkStateDict(want, stateDict map[string]*tensor.RawTensor) error {
	for _, key := range nn.StateKeys(want) {
		got, ok := stateDict[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingTensor, key)
		}
		if exp := want[key]; !got.Shape().Equal(exp.Shape()) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", key, exp.Shape(), got.Shape())
		} else if got.DType() != exp.DType() {
			return fmt.Errorf("%s dtype mismatch: expected %s, got %s", key, exp.DType(), got.DType())
		}
	}
	return nil
}
