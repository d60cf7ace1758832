package loader

import (
	"fmt"
	"math"
	"sort"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/born-ml/patchformer/internal/tensor"
)

// TorchReader reads a PyTorch state_dict saved with torch.save.
//
// The whole pickle is decoded on open. Float, half and bfloat16 storages are
// returned as float32; integer storages (int32, int64) as int32.
type TorchReader struct {
	tensors map[string]*pytorch.Tensor
}

// NewTorchReader loads the checkpoint at path.
func NewTorchReader(path string) (*TorchReader, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to unpickle %s: %w", path, err)
	}

	tensors := make(map[string]*pytorch.Tensor)
	add := func(k, v any) error {
		name, ok := k.(string)
		if !ok {
			return fmt.Errorf("state dict key %v is %T, not string", k, k)
		}
		// Non-tensor entries (e.g. _metadata, version counters) are skipped.
		if t, ok := v.(*pytorch.Tensor); ok {
			tensors[name] = t
		}
		return nil
	}

	switch dict := obj.(type) {
	case *types.Dict:
		for _, k := range dict.Keys() {
			if err := add(k, dict.MustGet(k)); err != nil {
				return nil, err
			}
		}
	case *types.OrderedDict:
		for e := dict.List.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*types.OrderedDictEntry)
			if err := add(entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%s: expected a state dict, got %T", path, obj)
	}

	return &TorchReader{tensors: tensors}, nil
}

// Close is a no-op; the checkpoint is fully read on open.
func (r *TorchReader) Close() error {
	return nil
}

// Format returns FormatTorch.
func (r *TorchReader) Format() ModelFormat {
	return FormatTorch
}

// Metadata returns nil; PyTorch state dicts carry no string metadata.
func (r *TorchReader) Metadata() map[string]string {
	return nil
}

// TensorNames returns all tensor names in the checkpoint, sorted.
func (r *TorchReader) TensorNames() []string {
	names := make([]string, 0, len(r.tensors))
	for name := range r.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shape returns the shape of the named tensor.
func (r *TorchReader) Shape(name string) (tensor.Shape, error) {
	t, ok := r.tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return tensor.Shape(t.Size).Clone(), nil
}

// LoadTensor copies the named tensor into a contiguous RawTensor.
func (r *TorchReader) LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error) {
	t, ok := r.tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}

	shape := tensor.Shape(t.Size).Clone()
	if len(shape) == 0 {
		// Scalars become [1].
		shape = tensor.Shape{1}
	}

	dtype := tensor.Float32
	switch t.Source.(type) {
	case *pytorch.IntStorage, *pytorch.LongStorage:
		dtype = tensor.Int32
	}
	raw, err := tensor.NewRaw(shape, dtype, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		err = gatherStrided(t, s.Data, raw.AsFloat32())
	case *pytorch.HalfStorage:
		err = gatherStrided(t, s.Data, raw.AsFloat32())
	case *pytorch.BFloat16Storage:
		err = gatherStrided(t, s.Data, raw.AsFloat32())
	case *pytorch.IntStorage:
		err = gatherStrided(t, s.Data, raw.AsInt32())
	case *pytorch.LongStorage:
		narrowed := make([]int32, len(s.Data))
		for i, v := range s.Data {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return nil, fmt.Errorf("tensor %s: int64 value %d does not fit in int32", name, v)
			}
			narrowed[i] = int32(v)
		}
		err = gatherStrided(t, narrowed, raw.AsInt32())
	default:
		err = fmt.Errorf("unsupported storage %T", s)
	}
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

// gatherStrided walks a (possibly non-contiguous) torch view over storage
// and writes its elements to out in row-major order.
func gatherStrided[T float32 | int32](t *pytorch.Tensor, storage, out []T) error {
	dims := t.Size
	strides := t.Stride
	if len(dims) == 0 {
		dims, strides = []int{1}, []int{1}
	}
	if len(strides) != len(dims) {
		return fmt.Errorf("%d strides for %d dims", len(strides), len(dims))
	}

	// The furthest element the view touches must lie inside the storage.
	last := t.StorageOffset
	for i, d := range dims {
		last += (d - 1) * strides[i]
	}
	if t.StorageOffset < 0 || last >= len(storage) {
		return fmt.Errorf("view exceeds storage of %d elements", len(storage))
	}

	index := make([]int, len(dims))
	for i := range out {
		off := t.StorageOffset
		for d, idx := range index {
			off += idx * strides[d]
		}
		out[i] = storage[off]

		for d := len(index) - 1; d >= 0; d-- {
			index[d]++
			if index[d] < dims[d] {
				break
			}
			index[d] = 0
		}
	}
	return nil
}
