package tensor

import "fmt"

// Tensor is a generic tensor with element type T computed by backend B.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](tensor.Shape{3, 4}, backend)
//	sum := t.Add(t)
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps a RawTensor produced by backend b.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if n := shape.NumElements(); n != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, n, len(data))
	}
	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		return nil, err
	}
	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

func (t *Tensor[T, B]) Shape() Shape     { return t.raw.Shape() }
func (t *Tensor[T, B]) DType() DataType  { return t.raw.DType() }
func (t *Tensor[T, B]) Device() Device   { return t.raw.Device() }
func (t *Tensor[T, B]) NumElements() int { return t.raw.NumElements() }
func (t *Tensor[T, B]) Raw() *RawTensor  { return t.raw }
func (t *Tensor[T, B]) Backend() B       { return t.backend }

// Data is a zero-copy typed view of the storage. Writes are visible to every
// view sharing it.
func (t *Tensor[T, B]) Data() []T {
	if dataTypeOf[T]() == Int32 {
		return any(t.raw.AsInt32()).([]T)
	}
	return any(t.raw.AsFloat32()).([]T)
}

// At returns the element at indices. It panics on a bad index.
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.offset(indices)]
}

// Set stores value at indices. It panics on a bad index.
func (t *Tensor[T, B]) Set(value T, indices ...int) {
	t.Data()[t.offset(indices)] = value
}

func (t *Tensor[T, B]) offset(indices []int) int {
	shape, strides := t.Shape(), t.raw.Strides()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	off := 0
	for axis, i := range indices {
		if i < 0 || i >= shape[axis] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", i, axis, shape[axis]))
		}
		off += i * strides[axis]
	}
	return off
}

func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}

// Clone returns a tensor sharing this tensor's buffer.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return New[T, B](t.raw.Clone(), t.backend)
}

// Copy returns a deep copy with its own buffer.
func (t *Tensor[T, B]) Copy() *Tensor[T, B] {
	raw := MustNewRaw("copy", t.Shape(), t.DType(), t.Device())
	copy(raw.Data(), t.raw.Data())
	return New[T, B](raw, t.backend)
}
