package tensor

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Device identifies where a tensor's memory lives.
type Device int

const (
	CPU Device = iota
)

func (d Device) String() string {
	if d == CPU {
		return "CPU"
	}
	return "Unknown"
}

// storage is the byte buffer behind one or more RawTensor views. refs counts
// the live views.
type storage struct {
	bytes []byte
	refs  atomic.Int32
}

func allocate(n int) *storage {
	s := &storage{bytes: make([]byte, n)}
	s.refs.Store(1)
	return s
}

// RawTensor is the untyped tensor handed to backends: a shape and dtype over
// shared storage. Backends treat inputs as read-only.
type RawTensor struct {
	store   *storage
	shape   Shape
	strides []int
	dtype   DataType
	device  Device
}

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		store:   allocate(shape.NumElements() * dtype.Size()),
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		dtype:   dtype,
		device:  device,
	}, nil
}

// MustNewRaw allocates a result tensor for op, panicking with the op name if
// the shape is invalid.
func MustNewRaw(op string, shape Shape, dtype DataType, device Device) *RawTensor {
	raw, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return raw
}

func (r *RawTensor) Shape() Shape     { return r.shape }
func (r *RawTensor) Strides() []int   { return r.strides }
func (r *RawTensor) DType() DataType  { return r.dtype }
func (r *RawTensor) Device() Device   { return r.device }
func (r *RawTensor) NumElements() int { return r.shape.NumElements() }
func (r *RawTensor) ByteSize() int    { return r.NumElements() * r.dtype.Size() }
func (r *RawTensor) Data() []byte     { return r.store.bytes }
func (r *RawTensor) IsUnique() bool   { return r.store.refs.Load() == 1 }

// AsFloat32 reinterprets the storage as float32 without copying.
func (r *RawTensor) AsFloat32() []float32 {
	r.mustBe(Float32)
	return reinterpret[float32](r.store.bytes, r.NumElements())
}

// AsInt32 reinterprets the storage as int32 without copying.
func (r *RawTensor) AsInt32() []int32 {
	r.mustBe(Int32)
	return reinterpret[int32](r.store.bytes, r.NumElements())
}

func (r *RawTensor) mustBe(dt DataType) {
	if r.dtype != dt {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, dt))
	}
}

func reinterpret[T float32 | int32](b []byte, n int) []T {
	//nolint:gosec // n*4 <= len(b) by construction in NewRaw
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// Clone returns another view of the same storage.
func (r *RawTensor) Clone() *RawTensor {
	return r.view(r.shape.Clone(), append([]int(nil), r.strides...))
}

// WithShape returns a view of the same storage reshaped to shape, which must
// hold the same number of elements.
func (r *RawTensor) WithShape(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot view %v as %v: element count differs", r.shape, shape)
	}
	return r.view(shape.Clone(), shape.ComputeStrides()), nil
}

func (r *RawTensor) view(shape Shape, strides []int) *RawTensor {
	r.store.refs.Add(1)
	return &RawTensor{store: r.store, shape: shape, strides: strides, dtype: r.dtype, device: r.device}
}

// Release drops this view. The storage is freed with the last view.
func (r *RawTensor) Release() {
	if r.store.refs.Add(-1) == 0 {
		r.store.bytes = nil
	}
}
