package cpu

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/tensor"
)

type element interface {
	~float32 | ~int32
}

// Reshape returns a view of t with newShape (no data copy).
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	view, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// Unsqueeze inserts a dimension of size 1 at dim (view).
func (cpu *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	d, err := tensor.NormalizeDim(dim, len(shape)+1)
	if err != nil {
		panic(fmt.Sprintf("unsqueeze: %v", err))
	}

	newShape := make(tensor.Shape, 0, len(shape)+1)
	newShape = append(newShape, shape[:d]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[d:]...)
	return cpu.Reshape(x, newShape)
}

// Squeeze removes the size-1 dimension at dim (view).
func (cpu *CPUBackend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	d, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("squeeze: %v", err))
	}
	if shape[d] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d, expected 1", d, shape[d]))
	}

	newShape := make(tensor.Shape, 0, len(shape)-1)
	newShape = append(newShape, shape[:d]...)
	newShape = append(newShape, shape[d+1:]...)
	return cpu.Reshape(x, newShape)
}

// Transpose permutes dimensions. With no axes, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result := tensor.MustNewRaw("transpose", newShape, t.DType(), cpu.device)
	switch t.DType() {
	case tensor.Float32:
		transposeData(result.AsFloat32(), t.AsFloat32(), shape, newShape, axes)
	case tensor.Int32:
		transposeData(result.AsInt32(), t.AsInt32(), shape, newShape, axes)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}
	return result
}

func transposeData[T element](dst, src []T, oldShape, newShape tensor.Shape, axes []int) {
	oldStrides := oldShape.ComputeStrides()
	newStrides := newShape.ComputeStrides()

	// permuted[i] is the source stride walked by output dimension i.
	permuted := make([]int, len(axes))
	for i, ax := range axes {
		permuted[i] = oldStrides[ax]
	}

	for i := range dst {
		dst[i] = src[computeFlatIndex(i, newStrides, permuted)]
	}
}

// Expand broadcasts x to shape, materializing the copies.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !outShape.Equal(shape) {
		panic(fmt.Sprintf("expand: cannot expand %v to %v", x.Shape(), shape))
	}

	result := tensor.MustNewRaw("expand", shape, x.DType(), cpu.device)
	outStrides := shape.ComputeStrides()
	inStrides := computeBroadcastStridesForShape(x.Shape(), shape)

	switch x.DType() {
	case tensor.Float32:
		expandData(result.AsFloat32(), x.AsFloat32(), outStrides, inStrides)
	case tensor.Int32:
		expandData(result.AsInt32(), x.AsInt32(), outStrides, inStrides)
	default:
		panic(fmt.Sprintf("expand: unsupported dtype %s", x.DType()))
	}
	return result
}

func expandData[T element](dst, src []T, outStrides, inStrides []int) {
	for i := range dst {
		dst[i] = src[computeFlatIndex(i, outStrides, inStrides)]
	}
}
