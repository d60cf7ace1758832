package cpu

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/tensor"
)

// Cat concatenates tensors along the specified dimension.
//
// All tensors must have the same shape except along dim.
// Supports negative dim indexing (-1 = last dimension).
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	shape := tensors[0].Shape()
	ndim := len(shape)
	dtype := tensors[0].DType()

	d, err := tensor.NormalizeDim(dim, ndim)
	if err != nil {
		panic(fmt.Sprintf("cat: %v", err))
	}

	totalDim := 0
	for i, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dimensions, expected %d", i, len(tShape), ndim))
		}
		if t.DType() != dtype {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), dtype))
		}
		for axis := 0; axis < ndim; axis++ {
			if axis == d {
				totalDim += tShape[axis]
			} else if tShape[axis] != shape[axis] {
				panic(fmt.Sprintf("cat: tensor %d dimension %d is %d, expected %d", i, axis, tShape[axis], shape[axis]))
			}
		}
	}

	outShape := shape.Clone()
	outShape[d] = totalDim
	result := tensor.MustNewRaw("cat", outShape, dtype, cpu.device)

	// outer = product of dims before d; each input contributes a contiguous
	// block of shape[d]*inner elements per outer index.
	outer := 1
	for axis := 0; axis < d; axis++ {
		outer *= shape[axis]
	}
	inner := 1
	for axis := d + 1; axis < ndim; axis++ {
		inner *= shape[axis]
	}

	elem := dtype.Size()
	dst := result.Data()
	rowOut := totalDim * inner * elem
	offset := 0
	for _, t := range tensors {
		block := t.Shape()[d] * inner * elem
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowOut+offset:o*rowOut+offset+block], src[o*block:(o+1)*block])
		}
		offset += block
	}
	return result
}

// Split cuts x along dim into consecutive pieces of the given sizes.
func (cpu *CPUBackend) Split(x *tensor.RawTensor, sizes []int, dim int) []*tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	d, err := tensor.NormalizeDim(dim, ndim)
	if err != nil {
		panic(fmt.Sprintf("split: %v", err))
	}

	total := 0
	for _, s := range sizes {
		if s <= 0 {
			panic(fmt.Sprintf("split: invalid size %d", s))
		}
		total += s
	}
	if total != shape[d] {
		panic(fmt.Sprintf("split: sizes %v do not add up to dimension %d of size %d", sizes, d, shape[d]))
	}

	outer := 1
	for axis := 0; axis < d; axis++ {
		outer *= shape[axis]
	}
	inner := 1
	for axis := d + 1; axis < ndim; axis++ {
		inner *= shape[axis]
	}

	elem := x.DType().Size()
	src := x.Data()
	rowIn := shape[d] * inner * elem

	parts := make([]*tensor.RawTensor, len(sizes))
	offset := 0
	for i, s := range sizes {
		partShape := shape.Clone()
		partShape[d] = s
		part := tensor.MustNewRaw("split", partShape, x.DType(), cpu.device)
		dst := part.Data()
		block := s * inner * elem
		for o := 0; o < outer; o++ {
			copy(dst[o*block:(o+1)*block], src[o*rowIn+offset:o*rowIn+offset+block])
		}
		parts[i] = part
		offset += block
	}
	return parts
}
