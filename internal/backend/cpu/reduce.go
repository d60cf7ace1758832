package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/patchformer/internal/parallel"
	"github.com/born-ml/patchformer/internal/tensor"
)

// axisLayout splits a shape around dim into outer × size × inner.
func axisLayout(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[dim], inner
}

// MeanDim averages x along dim.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	requireFloat32("mean_dim", x)

	shape := x.Shape()
	d, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("mean_dim: %v", err))
	}

	outShape := make(tensor.Shape, 0, len(shape))
	for i, s := range shape {
		switch {
		case i != d:
			outShape = append(outShape, s)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	result := tensor.MustNewRaw("mean_dim", outShape, tensor.Float32, cpu.device)
	src, dst := x.AsFloat32(), result.AsFloat32()
	outer, size, inner := axisLayout(shape, d)
	scale := 1 / float32(size)

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var sum float32
			base := o*size*inner + in
			for s := 0; s < size; s++ {
				sum += src[base+s*inner]
			}
			dst[o*inner+in] = sum * scale
		}
	}
	return result
}

// Softmax computes a max-subtracted softmax along dim.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax", x)

	shape := x.Shape()
	d, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}

	result := tensor.MustNewRaw("softmax", shape, tensor.Float32, cpu.device)
	src, dst := x.AsFloat32(), result.AsFloat32()
	outer, size, inner := axisLayout(shape, d)

	parallel.For(outer*inner, func(row int) {
		o, in := row/inner, row%inner
		base := o*size*inner + in

		maxVal := float32(math.Inf(-1))
		for s := 0; s < size; s++ {
			if v := src[base+s*inner]; v > maxVal {
				maxVal = v
			}
		}

		var sum float32
		for s := 0; s < size; s++ {
			e := float32(math.Exp(float64(src[base+s*inner] - maxVal)))
			dst[base+s*inner] = e
			sum += e
		}

		inv := 1 / sum
		for s := 0; s < size; s++ {
			dst[base+s*inner] *= inv
		}
	}, cpu.parallel)

	return result
}
