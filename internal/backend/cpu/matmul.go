package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/patchformer/internal/parallel"
	"github.com/born-ml/patchformer/internal/tensor"
)

// MatMul performs matrix multiplication: (M, K) @ (K, N) -> (M, N).
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	m, k, n := matmulDims("matmul", a, b, false)

	result := tensor.MustNewRaw("matmul", tensor.Shape{m, n}, tensor.Float32, cpu.device)
	sgemm(blas.NoTrans, a.AsFloat32(), b.AsFloat32(), result.AsFloat32(), m, k, n)
	return result
}

// MatMulTransposed multiplies a by the transpose of b:
// (M, K) @ (N, K)^T -> (M, N). Linear layers store weights as [out, in], so
// this avoids materializing W^T on every call.
func (cpu *CPUBackend) MatMulTransposed(a, b *tensor.RawTensor) *tensor.RawTensor {
	m, k, n := matmulDims("matmul_transposed", a, b, true)

	result := tensor.MustNewRaw("matmul_transposed", tensor.Shape{m, n}, tensor.Float32, cpu.device)
	sgemm(blas.Trans, a.AsFloat32(), b.AsFloat32(), result.AsFloat32(), m, k, n)
	return result
}

func matmulDims(op string, a, b *tensor.RawTensor, transB bool) (m, k, n int) {
	requireFloat32(op, a)
	requireFloat32(op, b)

	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("%s: only 2D tensors supported, got %dD and %dD", op, len(aShape), len(bShape)))
	}

	m, k = aShape[0], aShape[1]
	kAlt := bShape[0]
	n = bShape[1]
	if transB {
		n, kAlt = bShape[0], bShape[1]
	}
	if k != kAlt {
		panic(fmt.Sprintf("%s: shape mismatch %v @ %v", op, aShape, bShape))
	}
	return m, k, n
}

// sgemm computes c = a @ op(b) for row-major a [m,k] and c [m,n].
// When tB is blas.Trans, b is stored as [n,k].
func sgemm(tB blas.Transpose, a, b, c []float32, m, k, n int) {
	bRows, bCols := k, n
	if tB == blas.Trans {
		bRows, bCols = n, k
	}
	blas32.Gemm(blas.NoTrans, tB, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: bRows, Cols: bCols, Stride: bCols, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c},
	)
}

// BatchMatMul performs batched matrix multiplication.
//
// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
//
// Each matrix pair is one GEMM call; batches run in parallel.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("BatchMatMul", a)
	requireFloat32("BatchMatMul", b)

	aShape := a.Shape()
	bShape := b.Shape()
	ndim := len(aShape)

	if ndim < 3 {
		panic(fmt.Sprintf("BatchMatMul: inputs must be at least 3D, got %dD", ndim))
	}
	if len(bShape) != ndim {
		panic(fmt.Sprintf("BatchMatMul: dimension mismatch, got %dD and %dD", ndim, len(bShape)))
	}
	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("BatchMatMul: batch dimension mismatch at dim %d: %d vs %d", i, aShape[i], bShape[i]))
		}
	}

	m, k := aShape[ndim-2], aShape[ndim-1]
	k2, n := bShape[ndim-2], bShape[ndim-1]
	if k != k2 {
		panic(fmt.Sprintf("BatchMatMul: inner dimension mismatch: %d vs %d", k, k2))
	}

	batchSize := 1
	for i := 0; i < ndim-2; i++ {
		batchSize *= aShape[i]
	}

	outShape := make(tensor.Shape, ndim)
	copy(outShape, aShape[:ndim-2])
	outShape[ndim-2] = m
	outShape[ndim-1] = n

	result := tensor.MustNewRaw("BatchMatMul", outShape, tensor.Float32, cpu.device)

	src1, src2, dst := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
	sizeA, sizeB, sizeC := m*k, k*n, m*n
	parallel.For(batchSize, func(i int) {
		sgemm(blas.NoTrans,
			src1[i*sizeA:(i+1)*sizeA],
			src2[i*sizeB:(i+1)*sizeB],
			dst[i*sizeC:(i+1)*sizeC],
			m, k, n)
	}, cpu.parallel.WithMinChunkSize(1))

	return result
}
