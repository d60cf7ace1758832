package cpu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/patchformer/internal/tensor"
)

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// GELU computes the exact Gaussian error linear unit:
// 0.5 * x * (1 + erf(x / sqrt(2))).
func (cpu *CPUBackend) GELU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("gelu", x, func(v float32) float32 {
		return float32(0.5 * float64(v) * (1 + math.Erf(float64(v)/math.Sqrt2)))
	})
}

// Dropout zeroes each element with probability p and scales survivors by
// 1/(1-p) (inverted dropout).
func (cpu *CPUBackend) Dropout(x *tensor.RawTensor, p float32) *tensor.RawTensor {
	requireFloat32("dropout", x)
	if p < 0 || p > 1 {
		panic(fmt.Sprintf("dropout: probability %v outside [0, 1]", p))
	}

	result := tensor.MustNewRaw("dropout", x.Shape(), tensor.Float32, cpu.device)
	dst := result.AsFloat32()
	src := x.AsFloat32()

	switch p {
	case 0:
		copy(dst, src)
		return result
	case 1:
		return result
	}

	keep := distuv.Bernoulli{P: float64(1 - p)}
	scale := 1 / (1 - p)
	for i, v := range src {
		if keep.Rand() == 1 {
			dst[i] = v * scale
		}
	}
	return result
}
