package tensor

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](tensor.Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return New[T, B](MustNewRaw("zeros", shape, dataTypeOf[T](), b.Device()), b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, T(1), b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](tensor.Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a float32 tensor with values drawn from N(0, 1).
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return sample[T, B](shape, distuv.Normal{Mu: 0, Sigma: 1}, b)
}

// Rand creates a float32 tensor with values drawn uniformly from [0, 1).
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return sample[T, B](shape, distuv.Uniform{Min: 0, Max: 1}, b)
}

type sampler interface {
	Rand() float64
}

func sample[T DType, B Backend](shape Shape, dist sampler, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data, ok := any(t.Data()).([]float32)
	if !ok {
		panic("random tensors are only supported for float32")
	}
	for i := range data {
		data[i] = float32(dist.Rand())
	}
	return t
}

// Arange creates a 1D tensor holding start, start+1, ..., end-1.
//
// Example:
//
//	ids := tensor.Arange[int32](0, 31, backend) // position ids 0..30
func Arange[T DType, B Backend](start, end T, b B) *Tensor[T, B] {
	n := int(end - start)
	if n <= 0 {
		panic("arange: end must be greater than start")
	}

	t := Zeros[T, B](Shape{n}, b)
	data := t.Data()
	for i := range data {
		data[i] = start + T(i)
	}
	return t
}
