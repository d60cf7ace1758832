package tensor

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	a := tensor.Ones[float32](tensor.Shape{3, 1}, backend)
//	b := tensor.Ones[float32](tensor.Shape{3, 5}, backend)
//	c := a.Add(b) // Shape: [3, 5]
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[T, B]) Div(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Div(t.raw, other.raw), t.backend)
}

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) -> (M, N).
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.MatMul(t.raw, other.raw), t.backend)
}

// MatMulTransposed computes t @ other^T for 2D tensors without
// materializing the transpose: (M, K) @ (N, K)^T -> (M, N).
func (t *Tensor[T, B]) MatMulTransposed(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.MatMulTransposed(t.raw, other.raw), t.backend)
}

// BatchMatMul multiplies the trailing matrices of 3D/4D tensors.
//
// Example:
//
//	q := tensor.Randn[float32](tensor.Shape{2, 4, 36, 192}, backend)
//	k := tensor.Randn[float32](tensor.Shape{2, 4, 192, 36}, backend)
//	scores := q.BatchMatMul(k) // Shape: [2, 4, 36, 36]
func (t *Tensor[T, B]) BatchMatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.BatchMatMul(t.raw, other.raw), t.backend)
}

// Reshape returns a view with the same data and a new shape.
// A single -1 entry is inferred from the remaining dimensions.
//
// Example:
//
//	flat := x.Reshape(-1, 768) // [2, 31, 768] -> [62, 768]
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	shape := Shape(append([]int(nil), newShape...))
	inferred := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if inferred >= 0 {
				panic("reshape: only one dimension can be inferred")
			}
			inferred = i
			continue
		}
		known *= d
	}
	if inferred >= 0 && known > 0 {
		shape[inferred] = t.NumElements() / known
	}
	return New[T, B](t.backend.Reshape(t.raw, shape), t.backend)
}

// Transpose permutes the tensor's dimensions.
// With no axes, all dimensions are reversed.
//
// Example:
//
//	t := tensor.Randn[float32](tensor.Shape{2, 3, 4}, backend)
//	transposed := t.Transpose(2, 0, 1) // Shape: [4, 2, 3]
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw, axes...), t.backend)
}

// T transposes a 2D tensor.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	if len(t.Shape()) != 2 {
		panic("T() only works for 2D tensors")
	}
	return t.Transpose(1, 0)
}

// MulScalar multiplies every element by scalar.
func (t *Tensor[T, B]) MulScalar(scalar float32) *Tensor[T, B] {
	return New[T, B](t.backend.MulScalar(t.raw, scalar), t.backend)
}

// AddScalar adds scalar to every element.
func (t *Tensor[T, B]) AddScalar(scalar float32) *Tensor[T, B] {
	return New[T, B](t.backend.AddScalar(t.raw, scalar), t.backend)
}

// Rsqrt computes 1/sqrt(x) element-wise.
func (t *Tensor[T, B]) Rsqrt() *Tensor[T, B] {
	return New[T, B](t.backend.Rsqrt(t.raw), t.backend)
}

// Softmax normalizes along dim (negative values count from the end).
func (t *Tensor[T, B]) Softmax(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Softmax(t.raw, dim), t.backend)
}

// MeanDim averages along dim, keeping it as size 1 when keepDim is set.
func (t *Tensor[T, B]) MeanDim(dim int, keepDim bool) *Tensor[T, B] {
	return New[T, B](t.backend.MeanDim(t.raw, dim, keepDim), t.backend)
}

// Expand broadcasts the tensor to shape, copying data.
//
// Example:
//
//	cls := tensor.Zeros[float32](tensor.Shape{1, 1, 768}, backend)
//	batch := cls.Expand(tensor.Shape{4, 1, 768})
func (t *Tensor[T, B]) Expand(shape Shape) *Tensor[T, B] {
	return New[T, B](t.backend.Expand(t.raw, shape), t.backend)
}

// Embedding looks up rows of a [V, D] table for each index.
//
// Example:
//
//	table := tensor.Randn[float32](tensor.Shape{100, 64}, backend)
//	ids, _ := tensor.FromSlice([]int32{3, 7}, tensor.Shape{1, 2}, backend)
//	rows := table.Embedding(ids) // Shape: [1, 2, 64]
func (t *Tensor[T, B]) Embedding(indices *Tensor[int32, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Embedding(t.raw, indices.raw), t.backend)
}
