package tensor

// Cat concatenates tensors along the specified dimension.
//
// All tensors must have the same shape except along dim.
// Supports negative dim indexing (-1 = last dimension).
//
// Example:
//
//	cls := tensor.Zeros[float32](tensor.Shape{2, 1, 768}, backend)
//	patches := tensor.Randn[float32](tensor.Shape{2, 30, 768}, backend)
//	seq := tensor.Cat([]*tensor.Tensor[float32, B]{cls, patches}, 1) // [2, 31, 768]
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	if len(tensors) == 1 {
		return tensors[0].Clone()
	}

	raws := make([]*RawTensor, len(tensors))
	backend := tensors[0].backend
	for i, t := range tensors {
		raws[i] = t.raw
	}

	return New[T, B](backend.Cat(raws, dim), backend)
}

// Split cuts the tensor along dim into consecutive pieces of the given sizes.
// The sizes must add up to the length of dim.
//
// Example:
//
//	qkv := tensor.Randn[float32](tensor.Shape{2, 36, 3 * 768}, backend)
//	parts := qkv.Split([]int{768, 768, 768}, -1) // q, k, v
func (t *Tensor[T, B]) Split(sizes []int, dim int) []*Tensor[T, B] {
	raws := t.backend.Split(t.raw, sizes, dim)
	parts := make([]*Tensor[T, B], len(raws))
	for i, raw := range raws {
		parts[i] = New[T, B](raw, t.backend)
	}
	return parts
}

// Chunk splits the tensor into n equal parts along dim.
func (t *Tensor[T, B]) Chunk(n, dim int) []*Tensor[T, B] {
	d, err := NormalizeDim(dim, len(t.Shape()))
	if err != nil {
		panic("chunk: " + err.Error())
	}
	size := t.Shape()[d]
	if n <= 0 || size%n != 0 {
		panic("chunk: dimension size must be divisible by the number of chunks")
	}
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = size / n
	}
	return t.Split(sizes, d)
}

// Unsqueeze adds a dimension of size 1 at the specified position (view).
//
// Example:
//
//	x := tensor.Randn[float32](tensor.Shape{2, 3}, backend)
//	y := x.Unsqueeze(1) // Shape: [2, 1, 3]
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Unsqueeze(t.raw, dim), t.backend)
}

// Squeeze removes a dimension of size 1 at the specified position (view).
// Panics if the dimension size is not 1.
//
// Example:
//
//	desc := tensor.Randn[float32](tensor.Shape{2, 5, 1, 64}, backend)
//	feat := desc.Squeeze(2) // Shape: [2, 5, 64]
func (t *Tensor[T, B]) Squeeze(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Squeeze(t.raw, dim), t.backend)
}
