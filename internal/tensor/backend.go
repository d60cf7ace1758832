package tensor

// Backend defines the raw operations a compute backend must provide.
//
// Every operation returns a newly allocated tensor (or a view for Reshape,
// Unsqueeze and Squeeze) and never writes into its inputs, so parameters and
// caller-owned tensors stay read-only during a forward pass. Shape and index
// faults panic with a message prefixed by the operation name.
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// MatMulTransposed multiplies by the transpose of b: [M, K] @ [N, K]^T -> [M, N].
	MatMulTransposed(a, b *RawTensor) *RawTensor

	// BatchMatMul multiplies the trailing matrices of 3D/4D tensors whose
	// leading dimensions match: [..., M, K] @ [..., K, N] -> [..., M, N].
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Unsqueeze(x *RawTensor, dim int) *RawTensor
	Squeeze(x *RawTensor, dim int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor

	// Scalar operations.
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// Math.
	Rsqrt(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Manipulation.
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Split(x *RawTensor, sizes []int, dim int) []*RawTensor

	// Embedding gathers rows of weight [V, D] for int32 indices of any shape,
	// producing [..., D]. Out-of-range indices panic.
	Embedding(weight, indices *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
