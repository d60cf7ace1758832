package nn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/tensor"
)

type testBackend = *cpu.CPUBackend

func fromSlice(t *testing.T, data []float32, shape tensor.Shape, backend testBackend) *tensor.Tensor[float32, testBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

func constant(value float32, shape tensor.Shape, backend testBackend) *tensor.Tensor[float32, testBackend] {
	return tensor.Full[float32](shape, value, backend)
}
