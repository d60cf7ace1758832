package loader

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/serialization"
	"github.com/born-ml/patchformer/internal/tensor"
)

// writeSafeTensorsFile writes header and data verbatim, so tests can build
// files the writer would refuse to produce.
func writeSafeTensorsFile(t *testing.T, path string, header map[string]any, data []byte) {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))))
	_, err = file.Write(headerJSON)
	require.NoError(t, err)
	_, err = file.Write(data)
	require.NoError(t, err)
}

func createTestSafeTensorsFile(t *testing.T, path string) {
	t.Helper()

	backend := cpu.New()
	weight, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	bias, err := tensor.FromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	ids, err := tensor.FromSlice([]int32{7, -1}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	require.NoError(t, serialization.WriteSafeTensors(path, map[string]*tensor.RawTensor{
		"weight": weight.Raw(),
		"bias":   bias.Raw(),
		"ids":    ids.Raw(),
	}, map[string]string{"format": "pt"}))
}

func TestNewSafeTensorsReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, path)

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, FormatSafeTensors, reader.Format())
	assert.Equal(t, []string{"bias", "ids", "weight"}, reader.TensorNames())
	assert.Equal(t, "pt", reader.Metadata()["format"])
	assert.True(t, reader.HasChecksum())
	assert.NoError(t, reader.VerifyChecksum())
}

func TestSafeTensorsReader_TensorInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, path)

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	info, err := reader.TensorInfo("weight")
	require.NoError(t, err)
	assert.Equal(t, serialization.DTypeF32, info.DType)
	assert.Equal(t, []int{2, 3}, info.Shape)
	assert.Equal(t, int64(24), info.DataOffsets[1]-info.DataOffsets[0])

	_, err = reader.TensorInfo("missing")
	assert.EqualError(t, err, "tensor missing not found")
}

func TestSafeTensorsReader_LoadTensor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, path)

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	backend := cpu.New()

	weight, err := reader.LoadTensor("weight", backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, weight.Shape())
	assert.Equal(t, tensor.Float32, weight.DType())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, weight.AsFloat32())

	bias, err := reader.LoadTensor("bias", backend)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, bias.AsFloat32(), 1e-7)

	ids, err := reader.LoadTensor("ids", backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Int32, ids.DType())
	assert.Equal(t, []int32{7, -1}, ids.AsInt32())
}

func TestSafeTensorsReader_ChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.ErrorIs(t, reader.VerifyChecksum(), serialization.ErrChecksumMismatch)
}

func TestSafeTensorsReader_NoChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.safetensors")
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data, math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(-2))
	writeSafeTensorsFile(t, path, map[string]any{
		"w": SafeTensorInfo{DType: "F32", Shape: []int{2}, DataOffsets: [2]int64{0, 8}},
	}, data)

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.False(t, reader.HasChecksum())
	assert.NoError(t, reader.VerifyChecksum())

	raw, err := reader.LoadTensor("w", cpu.New())
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2}, raw.AsFloat32())
}

func TestSafeTensorsReader_HalfPrecisionAndInt64(t *testing.T) {
	values := []float32{1, -0.5, 3.25, 1024}

	var data []byte
	for _, v := range values {
		data = binary.LittleEndian.AppendUint16(data, float16.Fromfloat32(v).Bits())
	}
	for _, v := range values {
		// bfloat16 is the high half of the float32 bit pattern.
		data = binary.LittleEndian.AppendUint16(data, uint16(math.Float32bits(v)>>16))
	}
	for _, v := range []int64{3, -4} {
		data = binary.LittleEndian.AppendUint64(data, uint64(v))
	}

	path := filepath.Join(t.TempDir(), "mixed.safetensors")
	writeSafeTensorsFile(t, path, map[string]any{
		"half":  SafeTensorInfo{DType: "F16", Shape: []int{2, 2}, DataOffsets: [2]int64{0, 8}},
		"brain": SafeTensorInfo{DType: "BF16", Shape: []int{4}, DataOffsets: [2]int64{8, 16}},
		"long":  SafeTensorInfo{DType: "I64", Shape: []int{2, 1}, DataOffsets: [2]int64{16, 32}},
	}, data)

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	backend := cpu.New()

	half, err := reader.LoadTensor("half", backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, half.Shape())
	assert.Equal(t, values, half.AsFloat32())

	brain, err := reader.LoadTensor("brain", backend)
	require.NoError(t, err)
	assert.Equal(t, values, brain.AsFloat32())

	long, err := reader.LoadTensor("long", backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Int32, long.DType())
	assert.Equal(t, []int32{3, -4}, long.AsInt32())
}

func TestSafeTensorsReader_InvalidFiles(t *testing.T) {
	f32 := func(begin, end int64, shape ...int) SafeTensorInfo {
		return SafeTensorInfo{DType: "F32", Shape: shape, DataOffsets: [2]int64{begin, end}}
	}

	tests := []struct {
		name      string
		header    map[string]any
		dataSize  int
		errorType string
	}{
		{
			name:      "overlap",
			header:    map[string]any{"a": f32(0, 8, 2), "b": f32(4, 12, 2)},
			dataSize:  12,
			errorType: "offset_overlap",
		},
		{
			name:      "out of bounds",
			header:    map[string]any{"a": f32(0, 16, 4)},
			dataSize:  8,
			errorType: "out_of_bounds",
		},
		{
			name:      "size mismatch",
			header:    map[string]any{"a": f32(0, 8, 3)},
			dataSize:  8,
			errorType: "size_mismatch",
		},
		{
			name:      "path traversal",
			header:    map[string]any{"../a": f32(0, 4, 1)},
			dataSize:  4,
			errorType: "invalid_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.safetensors")
			writeSafeTensorsFile(t, path, tt.header, make([]byte, tt.dataSize))

			_, err := NewSafeTensorsReader(path)
			require.Error(t, err)

			var verr *serialization.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.errorType, verr.Type)
		})
	}
}

func TestSafeTensorsReader_ValidationNone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlap.safetensors")
	writeSafeTensorsFile(t, path, map[string]any{
		"a": SafeTensorInfo{DType: "F32", Shape: []int{2}, DataOffsets: [2]int64{0, 8}},
		"b": SafeTensorInfo{DType: "F32", Shape: []int{2}, DataOffsets: [2]int64{4, 12}},
	}, make([]byte, 12))

	_, err := NewSafeTensorsReader(path)
	require.Error(t, err)

	reader, err := NewSafeTensorsReaderWithLevel(path, serialization.ValidationNone)
	require.NoError(t, err)
	defer reader.Close()

	raw, err := reader.LoadTensor("b", cpu.New())
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, raw.AsFloat32())
}

func TestSafeTensorsReader_HeaderTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.safetensors")
	data := binary.LittleEndian.AppendUint64(nil, serialization.MaxHeaderSize+1)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err := NewSafeTensorsReader(path)
	assert.ErrorIs(t, err, serialization.ErrHeaderTooLarge)
}

func TestSafeTensorsReader_TruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.safetensors")
	data := binary.LittleEndian.AppendUint64(nil, 64)
	data = append(data, []byte(`{"a":`)...)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err := NewSafeTensorsReader(path)
	assert.ErrorContains(t, err, "exceeds file size")
}

func TestSafeTensorsReader_UnsupportedDType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f64.safetensors")
	writeSafeTensorsFile(t, path, map[string]any{
		"d": SafeTensorInfo{DType: "F64", Shape: []int{1}, DataOffsets: [2]int64{0, 8}},
	}, make([]byte, 8))

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.LoadTensor("d", cpu.New())
	assert.EqualError(t, err, "tensor d: unsupported dtype: F64")
}

func TestDecodeTensor_Int64Overflow(t *testing.T) {
	data := binary.LittleEndian.AppendUint64(nil, uint64(math.MaxInt32)+1)
	_, err := decodeTensor(serialization.DTypeI64, tensor.Shape{1}, data, tensor.CPU)
	assert.ErrorContains(t, err, "does not fit in int32")
}
