package serialization

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/patchformer/internal/tensor"
)

func rawFloat32(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat32(), data)
	return raw
}

func TestWriteSafeTensors_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")

	state := map[string]*tensor.RawTensor{
		"b.weight": rawFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}),
		"a.bias":   rawFloat32(t, []float32{5, 6}, tensor.Shape{2}),
	}
	require.NoError(t, WriteSafeTensors(path, state, map[string]string{"format": "pt"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	headerSize := binary.LittleEndian.Uint64(data[:8])
	assert.Zero(t, headerSize%8, "data section must be 8-byte aligned")
	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data[8:8+headerSize], &header))

	var bias, weight SafeTensorHeader
	require.NoError(t, json.Unmarshal(header["a.bias"], &bias))
	require.NoError(t, json.Unmarshal(header["b.weight"], &weight))

	// Alphabetical order: a.bias first.
	assert.Equal(t, [2]int64{0, 8}, bias.DataOffsets)
	assert.Equal(t, [2]int64{8, 24}, weight.DataOffsets)
	assert.Equal(t, DTypeF32, weight.DType)
	assert.Equal(t, []int64{2, 2}, weight.Shape)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(header["__metadata__"], &meta))
	assert.Equal(t, "pt", meta["format"])

	body := data[8+headerSize:]
	assert.Len(t, body, 24)
	require.NoError(t, ValidateChecksum(body, meta[MetadataChecksum]))

	body[0] ^= 0xff
	assert.ErrorIs(t, ValidateChecksum(body, meta[MetadataChecksum]), ErrChecksumMismatch)
}

func TestWriteSafeTensors_WritesViewsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.safetensors")

	base := rawFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	view, err := base.WithShape(tensor.Shape{3, 2})
	require.NoError(t, err)

	require.NoError(t, WriteSafeTensors(path, map[string]*tensor.RawTensor{"v": view}, nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	headerSize := binary.LittleEndian.Uint64(data[:8])
	assert.Equal(t, int64(8+headerSize+24), info.Size())
}

func TestWriteSafeTensors_RejectsBadNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	state := map[string]*tensor.RawTensor{
		"../escape": rawFloat32(t, []float32{1}, tensor.Shape{1}),
	}

	err := WriteSafeTensors(path, state, nil)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "invalid_name", vErr.Type)
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		errType  string
	}{
		{"valid", []TensorMeta{{Name: "a", Offset: 0, Size: 8}, {Name: "b", Offset: 8, Size: 8}}, 16, ""},
		{"overlap", []TensorMeta{{Name: "a", Offset: 0, Size: 12}, {Name: "b", Offset: 8, Size: 8}}, 24, "offset_overlap"},
		{"out of bounds", []TensorMeta{{Name: "a", Offset: 8, Size: 16}}, 16, "out_of_bounds"},
		{"negative", []TensorMeta{{Name: "a", Offset: -4, Size: 4}}, 16, "negative_offset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.errType == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.errType, vErr.Type)
		})
	}
}

func TestValidateTensorName(t *testing.T) {
	assert.NoError(t, ValidateTensorName("transformer.blocks.0.attn.qkv.weight"))
	assert.Error(t, ValidateTensorName("a/b"))
	assert.Error(t, ValidateTensorName("a\\b"))
	assert.Error(t, ValidateTensorName("bad\x00name"))
	assert.Error(t, ValidateTensorName(string(make([]byte, MaxTensorNameLen+1))))
}

func TestValidateHeader(t *testing.T) {
	good := []TensorMeta{{Name: "w", DType: DTypeF32, Shape: []int{2, 2}, Offset: 0, Size: 16}}
	assert.NoError(t, ValidateHeader(good, 16, ValidationStrict))

	wrongSize := []TensorMeta{{Name: "w", DType: DTypeF16, Shape: []int{2, 2}, Offset: 0, Size: 16}}
	var vErr *ValidationError
	require.ErrorAs(t, ValidateHeader(wrongSize, 16, ValidationStrict), &vErr)
	assert.Equal(t, "size_mismatch", vErr.Type)

	outside := []TensorMeta{{Name: "w", DType: DTypeF32, Shape: []int{4}, Offset: 8, Size: 16}}
	assert.NoError(t, ValidateHeader(outside, 16, ValidationNormal))
	assert.Error(t, ValidateHeader(outside, 16, ValidationStrict))
	assert.NoError(t, ValidateHeader(outside, 16, ValidationNone))
}
