package loader

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/born-ml/patchformer/internal/serialization"
	"github.com/born-ml/patchformer/internal/tensor"
)

// A safetensors file is a little-endian uint64 header length, a JSON header
// mapping tensor names to dtype, shape and data offsets (plus an optional
// "__metadata__" string map), then the data section.

const metadataKey = "__metadata__"

// SafeTensorInfo is one header entry. DataOffsets are relative to the start
// of the data section.
type SafeTensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// SafeTensorsHeader splits a header into metadata and tensor entries.
type SafeTensorsHeader struct {
	Metadata map[string]string
	Tensors  map[string]SafeTensorInfo
}

func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if meta, ok := entries[metadataKey]; ok {
		if err := json.Unmarshal(meta, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		delete(entries, metadataKey)
	}

	h.Tensors = make(map[string]SafeTensorInfo, len(entries))
	for name, entry := range entries {
		var info SafeTensorInfo
		if err := json.Unmarshal(entry, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", name, err)
		}
		h.Tensors[name] = info
	}
	return nil
}

// SafeTensorsReader reads SafeTensors format files.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	dataOffset int64 // Offset where tensor data starts
	dataSize   int64
}

// NewSafeTensorsReader opens path and validates its header strictly.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	return NewSafeTensorsReaderWithLevel(path, serialization.ValidationStrict)
}

// NewSafeTensorsReaderWithLevel opens path, validating the header at the
// given level.
func NewSafeTensorsReaderWithLevel(path string, level serialization.ValidationLevel) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r, err := newSafeTensorsReader(file, level)
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

func newSafeTensorsReader(file *os.File, level serialization.ValidationLevel) (*SafeTensorsReader, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > serialization.MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", serialization.ErrHeaderTooLarge, headerSize)
	}

	dataOffset := int64(8 + headerSize) //nolint:gosec // G115: bounded by MaxHeaderSize above.
	if dataOffset > stat.Size() {
		return nil, fmt.Errorf("header size %d exceeds file size %d", headerSize, stat.Size())
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header SafeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	r := &SafeTensorsReader{
		file:       file,
		header:     header,
		dataOffset: dataOffset,
		dataSize:   stat.Size() - dataOffset,
	}
	if err := serialization.ValidateHeader(r.tensorMetas(), r.dataSize, level); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}
	return r, nil
}

func (r *SafeTensorsReader) tensorMetas() []serialization.TensorMeta {
	metas := make([]serialization.TensorMeta, 0, len(r.header.Tensors))
	for name, info := range r.header.Tensors {
		metas = append(metas, serialization.TensorMeta{
			Name:   name,
			DType:  info.DType,
			Shape:  info.Shape,
			Offset: info.DataOffsets[0],
			Size:   info.DataOffsets[1] - info.DataOffsets[0],
		})
	}
	return metas
}

// Close closes the SafeTensors file.
func (r *SafeTensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Format returns FormatSafeTensors.
func (r *SafeTensorsReader) Format() ModelFormat {
	return FormatSafeTensors
}

// Metadata returns the metadata map from the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in the file, sorted.
func (r *SafeTensorsReader) TensorNames() []string {
	return slices.Sorted(maps.Keys(r.header.Tensors))
}

// TensorInfo returns information about a specific tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return &info, nil
}

// ReadTensorData reads raw tensor bytes for a given tensor name.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	size := info.DataOffsets[1] - info.DataOffsets[0]
	if size < 0 || info.DataOffsets[1] > r.dataSize {
		return nil, fmt.Errorf("invalid data offsets for tensor %s: [%d, %d]",
			name, info.DataOffsets[0], info.DataOffsets[1])
	}

	data := make([]byte, size)
	if _, err := r.file.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// HasChecksum reports whether the file carries a data section checksum.
func (r *SafeTensorsReader) HasChecksum() bool {
	_, ok := r.header.Metadata[serialization.MetadataChecksum]
	return ok
}

// VerifyChecksum hashes the data section and compares it with the stored
// checksum. Files without a checksum verify trivially.
func (r *SafeTensorsReader) VerifyChecksum() error {
	stored, ok := r.header.Metadata[serialization.MetadataChecksum]
	if !ok {
		return nil
	}
	data := make([]byte, r.dataSize)
	if _, err := r.file.ReadAt(data, r.dataOffset); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read data section: %w", err)
	}
	return serialization.ValidateChecksum(data, stored)
}

// LoadTensor loads a tensor, widening F16 and BF16 to float32 and narrowing
// I64 to int32.
func (r *SafeTensorsReader) LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	raw, err := decodeTensor(info.DType, tensor.Shape(info.Shape), data, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

// decoder turns n elements of little-endian file data into tensor storage.
type decoder struct {
	dtype  tensor.DataType
	decode func(dst *tensor.RawTensor, src []byte) error
}

var decoders = map[string]decoder{
	serialization.DTypeF32: {tensor.Float32, copyBytes},
	serialization.DTypeI32: {tensor.Int32, copyBytes},
	serialization.DTypeF16: {tensor.Float32, func(dst *tensor.RawTensor, src []byte) error {
		for i, out := 0, dst.AsFloat32(); i < len(out); i++ {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(src[2*i:])).Float32()
		}
		return nil
	}},
	serialization.DTypeBF16: {tensor.Float32, func(dst *tensor.RawTensor, src []byte) error {
		copy(dst.AsFloat32(), bfloat16.DecodeFloat32(src))
		return nil
	}},
	serialization.DTypeI64: {tensor.Int32, func(dst *tensor.RawTensor, src []byte) error {
		for i, out := 0, dst.AsInt32(); i < len(out); i++ {
			v := int64(binary.LittleEndian.Uint64(src[8*i:])) //nolint:gosec // G115: two's complement reinterpretation.
			if v < math.MinInt32 || v > math.MaxInt32 {
				return fmt.Errorf("I64 value %d at %d does not fit in int32", v, i)
			}
			out[i] = int32(v)
		}
		return nil
	}},
}

func copyBytes(dst *tensor.RawTensor, src []byte) error {
	copy(dst.Data(), src)
	return nil
}

// decodeTensor converts file data into a RawTensor, widening half precision
// to float32 and narrowing I64 to int32.
func decodeTensor(dtype string, shape tensor.Shape, data []byte, device tensor.Device) (*tensor.RawTensor, error) {
	dec, ok := decoders[dtype]
	if !ok {
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if want := shape.NumElements() * serialization.DTypeSize(dtype); len(data) != want {
		return nil, fmt.Errorf("%s data has %d bytes, shape %v needs %d", dtype, len(data), shape, want)
	}

	raw, err := tensor.NewRaw(shape, dec.dtype, device)
	if err != nil {
		return nil, err
	}
	if err := dec.decode(raw, data); err != nil {
		return nil, err
	}
	return raw, nil
}
