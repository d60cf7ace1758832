package serialization

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/born-ml/patchformer/internal/tensor"
)

// headerAlignment pads the JSON header so the data section starts on an
// 8-byte boundary.
const headerAlignment = 8

// SafeTensorHeader is one tensor entry of a safetensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors writes tensors to path in safetensors format.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	//nolint:gosec // G304: output path is chosen by the caller
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return EncodeSafeTensors(f, tensors, metadata)
}

// EncodeSafeTensors writes tensors to w in name order. The header metadata
// gets a "sha256" entry covering the data section.
func EncodeSafeTensors(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := slices.Sorted(maps.Keys(tensors))
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
	}

	header, err := buildHeader(names, tensors, metadata)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(w)
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(len(header)))
	if _, err := out.Write(size[:]); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := out.Write(payload(tensors[name])); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return out.Flush()
}

func buildHeader(names []string, tensors map[string]*tensor.RawTensor, metadata map[string]string) ([]byte, error) {
	entries := make(map[string]any, len(names)+1)
	digest := sha256.New()

	var offset int64
	for _, name := range names {
		raw := tensors[name]
		dtype, err := dtypeToSafeTensors(raw.DType())
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}

		shape := make([]int64, len(raw.Shape()))
		for i, d := range raw.Shape() {
			shape[i] = int64(d)
		}
		data := payload(raw)
		end := offset + int64(len(data))
		entries[name] = SafeTensorHeader{DType: dtype, Shape: shape, DataOffsets: [2]int64{offset, end}}
		offset = end
		digest.Write(data)
	}

	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta[MetadataChecksum] = hex.EncodeToString(digest.Sum(nil))
	entries["__metadata__"] = meta

	header, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	if pad := len(header) % headerAlignment; pad != 0 {
		header = append(header, bytes.Repeat([]byte{' '}, headerAlignment-pad)...)
	}
	return header, nil
}

// payload is the part of the storage covered by raw's shape. Views may share
// a larger buffer.
func payload(raw *tensor.RawTensor) []byte {
	return raw.Data()[:raw.ByteSize()]
}
