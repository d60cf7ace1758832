package serialization

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/tensor"
)

// SafeTensors dtype names.
const (
	DTypeF32  = "F32"
	DTypeF16  = "F16"
	DTypeBF16 = "BF16"
	DTypeI32  = "I32"
	DTypeI64  = "I64"
)

// MetadataChecksum is the metadata key holding the hex SHA-256 of the data section.
const MetadataChecksum = "sha256"

// TensorMeta describes one tensor's location in a file's data section.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "linear_encoding.weight")
	DType  string `json:"dtype"`  // SafeTensors dtype (e.g., "F32")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// dtypeToSafeTensors converts tensor.DataType to SafeTensors dtype string.
func dtypeToSafeTensors(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return DTypeF32, nil
	case tensor.Int32:
		return DTypeI32, nil
	default:
		return "", fmt.Errorf("unsupported dtype %s", dt)
	}
}

// DTypeSize returns the element size of a SafeTensors dtype, or 0 when the
// dtype is unknown.
func DTypeSize(dtype string) int {
	switch dtype {
	case DTypeF32, DTypeI32:
		return 4
	case DTypeF16, DTypeBF16:
		return 2
	case DTypeI64:
		return 8
	default:
		return 0
	}
}
