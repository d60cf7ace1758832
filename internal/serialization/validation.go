package serialization

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Limits applied to untrusted checkpoint headers.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // bytes of JSON header
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict checks names, sizes and data offsets.
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and sizes only.
	ValidationNormal
	// ValidationNone trusts the header.
	ValidationNone
)

func invalid(typ, name, format string, args ...any) *ValidationError {
	return &ValidationError{Type: typ, Tensor: name, Details: fmt.Sprintf(format, args...)}
}

func checkCount(tensors []TensorMeta) error {
	if len(tensors) > MaxTensorCount {
		return invalid("too_many_tensors", "", "got %d, max %d", len(tensors), MaxTensorCount)
	}
	return nil
}

// ValidateTensorOffsets checks that every tensor region lies inside a data
// section of dataSize bytes and that no two regions overlap.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if err := checkCount(tensors); err != nil {
		return err
	}

	byOffset := slices.Clone(tensors)
	slices.SortFunc(byOffset, func(a, b TensorMeta) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	var prev *TensorMeta
	for i := range byOffset {
		t := &byOffset[i]
		end := t.Offset + t.Size
		switch {
		case t.Offset < 0 || t.Size < 0:
			return invalid("negative_offset", t.Name, "offset=%d, size=%d", t.Offset, t.Size)
		case end > dataSize:
			return invalid("out_of_bounds", t.Name, "offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize)
		case prev != nil && prev.Offset+prev.Size > t.Offset:
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  prev.Name,
				Tensor2: t.Name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
					prev.Offset, prev.Offset+prev.Size, t.Offset, end),
			}
		}
		prev = t
	}
	return nil
}

// ValidateTensorName rejects names that could escape a directory when used
// as a path, contain NUL bytes or exceed MaxTensorNameLen.
func ValidateTensorName(name string) error {
	if len(name) > MaxTensorNameLen {
		return invalid("name_too_long", name, "length %d > max %d", len(name), MaxTensorNameLen)
	}

	for _, bad := range []struct{ substr, why string }{
		{"..", "contains '..'"},
		{"/", "contains a path separator"},
		{"\\", "contains a path separator"},
		{"\x00", "contains a NUL byte"},
	} {
		if strings.Contains(name, bad.substr) {
			return invalid("invalid_name", name, "%s", bad.why)
		}
	}
	return nil
}

// ValidateHeader validates every tensor name and region size and, in strict
// mode, the offsets against a data section of dataSize bytes.
func ValidateHeader(tensors []TensorMeta, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if err := checkCount(tensors); err != nil {
		return err
	}

	for _, t := range tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		elemSize := int64(DTypeSize(t.DType))
		if elemSize == 0 {
			continue
		}
		want := elemSize
		for _, d := range t.Shape {
			want *= int64(d)
		}
		if want != t.Size {
			return invalid("size_mismatch", t.Name, "shape %v of %s needs %d bytes, region has %d",
				t.Shape, t.DType, want, t.Size)
		}
	}

	if level == ValidationStrict {
		return ValidateTensorOffsets(tensors, dataSize)
	}
	return nil
}
