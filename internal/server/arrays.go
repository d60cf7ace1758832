package server

import (
	"errors"
	"fmt"

	"github.com/born-ml/patchformer/internal/tensor"
)

var errEmptyDimension = errors.New("array has an empty dimension")

// flatten3 converts a rectangular nested array into row-major data.
func flatten3[T float32 | int32](v [][][]T) ([]T, tensor.Shape, error) {
	if len(v) == 0 || len(v[0]) == 0 || len(v[0][0]) == 0 {
		return nil, nil, errEmptyDimension
	}
	d1, d2 := len(v[0]), len(v[0][0])

	out := make([]T, 0, len(v)*d1*d2)
	for i, plane := range v {
		if len(plane) != d1 {
			return nil, nil, fmt.Errorf("ragged array: row %d has %d entries, expected %d", i, len(plane), d1)
		}
		for j, row := range plane {
			if len(row) != d2 {
				return nil, nil, fmt.Errorf("ragged array: [%d][%d] has %d values, expected %d", i, j, len(row), d2)
			}
			out = append(out, row...)
		}
	}
	return out, tensor.Shape{len(v), d1, d2}, nil
}

// flatten2 converts a rectangular nested array into row-major data.
func flatten2[T float32 | int32](v [][]T) ([]T, tensor.Shape, error) {
	if len(v) == 0 || len(v[0]) == 0 {
		return nil, nil, errEmptyDimension
	}
	d1 := len(v[0])

	out := make([]T, 0, len(v)*d1)
	for i, row := range v {
		if len(row) != d1 {
			return nil, nil, fmt.Errorf("ragged array: row %d has %d values, expected %d", i, len(row), d1)
		}
		out = append(out, row...)
	}
	return out, tensor.Shape{len(v), d1}, nil
}

// unflatten3 splits row-major data of the given 3D shape into nested slices
// sharing data's memory.
func unflatten3[T any](data []T, shape tensor.Shape) [][][]T {
	d0, d1, d2 := shape[0], shape[1], shape[2]
	out := make([][][]T, d0)
	for i := range out {
		out[i] = make([][]T, d1)
		for j := range out[i] {
			off := (i*d1 + j) * d2
			out[i][j] = data[off : off+d2 : off+d2]
		}
	}
	return out
}
