package tensor

import (
	"fmt"
	"slices"
)

// Shape lists the extent of each tensor axis, outermost first.
type Shape []int

// NumElements is the product of the extents; a scalar (rank 0) holds one.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate reports the first non-positive extent.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, s[i])
	}
	return nil
}

func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

func (s Shape) Clone() Shape { return slices.Clone(s) }

// ComputeStrides returns the row-major element strides of s.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// dimFromRight returns the extent of axis i counted from the last axis,
// treating axes beyond the rank as 1.
func (s Shape) dimFromRight(i int) int {
	if i >= len(s) {
		return 1
	}
	return s[len(s)-1-i]
}

// BroadcastShapes aligns a and b from the last axis and returns the shape
// both broadcast to. Axes match when equal or when either is 1. The flag is
// false when a and b already share the result shape.
//
//	[2, 31, 768] with [768] -> [2, 31, 768], true
//	[3, 4] with [3, 5]      -> error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)
	expanded := false

	for i := 0; i < rank; i++ {
		da, db := a.dimFromRight(i), b.dimFromRight(i)
		d := da
		if da != db {
			switch {
			case da == 1:
				d = db
			case db != 1:
				return nil, false, fmt.Errorf("shapes %v and %v do not broadcast: axis %d has %d vs %d",
					a, b, rank-1-i, da, db)
			}
			expanded = true
		}
		out[rank-1-i] = d
	}
	if len(a) != len(b) {
		expanded = true
	}
	return out, expanded, nil
}

// NormalizeDim maps a negative axis onto [0, ndim).
func NormalizeDim(dim, ndim int) (int, error) {
	d := dim
	if d < 0 {
		d += ndim
	}
	if d < 0 || d >= ndim {
		return 0, fmt.Errorf("dimension %d out of range for %dD tensor", dim, ndim)
	}
	return d, nil
}
