package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"row", Shape{1, 5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"rank", Shape{2, 31, 768}, Shape{768}, Shape{2, 31, 768}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestNormalizeDim(t *testing.T) {
	d, err := NormalizeDim(-1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	_, err = NormalizeDim(3, 3)
	assert.Error(t, err)
	_, err = NormalizeDim(-4, 3)
	assert.Error(t, err)
}

func TestShape(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Error(t, Shape{2, 0}.Validate())

	c := s.Clone()
	c[0] = 9
	assert.Equal(t, 2, s[0])
	assert.False(t, s.Equal(c))
}

func TestRawTensorViews(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32, CPU)
	require.NoError(t, err)
	assert.True(t, raw.IsUnique())
	assert.Equal(t, 24, raw.ByteSize())

	view, err := raw.WithShape(Shape{3, 2})
	require.NoError(t, err)
	assert.False(t, raw.IsUnique())
	assert.Equal(t, []int{2, 1}, view.Strides())

	view.AsFloat32()[0] = 5
	assert.Equal(t, float32(5), raw.AsFloat32()[0])

	view.Release()
	assert.True(t, raw.IsUnique())

	_, err = raw.WithShape(Shape{4, 2})
	assert.Error(t, err)
	assert.Panics(t, func() { raw.AsInt32() })
}
