// Package tensor provides the core tensor types and operations used by the
// patchformer encoder.
package tensor

import "fmt"

// DType constrains tensor element types. Activations and weights are
// float32; descriptor and position ids are int32.
type DType interface {
	~float32 | ~int32
}

// DataType tags a RawTensor with its element type.
type DataType int

const (
	Float32 DataType = iota
	Int32
)

var dataTypeNames = [...]string{Float32: "float32", Int32: "int32"}

// Size is the element width in bytes. Both supported types are 4 bytes wide.
func (dt DataType) Size() int {
	if !dt.valid() {
		panic(fmt.Sprintf("tensor: unknown data type %d", int(dt)))
	}
	return 4
}

func (dt DataType) String() string {
	if !dt.valid() {
		return "unknown"
	}
	return dataTypeNames[dt]
}

func (dt DataType) valid() bool { return dt >= 0 && int(dt) < len(dataTypeNames) }

// dataTypeOf maps a type parameter onto its DataType tag.
func dataTypeOf[T DType]() DataType {
	var zero T
	if _, ok := any(zero).(int32); ok {
		return Int32
	}
	return Float32
}
