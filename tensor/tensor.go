// Package tensor provides the minimal dense tensor runtime used by the
// mapbatch iterator: typed multi-dimensional values, an allocator surface
// with a GPU-compatible attribute, and row-granular copy primitives that
// are safe for concurrent writes to distinct rows of the same tensor.
package tensor

import (
	"errors"
	"fmt"
	"reflect"
)

const Namespace = "tensor"

var (
	ErrUnsupportedDType = errors.New(Namespace + ": unsupported data type")
	ErrShapeMismatch    = errors.New(Namespace + ": shape mismatch")
	ErrDTypeMismatch    = errors.New(Namespace + ": dtype mismatch")
	ErrInvalidShape     = errors.New(Namespace + ": invalid shape")
)

// UnknownDim marks a dimension of unknown size in a partial shape.
// Tensors themselves always have fully known shapes; UnknownDim appears
// only in dataset output-shape metadata.
const UnknownDim = -1

// Shape is the dimension list of a tensor. An empty Shape denotes a scalar.
type Shape []int

// NumElements returns the product of all dimensions. A scalar has one element.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have identical dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the shape.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Compatible reports whether a fully known shape matches a partial shape,
// treating UnknownDim entries as wildcards.
func (s Shape) Compatible(partial Shape) bool {
	if len(s) != len(partial) {
		return false
	}
	for i := range s {
		if partial[i] != UnknownDim && s[i] != partial[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	return fmt.Sprintf("%v", []int(s))
}

// Tensor is a dense, fully shaped, typed value. The zero value is not
// usable; construct tensors via New, FromData, or an Allocator.
type Tensor struct {
	dtype DType
	shape Shape
	data  any
}

// New allocates a zero-initialized tensor on the host.
func New(d DType, shape Shape) (*Tensor, error) {
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidShape, shape)
		}
	}
	data, err := newData(d, shape.NumElements())
	if err != nil {
		return nil, err
	}
	return &Tensor{dtype: d, shape: shape.Clone(), data: data}, nil
}

// FromData wraps an existing backing slice in a tensor. The slice length
// must equal the shape's element count. The tensor takes ownership of data.
func FromData(d DType, shape Shape, data any) (*Tensor, error) {
	n, err := dataLen(d, data)
	if err != nil {
		return nil, err
	}
	if n != shape.NumElements() {
		return nil, fmt.Errorf("%w: data has %d elements, shape %s wants %d",
			ErrShapeMismatch, n, shape, shape.NumElements())
	}
	return &Tensor{dtype: d, shape: shape.Clone(), data: data}, nil
}

// ScalarInt64 returns a rank-0 int64 tensor.
func ScalarInt64(v int64) *Tensor {
	return &Tensor{dtype: Int64, shape: Shape{}, data: []int64{v}}
}

// Int64Vector returns a rank-1 int64 tensor holding vals.
func Int64Vector(vals ...int64) *Tensor {
	data := make([]int64, len(vals))
	copy(data, vals)
	return &Tensor{dtype: Int64, shape: Shape{len(vals)}, data: data}
}

// Float64Vector returns a rank-1 float64 tensor holding vals.
func Float64Vector(vals ...float64) *Tensor {
	data := make([]float64, len(vals))
	copy(data, vals)
	return &Tensor{dtype: Float64, shape: Shape{len(vals)}, data: data}
}

// StringVector returns a rank-1 string tensor holding vals.
func StringVector(vals ...string) *Tensor {
	data := make([]string, len(vals))
	copy(data, vals)
	return &Tensor{dtype: String, shape: Shape{len(vals)}, data: data}
}

// DType returns the element type.
func (t *Tensor) DType() DType { return t.dtype }

// Shape returns the tensor's shape. The caller must not mutate it.
func (t *Tensor) Shape() Shape { return t.shape }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int { return t.shape[i] }

// NumElements returns the total element count.
func (t *Tensor) NumElements() int { return t.shape.NumElements() }

// RowElements returns the element count of one leading-dimension row.
// It panics on rank-0 tensors.
func (t *Tensor) RowElements() int {
	return t.shape[1:].NumElements()
}

// Data exposes the backing slice. Concurrent mutation of overlapping
// regions is the caller's responsibility.
func (t *Tensor) Data() any { return t.data }

// Int64s returns the backing slice of an Int64 tensor.
func (t *Tensor) Int64s() []int64 { return t.data.([]int64) }

// Float64s returns the backing slice of a Float64 tensor.
func (t *Tensor) Float64s() []float64 { return t.data.([]float64) }

// Strings returns the backing slice of a String tensor.
func (t *Tensor) Strings() []string { return t.data.([]string) }

// Slice0 returns a view of the first n leading-dimension rows. The view
// shares memory with the receiver.
func (t *Tensor) Slice0(n int) (*Tensor, error) {
	if t.Rank() == 0 {
		return nil, fmt.Errorf("%w: cannot slice a scalar", ErrInvalidShape)
	}
	if n < 0 || n > t.Dim(0) {
		return nil, fmt.Errorf("%w: slice of %d rows out of %d", ErrInvalidShape, n, t.Dim(0))
	}
	rowLen := t.RowElements()
	data, err := sliceRange(t.dtype, t.data, 0, n*rowLen)
	if err != nil {
		return nil, err
	}
	shape := t.shape.Clone()
	shape[0] = n
	return &Tensor{dtype: t.dtype, shape: shape, data: data}, nil
}

// Row returns a copy of leading-dimension row i with the leading dimension
// removed.
func (t *Tensor) Row(i int) (*Tensor, error) {
	if t.Rank() == 0 {
		return nil, fmt.Errorf("%w: cannot index a scalar", ErrInvalidShape)
	}
	if i < 0 || i >= t.Dim(0) {
		return nil, fmt.Errorf("%w: row %d out of %d", ErrInvalidShape, i, t.Dim(0))
	}
	rowLen := t.RowElements()
	out, err := New(t.dtype, t.shape[1:])
	if err != nil {
		return nil, err
	}
	if err := copyRange(t.dtype, out.data, t.data, 0, i*rowLen, rowLen); err != nil {
		return nil, err
	}
	return out, nil
}

// Equal reports deep equality of dtype, shape, and contents.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.dtype == o.dtype && t.shape.Equal(o.shape) && reflect.DeepEqual(t.data, o.data)
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor<%s %s>", t.dtype, t.shape)
}
