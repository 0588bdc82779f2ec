// Package tensor implements the dense float64 tensor shared by models,
// losses, metrics and data loaders.
//
// Tensors are row-major and host resident. The leading dimension is the
// batch dimension: data loaders slice along it and metrics treat each
// row as one example.
package tensor

import (
	"fmt"
	"math"
)

// Tensor is a dense row-major float64 tensor.
type Tensor struct {
	shape Shape
	data  []float64
}

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) *Tensor {
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float64, shape.NumElements()),
	}
}

// FromSlice creates a tensor that takes ownership of data.
//
// Returns an error if len(data) does not match the shape.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Tensor{shape: shape.Clone(), data: data}, nil
}

// MustFromSlice is like FromSlice but panics on a shape mismatch.
func MustFromSlice(data []float64, shape Shape) *Tensor {
	t, err := FromSlice(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Column creates a [n, 1] tensor from values.
func Column(values ...float64) *Tensor {
	data := make([]float64, len(values))
	copy(data, values)
	return &Tensor{shape: Shape{len(values), 1}, data: data}
}

// Vector creates a rank-1 tensor from values.
func Vector(values ...float64) *Tensor {
	data := make([]float64, len(values))
	copy(data, values)
	return &Tensor{shape: Shape{len(values)}, data: data}
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Shape returns the tensor shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Data returns the underlying storage. Mutations are visible to the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Rows returns the size of the leading dimension.
func (t *Tensor) Rows() int {
	return t.shape.Rows()
}

// Item returns the single value of a one-element tensor.
func (t *Tensor) Item() float64 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("Item called on tensor with %d elements", len(t.data)))
	}
	return t.data[0]
}

// Row returns a view of row i.
func (t *Tensor) Row(i int) []float64 {
	size := t.shape.RowSize()
	return t.data[i*size : (i+1)*size]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// Fill sets every element to value.
func (t *Tensor) Fill(value float64) {
	for i := range t.data {
		t.data[i] = value
	}
}

// CopyFrom copies the contents of src into t. Shapes must match.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("shape mismatch: %v vs %v", t.shape, src.shape)
	}
	copy(t.data, src.data)
	return nil
}

// Slice returns a copy of rows [start, end).
func (t *Tensor) Slice(start, end int) *Tensor {
	size := t.shape.RowSize()
	data := make([]float64, (end-start)*size)
	copy(data, t.data[start*size:end*size])
	return &Tensor{shape: t.shape.WithRows(end - start), data: data}
}

// Gather returns a copy containing the rows at the given indices, in order.
func (t *Tensor) Gather(indices []int) *Tensor {
	size := t.shape.RowSize()
	data := make([]float64, 0, len(indices)*size)
	for _, idx := range indices {
		data = append(data, t.data[idx*size:(idx+1)*size]...)
	}
	return &Tensor{shape: t.shape.WithRows(len(indices)), data: data}
}

// Map returns a new tensor with f applied elementwise.
func (t *Tensor) Map(f func(float64) float64) *Tensor {
	out := New(t.shape)
	for i, v := range t.data {
		out.data[i] = f(v)
	}
	return out
}

// HasNaN reports whether any element is NaN or infinite.
func (t *Tensor) HasNaN() bool {
	for _, v := range t.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if len(t.data) <= 8 {
		return fmt.Sprintf("Tensor(shape=%v, data=%v)", t.shape, t.data)
	}
	return fmt.Sprintf("Tensor(shape=%v, data=%v...)", t.shape, t.data[:8])
}
