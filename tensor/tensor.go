// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/kindle/internal/tensor"
)

// Tensor is a dense row-major float64 tensor.
type Tensor = tensor.Tensor

// Shape represents the dimensions of a tensor.
// Example: Shape{32, 4} is a batch of 32 rows with 4 features each.
type Shape = tensor.Shape

// New creates a zero tensor with the given shape.
func New(shape Shape) *Tensor {
	return tensor.New(shape)
}

// FromSlice creates a tensor over data. len(data) must match shape.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// MustFromSlice is like FromSlice but panics on a size mismatch.
func MustFromSlice(data []float64, shape Shape) *Tensor {
	return tensor.MustFromSlice(data, shape)
}

// Column creates a [n, 1] tensor, the usual label layout.
func Column(values ...float64) *Tensor {
	return tensor.Column(values...)
}

// Vector creates a one-dimensional tensor.
func Vector(values ...float64) *Tensor {
	return tensor.Vector(values...)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	return tensor.Full(shape, value)
}

// Activations usable as a trainer's last activation.

// Identity returns t unchanged.
func Identity(t *Tensor) *Tensor { return tensor.Identity(t) }

// Sigmoid applies the logistic function elementwise.
func Sigmoid(t *Tensor) *Tensor { return tensor.Sigmoid(t) }

// Softmax normalizes each row into a probability distribution.
func Softmax(t *Tensor) *Tensor { return tensor.Softmax(t) }
