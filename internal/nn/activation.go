package nn

import (
	"math"

	"github.com/born-ml/kindle/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
type ReLU struct {
	output *tensor.Tensor
}

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU activation.
func (r *ReLU) Forward(inputs ...*tensor.Tensor) *tensor.Tensor {
	r.output = inputs[0].Map(func(x float64) float64 {
		return math.Max(0, x)
	})
	return r.output
}

// Backward passes the gradient through where the input was positive.
func (r *ReLU) Backward(grad *tensor.Tensor) *tensor.Tensor {
	out := grad.Clone()
	data := out.Data()
	for i, y := range r.output.Data() {
		if y <= 0 {
			data[i] = 0
		}
	}
	return out
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// Sigmoid is the logistic activation module: f(x) = 1 / (1 + exp(-x)).
type Sigmoid struct {
	output *tensor.Tensor
}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{}
}

// Forward applies the sigmoid function.
func (s *Sigmoid) Forward(inputs ...*tensor.Tensor) *tensor.Tensor {
	s.output = tensor.Sigmoid(inputs[0])
	return s.output
}

// Backward computes grad * y * (1 - y).
func (s *Sigmoid) Backward(grad *tensor.Tensor) *tensor.Tensor {
	out := grad.Clone()
	data := out.Data()
	for i, y := range s.output.Data() {
		data[i] *= y * (1 - y)
	}
	return out
}

// Parameters returns nil (Sigmoid has no trainable parameters).
func (s *Sigmoid) Parameters() []*Parameter {
	return nil
}

// Tanh is the hyperbolic tangent activation module.
type Tanh struct {
	output *tensor.Tensor
}

// NewTanh creates a new Tanh activation module.
func NewTanh() *Tanh {
	return &Tanh{}
}

// Forward applies tanh elementwise.
func (t *Tanh) Forward(inputs ...*tensor.Tensor) *tensor.Tensor {
	t.output = inputs[0].Map(math.Tanh)
	return t.output
}

// Backward computes grad * (1 - y²).
func (t *Tanh) Backward(grad *tensor.Tensor) *tensor.Tensor {
	out := grad.Clone()
	data := out.Data()
	for i, y := range t.output.Data() {
		data[i] *= 1 - y*y
	}
	return out
}

// Parameters returns nil (Tanh has no trainable parameters).
func (t *Tanh) Parameters() []*Parameter {
	return nil
}
