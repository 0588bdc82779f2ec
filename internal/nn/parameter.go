package nn

import (
	"github.com/born-ml/kindle/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors that take part in gradient computation during
// training. They typically represent weights and biases of layers.
//
// A frozen parameter (RequiresGrad false) still participates in forward and
// backward passes, but receives no gradient and is skipped by optimizers.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
//	grad := weight.Grad() // nil until the first backward pass
type Parameter struct {
	name         string         // Parameter name (e.g., "weight", "bias")
	tensor       *tensor.Tensor // The parameter tensor
	grad         *tensor.Tensor // Gradient tensor (computed during backward pass)
	requiresGrad bool
}

// NewParameter creates a new trainable parameter.
//
// The gradient is allocated on the first backward pass.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:         name,
		tensor:       t,
		requiresGrad: true,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Shape returns the parameter shape.
func (p *Parameter) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been computed yet (before backward pass).
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// AccumulateGrad adds g to the gradient. Frozen parameters ignore it.
func (p *Parameter) AccumulateGrad(g []float64) {
	if !p.requiresGrad {
		return
	}
	if p.grad == nil {
		p.grad = tensor.New(p.tensor.Shape())
	}
	data := p.grad.Data()
	for i, v := range g {
		data[i] += v
	}
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// RequiresGrad reports whether the parameter is trainable.
func (p *Parameter) RequiresGrad() bool {
	return p.requiresGrad
}

// SetRequiresGrad freezes (false) or unfreezes (true) the parameter.
func (p *Parameter) SetRequiresGrad(requires bool) {
	p.requiresGrad = requires
	if !requires {
		p.grad = nil
	}
}
