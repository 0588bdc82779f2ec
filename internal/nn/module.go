// Package nn implements the model-side contracts consumed by the trainer.
//
// This package provides:
//   - Module interface: forward/backward computation over trainable Parameters
//   - Trainable and Grouped capabilities (train/eval mode, layer groups)
//   - Parameter: trainable tensor with gradient and a requires-grad flag
//   - Linear, activations and Sequential for building reference models
//   - Model: a Sequential partitioned into layer groups for gradual unfreezing
//   - Loss functions returning both the scalar loss and its gradient
//
// Gradients are computed explicitly: Backward receives the gradient of the
// loss with respect to the module output, accumulates parameter gradients,
// and returns the gradient with respect to the module input.
package nn

import (
	"github.com/born-ml/kindle/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every module must implement:
//   - Forward: compute output from one or more inputs
//   - Backward: propagate the output gradient, accumulating parameter grads
//   - Parameters: return all trainable parameters, in a stable order
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(4, 16, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(16, 1, rng),
//	)
type Module interface {
	// Forward computes the output of the module.
	//
	// Most modules consume a single input tensor of shape [batch, features].
	// Multi-input models (e.g. inputs plus an attention mask) receive all of
	// them in order.
	Forward(inputs ...*tensor.Tensor) *tensor.Tensor

	// Backward receives dLoss/dOutput for the most recent Forward call,
	// accumulates gradients into parameters that require them, and returns
	// dLoss/dInput for the first input.
	Backward(grad *tensor.Tensor) *tensor.Tensor

	// Parameters returns all trainable parameters of this module.
	//
	// Weights and biases are separate entries. Returns an empty slice for
	// modules without parameters (e.g. activation functions).
	Parameters() []*Parameter
}

// Trainable is implemented by modules that distinguish training and
// evaluation behavior.
type Trainable interface {
	SetTraining(training bool)
	Training() bool
}

// Grouped is implemented by models that declare a layer-group partition.
//
// Groups are ordered from the start of the network to the end. Each group
// lists the parameters it owns; together the groups cover every parameter
// exactly once.
type Grouped interface {
	Groups() [][]*Parameter
}

// SetTraining switches m into training or evaluation mode if it supports it.
func SetTraining(m Module, training bool) {
	if t, ok := m.(Trainable); ok {
		t.SetTraining(training)
	}
}

// ParameterGroups returns the group partition of m, or a single group
// holding every parameter if m does not declare one.
func ParameterGroups(m Module) [][]*Parameter {
	if g, ok := m.(Grouped); ok {
		return g.Groups()
	}
	return [][]*Parameter{m.Parameters()}
}
