package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/kindle/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. Backward walks the
// chain in reverse.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, rng),
//	)
//
//	output := model.Forward(input)
type Sequential struct {
	modules  []Module
	training bool
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{
		modules:  modules,
		training: true,
	}
}

// Forward applies all modules in sequence.
//
// Extra inputs are only forwarded to the first module.
func (s *Sequential) Forward(inputs ...*tensor.Tensor) *tensor.Tensor {
	if len(s.modules) == 0 {
		return inputs[0]
	}
	output := s.modules[0].Forward(inputs...)
	for _, module := range s.modules[1:] {
		output = module.Forward(output)
	}
	return output
}

// Backward propagates grad through the modules in reverse order.
func (s *Sequential) Backward(grad *tensor.Tensor) *tensor.Tensor {
	for i := len(s.modules) - 1; i >= 0; i-- {
		grad = s.modules[i].Backward(grad)
	}
	return grad
}

// Parameters returns all parameters from all modules, in order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// SetTraining propagates the mode to every child that supports it.
func (s *Sequential) SetTraining(training bool) {
	s.training = training
	for _, module := range s.modules {
		SetTraining(module, training)
	}
}

// Training reports whether the container is in training mode.
func (s *Sequential) Training() bool {
	return s.training
}

// Len returns the number of modules.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at index i.
func (s *Sequential) Module(i int) Module {
	return s.modules[i]
}

// String implements fmt.Stringer.
func (s *Sequential) String() string {
	var b strings.Builder
	b.WriteString("Sequential(\n")
	for i, m := range s.modules {
		fmt.Fprintf(&b, "  (%d): %v\n", i, describe(m))
	}
	b.WriteString(")")
	return b.String()
}

func describe(m Module) string {
	if s, ok := m.(fmt.Stringer); ok {
		return strings.ReplaceAll(s.String(), "\n", "\n  ")
	}
	return fmt.Sprintf("%T", m)
}
