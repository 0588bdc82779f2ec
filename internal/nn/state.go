package nn

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/tensor"
)

// ErrStateMismatch is returned when a state dict does not fit a module.
var ErrStateMismatch = errors.New("state dict does not match module parameters")

// StateKey returns the state-dict key of the i-th parameter.
func StateKey(i int, p *Parameter) string {
	return fmt.Sprintf("%d.%s", i, p.Name())
}

// StateDict returns copies of every parameter tensor, keyed by StateKey.
func StateDict(m Module) map[string]*tensor.Tensor {
	params := m.Parameters()
	out := make(map[string]*tensor.Tensor, len(params))
	for i, p := range params {
		out[StateKey(i, p)] = p.Tensor().Clone()
	}
	return out
}

// LoadStateDict copies tensors from state into the parameters of m.
//
// Every parameter must be present with a matching shape; nothing is
// modified if any check fails.
func LoadStateDict(m Module, state map[string]*tensor.Tensor) error {
	params := m.Parameters()
	for i, p := range params {
		key := StateKey(i, p)
		src, ok := state[key]
		if !ok {
			return errors.Wrapf(ErrStateMismatch, "missing %q", key)
		}
		if !src.Shape().Equal(p.Shape()) {
			return errors.Wrapf(ErrStateMismatch, "%q: expected shape %v, got %v", key, p.Shape(), src.Shape())
		}
	}
	for i, p := range params {
		if err := p.Tensor().CopyFrom(state[StateKey(i, p)]); err != nil {
			return err
		}
	}
	return nil
}
