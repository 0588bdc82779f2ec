package optim

import (
	"github.com/born-ml/kindle/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Momentum helps accelerate SGD in relevant directions and dampens oscillations.
//
// Example:
//
//	optimizer := optim.NewSGD([]optim.ParamGroup{
//	    {Params: model.Parameters(), LR: 0.01},
//	}, optim.SGDConfig{Momentum: 0.9})
type SGD struct {
	groups     []*ParamGroup
	momentum   float64
	velocities []*tensor.Tensor // indexed like flatten(groups); nil until first update
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
//
// Groups with a zero LR keep it; the trainer always assigns rates before
// the first step.
func NewSGD(groups []ParamGroup, config SGDConfig) *SGD {
	g := copyGroups(groups)
	return &SGD{
		groups:     g,
		momentum:   config.Momentum,
		velocities: make([]*tensor.Tensor, len(flatten(g))),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step() {
	idx := 0
	for _, group := range s.groups {
		for _, param := range group.Params {
			i := idx
			idx++
			grad := param.Grad()
			if !param.RequiresGrad() || grad == nil {
				continue
			}
			update := grad.Data()
			if s.momentum != 0 {
				if s.velocities[i] == nil {
					s.velocities[i] = tensor.New(param.Shape())
				}
				v := s.velocities[i].Data()
				for j, g := range update {
					v[j] = s.momentum*v[j] + g
				}
				update = v
			}
			data := param.Tensor().Data()
			for j, u := range update {
				data[j] -= group.LR * u
			}
		}
	}
}

// ZeroGrad clears all parameter gradients.
func (s *SGD) ZeroGrad() {
	zeroGrad(s.groups)
}

// Groups returns the parameter groups.
func (s *SGD) Groups() []*ParamGroup {
	return s.groups
}

// Kind returns KindSGD.
func (s *SGD) Kind() Kind {
	return KindSGD
}

// StateDict returns the momentum buffers as "velocity.<i>".
func (s *SGD) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	for i, v := range s.velocities {
		if v != nil {
			state[stateKey("velocity", i)] = v.Clone()
		}
	}
	return state
}

// LoadStateDict restores momentum buffers.
func (s *SGD) LoadStateDict(state map[string]*tensor.Tensor) error {
	params := flatten(s.groups)
	if err := checkState(state, params, nil, "velocity"); err != nil {
		return err
	}
	for i := range params {
		s.velocities[i] = nil
		if v, ok := state[stateKey("velocity", i)]; ok {
			s.velocities[i] = v.Clone()
		}
	}
	return nil
}
