package optim

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/tensor"
)

// DefaultAdamEps is the default Adam epsilon.
const DefaultAdamEps = 1e-3

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	optimizer := optim.NewAdam([]optim.ParamGroup{
//	    {Params: model.Parameters(), LR: 3e-3},
//	}, optim.AdamConfig{})
type Adam struct {
	groups []*ParamGroup
	beta1  float64
	beta2  float64
	eps    float64
	t      int              // Timestep for bias correction
	m      []*tensor.Tensor // First moment estimates, indexed like flatten(groups)
	v      []*tensor.Tensor // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: DefaultAdamEps)
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-3
func NewAdam(groups []ParamGroup, config AdamConfig) *Adam {
	// Set defaults
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = DefaultAdamEps
	}

	g := copyGroups(groups)
	n := len(flatten(g))
	return &Adam{
		groups: g,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make([]*tensor.Tensor, n),
		v:      make([]*tensor.Tensor, n),
	}
}

// Step performs a single optimization step using Adam algorithm.
//
// Parameters that are frozen or have no gradient are skipped.
func (a *Adam) Step() {
	// Increment timestep
	a.t++

	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	idx := 0
	for _, group := range a.groups {
		for _, param := range group.Params {
			i := idx
			idx++
			grad := param.Grad()
			if !param.RequiresGrad() || grad == nil {
				continue
			}
			if a.m[i] == nil {
				a.m[i] = tensor.New(param.Shape())
				a.v[i] = tensor.New(param.Shape())
			}
			m, v := a.m[i].Data(), a.v[i].Data()
			data := param.Tensor().Data()
			for j, g := range grad.Data() {
				m[j] = a.beta1*m[j] + (1-a.beta1)*g
				v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
				mHat := m[j] / biasCorrection1
				vHat := v[j] / biasCorrection2
				data[j] -= group.LR * mHat / (math.Sqrt(vHat) + a.eps)
			}
		}
	}
}

// ZeroGrad clears all parameter gradients.
func (a *Adam) ZeroGrad() {
	zeroGrad(a.groups)
}

// Groups returns the parameter groups.
func (a *Adam) Groups() []*ParamGroup {
	return a.groups
}

// Kind returns KindAdam.
func (a *Adam) Kind() Kind {
	return KindAdam
}

// Eps returns the numerical stability term.
func (a *Adam) Eps() float64 {
	return a.eps
}

// StateDict returns "step" plus the moment buffers as "m.<i>" and "v.<i>".
func (a *Adam) StateDict() map[string]*tensor.Tensor {
	state := map[string]*tensor.Tensor{
		"step": tensor.Vector(float64(a.t)),
	}
	for i := range a.m {
		if a.m[i] != nil {
			state[stateKey("m", i)] = a.m[i].Clone()
			state[stateKey("v", i)] = a.v[i].Clone()
		}
	}
	return state
}

// LoadStateDict restores the timestep and moment buffers.
func (a *Adam) LoadStateDict(state map[string]*tensor.Tensor) error {
	params := flatten(a.groups)
	step, ok := state["step"]
	if !ok || len(step.Data()) != 1 {
		return errors.Wrap(ErrIncompatibleState, "missing adam step")
	}
	if err := checkState(state, params, []string{"step"}, "m", "v"); err != nil {
		return err
	}
	for i := range params {
		_, hasM := state[stateKey("m", i)]
		_, hasV := state[stateKey("v", i)]
		if hasM != hasV {
			return errors.Wrapf(ErrIncompatibleState, "parameter %d has only one moment", i)
		}
	}
	a.t = int(step.Item())
	for i := range params {
		a.m[i], a.v[i] = nil, nil
		if m, ok := state[stateKey("m", i)]; ok {
			a.m[i] = m.Clone()
			a.v[i] = state[stateKey("v", i)].Clone()
		}
	}
	return nil
}
