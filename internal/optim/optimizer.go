// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - ParamGroup: a set of parameters sharing one learning rate
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - GroupLRs / NewVariableLR / Update: per-group learning-rate assignment
//
// Design inspired by PyTorch's torch.optim parameter groups.
//
// Example usage:
//
//	// One learning rate, spread over three layer groups with multiplier 0.1:
//	// [3e-5, 3e-4, 3e-3]
//	optimizer, err := optim.NewVariableLR(model, []float64{3e-3}, 0.1, optim.KindAdam, 0)
//
//	// Training loop
//	optimizer.ZeroGrad()
//	loss, grad := lossFn(model.Forward(x), y)
//	model.Backward(grad)
//	optimizer.Step()
package optim

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/nn"
	"github.com/born-ml/kindle/internal/tensor"
)

var (
	// ErrGroupLRs is returned when the number of learning rates matches
	// neither one nor the number of parameter groups.
	ErrGroupLRs = errors.New("learning rates must be a single value or one per parameter group")

	// ErrIncompatibleState is returned by LoadStateDict when the stored
	// state was produced by a different optimizer or parameter layout.
	ErrIncompatibleState = errors.New("incompatible optimizer state")

	// ErrUnknownKind is returned by ParseKind.
	ErrUnknownKind = errors.New("unknown optimizer kind")
)

// Kind identifies an optimizer implementation.
type Kind int

// Optimizer kinds.
const (
	KindAdam Kind = iota
	KindSGD
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindAdam:
		return "adam"
	case KindSGD:
		return "sgd"
	default:
		return "unknown"
	}
}

// ParseKind parses "adam" or "sgd" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "adam", "":
		return KindAdam, nil
	case "sgd":
		return KindSGD, nil
	default:
		return 0, errors.Wrapf(ErrUnknownKind, "%q", s)
	}
}

// ParamGroup is a set of parameters sharing one learning rate.
type ParamGroup struct {
	Params []*nn.Parameter
	LR     float64
}

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update model parameters based on the gradients accumulated by
// Module.Backward. Each parameter group has its own learning rate, which
// schedulers mutate through Update.
type Optimizer interface {
	// Step applies gradient updates to every trainable parameter.
	//
	// Frozen parameters and parameters without a gradient are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// Groups returns the parameter groups. Callers may change LR in place.
	Groups() []*ParamGroup

	// Kind reports which algorithm the optimizer implements.
	Kind() Kind

	// StateDict returns copies of the optimizer's numeric state.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict restores state produced by StateDict.
	//
	// Returns ErrIncompatibleState if the state does not fit this
	// optimizer's parameters.
	LoadStateDict(state map[string]*tensor.Tensor) error
}

// New creates an optimizer of the given kind over groups.
//
// eps is only used by Adam; zero selects the default.
func New(kind Kind, groups []ParamGroup, eps float64) (Optimizer, error) {
	switch kind {
	case KindAdam:
		return NewAdam(groups, AdamConfig{Eps: eps}), nil
	case KindSGD:
		return NewSGD(groups, SGDConfig{}), nil
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "kind %d", int(kind))
	}
}

// GroupLRs expands lrs into one learning rate per group.
//
// If len(lrs) equals n, the values are used as given. A single value lr is
// spread over the groups as lr * mult^(n-1-i), so the last group (the head)
// receives lr and earlier groups progressively smaller rates when mult < 1.
func GroupLRs(lrs []float64, mult float64, n int) ([]float64, error) {
	switch {
	case len(lrs) == n:
		out := make([]float64, n)
		copy(out, lrs)
		return out, nil
	case len(lrs) == 1:
		out := make([]float64, n)
		for i := range out {
			out[i] = lrs[0] * math.Pow(mult, float64(n-1-i))
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrGroupLRs, "got %d rates for %d groups", len(lrs), n)
	}
}

// NewVariableLR creates an optimizer with one parameter group per layer
// group of model, assigning rates with GroupLRs.
func NewVariableLR(model nn.Module, lrs []float64, mult float64, kind Kind, eps float64) (Optimizer, error) {
	paramGroups := nn.ParameterGroups(model)
	rates, err := GroupLRs(lrs, mult, len(paramGroups))
	if err != nil {
		return nil, err
	}
	groups := make([]ParamGroup, len(paramGroups))
	for i, params := range paramGroups {
		groups[i] = ParamGroup{Params: params, LR: rates[i]}
	}
	return New(kind, groups, eps)
}

// Update re-assigns the learning rate of every group of o using the same
// rule as NewVariableLR.
func Update(o Optimizer, lrs []float64, mult float64) error {
	groups := o.Groups()
	rates, err := GroupLRs(lrs, mult, len(groups))
	if err != nil {
		return err
	}
	for i, g := range groups {
		g.LR = rates[i]
	}
	return nil
}

// LRs returns the current learning rate of each group.
func LRs(o Optimizer) []float64 {
	groups := o.Groups()
	out := make([]float64, len(groups))
	for i, g := range groups {
		out[i] = g.LR
	}
	return out
}

// MaxLR returns the largest group learning rate.
func MaxLR(o Optimizer) float64 {
	maxLR := math.Inf(-1)
	for _, g := range o.Groups() {
		maxLR = math.Max(maxLR, g.LR)
	}
	return maxLR
}

func copyGroups(groups []ParamGroup) []*ParamGroup {
	out := make([]*ParamGroup, len(groups))
	for i := range groups {
		g := groups[i]
		out[i] = &g
	}
	return out
}

// flatten returns every parameter across groups, in group order. State
// keys use indices into this slice.
func flatten(groups []*ParamGroup) []*nn.Parameter {
	var params []*nn.Parameter
	for _, g := range groups {
		params = append(params, g.Params...)
	}
	return params
}

func zeroGrad(groups []*ParamGroup) {
	for _, g := range groups {
		for _, p := range g.Params {
			p.ZeroGrad()
		}
	}
}

// stateKey returns the key of per-parameter state, e.g. "m.3".
func stateKey(prefix string, i int) string {
	return prefix + "." + strconv.Itoa(i)
}

// checkState verifies that every key in state is either one of scalars or
// a per-parameter key under one of prefixes whose tensor matches the shape
// of the parameter at that index.
func checkState(state map[string]*tensor.Tensor, params []*nn.Parameter, scalars []string, prefixes ...string) error {
	for k, t := range state {
		if slices.Contains(scalars, k) {
			continue
		}
		prefix, index, ok := strings.Cut(k, ".")
		if !ok || !slices.Contains(prefixes, prefix) {
			return errors.Wrapf(ErrIncompatibleState, "unexpected key %q", k)
		}
		i, err := strconv.Atoi(index)
		if err != nil || i < 0 || i >= len(params) {
			return errors.Wrapf(ErrIncompatibleState, "key %q does not address a parameter", k)
		}
		if !t.Shape().Equal(params[i].Shape()) {
			return errors.Wrapf(ErrIncompatibleState, "%q: expected shape %v, got %v", k, params[i].Shape(), t.Shape())
		}
	}
	return nil
}
