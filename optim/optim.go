// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/kindle/internal/nn"
	"github.com/born-ml/kindle/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// ParamGroup is a set of parameters sharing a learning rate.
type ParamGroup = optim.ParamGroup

// Kind identifies an optimizer implementation.
type Kind = optim.Kind

// Optimizer kinds.
const (
	KindAdam = optim.KindAdam
	KindSGD  = optim.KindSGD
)

// DefaultAdamEps is the default Adam epsilon.
const DefaultAdamEps = optim.DefaultAdamEps

// Errors.
var (
	ErrGroupLRs          = optim.ErrGroupLRs
	ErrIncompatibleState = optim.ErrIncompatibleState
	ErrUnknownKind       = optim.ErrUnknownKind
)

// ParseKind parses "adam" or "sgd".
func ParseKind(s string) (Kind, error) {
	return optim.ParseKind(s)
}

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(
//	    []optim.ParamGroup{{Params: model.Parameters(), LR: 0.01}},
//	    optim.SGDConfig{Momentum: 0.9},
//	)
func NewSGD(groups []ParamGroup, config SGDConfig) *SGD {
	return optim.NewSGD(groups, config)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
//
// Example:
//
//	optimizer := optim.NewAdam(
//	    []optim.ParamGroup{{Params: model.Parameters(), LR: 1e-3}},
//	    optim.AdamConfig{Betas: [2]float64{0.9, 0.999}},
//	)
func NewAdam(groups []ParamGroup, config AdamConfig) *Adam {
	return optim.NewAdam(groups, config)
}

// New creates an optimizer of the given kind.
func New(kind Kind, groups []ParamGroup, eps float64) (Optimizer, error) {
	return optim.New(kind, groups, eps)
}

// NewVariableLR creates an optimizer with one parameter group per layer
// group of model.
func NewVariableLR(model nn.Module, lrs []float64, mult float64, kind Kind, eps float64) (Optimizer, error) {
	return optim.NewVariableLR(model, lrs, mult, kind, eps)
}

// Update re-assigns group learning rates with the multiplier rule.
func Update(o Optimizer, lrs []float64, mult float64) error {
	return optim.Update(o, lrs, mult)
}

// LRs returns the learning rate of every group.
func LRs(o Optimizer) []float64 { return optim.LRs(o) }
