// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"github.com/born-ml/kindle/internal/nn"
	"github.com/born-ml/kindle/internal/tensor"
)

// Module is the interface every model implements.
type Module = nn.Module

// Trainable is implemented by modules with distinct train and eval modes.
type Trainable = nn.Trainable

// Grouped is implemented by models that declare layer groups.
type Grouped = nn.Grouped

// Parameter is a trainable tensor with its gradient.
type Parameter = nn.Parameter

// NewParameter creates a trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Layers

// Linear is a fully connected layer.
type Linear = nn.Linear

// NewLinear creates a linear layer with Xavier initialization.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, rand.New(rand.NewPCG(1, 2)))
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, rng)
}

// Sequential chains modules.
type Sequential = nn.Sequential

// NewSequential creates a Sequential from modules, first to last.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// Model is a Sequential partitioned into layer groups.
type Model = nn.Model

// NewModel creates a grouped model; each argument is one group.
func NewModel(groups ...Module) *Model {
	return nn.NewModel(groups...)
}

// Activations

// ReLU is the rectified linear unit.
type ReLU = nn.ReLU

// NewReLU creates a ReLU layer.
func NewReLU() *ReLU { return nn.NewReLU() }

// Sigmoid is the logistic activation layer.
type Sigmoid = nn.Sigmoid

// NewSigmoid creates a Sigmoid layer.
func NewSigmoid() *Sigmoid { return nn.NewSigmoid() }

// Tanh is the hyperbolic tangent activation layer.
type Tanh = nn.Tanh

// NewTanh creates a Tanh layer.
func NewTanh() *Tanh { return nn.NewTanh() }

// Losses

// LossFunc computes a batch loss and its gradient.
type LossFunc = nn.LossFunc

// Built-in losses.
var (
	MSELoss           LossFunc = nn.MSELoss
	L1Loss            LossFunc = nn.L1Loss
	BCEWithLogitsLoss LossFunc = nn.BCEWithLogitsLoss
	CrossEntropyLoss  LossFunc = nn.CrossEntropyLoss
)

// SoftLabelCrossEntropy returns a cross entropy against labels smoothed
// by alpha.
func SoftLabelCrossEntropy(alpha float64) LossFunc {
	return nn.SoftLabelCrossEntropy(alpha)
}

// Freezing

// UnfreezeGroups makes the last n layer groups trainable and freezes the rest.
func UnfreezeGroups(m Module, n int) error { return nn.UnfreezeGroups(m, n) }

// UnfreezeLayers makes the last n parameter tensors trainable and freezes the rest.
func UnfreezeLayers(m Module, n int) { nn.UnfreezeLayers(m, n) }

// Freeze freezes every parameter of m.
func Freeze(m Module) { nn.Freeze(m) }

// LayerStatus reports whether one parameter tensor is trainable.
type LayerStatus = nn.LayerStatus

// TrainableStatus lists the trainable flag of every parameter tensor.
func TrainableStatus(m Module) []LayerStatus { return nn.TrainableStatus(m) }

// WeightStat summarizes one parameter tensor.
type WeightStat = nn.WeightStat

// WeightStats returns rounded mean and standard deviation per parameter tensor.
func WeightStats(m Module, digits int) []WeightStat { return nn.WeightStats(m, digits) }
