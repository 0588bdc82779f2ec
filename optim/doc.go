// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers with per-group learning rates.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction (eps 1e-3)
//   - Optimizer interface for custom optimizers
//
// Parameters are organized in ParamGroups, each with its own learning
// rate. NewVariableLR builds one group per layer group of a model and
// spreads a single rate over them with a multiplier:
//
//	lr_i = lr * mult^(n-1-i)
//
// so the head trains at lr and earlier groups progressively slower.
//
// # Basic Usage
//
//	o, err := optim.NewVariableLR(model, []float64{3e-3}, 0.1, optim.KindAdam, 0)
//	if err != nil {
//	    return err
//	}
//	o.ZeroGrad()
//	loss, grad := nn.MSELoss(model.Forward(x), y)
//	model.Backward(grad)
//	o.Step()
//
// Optimizer state round-trips through StateDict and LoadStateDict, which
// rejects state from another kind or parameter layout.
package optim
