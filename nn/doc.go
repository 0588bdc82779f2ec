// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the model contracts consumed by the trainer and a
// small set of reference layers.
//
// # Overview
//
// A model is any Module: it computes a forward pass from one or more
// inputs, propagates the output gradient back through Backward and lists
// its Parameters. Two optional capabilities refine it:
//   - Trainable: the module distinguishes training and evaluation mode
//   - Grouped: the module partitions its parameters into layer groups,
//     the unit of gradual unfreezing and per-group learning rates
//
// # Basic Usage
//
//	rng := rand.New(rand.NewPCG(1, 2))
//	model := nn.NewModel(
//	    nn.NewSequential(nn.NewLinear(4, 16, rng), nn.NewReLU()), // group 0
//	    nn.NewSequential(nn.NewLinear(16, 8, rng), nn.NewReLU()), // group 1
//	    nn.NewLinear(8, 1, rng),                                  // head
//	)
//	nn.UnfreezeGroups(model, 1) // train the head only
//
// # Losses
//
// A LossFunc returns the mean loss of a batch and its gradient with
// respect to the predictions:
//   - MSELoss, L1Loss: regression
//   - BCEWithLogitsLoss: binary and multi-label classification on logits
//   - CrossEntropyLoss: multiclass classification on logits
//   - SoftLabelCrossEntropy: cross entropy against smoothed labels
package nn
