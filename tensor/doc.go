// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 tensors exchanged between
// models, losses, metrics and the trainer.
//
// Tensors are row-major. The first dimension is the batch dimension:
// data loaders slice it, metrics compare it row by row.
//
// Example:
//
//	x := tensor.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	y := tensor.Column(0, 1)
//	p := tensor.Sigmoid(x)
package tensor
