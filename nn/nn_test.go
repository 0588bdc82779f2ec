// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kindle/nn"
	"github.com/born-ml/kindle/tensor"
)

// TestModuleInterface verifies that concrete types implement Module.
func TestModuleInterface(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tests := []struct {
		name   string
		module nn.Module
	}{
		{name: "Linear", module: nn.NewLinear(3, 2, rng)},
		{name: "Sequential", module: nn.NewSequential(nn.NewLinear(3, 4, rng), nn.NewReLU(), nn.NewLinear(4, 2, rng))},
		{name: "Model", module: nn.NewModel(nn.NewLinear(3, 4, rng), nn.NewLinear(4, 2, rng))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.module.Forward(tensor.New(tensor.Shape{5, 3}))
			assert.Equal(t, tensor.Shape{5, 2}, out.Shape())
			assert.NotEmpty(t, tt.module.Parameters())
		})
	}
}

// TestUnfreezeGroups keeps only the head trainable.
func TestUnfreezeGroups(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	model := nn.NewModel(nn.NewLinear(2, 2, rng), nn.NewLinear(2, 2, rng), nn.NewLinear(2, 1, rng))

	require.NoError(t, nn.UnfreezeGroups(model, 1))
	status := nn.TrainableStatus(model)
	require.Len(t, status, 6)
	for i, s := range status {
		assert.Equal(t, i >= 4, s.Trainable, "parameter %d", i)
	}
}
