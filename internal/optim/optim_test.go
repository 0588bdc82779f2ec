package optim_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kindle/internal/nn"
	"github.com/born-ml/kindle/internal/optim"
	"github.com/born-ml/kindle/internal/tensor"
)

func scalarParam(value float64) *nn.Parameter {
	return nn.NewParameter("x", tensor.Vector(value))
}

func threeGroupModel() *nn.Model {
	rng := rand.New(rand.NewPCG(1, 2))
	return nn.NewModel(
		nn.NewLinear(2, 2, rng),
		nn.NewLinear(2, 2, rng),
		nn.NewLinear(2, 1, rng),
	)
}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	param := scalarParam(2.0)
	optimizer := optim.NewSGD([]optim.ParamGroup{{Params: []*nn.Parameter{param}, LR: 0.1}}, optim.SGDConfig{})

	param.AccumulateGrad([]float64{1.0})
	optimizer.Step()

	// Expected: x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0 = 1.9
	assert.InDelta(t, 1.9, param.Tensor().Item(), 1e-12)
}

// TestSGD_WithMomentum tests SGD with momentum over two steps.
func TestSGD_WithMomentum(t *testing.T) {
	param := scalarParam(1.0)
	optimizer := optim.NewSGD([]optim.ParamGroup{{Params: []*nn.Parameter{param}, LR: 0.1}}, optim.SGDConfig{Momentum: 0.9})

	for range 2 {
		optimizer.ZeroGrad()
		param.AccumulateGrad([]float64{1.0})
		optimizer.Step()
	}

	// Step 1: v = 1, x = 0.9. Step 2: v = 1.9, x = 0.71.
	assert.InDelta(t, 0.71, param.Tensor().Item(), 1e-12)
	state := optimizer.StateDict()
	require.Contains(t, state, "velocity.0")
	assert.InDelta(t, 1.9, state["velocity.0"].Item(), 1e-12)
}

// TestAdam_FirstStep checks the bias-corrected first update equals
// lr * g / (|g| + eps).
func TestAdam_FirstStep(t *testing.T) {
	param := scalarParam(1.0)
	optimizer := optim.NewAdam([]optim.ParamGroup{{Params: []*nn.Parameter{param}, LR: 0.01}}, optim.AdamConfig{})
	assert.InDelta(t, 1e-3, optimizer.Eps(), 0)

	param.AccumulateGrad([]float64{0.5})
	optimizer.Step()

	assert.InDelta(t, 1.0-0.01*0.5/(0.5+1e-3), param.Tensor().Item(), 1e-12)
}

// TestStep_SkipsFrozenParameters leaves frozen parameters untouched.
func TestStep_SkipsFrozenParameters(t *testing.T) {
	for _, kind := range []optim.Kind{optim.KindSGD, optim.KindAdam} {
		t.Run(kind.String(), func(t *testing.T) {
			frozen := scalarParam(1.0)
			frozen.AccumulateGrad([]float64{1})
			frozen.SetRequiresGrad(false)
			live := scalarParam(1.0)
			live.AccumulateGrad([]float64{1})

			o, err := optim.New(kind, []optim.ParamGroup{{Params: []*nn.Parameter{frozen, live}, LR: 0.1}}, 0)
			require.NoError(t, err)
			o.Step()

			assert.Equal(t, 1.0, frozen.Tensor().Item())
			assert.Less(t, live.Tensor().Item(), 1.0)
		})
	}
}

// TestGroupLRs covers the per-group multiplier rule.
func TestGroupLRs(t *testing.T) {
	tests := []struct {
		name string
		lrs  []float64
		mult float64
		n    int
		want []float64
	}{
		{"single spread", []float64{3e-3}, 0.1, 3, []float64{3e-5, 3e-4, 3e-3}},
		{"single no mult", []float64{1e-2}, 1, 2, []float64{1e-2, 1e-2}},
		{"one per group", []float64{1, 2, 3}, 0.1, 3, []float64{1, 2, 3}},
		{"single group", []float64{0.5}, 0.1, 1, []float64{0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := optim.GroupLRs(tt.lrs, tt.mult, tt.n)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-15)
		})
	}

	_, err := optim.GroupLRs([]float64{1, 2}, 1, 3)
	assert.ErrorIs(t, err, optim.ErrGroupLRs)
}

// TestNewVariableLR_AndUpdate creates one group per model layer group.
func TestNewVariableLR_AndUpdate(t *testing.T) {
	model := threeGroupModel()
	o, err := optim.NewVariableLR(model, []float64{1e-2}, 0.5, optim.KindAdam, 0)
	require.NoError(t, err)
	require.Len(t, o.Groups(), 3)
	assert.InDeltaSlice(t, []float64{2.5e-3, 5e-3, 1e-2}, optim.LRs(o), 1e-15)
	assert.InDelta(t, 1e-2, optim.MaxLR(o), 0)

	require.NoError(t, optim.Update(o, []float64{1}, 1))
	assert.Equal(t, []float64{1, 1, 1}, optim.LRs(o))

	assert.ErrorIs(t, optim.Update(o, []float64{1, 2}, 1), optim.ErrGroupLRs)
}

// TestNewVariableLR_Ungrouped treats a plain module as a single group.
func TestNewVariableLR_Ungrouped(t *testing.T) {
	model := nn.NewLinear(2, 1, rand.New(rand.NewPCG(1, 1)))
	o, err := optim.NewVariableLR(model, []float64{0.1}, 0.1, optim.KindSGD, 0)
	require.NoError(t, err)
	require.Len(t, o.Groups(), 1)
	assert.Len(t, o.Groups()[0].Params, 2)
	assert.Equal(t, optim.KindSGD, o.Kind())
}

// TestAdam_StateDictRoundtrip restores moments into a fresh optimizer so
// both produce identical subsequent updates.
func TestAdam_StateDictRoundtrip(t *testing.T) {
	a := scalarParam(1.0)
	b := scalarParam(1.0)
	oa := optim.NewAdam([]optim.ParamGroup{{Params: []*nn.Parameter{a}, LR: 0.1}}, optim.AdamConfig{})
	ob := optim.NewAdam([]optim.ParamGroup{{Params: []*nn.Parameter{b}, LR: 0.1}}, optim.AdamConfig{})

	a.AccumulateGrad([]float64{0.3})
	oa.Step()
	b.Tensor().Data()[0] = a.Tensor().Item()
	require.NoError(t, ob.LoadStateDict(oa.StateDict()))

	for _, p := range []*nn.Parameter{a, b} {
		p.ZeroGrad()
		p.AccumulateGrad([]float64{-0.2})
	}
	oa.Step()
	ob.Step()
	assert.InDelta(t, a.Tensor().Item(), b.Tensor().Item(), 1e-15)
}

// TestLoadStateDict_Incompatible rejects state from another optimizer kind
// or parameter layout.
func TestLoadStateDict_Incompatible(t *testing.T) {
	p := scalarParam(1.0)
	sgd := optim.NewSGD([]optim.ParamGroup{{Params: []*nn.Parameter{p}, LR: 0.1}}, optim.SGDConfig{Momentum: 0.9})
	adam := optim.NewAdam([]optim.ParamGroup{{Params: []*nn.Parameter{p}, LR: 0.1}}, optim.AdamConfig{})

	assert.ErrorIs(t, sgd.LoadStateDict(adam.StateDict()), optim.ErrIncompatibleState)
	assert.ErrorIs(t, adam.LoadStateDict(sgd.StateDict()), optim.ErrIncompatibleState)

	bad := map[string]*tensor.Tensor{"step": tensor.Vector(1), "m.0": tensor.Vector(1, 2), "v.0": tensor.Vector(1, 2)}
	assert.ErrorIs(t, adam.LoadStateDict(bad), optim.ErrIncompatibleState)

	outOfRange := map[string]*tensor.Tensor{"velocity.4": tensor.Vector(1)}
	assert.ErrorIs(t, sgd.LoadStateDict(outOfRange), optim.ErrIncompatibleState)
}

// TestParseKind accepts known names case-insensitively.
func TestParseKind(t *testing.T) {
	k, err := optim.ParseKind("SGD")
	require.NoError(t, err)
	assert.Equal(t, optim.KindSGD, k)

	k, err = optim.ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, optim.KindAdam, k)

	_, err = optim.ParseKind("lamb")
	assert.ErrorIs(t, err, optim.ErrUnknownKind)
}
