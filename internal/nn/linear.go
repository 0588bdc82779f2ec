package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/kindle/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
//
// Example:
//
//	rng := rand.New(rand.NewPCG(1, 2))
//	layer := nn.NewLinear(784, 128, rng)
//	output := layer.Forward(input) // shape: [32, 128]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
	input       *tensor.Tensor
}

// NewLinear creates a new Linear layer.
//
// Parameters:
//   - inFeatures: Number of input features
//   - outFeatures: Number of output features
//   - rng: Source of randomness for weight initialization
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, rng)),
		bias:        NewParameter("bias", tensor.New(tensor.Shape{outFeatures})),
	}
}

// Forward computes y = x @ W.T + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (l *Linear) Forward(inputs ...*tensor.Tensor) *tensor.Tensor {
	x := inputs[0]
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", shape))
	}
	if shape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, shape[1]))
	}
	l.input = x

	w := l.weight.Tensor().Data()
	b := l.bias.Tensor().Data()
	out := tensor.New(tensor.Shape{shape[0], l.outFeatures})
	for n := 0; n < shape[0]; n++ {
		xr := x.Row(n)
		yr := out.Row(n)
		for o := 0; o < l.outFeatures; o++ {
			sum := b[o]
			wr := w[o*l.inFeatures : (o+1)*l.inFeatures]
			for i, xv := range xr {
				sum += xv * wr[i]
			}
			yr[o] = sum
		}
	}
	return out
}

// Backward accumulates dW and db and returns dX.
func (l *Linear) Backward(grad *tensor.Tensor) *tensor.Tensor {
	x := l.input
	batch := x.Rows()
	w := l.weight.Tensor().Data()

	dW := make([]float64, l.outFeatures*l.inFeatures)
	db := make([]float64, l.outFeatures)
	dX := tensor.New(x.Shape())
	for n := 0; n < batch; n++ {
		g := grad.Row(n)
		xr := x.Row(n)
		dxr := dX.Row(n)
		for o, gv := range g {
			db[o] += gv
			for i, xv := range xr {
				dW[o*l.inFeatures+i] += gv * xv
				dxr[i] += gv * w[o*l.inFeatures+i]
			}
		}
	}
	l.weight.AccumulateGrad(dW)
	l.bias.AccumulateGrad(db)
	return dX
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// String implements fmt.Stringer.
func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d)", l.inFeatures, l.outFeatures)
}

// Xavier (Glorot) initialization for weights.
//
// Draws values from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))),
// which keeps activation variance roughly constant across layers.
func Xavier(fanIn, fanOut int, rng *rand.Rand) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.New(tensor.Shape{fanOut, fanIn})
	data := t.Data()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return t
}
