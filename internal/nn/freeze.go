package nn

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/kindle/internal/tensor"
)

// ErrNoGroups is returned when group-wise unfreezing is requested for a
// module that does not declare a layer-group partition.
var ErrNoGroups = errors.New("module does not declare layer groups")

// NumLayers returns the number of parameter tensors in m. Weights and
// biases count separately.
func NumLayers(m Module) int {
	return len(m.Parameters())
}

// UnfreezeLayers makes the last n parameter tensors trainable and freezes
// every earlier one. Counting starts at the end of the network.
func UnfreezeLayers(m Module, n int) {
	params := m.Parameters()
	length := len(params)
	for i, p := range params {
		p.SetRequiresGrad(i >= length-n)
	}
}

// UnfreezeGroups makes the last n layer groups trainable and freezes every
// earlier group.
func UnfreezeGroups(m Module, n int) error {
	g, ok := m.(Grouped)
	if !ok {
		return ErrNoGroups
	}
	groups := g.Groups()
	length := len(groups)
	for i, group := range groups {
		setting := i >= length-n
		for _, p := range group {
			p.SetRequiresGrad(setting)
		}
	}
	return nil
}

// Freeze freezes every parameter of m.
func Freeze(m Module) {
	UnfreezeLayers(m, 0)
}

// Dims returns the shape of every parameter tensor.
func Dims(m Module) []tensor.Shape {
	params := m.Parameters()
	out := make([]tensor.Shape, len(params))
	for i, p := range params {
		out[i] = p.Shape().Clone()
	}
	return out
}

// LayerStatus pairs a parameter shape with its trainable flag.
type LayerStatus struct {
	Shape     tensor.Shape
	Trainable bool
}

// TrainableStatus reports which parameter tensors are trainable.
func TrainableStatus(m Module) []LayerStatus {
	params := m.Parameters()
	out := make([]LayerStatus, len(params))
	for i, p := range params {
		out[i] = LayerStatus{Shape: p.Shape().Clone(), Trainable: p.RequiresGrad()}
	}
	return out
}

// WeightStat is the mean and standard deviation of one parameter tensor.
type WeightStat struct {
	Mean float64
	Std  float64
}

// WeightStats returns the mean and standard deviation of each parameter
// tensor, rounded to the given number of digits.
func WeightStats(m Module, digits int) []WeightStat {
	params := m.Parameters()
	out := make([]WeightStat, len(params))
	for i, p := range params {
		mean, std := stat.MeanStdDev(p.Tensor().Data(), nil)
		if math.IsNaN(std) {
			std = 0 // single-element tensors
		}
		out[i] = WeightStat{Mean: round(mean, digits), Std: round(std, digits)}
	}
	return out
}

func round(x float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(x*scale) / scale
}
