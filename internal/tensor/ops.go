package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Identity returns t unchanged. It is the default final activation.
func Identity(t *Tensor) *Tensor {
	return t
}

// Sigmoid applies the logistic function elementwise.
func Sigmoid(t *Tensor) *Tensor {
	return t.Map(func(x float64) float64 {
		return 1.0 / (1.0 + math.Exp(-x))
	})
}

// Softmax normalizes each row into a probability distribution.
//
// Uses the max-subtraction trick for numerical stability.
func Softmax(t *Tensor) *Tensor {
	out := t.Clone()
	for i := 0; i < out.Rows(); i++ {
		row := out.Row(i)
		m := floats.Max(row)
		var sum float64
		for j, v := range row {
			row[j] = math.Exp(v - m)
			sum += row[j]
		}
		floats.Scale(1/sum, row)
	}
	return out
}

// ArgMax returns, for each row, the index of its largest element as a
// rank-1 tensor of length Rows().
func ArgMax(t *Tensor) *Tensor {
	out := New(Shape{t.Rows()})
	for i := 0; i < t.Rows(); i++ {
		out.data[i] = float64(floats.MaxIdx(t.Row(i)))
	}
	return out
}

// Greater returns a 0/1 tensor marking elements strictly above threshold.
func Greater(t *Tensor, threshold float64) *Tensor {
	return t.Map(func(x float64) float64 {
		if x > threshold {
			return 1
		}
		return 0
	})
}
