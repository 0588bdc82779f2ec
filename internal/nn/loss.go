package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/kindle/internal/tensor"
)

// LossFunc computes a scalar loss from predictions and targets.
//
// It returns the loss value (mean over the batch) together with
// dLoss/dPred, which the trainer feeds into Module.Backward.
type LossFunc func(pred, target *tensor.Tensor) (float64, *tensor.Tensor)

func checkSameSize(name string, pred, target *tensor.Tensor) {
	if len(pred.Data()) != len(target.Data()) {
		panic(fmt.Sprintf("%s: prediction shape %v does not match target shape %v",
			name, pred.Shape(), target.Shape()))
	}
}

// MSELoss is the mean squared error over all elements.
func MSELoss(pred, target *tensor.Tensor) (float64, *tensor.Tensor) {
	checkSameSize("MSELoss", pred, target)
	p, t := pred.Data(), target.Data()
	n := float64(len(p))
	grad := tensor.New(pred.Shape())
	g := grad.Data()
	var sum float64
	for i := range p {
		d := p[i] - t[i]
		sum += d * d
		g[i] = 2 * d / n
	}
	return sum / n, grad
}

// L1Loss is the mean absolute error over all elements.
func L1Loss(pred, target *tensor.Tensor) (float64, *tensor.Tensor) {
	checkSameSize("L1Loss", pred, target)
	p, t := pred.Data(), target.Data()
	n := float64(len(p))
	grad := tensor.New(pred.Shape())
	g := grad.Data()
	var sum float64
	for i := range p {
		d := p[i] - t[i]
		sum += math.Abs(d)
		switch {
		case d > 0:
			g[i] = 1 / n
		case d < 0:
			g[i] = -1 / n
		}
	}
	return sum / n, grad
}

// BCEWithLogitsLoss is binary cross-entropy on raw logits.
//
// Uses the log-sum-exp formulation max(x,0) - x*y + log(1+exp(-|x|)).
func BCEWithLogitsLoss(pred, target *tensor.Tensor) (float64, *tensor.Tensor) {
	checkSameSize("BCEWithLogitsLoss", pred, target)
	p, t := pred.Data(), target.Data()
	n := float64(len(p))
	grad := tensor.New(pred.Shape())
	g := grad.Data()
	var sum float64
	for i, x := range p {
		sum += math.Max(x, 0) - x*t[i] + math.Log1p(math.Exp(-math.Abs(x)))
		g[i] = (1/(1+math.Exp(-x)) - t[i]) / n
	}
	return sum / n, grad
}

// CrossEntropyLoss is multiclass cross-entropy on logits of shape
// [batch, classes] with integer class labels of shape [batch] or [batch, 1].
func CrossEntropyLoss(pred, target *tensor.Tensor) (float64, *tensor.Tensor) {
	rows := pred.Rows()
	if len(target.Data()) != rows {
		panic(fmt.Sprintf("CrossEntropyLoss: %d labels for %d rows", len(target.Data()), rows))
	}
	probs := tensor.Softmax(pred)
	labels := target.Data()
	var sum float64
	for i := 0; i < rows; i++ {
		row := probs.Row(i)
		y := int(labels[i])
		sum -= math.Log(math.Max(row[y], math.SmallestNonzeroFloat64))
		row[y] -= 1
		floats.Scale(1/float64(rows), row)
	}
	return sum / float64(rows), probs
}

// SmoothSoftLabels adds uniform probability mass alpha to soft or one-hot
// labels of shape [batch, classes].
//
// Each nonzero entry gives up alpha/nonzeros (clamped at 0), then every
// class receives alpha/classes. alpha == 0 returns labels unchanged.
func SmoothSoftLabels(labels *tensor.Tensor, alpha float64) *tensor.Tensor {
	if alpha < 0 {
		panic("SmoothSoftLabels: alpha must be non-negative")
	}
	if alpha == 0 {
		return labels
	}
	out := labels.Clone()
	classes := float64(labels.Shape().RowSize())
	for i := 0; i < out.Rows(); i++ {
		row := out.Row(i)
		var nonzeros float64
		for _, v := range row {
			if v > 0 {
				nonzeros++
			}
		}
		for j, v := range row {
			if nonzeros > 0 {
				v = math.Max(v-alpha/nonzeros, 0)
			}
			row[j] = v + alpha/classes
		}
	}
	return out
}

// SoftLabelCrossEntropy returns a cross-entropy loss over logits that
// accepts soft labels of shape [batch, classes], smoothed by alpha.
func SoftLabelCrossEntropy(alpha float64) LossFunc {
	return func(pred, target *tensor.Tensor) (float64, *tensor.Tensor) {
		checkSameSize("SoftLabelCrossEntropy", pred, target)
		labels := SmoothSoftLabels(target, alpha)
		probs := tensor.Softmax(pred)
		rows := pred.Rows()
		grad := tensor.New(pred.Shape())
		var sum float64
		for i := 0; i < rows; i++ {
			logits := pred.Row(i)
			lse := floats.LogSumExp(logits)
			y := labels.Row(i)
			p := probs.Row(i)
			g := grad.Row(i)
			total := floats.Sum(y)
			for j, x := range logits {
				sum -= y[j] * (x - lse)
				g[j] = (p[j]*total - y[j]) / float64(rows)
			}
		}
		return sum / float64(rows), grad
	}
}
