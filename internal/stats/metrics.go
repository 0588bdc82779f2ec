package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/kindle/internal/tensor"
)

func pairs(name string, yTrue, yPred *tensor.Tensor) ([]float64, []float64) {
	t, p := yTrue.Data(), yPred.Data()
	if len(t) != len(p) {
		panic(fmt.Sprintf("%s: %d labels for %d predictions", name, len(t), len(p)))
	}
	return t, p
}

// Accuracy is the fraction of hard predictions equal to the labels.
var Accuracy = Metric{Name: "accuracy", Input: HardPredictions, Fn: accuracy}

func accuracy(yTrue, yPred *tensor.Tensor) float64 {
	t, p := pairs("accuracy", yTrue, yPred)
	if len(t) == 0 {
		return math.NaN()
	}
	var correct float64
	for i := range t {
		if t[i] == p[i] {
			correct++
		}
	}
	return correct / float64(len(t))
}

// confusion counts binary outcomes with 1 as the positive class.
func confusion(name string, yTrue, yPred *tensor.Tensor) (tp, fp, fn float64) {
	t, p := pairs(name, yTrue, yPred)
	for i := range t {
		switch {
		case p[i] == 1 && t[i] == 1:
			tp++
		case p[i] == 1:
			fp++
		case t[i] == 1:
			fn++
		}
	}
	return tp, fp, fn
}

// Precision is tp / (tp + fp) for the positive class. Zero when nothing
// was predicted positive.
var Precision = Metric{Name: "precision", Input: HardPredictions, Fn: precision}

func precision(yTrue, yPred *tensor.Tensor) float64 {
	tp, fp, _ := confusion("precision", yTrue, yPred)
	if tp+fp == 0 {
		return 0
	}
	return tp / (tp + fp)
}

// Recall is tp / (tp + fn) for the positive class. Zero when there are no
// positive labels.
var Recall = Metric{Name: "recall", Input: HardPredictions, Fn: recall}

func recall(yTrue, yPred *tensor.Tensor) float64 {
	tp, _, fn := confusion("recall", yTrue, yPred)
	if tp+fn == 0 {
		return 0
	}
	return tp / (tp + fn)
}

// F1 is the harmonic mean of precision and recall.
var F1 = Metric{Name: "f1", Input: HardPredictions, Fn: f1}

func f1(yTrue, yPred *tensor.Tensor) float64 {
	tp, fp, fn := confusion("f1", yTrue, yPred)
	if tp == 0 {
		return 0
	}
	return 2 * tp / (2*tp + fp + fn)
}

// MSE is the mean squared error of soft predictions.
var MSE = Metric{Name: "mse", Input: SoftPredictions, Fn: mse}

func mse(yTrue, yPred *tensor.Tensor) float64 {
	t, p := pairs("mse", yTrue, yPred)
	diff := make([]float64, len(t))
	floats.SubTo(diff, p, t)
	return floats.Dot(diff, diff) / float64(len(t))
}

// MAE is the mean absolute error of soft predictions.
var MAE = Metric{Name: "mae", Input: SoftPredictions, Fn: mae}

func mae(yTrue, yPred *tensor.Tensor) float64 {
	t, p := pairs("mae", yTrue, yPred)
	return floats.Distance(p, t, 1) / float64(len(t))
}

// ROCAUC is the area under the ROC curve of binary soft scores. NaN when
// the batch holds a single class.
var ROCAUC = Metric{Name: "roc_auc", Input: SoftPredictions, Fn: rocAUC}

func rocAUC(yTrue, yPred *tensor.Tensor) float64 {
	t, p := pairs("roc_auc", yTrue, yPred)
	scores := make([]float64, len(p))
	copy(scores, p)
	classes := make([]bool, len(t))
	var positives int
	for i, v := range t {
		classes[i] = v == 1
		if classes[i] {
			positives++
		}
	}
	if positives == 0 || positives == len(t) {
		return math.NaN()
	}
	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// Builtin returns the built-in metric with the given name.
func Builtin(name string) (Metric, bool) {
	for _, m := range []Metric{Accuracy, Precision, Recall, F1, MSE, MAE, ROCAUC} {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}
