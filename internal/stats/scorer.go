package stats

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/tensor"
)

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("unknown mode")

// Mode selects how soft scores become hard predictions.
type Mode int

// Task modes.
const (
	// ModeBinary thresholds scores: hard = score > threshold. Multi-label
	// outputs of shape [batch, k] are thresholded elementwise.
	ModeBinary Mode = iota
	// ModeMulticlass takes the arg-max over the class axis.
	ModeMulticlass
	// ModeRegression uses the scores unchanged.
	ModeRegression
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeBinary:
		return "binary"
	case ModeMulticlass:
		return "multiclass"
	case ModeRegression:
		return "regression"
	default:
		return "unknown"
	}
}

// Classification reports whether the mode predicts classes.
func (m Mode) Classification() bool {
	return m == ModeBinary || m == ModeMulticlass
}

// ParseMode parses "binary", "multiclass" or "regression".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary":
		return ModeBinary, nil
	case "multiclass":
		return ModeMulticlass, nil
	case "regression":
		return ModeRegression, nil
	default:
		return 0, errors.Wrapf(ErrUnknownMode, "%q", s)
	}
}

// Input declares which form of prediction a metric consumes.
type Input int

// Prediction forms.
const (
	// SoftPredictions are post-activation scores.
	SoftPredictions Input = iota
	// HardPredictions are class decisions derived from the scores.
	HardPredictions
)

// MetricFunc computes a scalar from true labels and predictions.
type MetricFunc func(yTrue, yPred *tensor.Tensor) float64

// Metric is a named metric function with its declared input form.
type Metric struct {
	Name  string
	Input Input
	Fn    MetricFunc
}

// Activation maps raw model outputs to scores.
type Activation func(*tensor.Tensor) *tensor.Tensor

// Scorer turns one batch of labels and raw outputs into metric values.
type Scorer struct {
	Mode       Mode
	Threshold  float64
	Activation Activation // applied before metrics; nil means identity
	Metrics    []Metric
}

// Scores applies the final activation to raw model outputs.
func (s *Scorer) Scores(outputs *tensor.Tensor) *tensor.Tensor {
	if s.Activation == nil {
		return outputs
	}
	return s.Activation(outputs)
}

// Hard converts scores into hard predictions according to the mode.
func (s *Scorer) Hard(scores *tensor.Tensor) *tensor.Tensor {
	switch s.Mode {
	case ModeBinary:
		return tensor.Greater(scores, s.Threshold)
	case ModeMulticlass:
		return tensor.ArgMax(scores)
	default:
		return scores
	}
}

// Score computes every metric for one batch. Hard predictions are derived
// once and shared by all metrics that declare HardPredictions.
func (s *Scorer) Score(labels, outputs *tensor.Tensor) map[string]float64 {
	if len(s.Metrics) == 0 {
		return nil
	}
	scores := s.Scores(outputs)
	hard := s.Hard(scores)
	out := make(map[string]float64, len(s.Metrics))
	for _, m := range s.Metrics {
		pred := scores
		if m.Input == HardPredictions {
			pred = hard
		}
		out[m.Name] = m.Fn(labels, pred)
	}
	return out
}

// Names returns the metric names in order.
func (s *Scorer) Names() []string {
	names := make([]string, len(s.Metrics))
	for i, m := range s.Metrics {
		names[i] = m.Name
	}
	return names
}
