package train

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/stats"
)

// ErrUnknownGoal is returned by ParseGoal.
var ErrUnknownGoal = errors.New("goal must be min or max")

// Goal is the direction in which a monitored metric improves.
type Goal int

// Goals.
const (
	Minimize Goal = iota
	Maximize
)

// ParseGoal parses "min" or "max".
func ParseGoal(s string) (Goal, error) {
	switch strings.ToLower(s) {
	case "min":
		return Minimize, nil
	case "max":
		return Maximize, nil
	default:
		return 0, errors.Wrapf(ErrUnknownGoal, "%q", s)
	}
}

// String implements fmt.Stringer.
func (g Goal) String() string {
	if g == Maximize {
		return "max"
	}
	return "min"
}

// worst is the initial best value.
func (g Goal) worst() float64 {
	if g == Maximize {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// better reports whether a beats b strictly.
func (g Goal) better(a, b float64) bool {
	if g == Maximize {
		return a > b
	}
	return a < b
}

// bar returns the value a new result must beat to count as an
// improvement over best.
func (g Goal) bar(best, minImprovement float64) float64 {
	if g == Maximize {
		return best + minImprovement
	}
	return best - minImprovement
}

// EarlyStopper halts training when a validation metric stops improving.
type EarlyStopper struct {
	Base

	Metric string
	Goal   Goal
	// MinImprovement is the change needed to count as an improvement.
	MinImprovement float64
	// Patience is the number of epochs without improvement tolerated.
	Patience int

	best  float64
	since int
}

// NewEarlyStopper returns an EarlyStopper with the default order.
func NewEarlyStopper(metric string, goal Goal, minImprovement float64, patience int) *EarlyStopper {
	return &EarlyStopper{
		Base:           NewBase(OrderStopper),
		Metric:         metric,
		Goal:           goal,
		MinImprovement: minImprovement,
		Patience:       patience,
		best:           goal.worst(),
	}
}

// Best returns the best value seen since train begin.
func (s *EarlyStopper) Best() float64 { return s.best }

// SinceImprovement returns the number of epochs since the last improvement.
func (s *EarlyStopper) SinceImprovement() int { return s.since }

func (s *EarlyStopper) OnTrainBegin(*Trainer, Run) error {
	s.best = s.Goal.worst()
	s.since = 0
	return nil
}

func (s *EarlyStopper) OnEpochEnd(t *Trainer, _ int, val *stats.Aggregator) error {
	v, ok := val.Value(s.Metric)
	if !ok {
		t.warn("EarlyStopper could not find metric; early stopping may not be enforced", "metric", s.Metric)
		return nil
	}
	if s.Goal.better(v, s.Goal.bar(s.best, s.MinImprovement)) {
		s.best = v
		s.since = 0
		return nil
	}
	s.since++
	if s.since > s.Patience {
		t.Logger().Info("EarlyStopper halting training", "metric", s.Metric, "epochs_without_improvement", s.since)
		t.StopTraining()
	}
	return nil
}

// Split selects which statistics a callback monitors.
type Split int

// Splits.
const (
	SplitVal Split = iota
	SplitTrain
)

// PerformanceThreshold halts runs whose metric is on the wrong side of a
// fixed threshold after SkipEpochs epochs.
type PerformanceThreshold struct {
	Base

	Metric     string
	Goal       Goal
	Threshold  float64
	SkipEpochs int
	Split      Split
}

// NewPerformanceThreshold returns a PerformanceThreshold monitoring the
// validation split.
func NewPerformanceThreshold(metric string, goal Goal, threshold float64, skipEpochs int) *PerformanceThreshold {
	return &PerformanceThreshold{
		Base:       NewBase(OrderStopper),
		Metric:     metric,
		Goal:       goal,
		Threshold:  threshold,
		SkipEpochs: skipEpochs,
	}
}

func (p *PerformanceThreshold) OnEpochEnd(t *Trainer, epoch int, val *stats.Aggregator) error {
	if epoch < p.SkipEpochs {
		return nil
	}
	agg := val
	if p.Split == SplitTrain {
		agg = t.Stats()
	}
	v, ok := agg.Value(p.Metric)
	if !ok {
		t.warn("PerformanceThreshold could not find metric; threshold may not be enforced", "metric", p.Metric)
		return nil
	}
	if p.Goal.better(p.Threshold, v) {
		t.Logger().Info("PerformanceThreshold halting training", "metric", p.Metric,
			"value", round(v, 4), "threshold", p.Threshold)
		t.StopTraining()
	}
	return nil
}
