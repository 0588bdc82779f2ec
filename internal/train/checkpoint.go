package train

import (
	"path/filepath"

	"github.com/born-ml/kindle/internal/stats"
)

// ModelCheckpoint saves the trainer whenever a validation metric improves
// and writes the rounded validation metrics next to it. It never stops
// training.
type ModelCheckpoint struct {
	Base

	Metric string
	Goal   Goal
	// File is the checkpoint name under the output directory
	// (default: "trainer.kndl").
	File string
	// MetricsFile receives the validation metrics of the best epoch
	// (default: "best_val_metrics.json").
	MetricsFile string

	best float64
}

// NewModelCheckpoint returns a ModelCheckpoint with the default order and
// file names.
func NewModelCheckpoint(metric string, goal Goal) *ModelCheckpoint {
	return &ModelCheckpoint{
		Base:        NewBase(OrderCheckpoint),
		Metric:      metric,
		Goal:        goal,
		File:        "trainer.kndl",
		MetricsFile: "best_val_metrics.json",
		best:        goal.worst(),
	}
}

// Best returns the best value seen since train begin.
func (c *ModelCheckpoint) Best() float64 { return c.best }

func (c *ModelCheckpoint) OnTrainBegin(*Trainer, Run) error {
	c.best = c.Goal.worst()
	return nil
}

func (c *ModelCheckpoint) OnEpochEnd(t *Trainer, _ int, val *stats.Aggregator) error {
	v, ok := val.Value(c.Metric)
	if !ok {
		t.warn("ModelCheckpoint could not find metric; models may not be saved", "metric", c.Metric)
		return nil
	}
	if !c.Goal.better(v, c.best) {
		return nil
	}
	t.Logger().Info("Saving model", "metric", c.Metric, "from", round(c.best, 4), "to", round(v, 4))
	if err := t.Save(c.File); err != nil {
		return err
	}
	if err := writeMetrics(filepath.Join(t.OutDir(), c.MetricsFile), val); err != nil {
		return err
	}
	c.best = v
	return nil
}
