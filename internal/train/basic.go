package train

import (
	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/nn"
	"github.com/born-ml/kindle/internal/optim"
	"github.com/born-ml/kindle/internal/stats"
)

// Default callback orders.
const (
	OrderBasicConfig  = 0
	OrderScheduler    = 3
	OrderStatsHandler = 5
	OrderPrinter      = 10
	OrderStopper      = 15
	OrderCheckpoint   = 25
	OrderHistory      = 90
	OrderUploader     = 95
)

// BasicConfig creates or updates the optimizer at train begin and switches
// the model between training and evaluation mode.
type BasicConfig struct {
	Base
}

// NewBasicConfig returns a BasicConfig with the default order.
func NewBasicConfig() *BasicConfig {
	return &BasicConfig{Base: NewBase(OrderBasicConfig)}
}

// OnTrainBegin creates the optimizer on the first Fit. Later runs only
// re-assign learning rates, keeping optimizer state.
func (c *BasicConfig) OnTrainBegin(t *Trainer, run Run) error {
	if t.optim == nil {
		o, err := optim.NewVariableLR(t.model, run.LRs, run.LRMult, t.optimKind, t.eps)
		if err != nil {
			return errors.Wrap(err, "create optimizer")
		}
		t.optim = o
	} else if err := t.UpdateOptimizer(run.LRs, run.LRMult); err != nil {
		return err
	}
	t.logger.Info("Optimizer ready", "optimizer", describeOptimizer(t.optim), "run_id", t.runID.String())
	if run.Clean {
		return t.Cleanup(true)
	}
	return nil
}

// OnEpochBegin puts the model in training mode.
func (c *BasicConfig) OnEpochBegin(t *Trainer, _ int) error {
	nn.SetTraining(t.model, true)
	return nil
}

// OnTrainEnd puts the model in evaluation mode.
func (c *BasicConfig) OnTrainEnd(t *Trainer, _ int, _ *stats.Aggregator) error {
	t.logger.Info("Training complete, model in eval mode")
	nn.SetTraining(t.model, false)
	return nil
}

// StatsHandler clears training statistics at epoch begin and reduces
// training and validation statistics to weighted means at epoch end.
// Callbacks that read epoch values must have a higher order.
type StatsHandler struct {
	Base
}

// NewStatsHandler returns a StatsHandler with the default order.
func NewStatsHandler() *StatsHandler {
	return &StatsHandler{Base: NewBase(OrderStatsHandler)}
}

func (h *StatsHandler) OnEpochBegin(t *Trainer, _ int) error {
	t.stats.Clear()
	return nil
}

func (h *StatsHandler) OnEpochEnd(t *Trainer, _ int, val *stats.Aggregator) error {
	if err := t.stats.Reduce(); err != nil {
		return errors.Wrap(err, "reduce train stats")
	}
	return errors.Wrap(val.Reduce(), "reduce validation stats")
}
