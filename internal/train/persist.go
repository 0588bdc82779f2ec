package train

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"reflect"

	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/nn"
	"github.com/born-ml/kindle/internal/optim"
	"github.com/born-ml/kindle/internal/serialization"
	"github.com/born-ml/kindle/internal/stats"
	"github.com/born-ml/kindle/internal/tensor"
)

// Save writes model and optimizer state to name under the output
// directory. Without an optimizer only the model is saved.
func (t *Trainer) Save(name string) error {
	return t.SaveTo(filepath.Join(t.outDir, name))
}

// SaveTo writes model and optimizer state to path.
func (t *Trainer) SaveTo(path string) error {
	var optimState map[string]*tensor.Tensor
	meta := &serialization.CheckpointMeta{
		Epoch:   t.epoch,
		Step:    int64(t.globalBatch),
		RunID:   t.runID.String(),
		Metrics: finite(t.valStats.Snapshot()),
	}
	if t.optim != nil {
		optimState = t.optim.StateDict()
		meta.OptimizerType = t.optim.Kind().String()
		meta.HasOptimizer = true
	} else {
		t.warn("No optimizer, only saving model state")
	}

	header := serialization.Header{
		ModelType:      modelType(t.model),
		CheckpointMeta: meta,
	}
	state := serialization.MergeState(nn.StateDict(t.model), optimState)
	if err := serialization.Save(path, state, header); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

// Load restores state saved under name in the output directory.
func (t *Trainer) Load(name string) error {
	return t.LoadFrom(filepath.Join(t.outDir, name))
}

// LoadFrom restores state from path, which may belong to another run.
//
// Model weights must match. A missing or incompatible optimizer state is
// logged and skipped. Without an optimizer, one is created with
// DefaultLR so the stored state has somewhere to go; the next Fit
// re-assigns learning rates.
func (t *Trainer) LoadFrom(path string) error {
	t.logger.Info("Loading weights", "path", path)
	header, state, err := serialization.Load(path)
	if err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	modelState, optimState := serialization.SplitState(state)
	if err := nn.LoadStateDict(t.model, modelState); err != nil {
		return errors.Wrap(err, "restore model")
	}

	if t.optim == nil {
		o, err := optim.NewVariableLR(t.model, []float64{DefaultLR}, 1, t.optimKind, t.eps)
		if err != nil {
			return errors.Wrap(err, "create optimizer")
		}
		t.optim = o
	}

	meta := header.CheckpointMeta
	switch {
	case meta == nil || !meta.HasOptimizer:
		t.warn("Could not load optimizer, loading model weights only", "reason", "checkpoint has no optimizer state")
	case meta.OptimizerType != t.optim.Kind().String():
		t.warn("Could not load optimizer, loading model weights only",
			"reason", "optimizer type mismatch", "saved", meta.OptimizerType, "current", t.optim.Kind().String())
	default:
		if err := t.optim.LoadStateDict(optimState); err != nil {
			t.warn("Could not load optimizer, loading model weights only", "reason", err.Error())
		}
	}
	return nil
}

// writeMetrics writes the values of agg, rounded to 5 decimals, as JSON.
func writeMetrics(path string, agg *stats.Aggregator) error {
	values := finite(agg.Snapshot())
	for k, v := range values {
		values[k] = round(v, 5)
	}
	raw, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode metrics")
	}
	return errors.Wrapf(os.WriteFile(path, append(raw, '\n'), 0o644), "write %s", path)
}

// finite drops values JSON cannot represent.
func finite(values map[string]float64) map[string]float64 {
	for k, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			delete(values, k)
		}
	}
	return values
}

func modelType(m nn.Module) string {
	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
