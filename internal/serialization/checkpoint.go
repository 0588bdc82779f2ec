package serialization

import (
	"strings"

	"github.com/born-ml/kindle/internal/tensor"
)

// MergeState combines model and optimizer state into one map, prefixing
// keys with ModelPrefix and OptimizerPrefix. optim may be nil.
func MergeState(model, optim map[string]*tensor.Tensor) map[string]*tensor.Tensor {
	out := make(map[string]*tensor.Tensor, len(model)+len(optim))
	for k, v := range model {
		out[ModelPrefix+k] = v
	}
	for k, v := range optim {
		out[OptimizerPrefix+k] = v
	}
	return out
}

// SplitState is the inverse of MergeState. Keys without a known prefix
// are dropped.
func SplitState(state map[string]*tensor.Tensor) (model, optim map[string]*tensor.Tensor) {
	model = make(map[string]*tensor.Tensor)
	optim = make(map[string]*tensor.Tensor)
	for k, v := range state {
		switch {
		case strings.HasPrefix(k, ModelPrefix):
			model[strings.TrimPrefix(k, ModelPrefix)] = v
		case strings.HasPrefix(k, OptimizerPrefix):
			optim[strings.TrimPrefix(k, OptimizerPrefix)] = v
		}
	}
	return model, optim
}
