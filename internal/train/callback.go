package train

import (
	"github.com/born-ml/kindle/internal/stats"
	"github.com/born-ml/kindle/internal/tensor"
)

// Event names used in dispatch errors and logs.
const (
	EventTrainBegin    = "OnTrainBegin"
	EventEpochBegin    = "OnEpochBegin"
	EventBatchBegin    = "OnBatchBegin"
	EventAfterZeroGrad = "AfterZeroGrad"
	EventAfterForward  = "AfterForward"
	EventAfterLoss     = "AfterLoss"
	EventAfterBackward = "AfterBackward"
	EventAfterStep     = "AfterStep"
	EventBatchEnd      = "OnBatchEnd"
	EventEpochEnd      = "OnEpochEnd"
	EventTrainEnd      = "OnTrainEnd"
)

// Run holds the arguments of one Fit call.
type Run struct {
	Epochs int
	// LRs is a single rate or one rate per parameter group (default: 3e-3).
	LRs []float64
	// LRMult spreads a single rate over groups as lr*mult^(n-1-i)
	// (default: 1).
	LRMult float64
	// Clean empties the output directory before training starts.
	Clean bool
}

// DefaultLR is the rate used when Run.LRs is empty.
const DefaultLR = 3e-3

func (r Run) withDefaults() Run {
	if len(r.LRs) == 0 {
		r.LRs = []float64{DefaultLR}
	}
	if r.LRMult == 0 {
		r.LRMult = 1
	}
	return r
}

// BatchState describes the mini-batch being processed. Fields are filled
// in as the step progresses: Output after the forward pass, Loss and
// LossGrad after the loss.
type BatchState struct {
	Epoch  int // Epoch index
	Index  int // Batch index within the epoch
	Global int // Batch index since the start of the Fit call

	Inputs []*tensor.Tensor
	Labels *tensor.Tensor

	Output   *tensor.Tensor
	Loss     float64
	LossGrad *tensor.Tensor
}

// Callback observes and steers the training loop.
//
// Callbacks run in ascending Order. A hook that returns an error aborts
// training; the error is returned from Fit.
type Callback interface {
	Order() int

	OnTrainBegin(t *Trainer, run Run) error
	OnEpochBegin(t *Trainer, epoch int) error
	OnBatchBegin(t *Trainer, b *BatchState) error
	AfterZeroGrad(t *Trainer, b *BatchState) error
	AfterForward(t *Trainer, b *BatchState) error
	AfterLoss(t *Trainer, b *BatchState) error
	AfterBackward(t *Trainer, b *BatchState) error
	AfterStep(t *Trainer, b *BatchState) error
	OnBatchEnd(t *Trainer, b *BatchState) error
	// OnEpochEnd receives the validation statistics of the epoch.
	OnEpochEnd(t *Trainer, epoch int, val *stats.Aggregator) error
	// OnTrainEnd runs exactly once per Fit. After an interrupt epoch is -1
	// and val is empty.
	OnTrainEnd(t *Trainer, epoch int, val *stats.Aggregator) error
}

// Base implements every hook as a no-op. Embed it and override what you
// need.
type Base struct {
	order int
}

// NewBase returns a Base with the given order.
func NewBase(order int) Base {
	return Base{order: order}
}

// Order returns the callback priority. Lower runs first.
func (b *Base) Order() int { return b.order }

// SetOrder changes the priority. Trainer.SetCallbackAttr re-sorts the
// chain when used with the "Order" field.
func (b *Base) SetOrder(order int) { b.order = order }

// The hooks below do nothing.

func (b *Base) OnTrainBegin(*Trainer, Run) error { return nil }
func (b *Base) OnEpochBegin(*Trainer, int) error { return nil }
func (b *Base) OnBatchBegin(*Trainer, *BatchState) error { return nil }
func (b *Base) AfterZeroGrad(*Trainer, *BatchState) error { return nil }
func (b *Base) AfterForward(*Trainer, *BatchState) error { return nil }
func (b *Base) AfterLoss(*Trainer, *BatchState) error { return nil }
func (b *Base) AfterBackward(*Trainer, *BatchState) error { return nil }
func (b *Base) AfterStep(*Trainer, *BatchState) error { return nil }
func (b *Base) OnBatchEnd(*Trainer, *BatchState) error { return nil }
func (b *Base) OnEpochEnd(*Trainer, int, *stats.Aggregator) error { return nil }
func (b *Base) OnTrainEnd(*Trainer, int, *stats.Aggregator) error { return nil }
