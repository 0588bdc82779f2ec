// Package train implements a callback-driven training loop.
//
// A Trainer owns a model, its optimizer and a Chain of callbacks. Fit runs
// the epoch/batch loop and fires lifecycle events; everything else
// (statistics reduction, logging, scheduling, early stopping,
// checkpointing, uploads) is a Callback. Callbacks coordinate through
// their Order: a callback sees the trainer state left by every callback
// with a lower Order.
//
// Events of one Fit call, in order:
//
//	OnTrainBegin
//	  OnEpochBegin
//	    OnBatchBegin, AfterZeroGrad, AfterForward, AfterLoss,
//	    AfterBackward, AfterStep, OnBatchEnd     (per batch)
//	  OnEpochEnd
//	OnTrainEnd
package train

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"reflect"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"

	"github.com/born-ml/kindle/internal/data"
	"github.com/born-ml/kindle/internal/nn"
	"github.com/born-ml/kindle/internal/optim"
	"github.com/born-ml/kindle/internal/stats"
	"github.com/born-ml/kindle/internal/tensor"
)

const tracerName = "github.com/born-ml/kindle/internal/train"

// Config holds configuration for a Trainer.
type Config struct {
	Mode   stats.Mode // Task type; selects hard-prediction conversion
	OutDir string     // Output directory, created if missing (required)

	Optimizer optim.Kind // Optimizer created on the first Fit (default: Adam)
	Eps       float64    // Adam epsilon (default: optim.DefaultAdamEps)
	// Optim is an existing optimizer. Its kind overrides Optimizer.
	Optim optim.Optimizer

	// Threshold is the binary decision threshold (default: 0.5).
	Threshold float64
	// LastActivation maps raw outputs to scores before metrics and in
	// Predict. Nil means the model already outputs scores.
	LastActivation stats.Activation
	// LossName is used in String and logs (default: "loss").
	LossName string

	Metrics   []stats.Metric
	Callbacks []Callback

	// Logger receives trainer logs (default: klog.Background()).
	Logger logr.Logger
	// Output receives progress bars and epoch tables (default: os.Stderr).
	Output io.Writer
}

// Unit selects what Unfreeze counts.
type Unit int

// Unfreeze units.
const (
	Groups Unit = iota // layer groups declared by the model
	Layers             // parameter tensors, weights and biases separately
)

// String implements fmt.Stringer.
func (u Unit) String() string {
	if u == Layers {
		return "layers"
	}
	return "groups"
}

// Trainer drives model training.
type Trainer struct {
	model  nn.Module
	train  data.Loader
	val    data.Loader
	loss   nn.LossFunc
	scorer stats.Scorer

	lossName  string
	optim     optim.Optimizer
	optimKind optim.Kind
	eps       float64

	chain  *Chain
	outDir string
	runID  uuid.UUID

	logger logr.Logger
	output io.Writer
	tracer trace.Tracer

	stop        bool
	epoch       int
	globalBatch int
	stats       *stats.Aggregator
	valStats    *stats.Aggregator
	progress    *Progress
}

// New creates a trainer. BasicConfig, StatsHandler and MetricPrinter are
// always registered; cfg.Callbacks may replace them.
func New(model nn.Module, train, val data.Loader, loss nn.LossFunc, cfg Config) (*Trainer, error) {
	if cfg.OutDir == "" {
		return nil, ErrNoOutDir
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.5
	}
	if cfg.LossName == "" {
		cfg.LossName = "loss"
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = klog.Background()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	t := &Trainer{
		model: model,
		train: train,
		val:   val,
		loss:  loss,
		scorer: stats.Scorer{
			Mode:       cfg.Mode,
			Threshold:  cfg.Threshold,
			Activation: cfg.LastActivation,
			Metrics:    append([]stats.Metric(nil), cfg.Metrics...),
		},
		lossName:  cfg.LossName,
		optim:     cfg.Optim,
		optimKind: cfg.Optimizer,
		eps:       cfg.Eps,
		chain:     NewChain(NewBasicConfig(), NewStatsHandler(), NewMetricPrinter()),
		outDir:    cfg.OutDir,
		runID:     uuid.New(),
		logger:    cfg.Logger,
		output:    cfg.Output,
		tracer:    otel.Tracer(tracerName),
		stats:     stats.NewAggregator(),
		valStats:  stats.NewAggregator(),
	}
	t.chain.Add(cfg.Callbacks...)

	if cfg.LastActivation == nil && cfg.Mode.Classification() {
		t.warn("Last activation is nil for a classification problem; soft-prediction metrics need a model that outputs scores",
			"mode", cfg.Mode.String())
	}
	if cfg.Optim != nil {
		t.optimKind = cfg.Optim.Kind()
		t.warn("Inferring optimizer type from Optim", "optimizer", t.optimKind.String())
	}
	return t, nil
}

// Fit trains for run.Epochs epochs.
//
// Cancelling ctx interrupts training at the next suspension point: the
// trainer logs the interrupt, dispatches OnTrainEnd(-1, empty stats) and
// Fit returns nil. Errors from the model step or from callback hooks are
// returned as is, after callbacks holding files or loggers released them.
func (t *Trainer) Fit(ctx context.Context, run Run) error {
	run = run.withDefaults()
	ctx, span := t.tracer.Start(ctx, "kindle.fit", trace.WithAttributes(
		attribute.String("kindle.run_id", t.runID.String()),
		attribute.Int("kindle.epochs", run.Epochs),
	))
	defer span.End()

	err := t.fit(ctx, run)

	var interrupt *interruptError
	if errors.As(err, &interrupt) {
		t.logger.Info("Stop training due to interrupt", "cause", interrupt.cause.Error(),
			"epoch", t.epoch, "batch", t.globalBatch)
		span.AddEvent("interrupt", trace.WithAttributes(attribute.Int("kindle.global_batch", t.globalBatch)))
		t.stop = true
		_, err = t.dispatch(EventTrainEnd, func(cb Callback) error {
			return cb.OnTrainEnd(t, -1, stats.NewAggregator())
		})
	}
	if err != nil {
		t.release()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// releaser is implemented by callbacks that hold resources from
// OnTrainBegin until OnTrainEnd.
type releaser interface {
	release(t *Trainer) error
}

// release frees callback resources when Fit fails before OnTrainEnd could
// run.
func (t *Trainer) release() {
	for _, e := range t.chain.snapshot() {
		r, ok := e.cb.(releaser)
		if !ok {
			continue
		}
		if err := r.release(t); err != nil {
			t.logger.Error(err, "Could not release callback resources", "callback", e.name)
		}
	}
}

func (t *Trainer) fit(ctx context.Context, run Run) error {
	t.globalBatch = 0
	t.epoch = 0
	t.valStats = stats.NewAggregator()

	if _, err := t.dispatch(EventTrainBegin, func(cb Callback) error {
		return cb.OnTrainBegin(t, run)
	}); err != nil {
		return err
	}
	if t.optim == nil {
		return errors.Wrap(ErrNoOptimizer, "no callback created one in OnTrainBegin")
	}

	for e := range run.Epochs {
		t.epoch = e
		halt, err := t.runEpoch(ctx, e)
		if err != nil {
			return err
		}
		if halt {
			break
		}
	}

	_, err := t.dispatch(EventTrainEnd, func(cb Callback) error {
		return cb.OnTrainEnd(t, t.epoch, t.valStats)
	})
	return err
}

// runEpoch trains one epoch and validates. It reports whether training
// should halt.
func (t *Trainer) runEpoch(ctx context.Context, e int) (bool, error) {
	ctx, span := t.tracer.Start(ctx, "kindle.epoch", trace.WithAttributes(attribute.Int("kindle.epoch", e)))
	defer span.End()

	if _, err := t.dispatch(EventEpochBegin, func(cb Callback) error {
		return cb.OnEpochBegin(t, e)
	}); err != nil {
		return true, err
	}

	for i, batch := range enumerate(t.train) {
		if err := interrupted(ctx); err != nil {
			return true, err
		}
		b := &BatchState{
			Epoch:  e,
			Index:  i,
			Global: t.globalBatch,
			Inputs: batch.Inputs,
			Labels: batch.Labels,
		}
		stop, err := t.step(ctx, b)
		t.globalBatch++
		if err != nil {
			return true, err
		}
		if stop {
			// Validation and OnEpochEnd are skipped for a cut-short epoch.
			return true, nil
		}
	}

	val, err := t.evaluate(ctx, t.val)
	if err != nil {
		return true, err
	}
	t.valStats = val
	return t.dispatch(EventEpochEnd, func(cb Callback) error {
		return cb.OnEpochEnd(t, e, val)
	})
}

// step runs one optimization step. It reports whether OnBatchEnd asked to
// stop.
func (t *Trainer) step(ctx context.Context, b *BatchState) (bool, error) {
	fire := func(event string, hook func(Callback) error) error {
		if _, err := t.dispatch(event, hook); err != nil {
			return err
		}
		return interrupted(ctx)
	}

	if err := fire(EventBatchBegin, func(cb Callback) error { return cb.OnBatchBegin(t, b) }); err != nil {
		return false, err
	}

	t.optim.ZeroGrad()
	if err := fire(EventAfterZeroGrad, func(cb Callback) error { return cb.AfterZeroGrad(t, b) }); err != nil {
		return false, err
	}

	b.Output = t.model.Forward(b.Inputs...)
	if err := fire(EventAfterForward, func(cb Callback) error { return cb.AfterForward(t, b) }); err != nil {
		return false, err
	}

	b.Loss, b.LossGrad = t.loss(b.Output, b.Labels)
	if err := fire(EventAfterLoss, func(cb Callback) error { return cb.AfterLoss(t, b) }); err != nil {
		return false, err
	}

	t.model.Backward(b.LossGrad)
	if err := fire(EventAfterBackward, func(cb Callback) error { return cb.AfterBackward(t, b) }); err != nil {
		return false, err
	}

	t.optim.Step()
	if err := fire(EventAfterStep, func(cb Callback) error { return cb.AfterStep(t, b) }); err != nil {
		return false, err
	}

	if err := t.record(t.stats, b.Loss, b.Labels, b.Output); err != nil {
		return false, err
	}
	stop, err := t.dispatch(EventBatchEnd, func(cb Callback) error { return cb.OnBatchEnd(t, b) })
	if err != nil {
		return false, err
	}
	return stop, interrupted(ctx)
}

// dispatch runs hook on every callback in order. It resets the stop flag
// first and returns its final value. A failing hook aborts the dispatch.
func (t *Trainer) dispatch(event string, hook func(Callback) error) (bool, error) {
	t.stop = false
	for _, e := range t.chain.snapshot() {
		if err := hook(e.cb); err != nil {
			return t.stop, errors.Wrapf(err, "%s.%s", e.name, event)
		}
	}
	return t.stop, nil
}

func (t *Trainer) record(agg *stats.Aggregator, loss float64, labels, outputs *tensor.Tensor) error {
	return agg.Record(loss, labels.Rows(), t.scorer.Score(labels, outputs))
}

// evaluate runs a forward-only pass over loader and returns unreduced
// statistics.
func (t *Trainer) evaluate(ctx context.Context, loader data.Loader) (*stats.Aggregator, error) {
	nn.SetTraining(t.model, false)
	agg := stats.NewAggregator()
	if loader == nil {
		return agg, nil
	}
	for batch := range loader.Batches() {
		if err := interrupted(ctx); err != nil {
			return nil, err
		}
		out := t.model.Forward(batch.Inputs...)
		loss, _ := t.loss(out, batch.Labels)
		if err := t.record(agg, loss, batch.Labels, out); err != nil {
			return nil, err
		}
	}
	return agg, nil
}

// Validate evaluates the model on loader, or on the validation loader when
// loader is nil, and returns reduced statistics. The model is left in
// evaluation mode.
func (t *Trainer) Validate(ctx context.Context, loader data.Loader) (*stats.Aggregator, error) {
	if loader == nil {
		loader = t.val
	}
	agg, err := t.evaluate(ctx, loader)
	if err != nil {
		var interrupt *interruptError
		if errors.As(err, &interrupt) {
			return nil, interrupt.cause
		}
		return nil, err
	}
	if err := agg.Reduce(); err != nil {
		return nil, err
	}
	return agg, nil
}

// Predict runs the model in evaluation mode. Unless logits is set, the
// configured last activation is applied to the output.
func (t *Trainer) Predict(logits bool, inputs ...*tensor.Tensor) *tensor.Tensor {
	nn.SetTraining(t.model, false)
	out := t.model.Forward(inputs...)
	if !logits {
		out = t.scorer.Scores(out)
	}
	return out
}

func interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &interruptError{cause: err}
	}
	return nil
}

// Unfreeze makes the last n units of the model trainable and freezes the
// rest.
func (t *Trainer) Unfreeze(unit Unit, n int) error {
	return t.unfreeze(unit, n)
}

func (t *Trainer) unfreeze(unit Unit, n int, keysAndValues ...any) error {
	t.logger.Info("Unfreezing", append([]any{"last", n, "unit", unit.String()}, keysAndValues...)...)
	if unit == Layers {
		nn.UnfreezeLayers(t.model, n)
		return nil
	}
	return nn.UnfreezeGroups(t.model, n)
}

// Freeze freezes the whole network.
func (t *Trainer) Freeze() {
	t.logger.Info("Freezing whole network")
	nn.Freeze(t.model)
}

// AddCallbacks registers callbacks, replacing any of the same type.
func (t *Trainer) AddCallbacks(cbs ...Callback) {
	t.chain.Add(cbs...)
}

// RemoveCallback unregisters the callback with the given type name.
func (t *Trainer) RemoveCallback(name string) bool {
	return t.chain.Remove(name)
}

// Callback returns the callback registered under name.
func (t *Trainer) Callback(name string) (Callback, bool) {
	return t.chain.Get(name)
}

// Callbacks returns the registered callback names in dispatch order.
func (t *Trainer) Callbacks() []string {
	return t.chain.Names()
}

// AddMetrics appends metrics computed on every train and validation batch.
func (t *Trainer) AddMetrics(metrics ...stats.Metric) {
	t.scorer.Metrics = append(t.scorer.Metrics, metrics...)
}

// Metrics returns the configured metrics.
func (t *Trainer) Metrics() []stats.Metric {
	return t.scorer.Metrics
}

// SetCallbackAttr sets an exported field of a registered callback. Field
// names match case-insensitively. Value must have the field's kind:
// integers may widen to float fields, nothing else is converted. The
// field "Order" changes the callback priority.
//
//	trainer.SetCallbackAttr("MetricPrinter", "BatchFreq", 10)
func (t *Trainer) SetCallbackAttr(name, field string, value any) error {
	cb, ok := t.chain.Get(name)
	if !ok {
		return errors.Wrapf(ErrUnknownCallback, "%q", name)
	}

	if strings.EqualFold(field, "order") {
		setter, ok := cb.(interface{ SetOrder(int) })
		order, isInt := value.(int)
		if !ok || !isInt {
			return errors.Wrapf(ErrUnknownField, "%s.%s", name, field)
		}
		setter.SetOrder(order)
		t.chain.sort()
		return nil
	}

	v := reflect.ValueOf(cb)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return errors.Wrapf(ErrUnknownField, "%s is not a struct pointer", name)
	}
	f := v.Elem().FieldByNameFunc(func(s string) bool { return strings.EqualFold(s, field) })
	if !f.IsValid() || !f.CanSet() {
		return errors.Wrapf(ErrUnknownField, "%s.%s", name, field)
	}
	val := reflect.ValueOf(value)
	switch {
	case value == nil:
		f.Set(reflect.Zero(f.Type()))
	case val.Type().AssignableTo(f.Type()):
		f.Set(val)
	case convertible(val.Kind(), f.Kind()):
		f.Set(val.Convert(f.Type()))
	default:
		return errors.Wrapf(ErrUnknownField, "%s.%s has type %s, got %T", name, field, f.Type(), value)
	}
	return nil
}

// convertible reports whether SetCallbackAttr may convert a value of kind
// from to kind to. Integers widen to floats; floats never truncate to
// integers and numbers never become strings.
func convertible(from, to reflect.Kind) bool {
	switch {
	case from == reflect.String:
		return to == reflect.String
	case isInteger(from):
		return isInteger(to) || isFloat(to)
	case isFloat(from):
		return isFloat(to)
	case from == reflect.Bool:
		return to == reflect.Bool
	}
	return false
}

func isInteger(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// UpdateOptimizer assigns learning rates to the optimizer's groups using
// the multiplier rule of optim.GroupLRs. Schedulers call this instead of
// touching the optimizer directly.
func (t *Trainer) UpdateOptimizer(lrs []float64, mult float64) error {
	if t.optim == nil {
		return ErrNoOptimizer
	}
	return optim.Update(t.optim, lrs, mult)
}

// StopTraining asks the current dispatch to halt training.
func (t *Trainer) StopTraining() {
	t.stop = true
}

// Stopping reports whether a stop was requested in the current dispatch.
func (t *Trainer) Stopping() bool {
	return t.stop
}

// Cleanup empties the output directory. It does nothing unless confirmed.
func (t *Trainer) Cleanup(confirmed bool) error {
	if !confirmed {
		t.logger.Info("Missing confirmation, cleanup skipped")
		return nil
	}
	t.logger.Info("Removing files from output directory", "dir", t.outDir)
	if err := os.RemoveAll(t.outDir); err != nil {
		return errors.Wrap(err, "remove output directory")
	}
	return errors.Wrap(os.MkdirAll(t.outDir, 0o755), "create output directory")
}

// warn logs a non-fatal configuration problem.
func (t *Trainer) warn(msg string, keysAndValues ...any) {
	t.logger.Info(msg, append([]any{"severity", "warning"}, keysAndValues...)...)
}

// Model returns the model.
func (t *Trainer) Model() nn.Module { return t.model }

// Optimizer returns the optimizer, or nil before the first Fit.
func (t *Trainer) Optimizer() optim.Optimizer { return t.optim }

// OptimizerKind returns the kind of optimizer Fit creates or uses.
func (t *Trainer) OptimizerKind() optim.Kind { return t.optimKind }

// TrainLoader returns the training loader.
func (t *Trainer) TrainLoader() data.Loader { return t.train }

// ValLoader returns the validation loader.
func (t *Trainer) ValLoader() data.Loader { return t.val }

// OutDir returns the output directory.
func (t *Trainer) OutDir() string { return t.outDir }

// Mode returns the task mode.
func (t *Trainer) Mode() stats.Mode { return t.scorer.Mode }

// RunID identifies this trainer in logs and checkpoints.
func (t *Trainer) RunID() uuid.UUID { return t.runID }

// Stats returns the training statistics of the current epoch. They are
// per-batch series during the epoch and reduced values after OnEpochEnd
// has been handled by StatsHandler.
func (t *Trainer) Stats() *stats.Aggregator { return t.stats }

// ValStats returns the validation statistics of the last completed epoch.
func (t *Trainer) ValStats() *stats.Aggregator { return t.valStats }

// Epoch returns the current epoch index.
func (t *Trainer) Epoch() int { return t.epoch }

// GlobalBatch returns the number of batches started in the current Fit.
func (t *Trainer) GlobalBatch() int { return t.globalBatch }

// Progress returns the live progress bar, if any.
func (t *Trainer) Progress() *Progress { return t.progress }

// SetProgress replaces the live progress bar.
func (t *Trainer) SetProgress(p *Progress) { t.progress = p }

// Output returns the writer for progress bars and tables.
func (t *Trainer) Output() io.Writer { return t.output }

// Logger returns the trainer logger.
func (t *Trainer) Logger() logr.Logger { return t.logger }

// SetLogger replaces the trainer logger.
func (t *Trainer) SetLogger(l logr.Logger) { t.logger = l }

// String summarizes the trainer.
func (t *Trainer) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Trainer(loss=%q, out_dir=%q)\n\n", t.lossName, t.outDir)
	fmt.Fprintf(&sb, "Datasets: %s train, %s val\n\n", describeLoader(t.train), describeLoader(t.val))
	fmt.Fprintf(&sb, "Optimizer: %s\n\n", describeOptimizer(t.optim))
	fmt.Fprintf(&sb, "%v", t.model)
	return sb.String()
}

func describeLoader(l data.Loader) string {
	if l == nil {
		return "no"
	}
	if s, ok := l.(interface{ NumExamples() int }); ok {
		return fmt.Sprintf("%d rows", s.NumExamples())
	}
	return fmt.Sprintf("%d batches", l.Len())
}

func describeOptimizer(o optim.Optimizer) string {
	if o == nil {
		return "none"
	}
	return fmt.Sprintf("%s(groups=%d, lrs=%v)", o.Kind(), len(o.Groups()), optim.LRs(o))
}

// enumerate pairs each batch of one pass with its index.
func enumerate(l data.Loader) iter.Seq2[int, data.Batch] {
	return func(yield func(int, data.Batch) bool) {
		i := 0
		for b := range l.Batches() {
			if !yield(i, b) {
				return
			}
			i++
		}
	}
}
