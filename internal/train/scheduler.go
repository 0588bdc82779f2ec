package train

import (
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/kindle/internal/optim"
	"github.com/born-ml/kindle/internal/plot"
	"github.com/born-ml/kindle/internal/schedule"
	"github.com/born-ml/kindle/internal/stats"
)

// CosineScheduler precomputes one learning rate per global batch at train
// begin and applies it at the start of each batch. The peak rate is the
// largest of the run's LRs; lower groups keep their ratio through the
// run's multiplier.
type CosineScheduler struct {
	Base

	// Warm is the fraction of batches spent warming up (default: 0.3).
	// Ignored with Restarts.
	Warm float64
	// Restarts replaces warm-up with repeated decays of CycleLen epochs,
	// cycle k scaled by 1/(1+CycleDecay*k).
	Restarts   bool
	CycleLen   int
	CycleDecay float64
	// MinLR is the floor rate (default: peak/10).
	MinLR   float64
	Verbose bool
	// PlotFile receives the applied rates at train end; empty disables it.
	PlotFile string

	lrs  []float64
	mult float64
}

// NewCosineScheduler returns a warm-up then cool-down scheduler.
func NewCosineScheduler() *CosineScheduler {
	return &CosineScheduler{
		Base:     NewBase(OrderScheduler),
		Warm:     0.3,
		CycleLen: 5,
		PlotFile: "lrs.png",
	}
}

// LRs returns the precomputed rates.
func (s *CosineScheduler) LRs() []float64 { return s.lrs }

func (s *CosineScheduler) OnTrainBegin(t *Trainer, run Run) error {
	maxLR := floats.Max(run.LRs)
	minLR := s.MinLR
	if minLR == 0 {
		minLR = maxLR / 10
	}
	s.mult = run.LRMult

	bpe := t.TrainLoader().Len()
	total := run.Epochs * bpe
	if !s.Restarts {
		s.lrs = schedule.Cosine(total, s.Warm, minLR, maxLR)
		return nil
	}
	if s.CycleLen <= 0 {
		t.warn("CycleLen must be positive with restarts; learning rate is not scheduled", "cycle_len", s.CycleLen)
		s.lrs = nil
		return nil
	}
	if schedule.ShortCycle(total, bpe, s.CycleLen) {
		t.warn("Cycle is longer than training; the schedule never restarts",
			"cycle_len", s.CycleLen, "epochs", run.Epochs)
	}
	s.lrs = schedule.CosineRestarts(total, bpe, s.CycleLen, s.CycleDecay, minLR, maxLR)
	return nil
}

func (s *CosineScheduler) OnBatchBegin(t *Trainer, b *BatchState) error {
	if b.Global >= len(s.lrs) {
		return nil
	}
	lr := s.lrs[b.Global]
	if s.Verbose {
		t.Logger().Info("Set learning rate", "global_batch", b.Global, "lr", lr)
	}
	return t.UpdateOptimizer([]float64{lr}, s.mult)
}

func (s *CosineScheduler) OnTrainEnd(t *Trainer, _ int, _ *stats.Aggregator) error {
	plotLRs(t, s.PlotFile, s.lrs)
	return nil
}

// SawtoothScheduler adapts the learning rate from the previous batch
// loss. All groups follow one shared rate track derived from the largest
// group rate.
type SawtoothScheduler struct {
	Base

	Add      float64 // additive step (default: 1e-4)
	Scale    float64 // decay factor once patience runs out (default: 0.6)
	Patience int     // batches without improvement before decaying (default: 5)
	Verbose  bool
	PlotFile string

	saw  *schedule.Sawtooth
	lrs  []float64
	mult float64
}

// NewSawtoothScheduler returns a scheduler with the default parameters.
func NewSawtoothScheduler() *SawtoothScheduler {
	return &SawtoothScheduler{
		Base:     NewBase(OrderScheduler),
		Add:      1e-4,
		Scale:    0.6,
		Patience: 5,
		PlotFile: "lrs.png",
	}
}

// LRs returns the rates applied so far.
func (s *SawtoothScheduler) LRs() []float64 { return s.lrs }

func (s *SawtoothScheduler) OnTrainBegin(_ *Trainer, run Run) error {
	s.saw = schedule.NewSawtooth(s.Add, s.Scale, s.Patience)
	s.lrs = nil
	s.mult = run.LRMult
	return nil
}

func (s *SawtoothScheduler) OnBatchBegin(t *Trainer, b *BatchState) error {
	loss, ok := t.Stats().Last(stats.LossKey)
	if !ok {
		return nil
	}
	lr := s.saw.Next(loss, optim.MaxLR(t.Optimizer()))
	if s.Verbose {
		t.Logger().Info("Set learning rate", "global_batch", b.Global, "lr", lr, "loss", loss)
	}
	if err := t.UpdateOptimizer([]float64{lr}, s.mult); err != nil {
		return err
	}
	s.lrs = append(s.lrs, lr)
	return nil
}

func (s *SawtoothScheduler) OnTrainEnd(t *Trainer, _ int, _ *stats.Aggregator) error {
	plotLRs(t, s.PlotFile, s.lrs)
	return nil
}

func plotLRs(t *Trainer, name string, lrs []float64) {
	if name == "" || len(lrs) == 0 {
		return
	}
	err := plot.Save(filepath.Join(t.OutDir(), name), plot.Chart{
		Title:  "Learning rate",
		XLabel: "Global batch",
		YLabel: "LR",
		Series: []plot.Series{{Name: "lr", Values: lrs}},
	})
	if err != nil {
		t.warn("Could not plot learning rates", "error", err.Error())
	}
}
