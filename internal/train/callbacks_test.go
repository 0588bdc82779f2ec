package train_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kindle/internal/nn"
	"github.com/born-ml/kindle/internal/optim"
	"github.com/born-ml/kindle/internal/stats"
	"github.com/born-ml/kindle/internal/train"
	"github.com/born-ml/kindle/internal/upload"
)

// reduced returns an aggregator holding one reduced batch.
func reduced(t *testing.T, loss float64, metrics map[string]float64) *stats.Aggregator {
	t.Helper()
	agg := stats.NewAggregator()
	require.NoError(t, agg.Record(loss, 1, metrics))
	require.NoError(t, agg.Reduce())
	return agg
}

func TestChain_SortsByOrder(t *testing.T) {
	c := train.NewChain(
		train.NewModelCheckpoint("loss", train.Minimize), // 25
		train.NewBasicConfig(),                           // 0
		train.NewMetricPrinter(),                         // 10
	)
	assert.Equal(t, []string{"BasicConfig", "MetricPrinter", "ModelCheckpoint"}, c.Names())

	// Equal orders keep insertion order.
	c.Add(train.NewEarlyStopper("loss", train.Minimize, 0, 1), train.NewPerformanceThreshold("loss", train.Minimize, 1, 0))
	assert.Equal(t, []string{"BasicConfig", "MetricPrinter", "EarlyStopper", "PerformanceThreshold", "ModelCheckpoint"}, c.Names())
}

func TestChain_ReplaceAndRemove(t *testing.T) {
	c := train.NewChain(train.NewBasicConfig(), train.NewMetricPrinter())

	replacement := train.NewMetricPrinter()
	replacement.SetOrder(-1)
	c.Add(replacement)

	require.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"MetricPrinter", "BasicConfig"}, c.Names())
	got, ok := c.Get("MetricPrinter")
	require.True(t, ok)
	assert.Same(t, replacement, got)

	assert.True(t, c.Remove("MetricPrinter"))
	assert.False(t, c.Remove("MetricPrinter"))
	assert.Equal(t, []string{"BasicConfig"}, c.Names())
}

func TestParseGoal(t *testing.T) {
	g, err := train.ParseGoal("MAX")
	require.NoError(t, err)
	assert.Equal(t, train.Maximize, g)
	assert.Equal(t, "max", g.String())

	_, err = train.ParseGoal("up")
	assert.ErrorIs(t, err, train.ErrUnknownGoal)
}

// TestEarlyStopper_Patience keeps the best value monotone and stops once
// patience is exceeded.
func TestEarlyStopper_Patience(t *testing.T) {
	f := newFixture(t, nn.MSELoss, nil, train.Config{})
	s := train.NewEarlyStopper("loss", train.Minimize, 0, 1)
	require.NoError(t, s.OnTrainBegin(f.trainer, train.Run{}))

	steps := []struct {
		loss  float64
		best  float64
		since int
		stop  bool
	}{
		{1.0, 1.0, 0, false},
		{0.9, 0.9, 0, false},
		{0.95, 0.9, 1, false},
		{0.92, 0.9, 2, true},
		{0.93, 0.9, 3, true},
		{0.91, 0.9, 4, true},
	}
	for i, step := range steps {
		f.trainer.ResetStop()
		require.NoError(t, s.OnEpochEnd(f.trainer, i, reduced(t, step.loss, nil)))
		assert.Equal(t, step.best, s.Best(), "epoch %d", i)
		assert.Equal(t, step.since, s.SinceImprovement(), "epoch %d", i)
		assert.Equal(t, step.stop, f.trainer.Stopping(), "epoch %d", i)
	}

	// A new run starts from scratch.
	require.NoError(t, s.OnTrainBegin(f.trainer, train.Run{}))
	assert.Zero(t, s.SinceImprovement())
	assert.True(t, math.IsInf(s.Best(), 1))
	f.trainer.ResetStop()
	require.NoError(t, s.OnEpochEnd(f.trainer, 0, reduced(t, 1.5, nil)))
	assert.Equal(t, 1.5, s.Best())
	assert.False(t, f.trainer.Stopping())
}

func TestEarlyStopper_MinImprovement(t *testing.T) {
	f := newFixture(t, nn.MSELoss, nil, train.Config{})
	s := train.NewEarlyStopper("accuracy", train.Maximize, 0.05, 0)
	require.NoError(t, s.OnTrainBegin(f.trainer, train.Run{}))

	require.NoError(t, s.OnEpochEnd(f.trainer, 0, reduced(t, 1, map[string]float64{"accuracy": 0.5})))
	require.NoError(t, s.OnEpochEnd(f.trainer, 1, reduced(t, 1, map[string]float64{"accuracy": 0.52})))

	assert.Equal(t, 0.5, s.Best())
	assert.True(t, f.trainer.Stopping())
}

// TestMissingMetric_SoftFailure warns without stopping or saving.
func TestMissingMetric_SoftFailure(t *testing.T) {
	f := newFixture(t, nn.MSELoss, nil, train.Config{})
	val := reduced(t, 0.3, nil)

	cbs := []interface {
		OnEpochEnd(*train.Trainer, int, *stats.Aggregator) error
	}{
		train.NewEarlyStopper("accuracy", train.Maximize, 0, 0),
		train.NewPerformanceThreshold("accuracy", train.Maximize, 0.9, 0),
		train.NewModelCheckpoint("accuracy", train.Maximize),
	}
	for _, cb := range cbs {
		for epoch := range 3 {
			require.NoError(t, cb.OnEpochEnd(f.trainer, epoch, val))
		}
	}

	assert.False(t, f.trainer.Stopping())
	assert.NoFileExists(t, filepath.Join(f.trainer.OutDir(), "trainer.kndl"))
	assert.True(t, f.logs.contains("could not find metric"))
}

func TestPerformanceThreshold(t *testing.T) {
	f := newFixture(t, nn.MSELoss, nil, train.Config{})
	p := train.NewPerformanceThreshold("accuracy", train.Maximize, 0.6, 1)

	require.NoError(t, p.OnEpochEnd(f.trainer, 0, reduced(t, 1, map[string]float64{"accuracy": 0.1})))
	assert.False(t, f.trainer.Stopping(), "skipped epoch")

	require.NoError(t, p.OnEpochEnd(f.trainer, 1, reduced(t, 1, map[string]float64{"accuracy": 0.7})))
	assert.False(t, f.trainer.Stopping())

	require.NoError(t, p.OnEpochEnd(f.trainer, 2, reduced(t, 1, map[string]float64{"accuracy": 0.5})))
	assert.True(t, f.trainer.Stopping())
}

// TestModelCheckpoint_SaveLoad saves on improvement and restores weights
// and optimizer state into a fresh trainer.
func TestModelCheckpoint_SaveLoad(t *testing.T) {
	ckpt := train.NewModelCheckpoint("loss", train.Minimize)
	f := newFixture(t, nn.MSELoss, valLoader(t), train.Config{Callbacks: []train.Callback{ckpt}})
	require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 3, LRs: []float64{1e-2}}))

	path := filepath.Join(f.trainer.OutDir(), "trainer.kndl")
	require.FileExists(t, path)
	raw, err := os.ReadFile(filepath.Join(f.trainer.OutDir(), "best_val_metrics.json"))
	require.NoError(t, err)
	var metrics map[string]float64
	require.NoError(t, json.Unmarshal(raw, &metrics))
	assert.InDelta(t, ckpt.Best(), metrics["loss"], 1e-5)

	// Saving again pins the final weights for comparison.
	require.NoError(t, f.trainer.Save("final.kndl"))

	l := &logs{}
	model := newModel(2)
	other, err := train.New(model, trainLoader(t), nil, nn.MSELoss, train.Config{
		Mode:   stats.ModeRegression,
		OutDir: t.TempDir(),
		Output: io.Discard,
		Logger: l.logger(),
	})
	require.NoError(t, err)
	require.NoError(t, other.LoadFrom(filepath.Join(f.trainer.OutDir(), "final.kndl")))

	want := nn.StateDict(f.model)
	got := nn.StateDict(model)
	require.Len(t, got, len(want))
	for k, w := range want {
		assert.Equal(t, w.Data(), got[k].Data(), k)
	}
	require.NotNil(t, other.Optimizer())
	assert.Equal(t, f.trainer.Optimizer().StateDict()["step"].Item(), other.Optimizer().StateDict()["step"].Item())
	assert.False(t, l.contains("Could not load optimizer"))
}

// TestLoad_OptimizerMismatch keeps model weights and skips the optimizer.
func TestLoad_OptimizerMismatch(t *testing.T) {
	f := newFixture(t, nn.MSELoss, nil, train.Config{})
	require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 1}))
	require.NoError(t, f.trainer.Save("trainer.kndl"))

	g := newFixture(t, nn.MSELoss, nil, train.Config{Optimizer: optim.KindSGD})
	require.NoError(t, g.trainer.LoadFrom(filepath.Join(f.trainer.OutDir(), "trainer.kndl")))

	assert.True(t, g.logs.contains("optimizer type mismatch"))
	assert.Equal(t, optim.KindSGD, g.trainer.Optimizer().Kind())
	for k, w := range nn.StateDict(f.model) {
		assert.Equal(t, w.Data(), nn.StateDict(g.model)[k].Data(), k)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	f := newFixture(t, nn.MSELoss, nil, train.Config{})
	assert.Error(t, f.trainer.Load("absent.kndl"))
}

// TestCosineScheduler applies the precomputed rate at every batch.
func TestCosineScheduler(t *testing.T) {
	s := train.NewCosineScheduler()
	f := newFixture(t, nn.MSELoss, nil, train.Config{Callbacks: []train.Callback{s}})

	require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 2, LRs: []float64{3e-3}}))

	lrs := s.LRs()
	require.Len(t, lrs, 6)
	assert.InDelta(t, 3e-4, lrs[0], 1e-12)
	assert.InDelta(t, 3e-3, lrs[1], 1e-12)
	for i := 2; i < len(lrs); i++ {
		assert.Less(t, lrs[i], lrs[i-1])
	}
	for _, lr := range optim.LRs(f.trainer.Optimizer()) {
		assert.InDelta(t, lrs[5], lr, 1e-15)
	}
	assert.FileExists(t, filepath.Join(f.trainer.OutDir(), "lrs.png"))
}

func TestCosineScheduler_ShortCycleWarning(t *testing.T) {
	s := train.NewCosineScheduler()
	s.Restarts = true
	s.PlotFile = ""
	f := newFixture(t, nn.MSELoss, nil, train.Config{Callbacks: []train.Callback{s}})

	require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 2}))

	assert.Len(t, s.LRs(), 6)
	assert.True(t, f.logs.contains("Cycle is longer than training"))
}

func TestCosineScheduler_NonPositiveCycle(t *testing.T) {
	s := train.NewCosineScheduler()
	s.Restarts = true
	s.CycleLen = 0
	s.PlotFile = ""
	f := newFixture(t, nn.MSELoss, nil, train.Config{Callbacks: []train.Callback{s}})

	require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 1, LRs: []float64{1e-2}}))

	assert.Empty(t, s.LRs())
	assert.True(t, f.logs.contains("CycleLen must be positive with restarts"))
	assert.InDelta(t, 1e-2, optim.MaxLR(f.trainer.Optimizer()), 0)
}

// TestSawtoothScheduler follows the previous batch loss. Batch losses
// cycle through 1.0, 0.5, 0.5 and statistics restart every epoch, so the
// first batch of each epoch keeps the current rate.
func TestSawtoothScheduler(t *testing.T) {
	s := train.NewSawtoothScheduler()
	s.PlotFile = ""
	f := newFixture(t, scriptedLoss(1.0, 0.5, 0.5), nil, train.Config{Callbacks: []train.Callback{s}})

	require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 2, LRs: []float64{3e-3}}))

	assert.InDeltaSlice(t, []float64{3.1e-3, 3.2e-3, 3.25e-3, 3.35e-3}, s.LRs(), 1e-12)
	assert.InDelta(t, 3.35e-3, optim.MaxLR(f.trainer.Optimizer()), 1e-12)
}

func TestModelUnfreezer(t *testing.T) {
	t.Run("epoch", func(t *testing.T) {
		u := train.NewModelUnfreezer(map[int]int{0: 1, 1: 2}, train.Groups, train.ByEpoch)
		f := newFixture(t, nn.MSELoss, nil, train.Config{Callbacks: []train.Callback{u}})
		require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 2}))

		for i, group := range f.model.Groups() {
			for _, p := range group {
				assert.Equal(t, i >= 1, p.RequiresGrad(), "group %d", i)
			}
		}
	})
	t.Run("batch", func(t *testing.T) {
		u := train.NewModelUnfreezer(map[int]int{0: 1, 4: 4}, train.Layers, train.ByBatch)
		f := newFixture(t, nn.MSELoss, nil, train.Config{Callbacks: []train.Callback{u}})
		require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 2}))

		for i, p := range f.model.Parameters() {
			assert.Equal(t, i >= 2, p.RequiresGrad(), "parameter %d", i)
		}
	})
}

type failingUploader struct{ calls int }

func (u *failingUploader) UploadDir(context.Context, string) error {
	u.calls++
	return errors.New("bucket unavailable")
}

func TestUploader(t *testing.T) {
	dest := t.TempDir()
	f := newFixture(t, nn.MSELoss, nil, train.Config{
		Callbacks: []train.Callback{train.NewUploader(upload.NewDirUploader(dest, ""))},
	})
	require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 1}))

	assert.FileExists(t, filepath.Join(dest, filepath.Base(f.trainer.OutDir()), "train.log"))
}

func TestUploader_FailureIsLogged(t *testing.T) {
	u := &failingUploader{}
	f := newFixture(t, nn.MSELoss, nil, train.Config{Callbacks: []train.Callback{train.NewUploader(u)}})

	require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 1}))
	assert.Equal(t, 1, u.calls)
	assert.True(t, f.logs.contains("bucket unavailable"))
}

// TestBatchMetricPrinter removes itself after NPrints lines.
func TestBatchMetricPrinter(t *testing.T) {
	p := train.NewBatchMetricPrinter(1, 2)
	f := newFixture(t, nn.MSELoss, nil, train.Config{Callbacks: []train.Callback{p}})

	require.NoError(t, f.trainer.Fit(context.Background(), train.Run{Epochs: 2}))

	assert.Equal(t, 2, p.Prints())
	assert.NotContains(t, f.trainer.Callbacks(), "BatchMetricPrinter")
}

func TestMetricPrinter_Table(t *testing.T) {
	var out bytes.Buffer
	l := &logs{}
	g, err := train.New(newModel(1), trainLoader(t), valLoader(t), nn.MSELoss, train.Config{
		Mode:   stats.ModeRegression,
		OutDir: t.TempDir(),
		Output: &out,
		Logger: l.logger(),
	})
	require.NoError(t, err)

	require.NoError(t, g.Fit(context.Background(), train.Run{Epochs: 1}))

	assert.Contains(t, out.String(), "Epoch 0")
	assert.Contains(t, out.String(), "Metric  Train")
	assert.Contains(t, out.String(), "Epoch complete")
	assert.Nil(t, g.Progress())
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	pb := train.NewProgress(&buf, "Epoch 3", 4)
	pb.Update(2, map[string]float64{"loss": 0.5})

	assert.Contains(t, buf.String(), "Epoch 3:  50%")
	assert.Contains(t, buf.String(), "2/4")
	assert.Contains(t, buf.String(), "loss=0.5000")
	assert.Equal(t, 2, pb.Current())
	assert.Equal(t, 4, pb.Total())

	pb.Finish()
	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])
}
