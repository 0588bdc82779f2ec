package stats_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kindle/internal/stats"
	"github.com/born-ml/kindle/internal/tensor"
)

// TestAggregator_WeightedReduce weights batch values by batch size.
func TestAggregator_WeightedReduce(t *testing.T) {
	var agg stats.Aggregator
	require.NoError(t, agg.Record(2.0, 10, nil))
	require.NoError(t, agg.Record(4.0, 30, nil))

	require.NoError(t, agg.Reduce())
	loss, ok := agg.Value(stats.LossKey)
	require.True(t, ok)
	assert.InDelta(t, 3.5, loss, 1e-12)

	_, ok = agg.Value(stats.BatchSizeKey)
	assert.False(t, ok, "batch size must be dropped after reduction")
	assert.Equal(t, []string{"loss"}, agg.Keys())
}

// TestAggregator_PartialFinalBatch reproduces an epoch of [4,4,2] batches.
func TestAggregator_PartialFinalBatch(t *testing.T) {
	agg := stats.NewAggregator()
	for i, loss := range []float64{1.0, 0.5, 0.5} {
		size := 4
		if i == 2 {
			size = 2
		}
		require.NoError(t, agg.Record(loss, size, map[string]float64{"accuracy": float64(i)}))
	}
	assert.Equal(t, 3, agg.Batches())
	last, ok := agg.Last(stats.LossKey)
	require.True(t, ok)
	assert.Equal(t, 0.5, last)

	require.NoError(t, agg.Reduce())
	snap := agg.Snapshot()
	assert.InDelta(t, 0.7, snap["loss"], 1e-12)
	assert.InDelta(t, (0*4+1*4+2*2)/10.0, snap["accuracy"], 1e-12)
	assert.Equal(t, []string{"loss", "accuracy"}, agg.Keys())
}

// TestAggregator_ReduceOnce rejects a second reduction and late records.
func TestAggregator_ReduceOnce(t *testing.T) {
	agg := stats.NewAggregator()
	require.NoError(t, agg.Record(1, 1, nil))
	require.NoError(t, agg.Reduce())
	assert.True(t, agg.Reduced())

	assert.ErrorIs(t, agg.Reduce(), stats.ErrAlreadyReduced)
	assert.ErrorIs(t, agg.Record(1, 1, nil), stats.ErrAlreadyReduced)

	agg.Clear()
	assert.False(t, agg.Reduced())
	assert.Zero(t, agg.Len())
	require.NoError(t, agg.Record(1, 1, nil))
}

// TestAggregator_LengthMismatch fails when a metric skipped a batch.
func TestAggregator_LengthMismatch(t *testing.T) {
	agg := stats.NewAggregator()
	require.NoError(t, agg.Record(1, 4, map[string]float64{"f1": 1}))
	require.NoError(t, agg.Record(1, 4, nil))
	assert.ErrorIs(t, agg.Reduce(), stats.ErrLengthMismatch)
}

// TestAggregator_Empty reduces to no values.
func TestAggregator_Empty(t *testing.T) {
	agg := stats.NewAggregator()
	require.NoError(t, agg.Reduce())
	assert.Empty(t, agg.Snapshot())
	_, ok := agg.Value(stats.LossKey)
	assert.False(t, ok)
}

// TestScorer_Modes converts scores to hard predictions per mode.
func TestScorer_Modes(t *testing.T) {
	tests := []struct {
		name   string
		scorer stats.Scorer
		labels *tensor.Tensor
		output *tensor.Tensor
		want   float64
	}{
		{
			name:   "binary threshold",
			scorer: stats.Scorer{Mode: stats.ModeBinary, Threshold: 0.5, Activation: tensor.Sigmoid},
			labels: tensor.Column(1, 0, 1, 0),
			output: tensor.Column(2, -2, -1, 3),
			want:   0.5,
		},
		{
			name:   "multiclass argmax",
			scorer: stats.Scorer{Mode: stats.ModeMulticlass, Activation: tensor.Softmax},
			labels: tensor.Vector(2, 0, 1),
			output: tensor.MustFromSlice([]float64{0, 1, 5, 3, 1, 0, 9, 0, 0}, tensor.Shape{3, 3}),
			want:   2.0 / 3,
		},
		{
			name:   "regression passthrough",
			scorer: stats.Scorer{Mode: stats.ModeRegression},
			labels: tensor.Column(1, 2),
			output: tensor.Column(1, 2),
			want:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.scorer.Metrics = []stats.Metric{stats.Accuracy}
			got := tt.scorer.Score(tt.labels, tt.output)
			assert.InDelta(t, tt.want, got["accuracy"], 1e-12)
		})
	}
}

// TestScorer_SoftAndHardInputs hands each metric the form it declares.
func TestScorer_SoftAndHardInputs(t *testing.T) {
	var soft, hard []float64
	s := stats.Scorer{
		Mode:      stats.ModeBinary,
		Threshold: 0.5,
		Metrics: []stats.Metric{
			{Name: "soft", Input: stats.SoftPredictions, Fn: func(_, p *tensor.Tensor) float64 {
				soft = p.Data()
				return 0
			}},
			{Name: "hard", Input: stats.HardPredictions, Fn: func(_, p *tensor.Tensor) float64 {
				hard = p.Data()
				return 0
			}},
		},
	}
	s.Score(tensor.Column(1, 0), tensor.Column(0.7, 0.2))
	assert.Equal(t, []float64{0.7, 0.2}, soft)
	assert.Equal(t, []float64{1, 0}, hard)
	assert.Equal(t, []string{"soft", "hard"}, s.Names())
}

// TestBuiltinMetrics checks values on a small binary batch.
func TestBuiltinMetrics(t *testing.T) {
	labels := tensor.Vector(1, 1, 0, 0, 1)
	preds := tensor.Vector(1, 0, 1, 0, 1)

	assert.InDelta(t, 0.6, stats.Accuracy.Fn(labels, preds), 1e-12)
	assert.InDelta(t, 2.0/3, stats.Precision.Fn(labels, preds), 1e-12)
	assert.InDelta(t, 2.0/3, stats.Recall.Fn(labels, preds), 1e-12)
	assert.InDelta(t, 2.0/3, stats.F1.Fn(labels, preds), 1e-12)

	assert.InDelta(t, 2.5, stats.MSE.Fn(tensor.Vector(0, 0), tensor.Vector(1, 2)), 1e-12)
	assert.InDelta(t, 1.5, stats.MAE.Fn(tensor.Vector(0, 0), tensor.Vector(1, -2)), 1e-12)
}

// TestROCAUC is 1 for a perfect ranking and NaN for a single class.
func TestROCAUC(t *testing.T) {
	labels := tensor.Vector(0, 0, 1, 1)
	assert.InDelta(t, 1.0, stats.ROCAUC.Fn(labels, tensor.Vector(0.1, 0.2, 0.8, 0.9)), 1e-12)
	assert.InDelta(t, 0.0, stats.ROCAUC.Fn(labels, tensor.Vector(0.9, 0.8, 0.2, 0.1)), 1e-12)
	assert.True(t, math.IsNaN(stats.ROCAUC.Fn(tensor.Vector(1, 1), tensor.Vector(0.1, 0.2))))
}

// TestParseMode accepts the three modes.
func TestParseMode(t *testing.T) {
	for _, m := range []stats.Mode{stats.ModeBinary, stats.ModeMulticlass, stats.ModeRegression} {
		got, err := stats.ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := stats.ParseMode("ranking")
	assert.ErrorIs(t, err, stats.ErrUnknownMode)
	assert.True(t, stats.ModeBinary.Classification())
	assert.False(t, stats.ModeRegression.Classification())
}

// TestBuiltin looks metrics up by name.
func TestBuiltin(t *testing.T) {
	m, ok := stats.Builtin("f1")
	require.True(t, ok)
	assert.Equal(t, stats.HardPredictions, m.Input)
	_, ok = stats.Builtin("nope")
	assert.False(t, ok)
}
