package data_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kindle/internal/data"
	"github.com/born-ml/kindle/internal/tensor"
)

func tenRows(t *testing.T) *data.TensorDataset {
	t.Helper()
	x := tensor.New(tensor.Shape{10, 2})
	y := tensor.New(tensor.Shape{10, 1})
	for i := range 10 {
		x.Row(i)[0] = float64(i)
		x.Row(i)[1] = float64(-i)
		y.Row(i)[0] = float64(i)
	}
	ds, err := data.NewTensorDataset(y, x)
	require.NoError(t, err)
	return ds
}

func batchSizes(l data.Loader) []int {
	var sizes []int
	for b := range l.Batches() {
		sizes = append(sizes, b.Size())
	}
	return sizes
}

// TestDataLoader_Sizes yields a final partial batch.
func TestDataLoader_Sizes(t *testing.T) {
	l := data.NewDataLoader(tenRows(t), data.Config{BatchSize: 4})
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 4, l.BatchSize())
	assert.Equal(t, []int{4, 4, 2}, batchSizes(l))

	dropped := data.NewDataLoader(tenRows(t), data.Config{BatchSize: 4, DropLast: true})
	assert.Equal(t, 2, dropped.Len())
	assert.Equal(t, []int{4, 4}, batchSizes(dropped))
}

// TestDataLoader_Order keeps rows aligned and in order without shuffling.
func TestDataLoader_Order(t *testing.T) {
	l := data.NewDataLoader(tenRows(t), data.Config{BatchSize: 3})
	var labels []float64
	for b := range l.Batches() {
		require.Len(t, b.Inputs, 1)
		for i := range b.Size() {
			assert.Equal(t, b.Labels.Row(i)[0], b.Inputs[0].Row(i)[0])
		}
		labels = append(labels, b.Labels.Data()...)
	}
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, labels)
}

// TestDataLoader_Shuffle permutes rows and is reproducible per seed.
func TestDataLoader_Shuffle(t *testing.T) {
	collect := func(seed uint64) []float64 {
		l := data.NewDataLoader(tenRows(t), data.Config{BatchSize: 10, Shuffle: true, Seed: seed})
		var out []float64
		for b := range l.Batches() {
			out = append(out, b.Labels.Data()...)
		}
		return out
	}
	a, b := collect(7), collect(7)
	assert.Equal(t, a, b)
	sorted := slices.Clone(a)
	slices.Sort(sorted)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, sorted)
}

// TestDataLoader_Restartable allows repeated passes.
func TestDataLoader_Restartable(t *testing.T) {
	l := data.NewDataLoader(tenRows(t), data.Config{BatchSize: 4, Shuffle: true, Seed: 1})
	assert.Equal(t, []int{4, 4, 2}, batchSizes(l))
	assert.Equal(t, []int{4, 4, 2}, batchSizes(l))
}

// TestSubset limits the number of batches.
func TestSubset(t *testing.T) {
	l := data.Subset(data.NewDataLoader(tenRows(t), data.Config{BatchSize: 4}), 2)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []int{4, 4}, batchSizes(l))

	all := data.Subset(data.NewDataLoader(tenRows(t), data.Config{BatchSize: 4}), 10)
	assert.Equal(t, 3, all.Len())
}

// TestNewTensorDataset_RowMismatch rejects misaligned tensors.
func TestNewTensorDataset_RowMismatch(t *testing.T) {
	_, err := data.NewTensorDataset(tensor.Column(1, 2), tensor.Column(1, 2, 3))
	assert.ErrorIs(t, err, data.ErrRowMismatch)
}

// TestSplit partitions examples without overlap.
func TestSplit(t *testing.T) {
	train, val := data.Split(tenRows(t), 0.2, 3)
	assert.Equal(t, 8, train.Len())
	assert.Equal(t, 2, val.Len())
}
