package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kindle/internal/config"
)

func TestParse_Defaults(t *testing.T) {
	run, err := config.Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), run)
}

func TestParse_Overrides(t *testing.T) {
	raw := []byte(`
out_dir: runs/test
mode: multiclass
epochs: 3
lrs: [1e-2, 5e-3]
metrics: [accuracy]
data:
  batch_size: 4
scheduler:
  kind: sawtooth
early_stopping:
  metric: accuracy
  goal: max
unfreeze:
  schedule: {1: 2, 3: 3}
`)
	run, err := config.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "runs/test", run.OutDir)
	assert.Equal(t, "multiclass", run.Mode)
	assert.Equal(t, []float64{1e-2, 5e-3}, run.LRs)
	assert.Equal(t, 4, run.Data.BatchSize)
	assert.Equal(t, 512, run.Data.Samples)

	require.NotNil(t, run.Scheduler)
	assert.Equal(t, 0.6, run.Scheduler.Scale)
	assert.Equal(t, 5, run.Scheduler.Patience)

	require.NotNil(t, run.EarlyStop)
	assert.Equal(t, 3, run.EarlyStop.Patience)
	assert.Nil(t, run.Checkpoint)

	require.NotNil(t, run.Unfreeze)
	assert.Equal(t, map[int]int{1: 2, 3: 3}, run.Unfreeze.Schedule)
	assert.Equal(t, "groups", run.Unfreeze.Type)
	assert.Equal(t, "epoch", run.Unfreeze.Mode)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad mode", "mode: ranking"},
		{"no epochs", "epochs: -1"},
		{"bad goal", "checkpoint: {goal: up}"},
		{"bad scheduler", "scheduler: {kind: step}"},
		{"negative cycle", "scheduler: {restarts: true, cycle_len: -2}"},
		{"upload without dest", "upload: {prefix: x}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.raw))
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := config.Parse([]byte("epoch: 3"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, config.ErrInvalid)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: 7\n"), 0o644))

	run, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, run.Epochs)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
