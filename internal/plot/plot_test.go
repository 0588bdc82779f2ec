package plot_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kindle/internal/plot"
)

func assertPNG(t *testing.T, path string) {
	t.Helper()
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(body), 8)
	assert.Equal(t, "\x89PNG", string(body[:4]))
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lrs.png")
	err := plot.Save(path, plot.Chart{
		Title:  "Learning Rate Schedule",
		XLabel: "Iteration",
		YLabel: "Learning Rate",
		Series: []plot.Series{{Name: "lr", Values: []float64{1e-4, 5e-4, 1e-3, 5e-4}}},
	})
	require.NoError(t, err)
	assertPNG(t, path)
}

func TestSaveGrid_SkipsNonFinite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.png")
	charts := []plot.Chart{
		{Title: "Loss", Series: []plot.Series{
			{Name: "train", Values: []float64{0.9, 0.6, 0.4}},
			{Name: "val", Values: []float64{1.0, 0.7, 0.5}},
		}},
		{Title: "Roc_auc", Series: []plot.Series{
			{Name: "train", Values: []float64{math.NaN(), 0.7, 0.8}},
			{Name: "val", Values: []float64{0.5, math.Inf(1), 0.75}},
		}},
	}
	require.NoError(t, plot.SaveGrid(path, charts))
	assertPNG(t, path)
}

func TestSaveGrid_Empty(t *testing.T) {
	assert.Error(t, plot.SaveGrid(filepath.Join(t.TempDir(), "x.png"), nil))
}
