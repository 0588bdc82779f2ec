package train

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/plot"
	"github.com/born-ml/kindle/internal/stats"
)

// MetricHistory keeps per-epoch training and validation values and writes
// them as CSV and a plot when training ends.
type MetricHistory struct {
	Base

	// File is the CSV name under the output directory (default: "history.csv").
	File string
	// PlotFile is the plot name; empty disables plotting
	// (default: "history.png").
	PlotFile string

	keys  []string
	train []map[string]float64
	val   []map[string]float64
}

// NewMetricHistory returns a MetricHistory with the default order.
func NewMetricHistory() *MetricHistory {
	return &MetricHistory{
		Base:     NewBase(OrderHistory),
		File:     "history.csv",
		PlotFile: "history.png",
	}
}

// Train returns the recorded training values, one map per epoch.
func (h *MetricHistory) Train() []map[string]float64 { return h.train }

// Val returns the recorded validation values, one map per epoch.
func (h *MetricHistory) Val() []map[string]float64 { return h.val }

func (h *MetricHistory) OnTrainBegin(*Trainer, Run) error {
	h.keys = nil
	h.train = nil
	h.val = nil
	return nil
}

func (h *MetricHistory) OnEpochEnd(t *Trainer, _ int, val *stats.Aggregator) error {
	if h.keys == nil {
		h.keys = t.Stats().Keys()
	}
	h.train = append(h.train, t.Stats().Snapshot())
	h.val = append(h.val, val.Snapshot())
	return nil
}

func (h *MetricHistory) OnTrainEnd(t *Trainer, _ int, _ *stats.Aggregator) error {
	if len(h.train) == 0 {
		t.Logger().Info("No completed epochs, history not written")
		return nil
	}
	if err := h.writeCSV(filepath.Join(t.OutDir(), h.File)); err != nil {
		return err
	}
	if h.PlotFile == "" {
		return nil
	}
	if err := plot.SaveGrid(filepath.Join(t.OutDir(), h.PlotFile), h.charts()); err != nil {
		t.warn("Could not plot history", "error", err.Error())
	}
	return nil
}

func (h *MetricHistory) writeCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create history file")
	}
	w := csv.NewWriter(f)

	header := append([]string(nil), h.keys...)
	for _, k := range h.keys {
		header = append(header, "val_"+k)
	}
	rows := [][]string{header}
	for i := range h.train {
		row := make([]string, 0, len(header))
		for _, k := range h.keys {
			row = append(row, cell(h.train[i], k))
		}
		for _, k := range h.keys {
			row = append(row, cell(h.val[i], k))
		}
		rows = append(rows, row)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return errors.Wrap(err, "write history")
	}
	return errors.Wrap(f.Close(), "close history file")
}

func cell(values map[string]float64, key string) string {
	v, ok := values[key]
	if !ok {
		return ""
	}
	return strconv.FormatFloat(round(v, 5), 'f', -1, 64)
}

func (h *MetricHistory) charts() []plot.Chart {
	charts := make([]plot.Chart, 0, len(h.keys))
	for _, k := range h.keys {
		train := make([]float64, len(h.train))
		val := make([]float64, len(h.val))
		for i := range h.train {
			train[i] = h.train[i][k]
			val[i] = h.val[i][k]
		}
		charts = append(charts, plot.Chart{
			Title:  strings.ToUpper(k[:1]) + k[1:],
			XLabel: "Epoch",
			YLabel: "Score",
			Series: []plot.Series{{Name: "train", Values: train}, {Name: "val", Values: val}},
		})
	}
	return charts
}
