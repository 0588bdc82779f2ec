package train

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"k8s.io/klog/v2/textlogger"

	"github.com/born-ml/kindle/internal/stats"
)

// MetricPrinter logs epoch tables, drives the progress bar and mirrors the
// trainer log into <out_dir>/train.log while training.
type MetricPrinter struct {
	Base

	// PbarMetric is the per-batch statistic shown on the progress bar.
	PbarMetric string
	// BatchFreq updates the progress bar every n global batches.
	BatchFreq int
	// LogFile is created under the output directory (default: "train.log").
	LogFile string

	file   *os.File
	out    io.Writer
	prev   logr.Logger
	active bool
}

// NewMetricPrinter returns a MetricPrinter showing the batch loss.
func NewMetricPrinter() *MetricPrinter {
	return &MetricPrinter{
		Base:       NewBase(OrderPrinter),
		PbarMetric: stats.LossKey,
		BatchFreq:  1,
		LogFile:    "train.log",
	}
}

func (p *MetricPrinter) OnTrainBegin(t *Trainer, _ Run) error {
	if p.active {
		p.restore(t)
	}
	f, err := os.OpenFile(filepath.Join(t.OutDir(), p.LogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open training log")
	}
	p.file = f
	p.out = io.MultiWriter(t.Output(), f)
	p.prev = t.Logger()
	p.active = true
	t.SetLogger(textlogger.NewLogger(textlogger.NewConfig(textlogger.Output(p.out))))
	return nil
}

func (p *MetricPrinter) OnEpochBegin(t *Trainer, epoch int) error {
	t.SetProgress(NewProgress(t.Output(), fmt.Sprintf("Epoch %d", epoch), t.TrainLoader().Len()))
	return nil
}

func (p *MetricPrinter) OnBatchEnd(t *Trainer, b *BatchState) error {
	pb := t.Progress()
	if pb == nil || p.BatchFreq <= 0 || b.Global%p.BatchFreq != 0 {
		return nil
	}
	var metrics map[string]float64
	if v, ok := t.Stats().Last(p.PbarMetric); ok {
		metrics = map[string]float64{p.PbarMetric: v}
	}
	pb.Update(b.Index+1, metrics)
	return nil
}

func (p *MetricPrinter) OnEpochEnd(t *Trainer, epoch int, val *stats.Aggregator) error {
	if pb := t.Progress(); pb != nil {
		pb.Finish()
		t.SetProgress(nil)
	}
	kv := []any{"epoch", epoch}
	for _, k := range t.Stats().Keys() {
		v, _ := t.Stats().Value(k)
		kv = append(kv, k, round(v, 4))
		if vv, ok := val.Value(k); ok {
			kv = append(kv, "val_"+k, round(vv, 4))
		}
	}
	t.Logger().Info("Epoch complete", kv...)

	w := p.out
	if w == nil {
		w = t.Output()
	}
	return writeTable(w, epoch, t.Stats(), val)
}

func (p *MetricPrinter) OnTrainEnd(t *Trainer, _ int, _ *stats.Aggregator) error {
	if pb := t.Progress(); pb != nil {
		pb.Finish()
		t.SetProgress(nil)
	}
	if p.active {
		return p.restore(t)
	}
	return nil
}

func (p *MetricPrinter) release(t *Trainer) error {
	if !p.active {
		return nil
	}
	return p.restore(t)
}

func (p *MetricPrinter) restore(t *Trainer) error {
	t.SetLogger(p.prev)
	p.active = false
	p.out = nil
	err := p.file.Close()
	p.file = nil
	return errors.Wrap(err, "close training log")
}

// writeTable renders train and validation values side by side.
func writeTable(w io.Writer, epoch int, train, val *stats.Aggregator) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n=====\n\nEpoch %d\n\n", epoch)
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Metric\tTrain\tValidation")
	fmt.Fprintln(tw, "------\t-----\t----------")
	for _, k := range train.Keys() {
		v, _ := train.Value(k)
		vv, ok := val.Value(k)
		valCell := "-"
		if ok {
			valCell = fmt.Sprintf("%.4f", vv)
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%s\n", k, v, valCell)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	sb.WriteString("\n=====\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// BatchMetricPrinter logs the latest batch statistics every BatchFreq
// global batches and removes itself from the chain after NPrints prints.
// It helps to see early on whether a model learns at all.
type BatchMetricPrinter struct {
	Base

	BatchFreq int
	NPrints   int // zero means unlimited

	prints int
}

// NewBatchMetricPrinter returns a BatchMetricPrinter.
func NewBatchMetricPrinter(batchFreq, nPrints int) *BatchMetricPrinter {
	return &BatchMetricPrinter{Base: NewBase(OrderPrinter), BatchFreq: batchFreq, NPrints: nPrints}
}

// Prints returns the number of lines logged since train begin.
func (p *BatchMetricPrinter) Prints() int {
	return p.prints
}

func (p *BatchMetricPrinter) OnTrainBegin(*Trainer, Run) error {
	p.prints = 0
	return nil
}

func (p *BatchMetricPrinter) OnBatchEnd(t *Trainer, b *BatchState) error {
	if p.BatchFreq > 0 && b.Global%p.BatchFreq == 0 {
		p.prints++
		kv := []any{"batch", b.Global}
		for _, k := range t.Stats().Keys() {
			if v, ok := t.Stats().Last(k); ok {
				kv = append(kv, k, round(v, 4))
			}
		}
		t.Logger().Info("Batch metrics", kv...)
	}
	if p.NPrints > 0 && p.prints >= p.NPrints {
		t.RemoveCallback(Name(p))
	}
	return nil
}

func round(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
