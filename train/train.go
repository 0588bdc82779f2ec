// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package train

import (
	"github.com/born-ml/kindle/internal/data"
	"github.com/born-ml/kindle/internal/nn"
	"github.com/born-ml/kindle/internal/stats"
	"github.com/born-ml/kindle/internal/train"
	"github.com/born-ml/kindle/internal/upload"
)

// Trainer drives model training.
type Trainer = train.Trainer

// Config holds configuration for a Trainer.
type Config = train.Config

// Run holds the arguments of one Fit call.
type Run = train.Run

// New creates a trainer with BasicConfig, StatsHandler and MetricPrinter
// registered.
func New(model nn.Module, trainLoader, valLoader data.Loader, loss nn.LossFunc, cfg Config) (*Trainer, error) {
	return train.New(model, trainLoader, valLoader, loss, cfg)
}

// Callbacks

// Callback is the lifecycle hook contract.
type Callback = train.Callback

// Base provides no-op hooks for embedding.
type Base = train.Base

// NewBase returns a Base with the given order.
func NewBase(order int) Base { return train.NewBase(order) }

// BatchState describes the batch being processed.
type BatchState = train.BatchState

// Chain is an ordered callback registry.
type Chain = train.Chain

// Name returns the registry name of cb.
func Name(cb Callback) string { return train.Name(cb) }

// Goal is the direction in which a metric improves.
type Goal = train.Goal

// Goals.
const (
	Minimize = train.Minimize
	Maximize = train.Maximize
)

// ParseGoal parses "min" or "max".
func ParseGoal(s string) (Goal, error) { return train.ParseGoal(s) }

// Unit selects what Unfreeze counts.
type Unit = train.Unit

// Unfreeze units.
const (
	Groups = train.Groups
	Layers = train.Layers
)

// UnfreezeMode selects the counter a ModelUnfreezer schedule uses.
type UnfreezeMode = train.UnfreezeMode

// Unfreeze modes.
const (
	ByEpoch = train.ByEpoch
	ByBatch = train.ByBatch
)

// Split selects the statistics PerformanceThreshold watches.
type Split = train.Split

// Splits.
const (
	SplitVal   = train.SplitVal
	SplitTrain = train.SplitTrain
)

type (
	BasicConfig          = train.BasicConfig
	StatsHandler         = train.StatsHandler
	MetricPrinter        = train.MetricPrinter
	BatchMetricPrinter   = train.BatchMetricPrinter
	EarlyStopper         = train.EarlyStopper
	PerformanceThreshold = train.PerformanceThreshold
	ModelCheckpoint      = train.ModelCheckpoint
	ModelUnfreezer       = train.ModelUnfreezer
	MetricHistory        = train.MetricHistory
	CosineScheduler      = train.CosineScheduler
	SawtoothScheduler    = train.SawtoothScheduler
	Uploader             = train.Uploader
)

// NewMetricPrinter returns a MetricPrinter showing the batch loss.
func NewMetricPrinter() *MetricPrinter { return train.NewMetricPrinter() }

// NewBatchMetricPrinter logs batch statistics every batchFreq batches,
// nPrints times.
func NewBatchMetricPrinter(batchFreq, nPrints int) *BatchMetricPrinter {
	return train.NewBatchMetricPrinter(batchFreq, nPrints)
}

// NewEarlyStopper stops training after patience epochs without improvement.
func NewEarlyStopper(metric string, goal Goal, minImprovement float64, patience int) *EarlyStopper {
	return train.NewEarlyStopper(metric, goal, minImprovement, patience)
}

// NewPerformanceThreshold stops runs whose metric misses threshold.
func NewPerformanceThreshold(metric string, goal Goal, threshold float64, skipEpochs int) *PerformanceThreshold {
	return train.NewPerformanceThreshold(metric, goal, threshold, skipEpochs)
}

// NewModelCheckpoint saves the trainer whenever metric improves.
func NewModelCheckpoint(metric string, goal Goal) *ModelCheckpoint {
	return train.NewModelCheckpoint(metric, goal)
}

// NewModelUnfreezer unfreezes the model on a schedule.
func NewModelUnfreezer(schedule map[int]int, unit Unit, mode UnfreezeMode) *ModelUnfreezer {
	return train.NewModelUnfreezer(schedule, unit, mode)
}

// NewMetricHistory records per-epoch statistics.
func NewMetricHistory() *MetricHistory { return train.NewMetricHistory() }

// NewCosineScheduler returns a warm-up then cool-down scheduler.
func NewCosineScheduler() *CosineScheduler { return train.NewCosineScheduler() }

// NewSawtoothScheduler returns a loss-driven scheduler.
func NewSawtoothScheduler() *SawtoothScheduler { return train.NewSawtoothScheduler() }

// NewUploader mirrors the output directory through u at train end.
func NewUploader(u upload.Uploader) *Uploader { return train.NewUploader(u) }

// NewDirUploader returns an uploader copying into dest under prefix.
func NewDirUploader(dest, prefix string) *upload.DirUploader {
	return upload.NewDirUploader(dest, prefix)
}

// Statistics and metrics

// Stats holds per-batch or reduced statistics.
type Stats = stats.Aggregator

// Mode is the task type.
type Mode = stats.Mode

// Task modes.
const (
	ModeBinary     = stats.ModeBinary
	ModeMulticlass = stats.ModeMulticlass
	ModeRegression = stats.ModeRegression
)

// Metric is a named metric with its declared input form.
type Metric = stats.Metric

// Built-in metrics.
var (
	Accuracy  = stats.Accuracy
	Precision = stats.Precision
	Recall    = stats.Recall
	F1        = stats.F1
	MSE       = stats.MSE
	MAE       = stats.MAE
	ROCAUC    = stats.ROCAUC
)

// Builtin looks up a built-in metric by name.
func Builtin(name string) (Metric, bool) { return stats.Builtin(name) }

// Errors.
var (
	ErrNoOptimizer     = train.ErrNoOptimizer
	ErrUnknownCallback = train.ErrUnknownCallback
	ErrUnknownField    = train.ErrUnknownField
	ErrNoOutDir        = train.ErrNoOutDir
)
