// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train provides a callback-driven training loop.
//
// # Overview
//
// A Trainer owns a model, its optimizer, data loaders and a chain of
// callbacks. Fit runs epochs of mini-batches and fires lifecycle events;
// statistics reduction, logging, learning-rate scheduling, early
// stopping, checkpointing and uploads are all callbacks ordered by
// priority. The built-in callbacks and their default orders:
//
//	BasicConfig            0   optimizer setup, train/eval mode
//	CosineScheduler        3   precomputed warm-up and cool-down
//	SawtoothScheduler      3   loss-driven additive/multiplicative rate
//	StatsHandler           5   weighted epoch means
//	MetricPrinter          10  progress bar, epoch table, train.log
//	BatchMetricPrinter     10  early per-batch logging
//	EarlyStopper           15  stop when a metric plateaus
//	PerformanceThreshold   15  stop runs on the wrong side of a threshold
//	ModelCheckpoint        25  save on validation improvement
//	ModelUnfreezer         25  scheduled gradual unfreezing
//	MetricHistory          90  history.csv and history.png
//	Uploader               95  mirror the output directory
//
// # Basic Usage
//
//	trainer, err := train.New(model, trainLoader, valLoader, nn.BCEWithLogitsLoss, train.Config{
//	    Mode:           train.ModeBinary,
//	    OutDir:         "runs/demo",
//	    LastActivation: tensor.Sigmoid,
//	    Metrics:        []train.Metric{train.Accuracy, train.ROCAUC},
//	    Callbacks: []train.Callback{
//	        train.NewCosineScheduler(),
//	        train.NewEarlyStopper("loss", train.Minimize, 0, 3),
//	        train.NewModelCheckpoint("roc_auc", train.Maximize),
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	err = trainer.Fit(ctx, train.Run{Epochs: 10, LRs: []float64{3e-3}, LRMult: 0.1})
//
// Cancelling the context interrupts training gracefully: OnTrainEnd still
// runs once and Fit returns nil.
//
// # Custom callbacks
//
// Embed Base to inherit no-op hooks and override the ones you need:
//
//	type gradClip struct{ train.Base }
//
//	func (g *gradClip) AfterBackward(t *train.Trainer, b *train.BatchState) error {
//	    ...
//	}
package train
