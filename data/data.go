// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package data provides mini-batch loaders for the trainer.
//
// A Loader yields an ordered, finite and restartable sequence of batches:
// every call to Batches starts a new pass. TensorDataset and DataLoader
// cover in-memory data; any other source only needs to implement Loader.
//
//	ds, err := data.NewTensorDataset(labels, features)
//	if err != nil {
//	    return err
//	}
//	train, val := data.Split(ds, 0.2, 42)
//	loader := data.NewDataLoader(train, data.Config{BatchSize: 32, Shuffle: true, Seed: 1})
package data

import (
	"github.com/born-ml/kindle/internal/data"
	"github.com/born-ml/kindle/internal/tensor"
)

// Batch is one mini-batch: model inputs and labels.
type Batch = data.Batch

// Loader produces mini-batches.
type Loader = data.Loader

// TensorDataset holds aligned input and label tensors.
type TensorDataset = data.TensorDataset

// Config configures a DataLoader.
type Config = data.Config

// DataLoader batches a TensorDataset.
type DataLoader = data.DataLoader

// ErrRowMismatch is returned when inputs and labels disagree on rows.
var ErrRowMismatch = data.ErrRowMismatch

// NewTensorDataset creates a dataset. All tensors share the first dimension.
func NewTensorDataset(labels *tensor.Tensor, inputs ...*tensor.Tensor) (*TensorDataset, error) {
	return data.NewTensorDataset(labels, inputs...)
}

// NewDataLoader creates a loader over ds.
func NewDataLoader(ds *TensorDataset, cfg Config) *DataLoader {
	return data.NewDataLoader(ds, cfg)
}

// Split divides ds into training and validation datasets.
func Split(ds *TensorDataset, frac float64, seed uint64) (train, val *TensorDataset) {
	return data.Split(ds, frac, seed)
}

// Subset limits l to its first n batches per pass.
func Subset(l Loader, n int) Loader {
	return data.Subset(l, n)
}
