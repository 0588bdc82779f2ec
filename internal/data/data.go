// Package data provides mini-batch iteration for the trainer.
//
// A Loader is a finite, restartable sequence of batches: every call to
// Batches starts a fresh pass over the data.
package data

import (
	"iter"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/tensor"
)

// ErrRowMismatch is returned when dataset tensors disagree on row count.
var ErrRowMismatch = errors.New("dataset tensors have different row counts")

// Batch is one mini-batch: one or more model inputs and the labels.
type Batch struct {
	Inputs []*tensor.Tensor
	Labels *tensor.Tensor
}

// Size returns the number of examples in the batch.
func (b Batch) Size() int {
	return b.Labels.Rows()
}

// Loader produces mini-batches.
type Loader interface {
	// Len returns the number of batches per pass.
	Len() int
	// BatchSize returns the nominal batch size.
	BatchSize() int
	// Batches yields one pass over the data.
	Batches() iter.Seq[Batch]
}

// TensorDataset is an in-memory dataset of row-aligned tensors.
type TensorDataset struct {
	inputs []*tensor.Tensor
	labels *tensor.Tensor
}

// NewTensorDataset creates a dataset. Every input must have as many rows
// as labels.
func NewTensorDataset(labels *tensor.Tensor, inputs ...*tensor.Tensor) (*TensorDataset, error) {
	if len(inputs) == 0 {
		return nil, errors.New("dataset needs at least one input tensor")
	}
	for i, x := range inputs {
		if x.Rows() != labels.Rows() {
			return nil, errors.Wrapf(ErrRowMismatch, "input %d has %d rows, labels have %d", i, x.Rows(), labels.Rows())
		}
	}
	return &TensorDataset{inputs: inputs, labels: labels}, nil
}

// Len returns the number of examples.
func (d *TensorDataset) Len() int {
	return d.labels.Rows()
}

// Gather returns the examples at indices as one batch.
func (d *TensorDataset) Gather(indices []int) Batch {
	inputs := make([]*tensor.Tensor, len(d.inputs))
	for i, x := range d.inputs {
		inputs[i] = x.Gather(indices)
	}
	return Batch{Inputs: inputs, Labels: d.labels.Gather(indices)}
}

// Config configures a DataLoader.
type Config struct {
	BatchSize int    // Examples per batch (default: 32)
	Shuffle   bool   // Reshuffle at the start of every pass
	Seed      uint64 // Seed for shuffling
	DropLast  bool   // Skip the final partial batch
}

// DataLoader slices a TensorDataset into batches.
type DataLoader struct {
	ds   *TensorDataset
	cfg  Config
	rng  *rand.Rand
	perm []int
}

// NewDataLoader creates a loader over ds.
func NewDataLoader(ds *TensorDataset, cfg Config) *DataLoader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	perm := make([]int, ds.Len())
	for i := range perm {
		perm[i] = i
	}
	return &DataLoader{
		ds:   ds,
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		perm: perm,
	}
}

// Len returns the number of batches per pass.
func (l *DataLoader) Len() int {
	n := l.ds.Len()
	if l.cfg.DropLast {
		return n / l.cfg.BatchSize
	}
	return (n + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// BatchSize returns the configured batch size.
func (l *DataLoader) BatchSize() int {
	return l.cfg.BatchSize
}

// NumExamples returns the number of examples in the dataset.
func (l *DataLoader) NumExamples() int {
	return l.ds.Len()
}

// Dataset returns the underlying dataset.
func (l *DataLoader) Dataset() *TensorDataset {
	return l.ds
}

// Batches yields one pass over the dataset.
func (l *DataLoader) Batches() iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		if l.cfg.Shuffle {
			l.rng.Shuffle(len(l.perm), func(i, j int) {
				l.perm[i], l.perm[j] = l.perm[j], l.perm[i]
			})
		}
		n := len(l.perm)
		for b := range l.Len() {
			start := b * l.cfg.BatchSize
			end := min(start+l.cfg.BatchSize, n)
			if !yield(l.ds.Gather(l.perm[start:end])) {
				return
			}
		}
	}
}

type subset struct {
	Loader
	n int
}

// Subset returns a loader yielding only the first n batches of each pass
// of l. It is handy for quick smoke runs.
func Subset(l Loader, n int) Loader {
	return &subset{Loader: l, n: min(n, l.Len())}
}

func (s *subset) Len() int {
	return s.n
}

func (s *subset) Batches() iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		if s.n <= 0 {
			return
		}
		i := 0
		for b := range s.Loader.Batches() {
			if !yield(b) {
				return
			}
			i++
			if i >= s.n {
				return
			}
		}
	}
}

// Split divides ds into a training and a validation dataset. The first
// round(frac*len) examples of a seeded permutation become validation.
func Split(ds *TensorDataset, frac float64, seed uint64) (train, val *TensorDataset) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	perm := rng.Perm(ds.Len())
	nVal := int(frac*float64(ds.Len()) + 0.5)
	v := ds.Gather(perm[:nVal])
	t := ds.Gather(perm[nVal:])
	return &TensorDataset{inputs: t.Inputs, labels: t.Labels}, &TensorDataset{inputs: v.Inputs, labels: v.Labels}
}
