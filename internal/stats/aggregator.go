// Package stats accumulates per-batch training statistics and reduces them
// to epoch-level values.
//
// An Aggregator holds one series per statistic ("loss" plus one per metric)
// and a parallel series of batch sizes. Reduce replaces every series with
// its batch-size-weighted mean, so a short final batch does not bias the
// epoch value.
package stats

import (
	"slices"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Reserved statistic names.
const (
	LossKey      = "loss"
	BatchSizeKey = "batch_size"
)

var (
	// ErrAlreadyReduced is returned when recording into or reducing an
	// aggregator that has already been reduced this epoch.
	ErrAlreadyReduced = errors.New("statistics already reduced")

	// ErrLengthMismatch is returned by Reduce when a series does not have
	// one value per recorded batch.
	ErrLengthMismatch = errors.New("series length does not match batch count")
)

// Aggregator collects per-batch statistics for one epoch.
//
// The zero value is ready to use.
type Aggregator struct {
	series  map[string][]float64
	reduced map[string]float64
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record appends one batch worth of statistics.
func (a *Aggregator) Record(loss float64, batchSize int, metrics map[string]float64) error {
	if a.reduced != nil {
		return ErrAlreadyReduced
	}
	a.append(LossKey, loss)
	a.append(BatchSizeKey, float64(batchSize))
	for name, v := range metrics {
		a.append(name, v)
	}
	return nil
}

func (a *Aggregator) append(name string, v float64) {
	if a.series == nil {
		a.series = make(map[string][]float64)
	}
	a.series[name] = append(a.series[name], v)
}

// Reduce replaces every series with its batch-size-weighted mean and drops
// the batch-size series. It may be called once per epoch.
func (a *Aggregator) Reduce() error {
	if a.reduced != nil {
		return ErrAlreadyReduced
	}
	weights := a.series[BatchSizeKey]
	reduced := make(map[string]float64, len(a.series))
	for name, values := range a.series {
		if name == BatchSizeKey {
			continue
		}
		if len(values) != len(weights) {
			return errors.Wrapf(ErrLengthMismatch, "%q has %d values for %d batches", name, len(values), len(weights))
		}
		reduced[name] = stat.Mean(values, weights)
	}
	a.reduced = reduced
	a.series = nil
	return nil
}

// Reduced reports whether Reduce has run since the last Clear.
func (a *Aggregator) Reduced() bool {
	return a.reduced != nil
}

// Value returns the reduced value of name.
func (a *Aggregator) Value(name string) (float64, bool) {
	v, ok := a.reduced[name]
	return v, ok
}

// Last returns the most recent per-batch value of name. It only reports
// values before reduction.
func (a *Aggregator) Last(name string) (float64, bool) {
	values := a.series[name]
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}

// Series returns a copy of the per-batch values of name.
func (a *Aggregator) Series(name string) []float64 {
	return slices.Clone(a.series[name])
}

// Batches returns the number of batches recorded so far.
func (a *Aggregator) Batches() int {
	return len(a.series[BatchSizeKey])
}

// Snapshot returns a copy of the reduced values.
func (a *Aggregator) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(a.reduced))
	for k, v := range a.reduced {
		out[k] = v
	}
	return out
}

// Keys returns the statistic names, "loss" first and the rest sorted.
// The batch-size series is never included.
func (a *Aggregator) Keys() []string {
	var names []string
	if a.reduced != nil {
		for k := range a.reduced {
			names = append(names, k)
		}
	} else {
		for k := range a.series {
			if k != BatchSizeKey {
				names = append(names, k)
			}
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == LossKey || names[j] == LossKey {
			return names[i] == LossKey && names[j] != LossKey
		}
		return names[i] < names[j]
	})
	return names
}

// Len returns the number of statistics tracked, excluding batch sizes.
func (a *Aggregator) Len() int {
	return len(a.Keys())
}

// Clear discards everything, returning the aggregator to its zero state.
func (a *Aggregator) Clear() {
	a.series = nil
	a.reduced = nil
}
