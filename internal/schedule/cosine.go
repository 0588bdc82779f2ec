// Package schedule computes learning-rate schedules.
//
// Cosine and CosineRestarts precompute one rate per global batch index.
// Sawtooth adapts the rate online from the most recent batch loss.
package schedule

import (
	"math"
)

// Anneal returns n rates moving from lr1 towards lr2 along a half cosine:
//
//	lr[i] = lr2 + (lr1-lr2) * (1 + cos(pi*i/n)) / 2
//
// The first rate is lr1; lr2 is approached but not reached.
func Anneal(n int, lr1, lr2 float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lr2 + (lr1-lr2)*(1+math.Cos(math.Pi*float64(i)/float64(n)))/2
	}
	return out
}

// Cosine returns total rates: a warm-up of int(warm*total) batches rising
// from minLR to maxLR, then a cool-down over the remaining batches decaying
// back towards minLR.
func Cosine(total int, warm, minLR, maxLR float64) []float64 {
	if total <= 0 {
		return nil
	}
	warmN := int(warm * float64(total))
	warmN = min(max(warmN, 0), total)
	out := make([]float64, 0, total)
	out = append(out, Anneal(warmN, minLR, maxLR)...)
	return append(out, Anneal(total-warmN, maxLR, minLR)...)
}

// CosineRestarts returns total rates made of repeated cycles of
// cycleLen epochs. Each cycle decays from maxLR towards minLR; cycle k is
// divided by (1 + decay*k).
func CosineRestarts(total, batchesPerEpoch, cycleLen int, decay, minLR, maxLR float64) []float64 {
	cycleBatches := cycleLen * batchesPerEpoch
	if total <= 0 || cycleBatches <= 0 {
		return nil
	}
	cycles := (total + cycleBatches - 1) / cycleBatches
	base := Anneal(cycleBatches, maxLR, minLR)
	out := make([]float64, 0, cycles*cycleBatches)
	for k := range cycles {
		scale := 1 / (1 + decay*float64(k))
		for _, lr := range base {
			out = append(out, lr*scale)
		}
	}
	return out[:total]
}

// ShortCycle reports whether a restart schedule covers less than one
// full cycle.
func ShortCycle(total, batchesPerEpoch, cycleLen int) bool {
	return total < cycleLen*batchesPerEpoch
}
