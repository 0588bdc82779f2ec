package schedule_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kindle/internal/schedule"
)

// TestAnneal starts at lr1 and decreases monotonically towards lr2.
func TestAnneal(t *testing.T) {
	lrs := schedule.Anneal(4, 1.0, 0.0)
	require.Len(t, lrs, 4)
	assert.InDelta(t, 1.0, lrs[0], 1e-12)
	assert.InDelta(t, (1+math.Cos(math.Pi/4))/2, lrs[1], 1e-12)
	assert.InDelta(t, 0.5, lrs[2], 1e-12)
	for i := 1; i < len(lrs); i++ {
		assert.Less(t, lrs[i], lrs[i-1])
	}
	assert.Empty(t, schedule.Anneal(0, 1, 0))
}

// TestCosine covers length, endpoints and the warm-up peak.
func TestCosine(t *testing.T) {
	for _, total := range []int{1, 7, 10, 100, 333} {
		lrs := schedule.Cosine(total, 0.3, 0.01, 0.1)
		assert.Len(t, lrs, total, "total=%d", total)
	}

	lrs := schedule.Cosine(100, 0.3, 0.01, 0.1)
	assert.InDelta(t, 0.01, lrs[0], 1e-12)
	assert.InDelta(t, 0.1, lrs[30], 1e-12)
	// The cool-down stops one step short of minLR.
	assert.InDelta(t, 0.01, lrs[99], 1e-4)
	for i, lr := range lrs {
		assert.GreaterOrEqual(t, lr, 0.01-1e-12, "index %d", i)
		assert.LessOrEqual(t, lr, 0.1+1e-15, "index %d", i)
	}
	for i := 1; i <= 30; i++ {
		assert.GreaterOrEqual(t, lrs[i], lrs[i-1])
	}
	for i := 31; i < 100; i++ {
		assert.Less(t, lrs[i], lrs[i-1])
	}

	assert.Nil(t, schedule.Cosine(0, 0.3, 0.01, 0.1))
}

// TestCosineRestarts scales each cycle by 1/(1+decay*k).
func TestCosineRestarts(t *testing.T) {
	// 3 epochs of 4 batches, 1-epoch cycles.
	lrs := schedule.CosineRestarts(12, 4, 1, 1.0, 0.0, 1.0)
	require.Len(t, lrs, 12)
	assert.InDelta(t, 1.0, lrs[0], 1e-12)
	assert.InDelta(t, 0.5, lrs[4], 1e-12)
	assert.InDelta(t, 1.0/3, lrs[8], 1e-12)
	assert.InDelta(t, lrs[1]/2, lrs[5], 1e-12)

	// Partial last cycle is truncated to the planned total.
	lrs = schedule.CosineRestarts(10, 4, 1, 0, 0.0, 1.0)
	require.Len(t, lrs, 10)
	assert.InDelta(t, 1.0, lrs[8], 1e-12)

	assert.True(t, schedule.ShortCycle(8, 4, 5))
	assert.False(t, schedule.ShortCycle(20, 4, 5))
}

// TestSawtooth walks through improvement, patience and decay phases.
func TestSawtooth(t *testing.T) {
	s := schedule.NewSawtooth(0.1, 0.5, 2)

	lr := s.Next(1.0, 1.0) // first loss is always an improvement
	assert.InDelta(t, 1.1, lr, 1e-12)
	assert.Equal(t, 0, s.SinceImprovement())

	lr = s.Next(0.9, lr) // improvement
	assert.InDelta(t, 1.2, lr, 1e-12)

	lr = s.Next(2.0, lr) // since=1, add/2
	assert.InDelta(t, 1.25, lr, 1e-12)
	assert.Equal(t, 1, s.SinceImprovement())

	lr = s.Next(2.0, lr) // since=2, add/3
	assert.InDelta(t, 1.25+0.1/3, lr, 1e-12)

	lr = s.Next(2.0, lr) // patience exhausted, multiply
	assert.InDelta(t, (1.25+0.1/3)*0.5, lr, 1e-12)
	assert.Equal(t, 3, s.SinceImprovement())

	lr = s.Next(0.9, lr) // ties count as improvement
	assert.Equal(t, 0, s.SinceImprovement())
	best, ok := s.Best()
	require.True(t, ok)
	assert.Equal(t, 0.9, best)

	s.Reset()
	_, ok = s.Best()
	assert.False(t, ok)
	assert.Greater(t, lr, 0.0)
}
