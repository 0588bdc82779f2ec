// Package parallel provides bounded fan-out helpers for I/O-bound work such
// as mirroring training artifacts.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled    bool // Whether parallel execution is enabled.
	NumWorkers int  // Number of worker goroutines to use.
	MinItems   int  // Below this many items, run sequentially.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinItems:   2,
	}
}

// ForEach executes f(ctx, i) for i in [0, n) on at most cfg.NumWorkers
// goroutines and returns the first error.
//
// After the first failure the context passed to f is canceled and no new
// items are started. Falls back to sequential execution if parallelism is
// disabled or n is too small.
func ForEach(ctx context.Context, n int, f func(ctx context.Context, i int) error, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < cfg.MinItems {
		// Sequential fallback.
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	items := make(chan int)
	workers := min(cfg.NumWorkers, n)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range items {
				if ctx.Err() != nil {
					continue
				}
				if err := f(ctx, i); err != nil {
					fail(err)
				}
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case items <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(items)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
