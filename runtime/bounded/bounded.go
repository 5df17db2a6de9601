// Package bounded implements the fan-out scheduling contract shared by the
// loop and parallel steps: a bounded number of concurrent workers, a launch
// stagger, fail-fast cancellation, and input-order result aggregation
// regardless of which worker finishes first.
package bounded

import (
	"context"
	"sync"
	"time"
)

// Options configures a Run call.
type Options struct {
	// MaxConcurrency caps the number of in-flight workers. Zero or
	// negative means unbounded (one worker per item).
	MaxConcurrency int
	// Delay is the pause between successive worker launches (not between
	// completions).
	Delay time.Duration
	// FailFast cancels the context handed to outstanding work as soon as
	// one worker fails; items not yet launched are recorded with the
	// cancellation error instead of running, and Run still waits for
	// in-flight workers to return. When false, every worker runs to
	// completion and each error is recorded at its own index.
	FailFast bool
}

// Work is run once per item index; it must itself honor ctx cancellation.
type Work func(ctx context.Context, index int) (any, error)

// Result is a one-per-item outcome, always present at its input index.
type Result struct {
	Value any
	Err   error
}

// Run executes work for indices [0, n) under opts and returns a
// slice of Results aligned with the input index — Results[i] always holds
// the outcome of the i-th item, regardless of completion order.
func Run(ctx context.Context, n int, opts Options, work Work) []Result {
	results := make([]Result, n)
	if n == 0 {
		return results
	}

	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 || maxConcurrency > n {
		maxConcurrency = n
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	var failOnce sync.Once

	for i := 0; i < n; i++ {
		if opts.Delay > 0 && i > 0 {
			select {
			case <-time.After(opts.Delay):
			case <-runCtx.Done():
			}
		}

		if runCtx.Err() != nil && opts.FailFast {
			results[i] = Result{Err: runCtx.Err()}
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			value, err := work(runCtx, idx)
			results[idx] = Result{Value: value, Err: err}

			if err != nil && opts.FailFast {
				failOnce.Do(cancel)
			}
		}(i)
	}

	wg.Wait()
	return results
}
