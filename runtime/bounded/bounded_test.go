package bounded

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPreservesInputOrderRegardlessOfCompletionOrder(t *testing.T) {
	n := 5
	results := Run(context.Background(), n, Options{MaxConcurrency: n}, func(ctx context.Context, i int) (any, error) {
		// Reverse-proportional sleep so later indices finish first.
		time.Sleep(time.Duration(n-i) * time.Millisecond)
		return i, nil
	})

	for i, r := range results {
		if r.Value != i {
			t.Fatalf("results[%d] = %v, want %d", i, r.Value, i)
		}
	}
}

func TestRunRespectsMaxConcurrency(t *testing.T) {
	var current, maxSeen int32
	n := 20
	Run(context.Background(), n, Options{MaxConcurrency: 3}, func(ctx context.Context, i int) (any, error) {
		c := atomic.AddInt32(&current, 1)
		for {
			m := atomic.LoadInt32(&maxSeen)
			if c <= m || atomic.CompareAndSwapInt32(&maxSeen, m, c) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return nil, nil
	})

	if maxSeen > 3 {
		t.Fatalf("max concurrent = %d, want <= 3", maxSeen)
	}
}

func TestRunFailFastCancelsPending(t *testing.T) {
	var ran int32
	results := Run(context.Background(), 10, Options{MaxConcurrency: 1, FailFast: true}, func(ctx context.Context, i int) (any, error) {
		atomic.AddInt32(&ran, 1)
		if i == 2 {
			return nil, errors.New("boom")
		}
		return nil, nil
	})

	if results[2].Err == nil {
		t.Fatalf("expected error at index 2")
	}
	if ran == 10 {
		t.Fatalf("fail_fast did not prevent all iterations from running")
	}
}

func TestRunNoFailFastRunsAllToCompletion(t *testing.T) {
	results := Run(context.Background(), 5, Options{MaxConcurrency: 5, FailFast: false}, func(ctx context.Context, i int) (any, error) {
		if i%2 == 0 {
			return nil, errors.New("fail")
		}
		return i, nil
	})

	for i, r := range results {
		if i%2 == 0 && r.Err == nil {
			t.Fatalf("expected error at even index %d", i)
		}
		if i%2 == 1 && r.Err != nil {
			t.Fatalf("unexpected error at odd index %d: %v", i, r.Err)
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	results := Run(context.Background(), 0, Options{}, func(ctx context.Context, i int) (any, error) {
		t.Fatalf("work should not be invoked for empty input")
		return nil, nil
	})
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}
}
