package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

func TestNewPoolDefaults(t *testing.T) {
	if NewPool(0).Workers() <= 0 {
		t.Error("NewPool(0) should default to the CPU count")
	}
	if got := NewPool(3).Workers(); got != 3 {
		t.Errorf("Workers() = %d, want 3", got)
	}
}

func TestRunPreservesOrder(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		items   int
	}{
		{"empty", 4, 0},
		{"inline", 4, 2},
		{"single worker", 1, 10},
		{"parallel", 4, 100},
		{"more workers than items", 16, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.items)
			for i := range items {
				items[i] = i
			}
			results := Run(context.Background(), NewPool(tt.workers), items, func(_ context.Context, n int) (string, error) {
				return fmt.Sprintf("item-%d", n), nil
			})
			if len(results) != tt.items {
				t.Fatalf("got %d results, want %d", len(results), tt.items)
			}
			for i, r := range results {
				if r.Index != i || r.Err != nil || r.Value != fmt.Sprintf("item-%d", i) {
					t.Errorf("results[%d] = %+v", i, r)
				}
			}
		})
	}
}

func TestRunConcurrencyBound(t *testing.T) {
	var active, peak atomic.Int32
	items := make([]int, 50)

	Run(context.Background(), NewPool(3), items, func(_ context.Context, _ int) (int, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		active.Add(-1)
		return 0, nil
	})

	if peak.Load() > 3 {
		t.Errorf("peak concurrency %d exceeds pool size 3", peak.Load())
	}
}

func TestMapReturnsFirstError(t *testing.T) {
	errBad := errors.New("bad item")
	items := []int{0, 1, 2, 3, 4, 5}

	_, err := Map(context.Background(), NewPool(2), items, func(_ context.Context, n int) (int, error) {
		if n == 3 || n == 5 {
			return 0, fmt.Errorf("item %d: %w", n, errBad)
		}
		return n * n, nil
	})
	if !errors.Is(err, errBad) {
		t.Fatalf("Map error = %v, want errBad", err)
	}
	if err.Error() != "item 3: bad item" {
		t.Errorf("Map error = %q, want the lowest index", err)
	}

	out, err := Map(context.Background(), NewPool(2), items, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if out[5] != 25 {
		t.Errorf("out[5] = %d, want 25", out[5])
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results := Run(ctx, NewPool(4), make([]int, 10), func(_ context.Context, _ int) (int, error) {
		calls.Add(1)
		return 0, nil
	})
	if calls.Load() != 0 {
		t.Errorf("fn called %d times after cancellation", calls.Load())
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("results[%d].Err = %v, want context.Canceled", r.Index, r.Err)
		}
	}
}
