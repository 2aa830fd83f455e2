// Package worker runs independent jobs on a bounded pool of goroutines and
// collects their results in submission order.
package worker

import (
	"context"
	"runtime"
	"sync"
)

// sequentialThreshold is the batch size below which jobs run inline.
const sequentialThreshold = 2

// Func processes one item.
type Func[T, R any] func(ctx context.Context, item T) (R, error)

// Result is the outcome of one job.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Pool bounds the number of concurrent jobs.
type Pool struct {
	workers int
}

// NewPool creates a pool. A non-positive count means runtime.NumCPU().
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Run applies fn to every item and returns one Result per item, in item
// order. Items not started before ctx is done carry ctx.Err().
func Run[T, R any](ctx context.Context, p *Pool, items []T, fn Func[T, R]) []Result[R] {
	results := make([]Result[R], len(items))
	for i := range results {
		results[i].Index = i
	}
	if len(items) == 0 {
		return results
	}

	if p.workers == 1 || len(items) <= sequentialThreshold {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				continue
			}
			results[i].Value, results[i].Err = fn(ctx, item)
		}
		return results
	}

	n := p.workers
	if n > len(items) {
		n = len(items)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(n)
	for w := 0; w < n; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i].Err = err
					continue
				}
				results[i].Value, results[i].Err = fn(ctx, items[i])
			}
		}()
	}
	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

// Map is Run returning the values alone. It fails with the error of the
// lowest-indexed failing item.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn Func[T, R]) ([]R, error) {
	results := Run(ctx, p, items, fn)
	out := make([]R, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		out[i] = r.Value
	}
	return out, nil
}
