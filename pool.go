// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tilegrid

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"
)

// Pool is a fixed-size pool of persistent worker goroutines. It runs
// batches of independent tasks and returns when the whole batch is done;
// batches submitted one after another never overlap.
//
// Usage:
//
//	pool := tilegrid.NewPool(0)
//	defer pool.Close()
//
//	err := pool.RunAll(ctx, "returns", n, func(i int) error {
//	    computeRow(i)
//	    return nil
//	})
type Pool struct {
	numWorkers int
	tasks      chan func()
	wg         sync.WaitGroup
	closeOnce  sync.Once

	// mu orders task submission against Close
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a pool with the given number of workers.
// If workers <= 0, uses runtime.NumCPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := &Pool{
		numWorkers: workers,
		tasks:      make(chan func(), workers*2),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// worker processes tasks from the queue
func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// NumWorkers returns the number of workers in the pool
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close shuts down the pool after pending work completes.
// Calling Close multiple times is safe. A RunAll racing with Close either
// finishes its batch or returns ErrPoolClosed.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

// RunAll executes task(i) for every i in [0, n) and blocks until all of
// them have finished. Units are handed out by atomic work stealing, so no
// ordering holds between them; they may only write disjoint slots.
//
// A failing unit (returned error or panic) is logged and the remaining
// units still run, so a batch never stalls half-way. The first failure is
// then returned wrapped as a worker-failure error.
func (p *Pool) RunAll(ctx context.Context, op string, n int, task func(i int) error) error {
	if n <= 0 {
		return nil
	}
	var (
		next     atomic.Int64
		mu       sync.Mutex
		firstErr error
		firstIdx int
		wg       sync.WaitGroup
	)

	fail := func(i int, err error) {
		klog.ErrorS(err, "pool task failed", "op", op, "task", i)
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			firstIdx = i
		}
		mu.Unlock()
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	workers := min(p.numWorkers, n)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		p.tasks <- func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= n || ctx.Err() != nil {
					return
				}
				if err := runTask(task, i); err != nil {
					fail(i, err)
				}
			}
		}
	}
	p.mu.RUnlock()
	wg.Wait()

	if firstErr != nil {
		return NewWorkerFailureError(op, firstIdx, firstErr)
	}
	if err := ctx.Err(); err != nil {
		return NewExecutionError(op, "batch cancelled", err)
	}
	return nil
}

// ParallelFor executes fn over [0, n) split into contiguous chunks of
// chunk units, the last one possibly shorter. A chunk <= 0 means one chunk
// per worker. Blocks until all chunks complete.
func (p *Pool) ParallelFor(ctx context.Context, op string, n, chunk int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}
	if chunk <= 0 {
		chunk = ceilDiv(n, min(p.numWorkers, n))
	}
	return p.RunAll(ctx, op, ceilDiv(n, chunk), func(c int) error {
		start := c * chunk
		return fn(start, min(start+chunk, n))
	})
}

func runTask(task func(int) error, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return task(i)
}
