// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tilegrid

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// GroupedExecutor emulates a GPU on the CPU. Groups are split across one
// goroutine per core; inside a group, each phase runs for every work-item
// before the next phase starts, which is exactly the ordering a barrier
// between phases guarantees.
type GroupedExecutor struct {
	workers      int
	maxGroupSize int
}

// NewGroupedExecutor creates an executor for the given device.
// A nil device selects DefaultDevice.
func NewGroupedExecutor(dev *Device) *GroupedExecutor {
	if dev == nil {
		dev = DefaultDevice()
	}
	return &GroupedExecutor{
		workers:      max(dev.NumCores, 1),
		maxGroupSize: dev.MaxGroupSize,
	}
}

// Name implements Executor
func (e *GroupedExecutor) Name() string { return "grouped" }

// MaxGroupSize implements Executor
func (e *GroupedExecutor) MaxGroupSize() int { return e.maxGroupSize }

// Execute implements Executor
func (e *GroupedExecutor) Execute(ctx context.Context, k Kernel, r Range) error {
	if err := r.Validate(); err != nil {
		return err
	}

	grid := r.Groups()
	gridSize := grid.Size()
	phases := k.Phases()
	locals := localIDs(r.Local)

	// Cache-aware scheduling: each worker processes a contiguous run of
	// groups and keeps its arena warm across them
	numWorkers := min(e.workers, gridSize)
	groupsPerWorker := ceilDiv(gridSize, numWorkers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < numWorkers; w++ {
		startGroup := w * groupsPerWorker
		endGroup := min(startGroup+groupsPerWorker, gridSize)
		if startGroup >= endGroup {
			continue
		}

		g.Go(func() (err error) {
			defer recoverKernel(k.Name(), &err)

			run := k.Group()
			it := WorkItem{LocalSize: r.Local, NumGroups: grid, GlobalSize: r.Global}
			for groupID := startGroup; groupID < endGroup; groupID++ {
				if cerr := gctx.Err(); cerr != nil {
					return NewExecutionError(k.Name(), "launch cancelled", cerr)
				}
				it.GroupID = linearTo3D(groupID, grid)
				for phase := 0; phase < phases; phase++ {
					for _, lid := range locals {
						it.LocalID = lid
						run(phase, it)
					}
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// BarrierExecutor runs every work-item of a group on its own goroutine and
// synchronises them on a Barrier between phases. It is the faithful model
// of a grouped device and is intended for small ranges.
type BarrierExecutor struct {
	workers      int
	maxGroupSize int
}

// NewBarrierExecutor creates a barrier executor for the given device.
// A nil device selects DefaultDevice.
func NewBarrierExecutor(dev *Device) *BarrierExecutor {
	if dev == nil {
		dev = DefaultDevice()
	}
	return &BarrierExecutor{
		workers:      max(dev.NumCores, 1),
		maxGroupSize: dev.MaxGroupSize,
	}
}

// Name implements Executor
func (e *BarrierExecutor) Name() string { return "barrier" }

// MaxGroupSize implements Executor
func (e *BarrierExecutor) MaxGroupSize() int { return e.maxGroupSize }

// Execute implements Executor
func (e *BarrierExecutor) Execute(ctx context.Context, k Kernel, r Range) error {
	if err := r.Validate(); err != nil {
		return err
	}

	grid := r.Groups()
	phases := k.Phases()
	locals := localIDs(r.Local)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for groupID := 0; groupID < grid.Size(); groupID++ {
		if gctx.Err() != nil {
			break
		}
		base := WorkItem{
			GroupID:    linearTo3D(groupID, grid),
			LocalSize:  r.Local,
			NumGroups:  grid,
			GlobalSize: r.Global,
		}
		g.Go(func() error {
			if cerr := gctx.Err(); cerr != nil {
				return NewExecutionError(k.Name(), "launch cancelled", cerr)
			}
			return runGroup(k, base, locals, phases)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if cerr := ctx.Err(); cerr != nil {
		return NewExecutionError(k.Name(), "launch cancelled", cerr)
	}
	return nil
}

// runGroup runs one group with a goroutine per work-item
func runGroup(k Kernel, base WorkItem, locals []Dim3, phases int) error {
	run := k.Group()
	barrier := NewBarrier(len(locals))

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)

	for _, lid := range locals {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					err := kernelPanic(k.Name(), r)
					once.Do(func() { firstErr = err })
					barrier.Break()
				}
			}()

			it := base
			it.LocalID = lid
			for phase := 0; phase < phases; phase++ {
				run(phase, it)
				if phase == phases-1 {
					break
				}
				if err := barrier.Wait(); err != nil {
					return
				}
			}
		}()
	}

	wg.Wait()
	return firstErr
}

// localIDs enumerates the local coordinates of a group in row-major order
func localIDs(local Dim3) []Dim3 {
	ids := make([]Dim3, local.Size())
	for i := range ids {
		ids[i] = linearTo3D(i, local)
	}
	return ids
}

// recoverKernel converts a kernel panic into an execution error. It must be
// deferred directly.
func recoverKernel(name string, err *error) {
	if r := recover(); r != nil {
		*err = kernelPanic(name, r)
	}
}

func kernelPanic(name string, r any) error {
	cause := panicError(r)
	klog.ErrorS(cause, "kernel panicked", "kernel", name)
	return NewExecutionError(name, "kernel panicked", cause)
}

func panicError(r any) error {
	if e, ok := r.(error); ok {
		return e
	}
	return fmt.Errorf("%v", r)
}
