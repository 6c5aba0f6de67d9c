// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tilegrid

import (
	"context"
	"time"

	"k8s.io/klog/v2"
)

// GroupFunc runs one phase of a kernel for one work-item. It is bound to a
// group-scoped arena, so calls for different work-items of the same group
// share staging buffers.
type GroupFunc func(phase int, it WorkItem)

// Kernel is a data-parallel program made of barrier-separated phases.
//
// An executor calls Group once per worker and reuses the returned GroupFunc
// for every group that worker processes. Within a group, every work-item
// finishes phase k before any work-item starts phase k+1. Groups are
// independent and unordered.
type Kernel interface {
	Name() string
	Phases() int
	Group() GroupFunc
}

// KernelFunc is a single-phase kernel with no group-scoped state
type KernelFunc func(it WorkItem)

// Name implements Kernel
func (fn KernelFunc) Name() string { return "func" }

// Phases implements Kernel
func (fn KernelFunc) Phases() int { return 1 }

// Group implements Kernel
func (fn KernelFunc) Group() GroupFunc {
	return func(_ int, it WorkItem) { fn(it) }
}

// PhasedKernel assembles a Kernel from an arena constructor and a phase
// body. NewLocal is called once per executing worker; the arena it returns
// is overwritten, never appended to, by each group.
type PhasedKernel[L any] struct {
	KernelName string
	NumPhases  int
	NewLocal   func() *L
	Run        func(phase int, it WorkItem, local *L)
}

// Name implements Kernel
func (k *PhasedKernel[L]) Name() string { return k.KernelName }

// Phases implements Kernel
func (k *PhasedKernel[L]) Phases() int { return k.NumPhases }

// Group implements Kernel
func (k *PhasedKernel[L]) Group() GroupFunc {
	var local *L
	if k.NewLocal != nil {
		local = k.NewLocal()
	}
	return func(phase int, it WorkItem) {
		k.Run(phase, it, local)
	}
}

// Executor runs tiled kernels over a range. It is the "device" the engines
// are written against.
type Executor interface {
	Name() string
	MaxGroupSize() int
	Execute(ctx context.Context, k Kernel, r Range) error
}

// Launch validates the range against the executor and runs the kernel
func Launch(ctx context.Context, exec Executor, k Kernel, r Range) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Local.Size() > exec.MaxGroupSize() {
		return NewInvalidArgError("Launch",
			"group size exceeds executor limit")
	}
	start := time.Now()
	err := exec.Execute(ctx, k, r)
	klog.V(4).InfoS("kernel finished", "kernel", k.Name(), "executor", exec.Name(),
		"range", r.String(), "elapsed", time.Since(start), "err", err)
	return err
}
