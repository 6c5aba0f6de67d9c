// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tilegrid provides a data-parallel execution model for dense
// numeric kernels on the CPU.
//
// A kernel runs over a Range: a 1-D or 2-D grid of work-items cut into
// fixed-size groups. Work-items of one group share a staging arena and meet
// at barriers between the kernel's phases; groups are independent. Two
// executors implement the model:
//
//   - GroupedExecutor runs a group's phases in lockstep on one goroutine and
//     spreads groups over the cores. It is the default for real workloads.
//   - BarrierExecutor gives each work-item its own goroutine and a real
//     Barrier. It is slower and meant for verifying kernels.
//
// Pool is the thread-pool backend: batches of independent tasks joined at
// stage boundaries.
//
// Example usage:
//
//	exec := tilegrid.NewGroupedExecutor(nil)
//	kernel := tilegrid.KernelFunc(func(it tilegrid.WorkItem) {
//		if i := it.GlobalX(); i < n {
//			out[i] = in[i] * 2
//		}
//	})
//	err := tilegrid.Launch(ctx, exec, kernel, tilegrid.Range1DGrouped(n, 64))
//
// The dense, tiling, matmul and risk packages build the matrix multiply
// engine and the Value-at-Risk pipeline on top of this model.
package tilegrid
