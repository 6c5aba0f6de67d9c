// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package matmul

import (
	"fmt"

	"github.com/LynnColeArt/tilegrid"
	"github.com/LynnColeArt/tilegrid/dense"
	"github.com/LynnColeArt/tilegrid/tiling"
)

// Float is the element type of the operands
type Float = tilegrid.Float

// arena is the group-scoped staging memory of a tiled kernel. subA and subB
// hold one tile of each operand; acc holds the running sums of every
// work-item in the group, ColumnBlock per item.
type arena[T Float] struct {
	subA []T
	subB []T
	acc  []T
}

// tiledKernel computes r = alpha * op(a) * op(b) with square tiles staged
// through the arena. Each work-item owns cols adjacent output columns of
// one row; cols == 1 is the single-accumulator kernel.
type tiledKernel[T Float] struct {
	a, b   dense.Matrix[T]
	r      []T
	alpha  T
	width  int // result width
	height int // result height
	shared int
	plan   tiling.Plan
	cols   int
}

// NewKernel builds the tiled kernel for r = alpha * a * b and the range it
// must be launched over. a and b are read through their transpose flags;
// r is row-major with b's effective width. cols is the number of output
// columns per work-item: 1 for the single-accumulator kernel, up to
// MaxColumnBlock for the register-blocked one. It must divide the tile.
func NewKernel[T Float](a, b dense.Matrix[T], r []T, alpha T, plan tiling.Plan, cols int) (tilegrid.Kernel, tilegrid.Range, error) {
	if a.EffectiveWidth() != b.EffectiveHeight() {
		return nil, tilegrid.Range{}, tilegrid.NewDimensionMismatchError("matmul.NewKernel",
			a.EffectiveWidth(), b.EffectiveHeight())
	}
	width, height := b.EffectiveWidth(), a.EffectiveHeight()
	if len(r) != width*height {
		return nil, tilegrid.Range{}, tilegrid.NewInvalidArgError("matmul.NewKernel",
			fmt.Sprintf("result needs %d elements, got %d", width*height, len(r)))
	}
	t := plan.TileSize
	if cols < 1 || cols > tilegrid.MaxColumnBlock || t%cols != 0 {
		return nil, tilegrid.Range{}, tilegrid.NewInvalidArgError("matmul.NewKernel",
			fmt.Sprintf("column block %d does not divide tile %d", cols, t))
	}
	if t*t > plan.LocalCapacity {
		return nil, tilegrid.Range{}, tilegrid.NewInvalidArgError("matmul.NewKernel",
			fmt.Sprintf("tile %d exceeds local capacity %d", t, plan.LocalCapacity))
	}

	k := &tiledKernel[T]{
		a: a, b: b, r: r, alpha: alpha,
		width: width, height: height, shared: a.EffectiveWidth(),
		plan: plan, cols: cols,
	}

	itemsX := t / cols
	groupsX := (width + t - 1) / t
	rng := tilegrid.Range2DGrouped(groupsX*itemsX, height, itemsX, t)

	name := "matmul.tiled"
	if cols > 1 {
		name = fmt.Sprintf("matmul.blocked%d", cols)
	}
	return &tilegrid.PhasedKernel[arena[T]]{
		KernelName: name,
		// A load and a compute phase per tile; the accumulators are
		// cleared by the first load and written out by the last compute.
		NumPhases: 2 * plan.NumTiles,
		NewLocal:  k.newArena,
		Run:       k.run,
	}, rng, nil
}

func (k *tiledKernel[T]) newArena() *arena[T] {
	t := k.plan.TileSize
	return &arena[T]{
		subA: make([]T, k.plan.LocalCapacity),
		subB: make([]T, k.plan.LocalCapacity),
		acc:  make([]T, t*t),
	}
}

func (k *tiledKernel[T]) run(phase int, it tilegrid.WorkItem, local *arena[T]) {
	tile := phase / 2
	if phase%2 == 0 {
		k.load(tile, it, local)
		return
	}
	k.compute(tile, it, local)
}

// load stages one tile of a and b. Every work-item copies cols elements of
// each operand; reads past the operand edges stage zeros so partial edge
// tiles contribute nothing.
func (k *tiledKernel[T]) load(tile int, it tilegrid.WorkItem, local *arena[T]) {
	t := k.plan.TileSize
	lx, ly := it.LocalID.X, it.LocalID.Y
	row := it.GroupID.Y*t + ly
	tileOffset := tile * t

	acc := local.acc[it.LocalLinear()*k.cols:][:k.cols]
	if tile == 0 {
		clear(acc)
	}

	bRow := tileOffset + ly
	for i := 0; i < k.cols; i++ {
		lc := lx*k.cols + i
		pos := ly*t + lc

		var va T
		if ak := tileOffset + lc; row < k.height && ak < k.shared {
			va = k.a.Data[k.a.Index(ak, row)]
		}
		local.subA[pos] = va

		var vb T
		if col := it.GroupID.X*t + lc; bRow < k.shared && col < k.width {
			vb = k.b.Data[k.b.Index(col, bRow)]
		}
		local.subB[pos] = vb
	}
}

// compute adds the staged tile's contribution to the work-item's running
// sums. One staged A value is read per k and reused for all cols columns.
func (k *tiledKernel[T]) compute(tile int, it tilegrid.WorkItem, local *arena[T]) {
	t := k.plan.TileSize
	lx, ly := it.LocalID.X, it.LocalID.Y
	acc := local.acc[it.LocalLinear()*k.cols:][:k.cols]

	if k.cols == 1 {
		value := acc[0]
		for n := 0; n < t; n++ {
			value += local.subA[ly*t+n] * local.subB[n*t+lx]
		}
		acc[0] = value
	} else {
		var regs [tilegrid.MaxColumnBlock]T
		copy(regs[:], acc)
		for n := 0; n < t; n++ {
			a := local.subA[ly*t+n]
			bs := local.subB[n*t+lx*k.cols:][:k.cols]
			for i, b := range bs {
				regs[i] += a * b
			}
		}
		copy(acc, regs[:k.cols])
	}

	if tile == k.plan.NumTiles-1 {
		k.store(it, acc)
	}
}

// store writes the finished sums. Work-items of edge groups that fall
// outside the result write nothing.
func (k *tiledKernel[T]) store(it tilegrid.WorkItem, acc []T) {
	t := k.plan.TileSize
	row := it.GroupID.Y*t + it.LocalID.Y
	if row >= k.height {
		return
	}
	col := it.GroupID.X*t + it.LocalID.X*k.cols
	for i, v := range acc {
		if col+i >= k.width {
			return
		}
		k.r[row*k.width+col+i] = k.alpha * v
	}
}

// newNaive2DKernel assigns one output cell to each work-item of an
// ungrouped 2-D range, with no staging and no barriers.
func newNaive2DKernel[T Float](a, b dense.Matrix[T], r []T, alpha T) (tilegrid.Kernel, tilegrid.Range) {
	width, height := b.EffectiveWidth(), a.EffectiveHeight()
	shared := a.EffectiveWidth()
	kernel := tilegrid.KernelFunc(func(it tilegrid.WorkItem) {
		col, row := it.GlobalX(), it.GlobalY()
		if col >= width || row >= height {
			return
		}
		var value T
		for n := 0; n < shared; n++ {
			value += a.At(n, row) * b.At(col, n)
		}
		r[row*width+col] = alpha * value
	})
	return kernel, tilegrid.Range2D(width, height)
}
