// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package risk

import (
	"context"

	"github.com/LynnColeArt/tilegrid"
	"github.com/LynnColeArt/tilegrid/matmul"
	"github.com/LynnColeArt/tilegrid/tiling"
)

// tiledBackend runs every stage as one kernel launch
type tiledBackend struct {
	p    *Pipeline
	exec tilegrid.Executor
	plan tiling.Plan
}

func newTiledBackend(p *Pipeline, exec tilegrid.Executor) *tiledBackend {
	planner := tiling.NewPlanner(exec.MaxGroupSize(), p.cfg.maxTileEdge)
	return &tiledBackend{
		p:    p,
		exec: exec,
		plan: planner.Plan(p.ds.Observations-1, p.ds.Instruments, p.ds.Observations),
	}
}

func (b *tiledBackend) run(ctx context.Context, s Stage) error {
	var (
		kernel tilegrid.Kernel
		rng    tilegrid.Range
	)
	switch s {
	case StageReturns:
		kernel, rng = b.returnsKernel()
	case StageAverageReturn:
		kernel, rng = b.averageKernel()
	case StageCentering:
		kernel, rng = b.centeringKernel()
	case StageCovariance:
		var err error
		if kernel, rng, err = b.covarianceKernel(); err != nil {
			return err
		}
	case StageWeighting:
		kernel, rng = b.weightingKernel()
	case StageReduction:
		kernel, rng = b.reductionKernel()
	default:
		return nil
	}
	return tilegrid.Launch(ctx, b.exec, kernel, rng)
}

// cellKernel is a single-phase kernel with no arena
func cellKernel(name string, fn func(it tilegrid.WorkItem)) tilegrid.Kernel {
	return &tilegrid.PhasedKernel[struct{}]{
		KernelName: name,
		NumPhases:  1,
		Run:        func(_ int, it tilegrid.WorkItem, _ *struct{}) { fn(it) },
	}
}

// returnsKernel computes one return per (instrument, observation) cell.
// Row 0 has no predecessor and writes nothing.
func (b *tiledBackend) returnsKernel() (tilegrid.Kernel, tilegrid.Range) {
	p := b.p
	n, obsCount := p.ds.Instruments, p.ds.Observations
	t := b.plan.TileSize
	return cellKernel("var.returns", func(it tilegrid.WorkItem) {
		if !it.InRange() || it.GlobalY() == 0 {
			return
		}
		instr, obs := it.GlobalX(), it.GlobalY()
		p.excess[instr+(obs-1)*n] = p.ds.Price(instr, obs)/p.ds.Price(instr, obs-1) - 1
	}), tilegrid.Range2DGrouped(n, obsCount, t, t)
}

func (b *tiledBackend) averageKernel() (tilegrid.Kernel, tilegrid.Range) {
	p := b.p
	n := p.ds.Instruments
	returns := p.ds.Observations - 1
	return newPairSum("var.average", n, p.ds.Observations, b.plan.TileSize, b.exec.MaxGroupSize(),
		func(instr, obs int) (price, ret float64) {
			if obs < returns {
				ret = p.excess[instr+obs*n]
			}
			return p.ds.Price(instr, obs), ret
		},
		func(instr int, sumPrice, sumReturn float64) {
			p.stats[2*instr] = sumPrice / float64(p.ds.Observations)
			p.stats[2*instr+1] = sumReturn / float64(returns)
		})
}

func (b *tiledBackend) centeringKernel() (tilegrid.Kernel, tilegrid.Range) {
	p := b.p
	n, returns := p.ds.Instruments, p.ds.Observations-1
	t := b.plan.TileSize
	return cellKernel("var.centering", func(it tilegrid.WorkItem) {
		if !it.InRange() {
			return
		}
		instr, obs := it.GlobalX(), it.GlobalY()
		p.excess[instr+obs*n] -= p.stats[2*instr+1]
	}), tilegrid.Range2DGrouped(n, returns, t, t)
}

// covarianceKernel multiplies the transposed centered returns by
// themselves: with ex stored observation-major, exᵀ has one row per
// instrument
func (b *tiledBackend) covarianceKernel() (tilegrid.Kernel, tilegrid.Range, error) {
	p := b.p
	ex := p.ExcessReturns()
	scale := 1 / float64(p.ds.Observations-1)
	return matmul.NewKernel[float64](ex.T(), ex, p.cov, scale, b.plan, 1)
}

func (b *tiledBackend) weightingKernel() (tilegrid.Kernel, tilegrid.Range) {
	p := b.p
	n := p.ds.Instruments
	return cellKernel("var.weighting", func(it tilegrid.WorkItem) {
		if it.InRange() {
			p.weightingOf(it.GlobalX())
		}
	}), tilegrid.Range1DGrouped(n, b.plan.TileSize*b.plan.TileSize)
}

func (b *tiledBackend) reductionKernel() (tilegrid.Kernel, tilegrid.Range) {
	p := b.p
	return newPairSum("var.reduction", 1, p.ds.Instruments, b.plan.TileSize, b.exec.MaxGroupSize(),
		func(_, i int) (float64, float64) {
			return p.weightedRet[i], p.weightedCov[i]
		},
		func(_ int, sumReturn, sumVariance float64) {
			p.results = [2]float64{sumReturn, sumVariance}
		})
}

// pairSum is a two-level reduction of two series at once. Every group
// reduces one row of length elements: each work-item sums a contiguous
// chunk into the group arena, then the last work-item of the group adds the
// partials and passes the totals to finish.
type pairSum struct {
	length int
	chunk  int
	chunks int
	term   func(group, i int) (float64, float64)
	finish func(group int, a, b float64)
}

// newPairSum sizes the chunks so that one group never exceeds maxGroup
// work-items and no chunk is shorter than a tile
func newPairSum(name string, groups, length, tile, maxGroup int,
	term func(group, i int) (float64, float64), finish func(group int, a, b float64)) (tilegrid.Kernel, tilegrid.Range) {

	chunk := max(tile, (length+maxGroup-1)/maxGroup)
	r := &pairSum{
		length: length,
		chunk:  chunk,
		chunks: (length + chunk - 1) / chunk,
		term:   term,
		finish: finish,
	}
	return &tilegrid.PhasedKernel[[]float64]{
		KernelName: name,
		NumPhases:  2,
		NewLocal: func() *[]float64 {
			partials := make([]float64, 2*r.chunks)
			return &partials
		},
		Run: r.run,
	}, tilegrid.Range2DGrouped(groups, r.chunks, 1, r.chunks)
}

func (r *pairSum) run(phase int, it tilegrid.WorkItem, local *[]float64) {
	group, c := it.GroupID.X, it.LocalID.Y
	partials := *local

	if phase == 0 {
		var a, b float64
		for i := c * r.chunk; i < min((c+1)*r.chunk, r.length); i++ {
			ta, tb := r.term(group, i)
			a += ta
			b += tb
		}
		partials[2*c] = a
		partials[2*c+1] = b
		return
	}

	if c != r.chunks-1 {
		return
	}
	var a, b float64
	for i := 0; i < r.chunks; i++ {
		a += partials[2*i]
		b += partials[2*i+1]
	}
	r.finish(group, a, b)
}
