// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package risk

import (
	"context"

	"github.com/LynnColeArt/tilegrid"
)

// cpuBackend runs every stage as one batch of independent pool tasks, one
// per instrument, except the reduction which has one task per block of
// RiskBlockSize instruments.
type cpuBackend struct {
	p    *Pipeline
	pool *tilegrid.Pool
}

func (b *cpuBackend) run(ctx context.Context, s Stage) error {
	p := b.p
	n := p.ds.Instruments
	op := "var.cpu." + s.String()

	switch s {
	case StageReturns:
		return b.pool.RunAll(ctx, op, n, p.returnsOf)
	case StageAverageReturn:
		return b.pool.RunAll(ctx, op, n, p.averageOf)
	case StageCentering:
		return b.pool.RunAll(ctx, op, n, p.centerOf)
	case StageCovariance:
		return b.pool.RunAll(ctx, op, n, p.covarianceRow)
	case StageWeighting:
		return b.pool.RunAll(ctx, op, n, p.weightingOf)
	case StageReduction:
		return b.reduce(ctx, op)
	}
	return nil
}

func (p *Pipeline) returnsOf(instr int) error {
	n := p.ds.Instruments
	for obs := 1; obs < p.ds.Observations; obs++ {
		p.excess[instr+(obs-1)*n] = p.ds.Price(instr, obs)/p.ds.Price(instr, obs-1) - 1
	}
	return nil
}

func (p *Pipeline) averageOf(instr int) error {
	n := p.ds.Instruments
	returns := p.ds.Observations - 1

	var sumPrice, sumReturn float64
	for obs := 0; obs < p.ds.Observations; obs++ {
		sumPrice += p.ds.Price(instr, obs)
	}
	for obs := 0; obs < returns; obs++ {
		sumReturn += p.excess[instr+obs*n]
	}
	p.stats[2*instr] = sumPrice / float64(p.ds.Observations)
	p.stats[2*instr+1] = sumReturn / float64(returns)
	return nil
}

func (p *Pipeline) centerOf(instr int) error {
	n := p.ds.Instruments
	mean := p.stats[2*instr+1]
	for obs := 0; obs < p.ds.Observations-1; obs++ {
		p.excess[instr+obs*n] -= mean
	}
	return nil
}

// covarianceRow fills row y of the covariance matrix
func (p *Pipeline) covarianceRow(y int) error {
	n := p.ds.Instruments
	returns := p.ds.Observations - 1
	scale := 1 / float64(returns)
	row := p.cov[y*n : (y+1)*n]
	for x := range row {
		var value float64
		for k := 0; k < returns; k++ {
			value += p.excess[k*n+y] * p.excess[k*n+x]
		}
		row[x] = value * scale
	}
	return nil
}

func (p *Pipeline) weightingOf(y int) error {
	n := p.ds.Instruments
	w := p.ds.Weights
	row := p.cov[y*n : (y+1)*n]

	p.weightedRet[y] = p.stats[2*y+1] * w[y]

	var value float64
	switch p.cfg.weighting {
	case CrossWeighted:
		for x, c := range row {
			value += c * w[x]
		}
		value *= w[y]
	default:
		for _, c := range row {
			value += c
		}
		value *= w[y] * w[y]
	}
	p.weightedCov[y] = value
	return nil
}

// reduce sums the weighted vectors into partials per block of instruments,
// then adds the partials
func (b *cpuBackend) reduce(ctx context.Context, op string) error {
	p := b.p
	n := p.ds.Instruments
	blocks := (n + tilegrid.RiskBlockSize - 1) / tilegrid.RiskBlockSize
	partialRet := make([]float64, blocks)
	partialVar := make([]float64, blocks)

	err := b.pool.ParallelFor(ctx, op, n, tilegrid.RiskBlockSize, func(start, end int) error {
		block := start / tilegrid.RiskBlockSize
		for i := start; i < end; i++ {
			partialRet[block] += p.weightedRet[i]
			partialVar[block] += p.weightedCov[i]
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.results = [2]float64{}
	for i := 0; i < blocks; i++ {
		p.results[0] += partialRet[i]
		p.results[1] += partialVar[i]
	}
	return nil
}
