// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package matmul multiplies dense matrices with tiled data-parallel kernels.
//
// Operands are read through their transpose flags, so all four combinations
// of op(A)·op(B) run on the same buffers:
//
//	a, _ := dense.New(dataA, 10, 10, false)
//	b, _ := dense.New(dataB, 10, 10, true)
//	m, err := matmul.New(a, b, matmul.WithStrategy(matmul.Tiled))
//	if err != nil {
//		return err
//	}
//	if err := m.Execute(ctx); err != nil {
//		return err
//	}
//	r := m.Result()
package matmul

import (
	"context"
	"fmt"
	"io"
	"time"

	"k8s.io/klog/v2"

	"github.com/LynnColeArt/tilegrid"
	"github.com/LynnColeArt/tilegrid/dense"
	"github.com/LynnColeArt/tilegrid/tiling"
)

// Multiplication holds the operands and result of R = op(A)·op(B)
type Multiplication[T Float] struct {
	a, b dense.Matrix[T]
	r    dense.Matrix[T]
	cfg  config

	strategy Strategy
	plan     tiling.Plan
	cols     int
}

// New validates the operands and allocates the result. The only checked
// error is a mismatch between A's effective width and B's effective height.
func New[T Float](a, b dense.Matrix[T], opts ...Option) (*Multiplication[T], error) {
	for _, m := range []dense.Matrix[T]{a, b} {
		if m.Width <= 0 || m.Height <= 0 || m.Width*m.Height != len(m.Data) {
			return nil, tilegrid.NewInvalidArgError("matmul.New",
				fmt.Sprintf("malformed operand %v with %d elements", m, len(m.Data)))
		}
	}
	if a.EffectiveWidth() != b.EffectiveHeight() {
		return nil, tilegrid.NewDimensionMismatchError("matmul.New",
			a.EffectiveWidth(), b.EffectiveHeight())
	}

	cfg := config{strategy: Auto, maxTileEdge: tilegrid.MaxTileEdge}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.device == nil {
		cfg.device = tilegrid.DefaultDevice()
	}
	if cfg.exec == nil {
		cfg.exec = tilegrid.NewGroupedExecutor(cfg.device)
	}
	if cfg.columnBlock <= 0 {
		cfg.columnBlock = cfg.device.ColumnBlock()
	}

	m := &Multiplication[T]{
		a:   a,
		b:   b,
		r:   dense.Zeros[T](b.EffectiveWidth(), a.EffectiveHeight()),
		cfg: cfg,
	}
	m.resolve()
	return m, nil
}

// resolve fixes the strategy, tile plan and column block for this shape
func (m *Multiplication[T]) resolve() {
	width, height := m.r.Width, m.r.Height
	shared := m.a.EffectiveWidth()

	m.strategy = m.cfg.strategy
	if m.strategy == Auto {
		m.strategy = Blocked
		if width*height < tilegrid.DefaultBlockSize {
			m.strategy = Naive
		}
	}

	planner := tiling.NewPlanner(m.cfg.exec.MaxGroupSize(), m.cfg.maxTileEdge)
	var zero T
	if _, double := any(zero).(float64); double {
		operands := [4]int{m.a.EffectiveWidth(), m.a.EffectiveHeight(), m.b.EffectiveWidth(), m.b.EffectiveHeight()}
		m.plan = planner.PlanOperands(shared, operands, width, height, shared)
	} else {
		m.plan = planner.Plan(shared, width, height, shared)
	}
	m.cols = 1
	if m.strategy == Blocked {
		m.cols = columnBlockFor(m.cfg.columnBlock, m.plan.TileSize)
	}
}

// Execute computes the result. It may be called again; every call
// overwrites the whole result.
func (m *Multiplication[T]) Execute(ctx context.Context) error {
	start := time.Now()
	klog.V(2).InfoS("matmul", "strategy", m.strategy, "a", m.a, "b", m.b,
		"plan", m.plan, "cols", m.cols, "executor", m.cfg.exec.Name())

	var err error
	switch m.strategy {
	case Naive:
		err = m.executeNaive(ctx)
	case Naive2D:
		kernel, rng := newNaive2DKernel(m.a, m.b, m.r.Data, 1)
		err = tilegrid.Launch(ctx, m.cfg.exec, kernel, rng)
	case Tiled, Blocked:
		var (
			kernel tilegrid.Kernel
			rng    tilegrid.Range
		)
		kernel, rng, err = NewKernel(m.a, m.b, m.r.Data, 1, m.plan, m.cols)
		if err == nil {
			err = tilegrid.Launch(ctx, m.cfg.exec, kernel, rng)
		}
	default:
		err = tilegrid.NewInvalidArgError("matmul.Execute",
			fmt.Sprintf("unsupported strategy %v", m.strategy))
	}
	if err != nil {
		return fmt.Errorf("matmul %v: %w", m.strategy, err)
	}

	klog.V(2).InfoS("matmul done", "strategy", m.strategy, "elapsed", time.Since(start))
	return nil
}

// executeNaive runs one pool task per output column
func (m *Multiplication[T]) executeNaive(ctx context.Context) error {
	pool := m.cfg.pool
	if pool == nil {
		pool = tilegrid.NewPool(m.cfg.device.NumCores)
		defer pool.Close()
	}
	return pool.RunAll(ctx, "matmul.naive", m.r.Width, func(col int) error {
		naiveColumn(m.a, m.b, m.r, col)
		return nil
	})
}

func naiveColumn[T Float](a, b, r dense.Matrix[T], col int) {
	shared := a.EffectiveWidth()
	for row := 0; row < r.Height; row++ {
		var value T
		for n := 0; n < shared; n++ {
			value += a.At(n, row) * b.At(col, n)
		}
		r.Data[row*r.Width+col] = value
	}
}

// Result returns the row-major result buffer
func (m *Multiplication[T]) Result() []T { return m.r.Data }

// ResultMatrix returns the result as a dense matrix
func (m *Multiplication[T]) ResultMatrix() dense.Matrix[T] { return m.r }

// ResultWidth returns B's effective width
func (m *Multiplication[T]) ResultWidth() int { return m.r.Width }

// ResultHeight returns A's effective height
func (m *Multiplication[T]) ResultHeight() int { return m.r.Height }

// Strategy returns the strategy Execute uses, with Auto resolved
func (m *Multiplication[T]) Strategy() Strategy { return m.strategy }

// Plan returns the tile plan used by the tiled strategies
func (m *Multiplication[T]) Plan() tiling.Plan { return m.plan }

// ColumnBlock returns the output columns per work-item; 1 unless Blocked
func (m *Multiplication[T]) ColumnBlock() int { return m.cols }

func (m *Multiplication[T]) operand(which Operand) dense.Matrix[T] {
	switch which {
	case OperandA:
		return m.a
	case OperandB:
		return m.b
	case OperandR:
		return m.r
	}
	panic(fmt.Sprintf("matmul: invalid operand %v", which))
}

// At returns the element at column x, row y of the chosen operand as read,
// honouring its transpose flag
func (m *Multiplication[T]) At(which Operand, x, y int) T {
	return m.operand(which).At(x, y)
}

// Print writes the chosen operand to w, one row per line
func (m *Multiplication[T]) Print(w io.Writer, which Operand) error {
	return m.operand(which).Print(w)
}
