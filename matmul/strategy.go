// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package matmul

import (
	"fmt"
	"strings"

	"github.com/LynnColeArt/tilegrid"
)

// Strategy selects how a Multiplication computes its result
type Strategy int

const (
	// Auto picks Naive for small results and Blocked otherwise
	Auto Strategy = iota
	// Naive computes one output column per pool task
	Naive
	// Naive2D computes one output cell per work-item, without groups
	Naive2D
	// Tiled stages square tiles of both operands, one output per work-item
	Tiled
	// Blocked is Tiled with several adjacent output columns per work-item
	Blocked
)

var strategyNames = [...]string{
	Auto:    "auto",
	Naive:   "naive",
	Naive2D: "naive2d",
	Tiled:   "tiled",
	Blocked: "blocked",
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy maps a strategy name back to its value
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return Strategy(i), nil
		}
	}
	return Auto, tilegrid.NewInvalidArgError("matmul.ParseStrategy",
		fmt.Sprintf("unknown strategy %q", name))
}

// Strategies lists every strategy in declaration order
func Strategies() []Strategy {
	return []Strategy{Auto, Naive, Naive2D, Tiled, Blocked}
}

// Operand names one of the three matrices of a multiplication
type Operand int

const (
	OperandA Operand = iota
	OperandB
	OperandR
)

func (o Operand) String() string {
	switch o {
	case OperandA:
		return "A"
	case OperandB:
		return "B"
	case OperandR:
		return "R"
	}
	return fmt.Sprintf("Operand(%d)", int(o))
}

// Option configures a Multiplication
type Option func(*config)

type config struct {
	strategy    Strategy
	device      *tilegrid.Device
	exec        tilegrid.Executor
	pool        *tilegrid.Pool
	maxTileEdge int
	columnBlock int
}

// WithStrategy selects the computation strategy
func WithStrategy(s Strategy) Option {
	return func(c *config) { c.strategy = s }
}

// WithDevice sets the device used for the default executor and column block
func WithDevice(d *tilegrid.Device) Option {
	return func(c *config) { c.device = d }
}

// WithExecutor runs kernels on e instead of a GroupedExecutor
func WithExecutor(e tilegrid.Executor) Option {
	return func(c *config) { c.exec = e }
}

// WithPool runs the naive strategy on p. The caller keeps ownership of p.
func WithPool(p *tilegrid.Pool) Option {
	return func(c *config) { c.pool = p }
}

// WithMaxTileEdge bounds the tile edge chosen by the planner
func WithMaxTileEdge(edge int) Option {
	return func(c *config) { c.maxTileEdge = edge }
}

// WithColumnBlock sets the number of output columns per work-item of the
// blocked strategy. It is clamped to the tile edge and MaxColumnBlock and
// rounded down to a power of two.
func WithColumnBlock(n int) Option {
	return func(c *config) { c.columnBlock = n }
}

// columnBlockFor returns the largest power of two that is <= want, <= tile
// and <= MaxColumnBlock
func columnBlockFor(want, tile int) int {
	limit := min(want, tile, tilegrid.MaxColumnBlock)
	cols := 1
	for cols*2 <= limit {
		cols *= 2
	}
	return cols
}
