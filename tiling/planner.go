// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tiling chooses square tile sizes for grouped kernels.
package tiling

import (
	"fmt"

	"github.com/LynnColeArt/tilegrid"
)

// Plan is the tile geometry of one kernel launch
type Plan struct {
	// TileSize is the square tile edge, a power of two >= 2
	TileSize int
	// NumTiles is the number of passes over the shared dimension
	NumTiles int
	// LocalCapacity is the staging buffer size, MaxTileEdge², fixed for
	// every plan of the same planner
	LocalCapacity int
}

// GroupSize returns the number of work-items in one square group
func (p Plan) GroupSize() int {
	return p.TileSize * p.TileSize
}

func (p Plan) String() string {
	return fmt.Sprintf("tile=%d tiles=%d capacity=%d", p.TileSize, p.NumTiles, p.LocalCapacity)
}

// Planner holds the device limits a plan must respect
type Planner struct {
	// MaxGroupSize is the largest number of work-items the executor can
	// synchronise in one group
	MaxGroupSize int
	// MaxTileEdge bounds the tile edge and sizes the staging buffers
	MaxTileEdge int
}

// NewPlanner creates a planner for an executor's group limit
func NewPlanner(maxGroupSize, maxTileEdge int) Planner {
	return Planner{MaxGroupSize: maxGroupSize, MaxTileEdge: maxTileEdge}
}

// Plan picks the tile edge for a launch whose shared (reduction) dimension
// is shared and whose dims must be evenly tiled.
//
// Starting from 2 the edge doubles while the doubled edge fits MaxTileEdge,
// its square fits MaxGroupSize and it divides every dim. The search is
// greedy and stops at the first violation; it never fails and falls back to
// the minimum edge.
func (p Planner) Plan(shared int, dims ...int) Plan {
	return p.plan(shared, nil, dims)
}

// PlanOperands is Plan with the extra requirement that each of the four
// operand dimensions (A width, A height, B width, B height) spans at least
// one full doubled tile.
func (p Planner) PlanOperands(shared int, operands [4]int, dims ...int) Plan {
	return p.plan(shared, operands[:], dims)
}

func (p Planner) plan(shared int, extents, dims []int) Plan {
	maxEdge := max(p.MaxTileEdge, tilegrid.MinTileEdge)

	tile := tilegrid.MinTileEdge
	for {
		next := tile * 2
		if next > maxEdge || next*next > p.MaxGroupSize {
			break
		}
		if !divisible(dims, next) || !spans(extents, next) {
			break
		}
		tile = next
	}

	return Plan{
		TileSize:      tile,
		NumTiles:      (shared + tile - 1) / tile,
		LocalCapacity: maxEdge * maxEdge,
	}
}

func divisible(dims []int, tile int) bool {
	for _, d := range dims {
		if d%tile != 0 {
			return false
		}
	}
	return true
}

func spans(extents []int, tile int) bool {
	for _, e := range extents {
		if e/tile == 0 {
			return false
		}
	}
	return true
}
