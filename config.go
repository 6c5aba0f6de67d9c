// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tilegrid configuration constants
package tilegrid

// Group and tile dimensions
const (
	// Largest number of work-items the CPU executors synchronise in one group
	DefaultMaxGroupSize = 256

	// Upper bound on the square tile edge used by the matrix multiply kernels.
	// Staging buffers are allocated once at MaxTileEdge² elements.
	MaxTileEdge = 16

	// Upper bound on the tile edge used by the VaR pipeline kernels
	RiskMaxTileEdge = 8

	// Smallest tile edge the planner falls back to
	MinTileEdge = 2

	// Maximum number of adjacent output columns owned by one work-item
	MaxColumnBlock = 8
)

// Work partitioning
const (
	// Results with fewer cells than this run on the naive path
	DefaultBlockSize = 256

	// Instruments summed per partial accumulator in the CPU reduction stage
	RiskBlockSize = 250
)

// Numerical constants
const (
	// Relative tolerance for cross-backend agreement on random inputs
	DefaultRelTol = 1e-5

	// Absolute tolerance for cross-backend agreement on VaR scalars
	RiskAbsTol = 1e-5
)
