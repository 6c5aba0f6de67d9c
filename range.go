// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tilegrid

import "fmt"

// Dim3 represents 3D dimensions for global, group and grid extents
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

func (d Dim3) valid() bool {
	return d.X > 0 && d.Y > 0 && d.Z > 0
}

func (d Dim3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", d.X, d.Y, d.Z)
}

// Range is the index space of a kernel launch: the global number of
// work-items along each axis and the shape of one group.
type Range struct {
	Global Dim3
	Local  Dim3
}

// Range1D creates an ungrouped 1-D range of n work-items
func Range1D(n int) Range {
	return Range{Global: Dim3{X: n, Y: 1, Z: 1}, Local: Dim3{X: 1, Y: 1, Z: 1}}
}

// Range1DGrouped creates a 1-D range of n work-items in groups of local
func Range1DGrouped(n, local int) Range {
	return Range{Global: Dim3{X: n, Y: 1, Z: 1}, Local: Dim3{X: local, Y: 1, Z: 1}}
}

// Range2D creates an ungrouped 2-D range
func Range2D(width, height int) Range {
	return Range{Global: Dim3{X: width, Y: height, Z: 1}, Local: Dim3{X: 1, Y: 1, Z: 1}}
}

// Range2DGrouped creates a 2-D range with localWidth x localHeight groups
func Range2DGrouped(width, height, localWidth, localHeight int) Range {
	return Range{
		Global: Dim3{X: width, Y: height, Z: 1},
		Local:  Dim3{X: localWidth, Y: localHeight, Z: 1},
	}
}

// Validate checks that every extent is positive
func (r Range) Validate() error {
	if !r.Global.valid() || !r.Local.valid() {
		return fmt.Errorf("global %v local %v: %w", r.Global, r.Local, ErrInvalidRange)
	}
	return nil
}

// Groups returns the number of groups per axis. The global size is rounded
// up to a multiple of the group size, so edge groups may contain work-items
// outside the global range.
func (r Range) Groups() Dim3 {
	return Dim3{
		X: ceilDiv(r.Global.X, r.Local.X),
		Y: ceilDiv(r.Global.Y, r.Local.Y),
		Z: ceilDiv(r.Global.Z, r.Local.Z),
	}
}

func (r Range) String() string {
	return fmt.Sprintf("global=%v local=%v", r.Global, r.Local)
}

// WorkItem identifies a work-item's position within the execution hierarchy
type WorkItem struct {
	GroupID    Dim3 // Group index within the grid
	LocalID    Dim3 // Work-item index within the group
	LocalSize  Dim3 // Dimensions of a group
	NumGroups  Dim3 // Dimensions of the grid of groups
	GlobalSize Dim3 // Requested global range, before rounding
}

// GlobalX returns the global X index
func (it WorkItem) GlobalX() int {
	return it.GroupID.X*it.LocalSize.X + it.LocalID.X
}

// GlobalY returns the global Y index
func (it WorkItem) GlobalY() int {
	return it.GroupID.Y*it.LocalSize.Y + it.LocalID.Y
}

// GlobalZ returns the global Z index
func (it WorkItem) GlobalZ() int {
	return it.GroupID.Z*it.LocalSize.Z + it.LocalID.Z
}

// LocalLinear returns the row-major index of the work-item inside its group
func (it WorkItem) LocalLinear() int {
	return (it.LocalID.Z*it.LocalSize.Y+it.LocalID.Y)*it.LocalSize.X + it.LocalID.X
}

// InRange reports whether the work-item lies inside the requested global range
func (it WorkItem) InRange() bool {
	return it.GlobalX() < it.GlobalSize.X &&
		it.GlobalY() < it.GlobalSize.Y &&
		it.GlobalZ() < it.GlobalSize.Z
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
