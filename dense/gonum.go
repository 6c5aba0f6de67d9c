// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import "gonum.org/v1/gonum/mat"

// Gonum returns a read-only gonum view of m. Rows and columns follow the
// effective (possibly transposed) shape, so the view can be handed to gonum
// routines without copying.
func Gonum(m Matrix[float64]) mat.Matrix {
	return gonumView{m: m}
}

// FromGonum copies a gonum matrix into a new row-major Matrix
func FromGonum(src mat.Matrix) Matrix[float64] {
	rows, cols := src.Dims()
	out := Zeros[float64](cols, rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out.Data[y*cols+x] = src.At(y, x)
		}
	}
	return out
}

type gonumView struct {
	m Matrix[float64]
}

// Dims implements mat.Matrix
func (v gonumView) Dims() (r, c int) {
	return v.m.EffectiveHeight(), v.m.EffectiveWidth()
}

// At implements mat.Matrix; gonum addresses (row, column)
func (v gonumView) At(i, j int) float64 {
	if i < 0 || i >= v.m.EffectiveHeight() || j < 0 || j >= v.m.EffectiveWidth() {
		panic(mat.ErrIndexOutOfRange)
	}
	return v.m.At(j, i)
}

// T implements mat.Matrix
func (v gonumView) T() mat.Matrix {
	return gonumView{m: v.m.T()}
}
