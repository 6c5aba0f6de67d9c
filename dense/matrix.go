// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dense provides flat row-major numeric buffers with a transpose
// flag, the operand type of the matrix multiply and VaR kernels.
//
// A Matrix with N rows and M columns is encoded as
//
//	R0C0 R0C1 ... R0CM R1C0 R1C1 ... R1CM ... RNC0 ... RNCM
//
// Width and Height always describe that stored layout. When Transposed is
// set the matrix is read as its transpose without moving any data.
package dense

import (
	"fmt"
	"io"

	"github.com/LynnColeArt/tilegrid"
)

// Float is the element type of a Matrix
type Float = tilegrid.Float

// Matrix is a dense buffer of Width x Height elements
type Matrix[T Float] struct {
	Data       []T
	Width      int
	Height     int
	Transposed bool
}

// New wraps data as a width x height matrix. It fails when the slice length
// does not match the declared dimensions.
func New[T Float](data []T, width, height int, transposed bool) (Matrix[T], error) {
	if width <= 0 || height <= 0 {
		return Matrix[T]{}, tilegrid.NewInvalidArgError("dense.New",
			fmt.Sprintf("dimensions must be positive, got %dx%d", width, height))
	}
	if width*height != len(data) {
		return Matrix[T]{}, tilegrid.NewInvalidArgError("dense.New",
			fmt.Sprintf("%dx%d matrix needs %d elements, got %d", width, height, width*height, len(data)))
	}
	return Matrix[T]{Data: data, Width: width, Height: height, Transposed: transposed}, nil
}

// Zeros allocates a width x height matrix
func Zeros[T Float](width, height int) Matrix[T] {
	return Matrix[T]{Data: make([]T, width*height), Width: width, Height: height}
}

// EffectiveWidth returns the number of columns as read
func (m Matrix[T]) EffectiveWidth() int {
	if m.Transposed {
		return m.Height
	}
	return m.Width
}

// EffectiveHeight returns the number of rows as read
func (m Matrix[T]) EffectiveHeight() int {
	if m.Transposed {
		return m.Width
	}
	return m.Height
}

// Index maps the logical element (x=column, y=row) to its offset in Data
func (m Matrix[T]) Index(x, y int) int {
	if m.Transposed {
		return x*m.Width + y
	}
	return y*m.Width + x
}

// At returns the logical element at column x, row y
func (m Matrix[T]) At(x, y int) T {
	return m.Data[m.Index(x, y)]
}

// Set stores v at column x, row y
func (m Matrix[T]) Set(x, y int, v T) {
	m.Data[m.Index(x, y)] = v
}

// T returns the same buffer read as its transpose
func (m Matrix[T]) T() Matrix[T] {
	m.Transposed = !m.Transposed
	return m
}

// Print writes the matrix as read, one row per line
func (m Matrix[T]) Print(w io.Writer) error {
	if _, err := fmt.Fprintln(w, m.Transposed); err != nil {
		return err
	}
	return m.Fprint(w, "%10.0f  ")
}

// Fprint writes every element with the given verb, one row per line
func (m Matrix[T]) Fprint(w io.Writer, verb string) error {
	for y := 0; y < m.EffectiveHeight(); y++ {
		for x := 0; x < m.EffectiveWidth(); x++ {
			if _, err := fmt.Fprintf(w, verb, float64(m.At(x, y))); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func (m Matrix[T]) String() string {
	return fmt.Sprintf("Matrix[%dx%d transposed=%t]", m.EffectiveWidth(), m.EffectiveHeight(), m.Transposed)
}
