// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fixture generates deterministic inputs for tests and benchmarks.
package fixture

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/LynnColeArt/tilegrid"
	"github.com/LynnColeArt/tilegrid/dense"
)

// Incrementing returns a width x height matrix whose stored elements are
// 1+offset, 2+offset, ... in row-major order
func Incrementing[T tilegrid.Float](width, height int, offset T, transposed bool) dense.Matrix[T] {
	m := dense.Zeros[T](width, height)
	for i := range m.Data {
		m.Data[i] = T(i+1) + offset
	}
	m.Transposed = transposed
	return m
}

// CheckValue is element (x, y) of A·B where A and B are both the n x n
// Incrementing matrix with no offset:
//
//	sum over i of (n*y + i + 1) * (n*i + 1 + x)
func CheckValue(x, y, n int) float64 {
	var value float64
	for i := 0; i < n; i++ {
		value += float64(n*y+i+1) * float64(n*i+1+x)
	}
	return value
}

// Random returns a width x height matrix of uniform values in [-1, 1)
func Random[T tilegrid.Float](width, height int, seed uint64) dense.Matrix[T] {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	m := dense.Zeros[T](width, height)
	for i := range m.Data {
		m.Data[i] = T(2*rng.Float64() - 1)
	}
	return m
}

// Return distributions of the synthetic price histories: every instrument
// follows a shared market factor plus its own noise
var (
	marketReturn        = distuv.Normal{Mu: 0.0003, Sigma: 0.01}
	idiosyncraticReturn = distuv.Normal{Mu: 0, Sigma: 0.006}
)

// PriceHistory generates a geometric random walk for every instrument,
// stored observation-major (price of instrument i at observation o is
// prices[i+o*instruments]), and weights that sum to one.
func PriceHistory(instruments, observations int, seed uint64) (prices, weights []float64) {
	rng := rand.New(rand.NewPCG(seed, seed^0xda942042e4dd58b5))

	prices = make([]float64, instruments*observations)
	betas := make([]float64, instruments)
	for i := 0; i < instruments; i++ {
		prices[i] = 10 + 90*rng.Float64()
		betas[i] = 0.5 + rng.Float64()
	}
	for o := 1; o < observations; o++ {
		market := marketReturn.Quantile(uniform(rng))
		for i := 0; i < instruments; i++ {
			r := betas[i]*market + idiosyncraticReturn.Quantile(uniform(rng))
			prices[i+o*instruments] = prices[i+(o-1)*instruments] * (1 + r)
		}
	}

	weights = make([]float64, instruments)
	var total float64
	for i := range weights {
		weights[i] = 0.5 + rng.Float64()
		total += weights[i]
	}
	for i := range weights {
		weights[i] /= total
	}
	return prices, weights
}

// uniform draws from the open interval (0, 1), the domain of Quantile
func uniform(rng *rand.Rand) float64 {
	for {
		if u := rng.Float64(); u > 0 {
			return u
		}
	}
}
