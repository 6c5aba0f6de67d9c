// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tilegrid tolerance-based verification for floating-point comparisons
package tilegrid

import (
	"fmt"
	"math"
)

// Float is the element type of every buffer the engines operate on
type Float interface {
	~float32 | ~float64
}

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float64

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float64

	// CheckNaN determines if NaN values should be considered equal
	CheckNaN bool
}

// DefaultTolerance returns the tolerance used for cross-backend agreement
// on random inputs
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-7,
		RelTol:   DefaultRelTol,
		CheckNaN: true,
	}
}

// ExactTolerance accepts only identical values. Integer-valued inputs below
// 2^24 multiply exactly in single precision, so every backend must agree bit
// for bit on them.
func ExactTolerance() ToleranceConfig {
	return ToleranceConfig{CheckNaN: true}
}

// NearEqual checks if two values are equal within tolerance
func NearEqual[T Float](a, b T, tol ToleranceConfig) bool {
	x, y := float64(a), float64(b)

	if tol.CheckNaN && math.IsNaN(x) && math.IsNaN(y) {
		return true
	}

	// Check if exactly equal (handles ±0 and matching infinities)
	if x == y {
		return true
	}

	diff := math.Abs(x - y)
	if diff <= tol.AbsTol {
		return true
	}

	larger := math.Max(math.Abs(x), math.Abs(y))
	return diff <= larger*tol.RelTol
}

// VerificationResult summarises an element-wise comparison
type VerificationResult struct {
	MaxAbsError float64
	MaxRelError float64
	NumErrors   int
	TotalItems  int
	FirstError  int // Index of first error, -1 if none
}

// VerifyArray compares two arrays and returns detailed results
func VerifyArray[T Float](expected, actual []T, tol ToleranceConfig) VerificationResult {
	result := VerificationResult{
		TotalItems: len(expected),
		FirstError: -1,
	}

	if len(expected) != len(actual) {
		result.NumErrors = len(expected)
		result.FirstError = 0
		return result
	}

	for i := range expected {
		if NearEqual(expected[i], actual[i], tol) {
			continue
		}
		result.NumErrors++
		if result.FirstError == -1 {
			result.FirstError = i
		}

		absDiff := math.Abs(float64(expected[i]) - float64(actual[i]))
		result.MaxAbsError = math.Max(result.MaxAbsError, absDiff)

		// Relative error (avoid division by zero)
		if expected[i] != 0 {
			relDiff := absDiff / math.Abs(float64(expected[i]))
			result.MaxRelError = math.Max(result.MaxRelError, relDiff)
		}
	}

	return result
}

// OK reports whether every element matched
func (r VerificationResult) OK() bool {
	return r.NumErrors == 0
}

// String formats the verification result for display
func (r VerificationResult) String() string {
	if r.NumErrors == 0 {
		return "PASS: All values match within tolerance"
	}

	errorRate := float64(r.NumErrors) / float64(r.TotalItems) * 100
	return fmt.Sprintf("FAIL: %d/%d values differ (%.2f%%)\n"+
		"  Max absolute error: %e\n"+
		"  Max relative error: %e\n"+
		"  First error at index: %d",
		r.NumErrors, r.TotalItems, errorRate,
		r.MaxAbsError, r.MaxRelError,
		r.FirstError)
}
