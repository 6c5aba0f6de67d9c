// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package risk

import (
	"fmt"

	"github.com/LynnColeArt/tilegrid"
)

// Layout describes how Dataset.Prices is ordered
type Layout int

const (
	// ObservationMajor stores all instruments of one observation together:
	// Prices[instrument + observation*Instruments]
	ObservationMajor Layout = iota
	// InstrumentMajor stores the whole history of one instrument together:
	// Prices[observation + instrument*Observations]
	InstrumentMajor
)

func (l Layout) String() string {
	switch l {
	case ObservationMajor:
		return "observation-major"
	case InstrumentMajor:
		return "instrument-major"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// Dataset is the input of a VaR pipeline
type Dataset struct {
	Prices         []float64
	Weights        []float64
	PortfolioValue float64
	Instruments    int
	Observations   int
	Layout         Layout
}

// Price returns the price of instr at observation obs
func (d *Dataset) Price(instr, obs int) float64 {
	if d.Layout == InstrumentMajor {
		return d.Prices[obs+instr*d.Observations]
	}
	return d.Prices[instr+obs*d.Instruments]
}

func (d *Dataset) validate() error {
	const op = "risk.New"
	switch {
	case d.Instruments < 1:
		return tilegrid.NewInvalidArgError(op, fmt.Sprintf("need at least one instrument, got %d", d.Instruments))
	case d.Observations < 2:
		return tilegrid.NewInvalidArgError(op, fmt.Sprintf("need at least two observations, got %d", d.Observations))
	case len(d.Prices) != d.Instruments*d.Observations:
		return tilegrid.NewInvalidArgError(op, fmt.Sprintf("%d instruments x %d observations needs %d prices, got %d",
			d.Instruments, d.Observations, d.Instruments*d.Observations, len(d.Prices)))
	case len(d.Weights) != d.Instruments:
		return tilegrid.NewInvalidArgError(op, fmt.Sprintf("need %d weights, got %d", d.Instruments, len(d.Weights)))
	case d.Layout != ObservationMajor && d.Layout != InstrumentMajor:
		return tilegrid.NewInvalidArgError(op, fmt.Sprintf("unknown layout %v", d.Layout))
	}
	return nil
}
