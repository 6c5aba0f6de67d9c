// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package risk

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

// zStatFor returns the exact lower-tail z-statistic for a confidence level
// given as a fraction, e.g. 0.99
func zStatFor(confidence float64) float64 {
	return distuv.UnitNormal.Quantile(1 - confidence)
}

func TestSummaryValues(t *testing.T) {
	s := NewSummary(0.00344621, 0.00725828, 1_000_000)

	want := map[Percentile]float64{
		P90:  0.00585564,
		P95:  0.00849258,
		P975: 0.01077974,
		P99:  0.01343910,
	}
	for p, v := range want {
		assert.InDelta(t, v, s.VaRPercent[p], 1e-4, "%v", p)
		assert.InDelta(t, v*1_000_000, s.VaRValue[p], 1e-4*1_000_000, "%v", p)
	}
}

func TestSummaryZeroDeviation(t *testing.T) {
	s := NewSummary(0.01, 0, 500)
	for _, p := range Percentiles() {
		assert.Equal(t, -0.01, s.VaRPercent[p])
		assert.InDelta(t, -5.0, s.VaRValue[p], 1e-12)
	}
}

func TestZStatsMatchNormalQuantiles(t *testing.T) {
	for _, p := range Percentiles() {
		assert.InDelta(t, zStatFor(p.Percentage()/100), p.ZStat(), 1e-5, "%v", p)
		assert.Less(t, p.ZStat(), 0.0)
	}
}

func TestPercentileString(t *testing.T) {
	assert.Equal(t, "97.5%", P975.String())
	assert.Equal(t, "90.0%", P90.String())
	assert.Equal(t, "Percentile(4)", Percentile(NumPercentiles).String())
}

func TestSummaryFormat(t *testing.T) {
	s := NewSummary(0.00344621, 0.00725828, 1_000_000)

	var buf bytes.Buffer
	require.NoError(t, s.Format(&buf))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2+NumPercentiles)

	assert.Equal(t, "Weighted Average Return (%) = 0.34462", lines[0])
	assert.Equal(t, "Portfolio Standard Deviation (%) = 0.72583", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "VCV VaR (90.0%) = 0.59%"), lines[2])
	assert.Contains(t, lines[5], "VCV VaR (99.0%) = $13,439")
}
