// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package risk

import (
	"fmt"
	"io"

	"github.com/samber/lo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Percentile is a VaR confidence level
type Percentile int

const (
	P90 Percentile = iota
	P95
	P975
	P99

	// NumPercentiles is the number of supported confidence levels
	NumPercentiles = 4
)

// Lower-tail z-statistics of the standard normal distribution
var percentiles = [NumPercentiles]struct {
	percentage float64
	zstat      float64
}{
	P90:  {90, -1.28155},
	P95:  {95, -1.64485},
	P975: {97.5, -1.95996},
	P99:  {99, -2.32635},
}

// Percentiles returns every confidence level in ascending order
func Percentiles() []Percentile {
	return []Percentile{P90, P95, P975, P99}
}

// ZStat returns the fixed lower-tail z-statistic of the level
func (p Percentile) ZStat() float64 { return percentiles[p].zstat }

// Percentage returns the confidence level in percent
func (p Percentile) Percentage() float64 { return percentiles[p].percentage }

func (p Percentile) String() string {
	if p < 0 || p >= NumPercentiles {
		return fmt.Sprintf("Percentile(%d)", int(p))
	}
	return fmt.Sprintf("%.1f%%", p.Percentage())
}

// Summary holds the VaR figures derived from a pipeline's two scalars
type Summary struct {
	WeightedAverageReturn float64
	StdDev                float64
	PortfolioValue        float64

	// VaRPercent and VaRValue are indexed by Percentile
	VaRPercent [NumPercentiles]float64
	VaRValue   [NumPercentiles]float64
}

// NewSummary applies the fixed z-statistics to a weighted average return
// and a portfolio standard deviation
func NewSummary(weightedAverageReturn, stdDev, portfolioValue float64) Summary {
	s := Summary{
		WeightedAverageReturn: weightedAverageReturn,
		StdDev:                stdDev,
		PortfolioValue:        portfolioValue,
	}
	for _, p := range Percentiles() {
		s.VaRPercent[p] = -(weightedAverageReturn + p.ZStat()*stdDev)
		s.VaRValue[p] = portfolioValue * s.VaRPercent[p]
	}
	return s
}

// Format writes the summary report. Currency amounts are grouped by
// thousands.
func (s Summary) Format(w io.Writer) error {
	printer := message.NewPrinter(language.English)
	lines := []string{
		printer.Sprintf("Weighted Average Return (%%) = %.5f", s.WeightedAverageReturn*100),
		printer.Sprintf("Portfolio Standard Deviation (%%) = %.5f", s.StdDev*100),
	}
	lines = append(lines, lo.Map(Percentiles(), func(p Percentile, _ int) string {
		return printer.Sprintf("VCV VaR (%.1f%%) = %.2f%%     VCV VaR (%.1f%%) = $%.2f",
			p.Percentage(), s.VaRPercent[p]*100, p.Percentage(), s.VaRValue[p])
	})...)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
