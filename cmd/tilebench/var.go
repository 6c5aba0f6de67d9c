// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/LynnColeArt/tilegrid"
	"github.com/LynnColeArt/tilegrid/internal/benchlog"
	"github.com/LynnColeArt/tilegrid/internal/fixture"
	"github.com/LynnColeArt/tilegrid/risk"
)

var (
	varModes   = []string{"cpu", "tiled", "both"}
	weightings = map[string]risk.Weighting{
		"diagonal": risk.DiagonalQuadratic,
		"cross":    risk.CrossWeighted,
	}
)

type varOptions struct {
	*rootOptions
	instruments  int
	observations int
	runs         int
	mode         string
	weighting    string
	value        float64
	seed         uint64
	summary      bool
	debug        bool
}

func newVaRCommand(root *rootOptions) *cobra.Command {
	opts := &varOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "var",
		Short: "Compute portfolio Value-at-Risk on a synthetic price history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.instruments, "instruments", 256, "number of instruments")
	cmd.Flags().IntVar(&opts.observations, "observations", 512, "number of price observations per instrument")
	cmd.Flags().IntVar(&opts.runs, "runs", 3, "runs per backend")
	cmd.Flags().StringVar(&opts.mode, "mode", "both", "backends to run: cpu, tiled or both")
	cmd.Flags().StringVar(&opts.weighting, "weighting", "diagonal", "weighting mode: diagonal or cross")
	cmd.Flags().Float64Var(&opts.value, "value", 1_000_000, "portfolio value")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "seed of the synthetic price history")
	cmd.Flags().BoolVar(&opts.summary, "summary", true, "print the VaR summary of the last run")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "dump every stage of the last run")
	return cmd
}

func (o *varOptions) backends() []risk.Backend {
	switch o.mode {
	case "cpu":
		return []risk.Backend{risk.CPU}
	case "tiled":
		return []risk.Backend{risk.Tiled}
	}
	return []risk.Backend{risk.CPU, risk.Tiled}
}

func (o *varOptions) run(ctx context.Context, out io.Writer) error {
	if o.instruments < 1 || o.observations < 2 || o.runs < 1 {
		return fmt.Errorf("need at least 1 instrument, 2 observations and 1 run")
	}
	if !lo.Contains(varModes, o.mode) {
		return fmt.Errorf("unknown mode %q, want one of %v", o.mode, varModes)
	}
	weighting, ok := weightings[o.weighting]
	if !ok {
		return fmt.Errorf("unknown weighting %q, want one of %v", o.weighting, lo.Keys(weightings))
	}

	session, err := o.session("var")
	if err != nil {
		return err
	}

	prices, weights := fixture.PriceHistory(o.instruments, o.observations, o.seed)
	ds := risk.Dataset{
		Prices:         prices,
		Weights:        weights,
		PortfolioValue: o.value,
		Instruments:    o.instruments,
		Observations:   o.observations,
	}
	fmt.Fprintf(out, "Value At Risk for %d instruments and %d observations\n", o.instruments, o.observations)

	dev := o.device()
	pool := tilegrid.NewPool(dev.NumCores)
	defer pool.Close()
	exec := tilegrid.NewGroupedExecutor(dev)

	for _, backend := range o.backends() {
		name := fmt.Sprintf("var/%v/%dx%d", backend, o.instruments, o.observations)
		params := map[string]string{
			"backend":      backend.String(),
			"weighting":    weighting.String(),
			"instruments":  strconv.Itoa(o.instruments),
			"observations": strconv.Itoa(o.observations),
		}

		var last *risk.Pipeline
		run := 0
		durations, err := timeRuns(out, o.runs, func() error {
			run++
			opts := []risk.Option{
				risk.WithBackend(backend),
				risk.WithWeighting(weighting),
				risk.WithPool(pool),
				risk.WithExecutor(exec),
			}
			if o.debug && run == o.runs {
				opts = append(opts, risk.WithDebug(out))
			}
			p, err := risk.New(ds, opts...)
			if err != nil {
				return err
			}
			last = p
			return p.Execute(ctx)
		})
		if err != nil {
			if lerr := session.Fail(name, params, err); lerr != nil {
				return lerr
			}
			return fmt.Errorf("%s: %w", name, err)
		}

		fmt.Fprintf(out, "%v based VaR average %v\n", backend, average(durations))
		if o.summary {
			if err := last.Summary().Format(out); err != nil {
				return err
			}
		}
		if err := session.Pass(name, params, durations); err != nil {
			return err
		}
	}

	if session.File() != "" {
		fmt.Fprintln(out, "Results written to", session.File())
	}
	benchlog.PrintSummary(out, session.Results())
	return nil
}
