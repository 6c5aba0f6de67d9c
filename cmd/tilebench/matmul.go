// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/LynnColeArt/tilegrid"
	"github.com/LynnColeArt/tilegrid/internal/benchlog"
	"github.com/LynnColeArt/tilegrid/internal/fixture"
	"github.com/LynnColeArt/tilegrid/matmul"
)

var precisions = []string{"single", "double", "both"}

type matmulOptions struct {
	*rootOptions
	size       int
	runs       int
	strategies []string
	precision  string
	executor   string
}

func newMatmulCommand(root *rootOptions) *cobra.Command {
	opts := &matmulOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "matmul",
		Short: "Multiply two incrementing square matrices with each strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.size, "size", 256, "matrix edge")
	cmd.Flags().IntVar(&opts.runs, "runs", 3, "runs per strategy")
	cmd.Flags().StringSliceVar(&opts.strategies, "strategy", []string{"naive", "tiled", "blocked"},
		"strategies to run: "+fmt.Sprint(matmul.Strategies()))
	cmd.Flags().StringVar(&opts.precision, "precision", "both", "single, double or both")
	cmd.Flags().StringVar(&opts.executor, "executor", "grouped", "grouped or barrier")
	return cmd
}

func (o *matmulOptions) run(ctx context.Context, out io.Writer) error {
	if o.size < 1 || o.runs < 1 {
		return fmt.Errorf("size and runs must be positive, got %d and %d", o.size, o.runs)
	}
	if !lo.Contains(precisions, o.precision) {
		return fmt.Errorf("unknown precision %q, want one of %v", o.precision, precisions)
	}
	strategies, err := parseStrategies(o.strategies)
	if err != nil {
		return err
	}
	exec, err := o.newExecutor()
	if err != nil {
		return err
	}

	session, err := o.session("matmul")
	if err != nil {
		return err
	}

	if o.precision != "double" {
		fmt.Fprintf(out, "Matrix Multiplication Single Precision %dx%d\n", o.size, o.size)
		if err := benchmarkMatmul[float32](ctx, out, o, session, exec, strategies, 1e-4); err != nil {
			return err
		}
	}
	if o.precision != "single" {
		fmt.Fprintf(out, "Matrix Multiplication Double Precision %dx%d\n", o.size, o.size)
		if err := benchmarkMatmul[float64](ctx, out, o, session, exec, strategies, tilegrid.DefaultRelTol); err != nil {
			return err
		}
	}

	if session.File() != "" {
		fmt.Fprintln(out, "Results written to", session.File())
	}
	benchlog.PrintSummary(out, session.Results())
	return nil
}

func (o *matmulOptions) newExecutor() (tilegrid.Executor, error) {
	switch o.executor {
	case "grouped":
		return tilegrid.NewGroupedExecutor(o.device()), nil
	case "barrier":
		return tilegrid.NewBarrierExecutor(o.device()), nil
	}
	return nil, fmt.Errorf("unknown executor %q", o.executor)
}

func parseStrategies(names []string) ([]matmul.Strategy, error) {
	var firstErr error
	strategies := lo.FilterMap(names, func(name string, _ int) (matmul.Strategy, bool) {
		s, err := matmul.ParseStrategy(name)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return s, err == nil
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return lo.Uniq(strategies), nil
}

func benchmarkMatmul[T tilegrid.Float](ctx context.Context, out io.Writer, o *matmulOptions, session *benchlog.Session,
	exec tilegrid.Executor, strategies []matmul.Strategy, relTol float64) error {

	n := o.size
	a := fixture.Incrementing[T](n, n, 0, false)
	b := fixture.Incrementing[T](n, n, 0, false)
	tol := tilegrid.ToleranceConfig{RelTol: relTol}

	for _, s := range strategies {
		name := fmt.Sprintf("matmul/%s/%T/%d", s, T(0), n)
		params := map[string]string{
			"strategy": s.String(),
			"size":     strconv.Itoa(n),
			"executor": exec.Name(),
		}

		m, err := matmul.New(a, b, matmul.WithStrategy(s), matmul.WithExecutor(exec), matmul.WithDevice(o.device()))
		if err != nil {
			return err
		}
		durations, err := timeRuns(out, o.runs, func() error {
			if err := m.Execute(ctx); err != nil {
				return err
			}
			return verifyCorners(m, n, tol)
		})
		if err != nil {
			if lerr := session.Fail(name, params, err); lerr != nil {
				return lerr
			}
			return fmt.Errorf("%s: %w", name, err)
		}

		params["tile"] = strconv.Itoa(m.Plan().TileSize)
		fmt.Fprintf(out, "%v multiplication (%v) average %v\n", s, m.Plan(), average(durations))
		if err := session.Pass(name, params, durations); err != nil {
			return err
		}
	}
	return nil
}

// verifyCorners checks the four corners of the result against the closed
// form for incrementing operands
func verifyCorners[T tilegrid.Float](m *matmul.Multiplication[T], n int, tol tilegrid.ToleranceConfig) error {
	for _, c := range [][2]int{{0, 0}, {0, n - 1}, {n - 1, 0}, {n - 1, n - 1}} {
		want := fixture.CheckValue(c[0], c[1], n)
		got := float64(m.At(matmul.OperandR, c[0], c[1]))
		if !tilegrid.NearEqual(want, got, tol) {
			return tilegrid.NewNumericalError("verify",
				fmt.Sprintf("R(%d,%d)=%g, want %g (rel err %.2e)", c[0], c[1], got, want, math.Abs(got-want)/want))
		}
	}
	return nil
}
