// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tilebench benchmarks the matrix multiply engine and the VaR
// pipeline.
//
//	tilebench matmul --size 512 --runs 3 --strategy naive,tiled,blocked
//	tilebench var --instruments 4096 --observations 512 --mode both
package main

import (
	goflag "flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/tilegrid"
	"github.com/LynnColeArt/tilegrid/internal/benchlog"
)

type rootOptions struct {
	resultsDir string
	workers    int
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "tilebench",
		Short:         "Benchmark tiled matrix multiplication and portfolio VaR",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			klog.V(1).InfoS("device", "device", tilegrid.DefaultDevice().String())
		},
	}

	cmd.SetGlobalNormalizationFunc(wordSepNormalizeFunc)

	klogFlags := goflag.NewFlagSet("klog", goflag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.PersistentFlags().StringVar(&opts.resultsDir, "results-dir", "",
		"write a JSON session log of every run to this directory")
	cmd.PersistentFlags().IntVar(&opts.workers, "workers", 0,
		"worker goroutines for executors and pools (0 = one per CPU)")

	cmd.AddCommand(newMatmulCommand(opts), newVaRCommand(opts))
	return cmd
}

// wordSepNormalizeFunc accepts underscores in flag names, so klog's
// --log_file and --log-file are the same flag.
func wordSepNormalizeFunc(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if strings.Contains(name, "_") {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	}
	return pflag.NormalizedName(name)
}

func version() string {
	if v, _ := tilegrid.Version(); v != "" {
		return v
	}
	return "unknown"
}

// device returns the host device with the worker override applied
func (o *rootOptions) device() *tilegrid.Device {
	dev := *tilegrid.DefaultDevice()
	if o.workers > 0 {
		dev.NumCores = o.workers
	}
	return &dev
}

func (o *rootOptions) session(name string) (*benchlog.Session, error) {
	return benchlog.NewSession(o.resultsDir, name)
}

// timeRuns calls fn runs times and returns the duration of each call.
// A dot is printed per run, like a progress bar.
func timeRuns(out io.Writer, runs int, fn func() error) ([]time.Duration, error) {
	durations := make([]time.Duration, 0, runs)
	for i := 0; i < runs; i++ {
		start := time.Now()
		if err := fn(); err != nil {
			fmt.Fprintln(out)
			return durations, err
		}
		durations = append(durations, time.Since(start))
		fmt.Fprint(out, ".")
	}
	fmt.Fprintln(out)
	return durations, nil
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

func main() {
	defer klog.Flush()
	if err := newRootCommand().Execute(); err != nil {
		klog.ErrorS(err, "tilebench failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		klog.Flush()
		os.Exit(1)
	}
}
