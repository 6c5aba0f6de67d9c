// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package risk computes variance-covariance Value-at-Risk for a weighted
// portfolio from historical instrument prices.
//
// The computation is a fixed sequence of six data-parallel stages, each
// joined before the next starts:
//
//	Returns        ex[i, o-1] = p[i, o]/p[i, o-1] - 1
//	AverageReturn  mean[i] = average of ex[i, *] (and the mean price)
//	Centering      ex[i, o] -= mean[i]
//	Covariance     cov = exᵀ·ex / (Observations-1)
//	Weighting      weighted return and weighted covariance per instrument
//	Reduction      portfolio variance and weighted average return
//
// Two backends run the stages: Tiled launches grouped kernels on an
// Executor, CPU runs task batches on a Pool. Both agree within floating
// point tolerance.
package risk

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"k8s.io/klog/v2"

	"github.com/LynnColeArt/tilegrid"
	"github.com/LynnColeArt/tilegrid/dense"
)

// Backend selects where the stages run
type Backend int

const (
	// Tiled launches one grouped kernel per stage
	Tiled Backend = iota
	// CPU runs one batch of pool tasks per stage
	CPU
)

func (b Backend) String() string {
	switch b {
	case Tiled:
		return "tiled"
	case CPU:
		return "cpu"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// Weighting selects how instrument weights enter the portfolio variance
type Weighting int

const (
	// DiagonalQuadratic scales each covariance row sum by the square of the
	// row instrument's weight
	DiagonalQuadratic Weighting = iota
	// CrossWeighted computes the full quadratic form wᵀ·cov·w
	CrossWeighted
)

func (w Weighting) String() string {
	switch w {
	case DiagonalQuadratic:
		return "diagonal-quadratic"
	case CrossWeighted:
		return "cross-weighted"
	}
	return fmt.Sprintf("Weighting(%d)", int(w))
}

// Stage is a step of the pipeline. A Pipeline reports the last stage it
// completed.
type Stage int

const (
	StagePending Stage = iota
	StageReturns
	StageAverageReturn
	StageCentering
	StageCovariance
	StageWeighting
	StageReduction
	StageFailed
)

var stageNames = [...]string{
	StagePending:       "pending",
	StageReturns:       "returns",
	StageAverageReturn: "average-return",
	StageCentering:     "centering",
	StageCovariance:    "covariance",
	StageWeighting:     "weighting",
	StageReduction:     "reduction",
	StageFailed:        "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// stages in execution order
var stages = []Stage{
	StageReturns,
	StageAverageReturn,
	StageCentering,
	StageCovariance,
	StageWeighting,
	StageReduction,
}

// Option configures a Pipeline
type Option func(*config)

type config struct {
	backend     Backend
	weighting   Weighting
	device      *tilegrid.Device
	exec        tilegrid.Executor
	pool        *tilegrid.Pool
	maxTileEdge int
	debug       io.Writer
}

// WithBackend selects the backend
func WithBackend(b Backend) Option {
	return func(c *config) { c.backend = b }
}

// WithWeighting selects the weighting mode
func WithWeighting(w Weighting) Option {
	return func(c *config) { c.weighting = w }
}

// WithDevice sets the device of the default executor and pool
func WithDevice(d *tilegrid.Device) Option {
	return func(c *config) { c.device = d }
}

// WithExecutor runs the tiled backend on e
func WithExecutor(e tilegrid.Executor) Option {
	return func(c *config) { c.exec = e }
}

// WithPool runs the CPU backend on p. The caller keeps ownership of p.
func WithPool(p *tilegrid.Pool) Option {
	return func(c *config) { c.pool = p }
}

// WithMaxTileEdge bounds the tile edge of the tiled backend
func WithMaxTileEdge(edge int) Option {
	return func(c *config) { c.maxTileEdge = edge }
}

// WithDebug dumps the output of every stage to w
func WithDebug(w io.Writer) Option {
	return func(c *config) { c.debug = w }
}

// stageRunner runs one stage on one backend
type stageRunner interface {
	run(ctx context.Context, s Stage) error
}

// Pipeline computes VaR for one dataset. It runs exactly once.
type Pipeline struct {
	ds    Dataset
	cfg   config
	stage Stage

	// excess holds Instruments x (Observations-1) returns, observation-major
	excess []float64
	// stats holds the mean price and mean return of every instrument
	stats       []float64
	cov         []float64
	weightedCov []float64
	weightedRet []float64
	// results holds the weighted average return and the portfolio variance
	results [2]float64

	stdDev  float64
	summary Summary
}

// New validates ds and allocates the pipeline's buffers
func New(ds Dataset, opts ...Option) (*Pipeline, error) {
	if err := ds.validate(); err != nil {
		return nil, err
	}
	cfg := config{
		backend:     Tiled,
		weighting:   DiagonalQuadratic,
		maxTileEdge: tilegrid.RiskMaxTileEdge,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.device == nil {
		cfg.device = tilegrid.DefaultDevice()
	}
	if cfg.weighting != DiagonalQuadratic && cfg.weighting != CrossWeighted {
		return nil, tilegrid.NewInvalidArgError("risk.New", fmt.Sprintf("unknown weighting %v", cfg.weighting))
	}
	if cfg.backend != Tiled && cfg.backend != CPU {
		return nil, tilegrid.NewInvalidArgError("risk.New", fmt.Sprintf("unknown backend %v", cfg.backend))
	}

	n := ds.Instruments
	return &Pipeline{
		ds:          ds,
		cfg:         cfg,
		excess:      make([]float64, n*(ds.Observations-1)),
		stats:       make([]float64, 2*n),
		cov:         make([]float64, n*n),
		weightedCov: make([]float64, n),
		weightedRet: make([]float64, n),
	}, nil
}

// Execute runs the six stages in order. A second call returns
// ErrAlreadyExecuted. After a failure the outputs are undefined and Stage
// reports StageFailed.
//
// A portfolio variance that is negative, NaN or infinite fails with a
// Numerical error rather than yielding a NaN standard deviation. The
// diagonal weighting mode can produce a negative variance when instruments
// are strongly anti-correlated.
func (p *Pipeline) Execute(ctx context.Context) error {
	if p.stage != StagePending {
		return tilegrid.ErrAlreadyExecuted
	}

	var runner stageRunner
	switch p.cfg.backend {
	case CPU:
		pool := p.cfg.pool
		if pool == nil {
			pool = tilegrid.NewPool(p.cfg.device.NumCores)
			defer pool.Close()
		}
		runner = &cpuBackend{p: p, pool: pool}
	default:
		exec := p.cfg.exec
		if exec == nil {
			exec = tilegrid.NewGroupedExecutor(p.cfg.device)
		}
		runner = newTiledBackend(p, exec)
	}

	start := time.Now()
	for _, s := range stages {
		stageStart := time.Now()
		if err := runner.run(ctx, s); err != nil {
			p.stage = StageFailed
			return fmt.Errorf("var stage %v: %w", s, err)
		}
		p.stage = s
		klog.V(2).InfoS("var stage finished", "stage", s, "backend", p.cfg.backend,
			"elapsed", time.Since(stageStart))
		if p.cfg.debug != nil {
			if err := p.dump(p.cfg.debug, s); err != nil {
				p.stage = StageFailed
				return fmt.Errorf("var stage %v debug: %w", s, err)
			}
		}
	}

	variance := p.results[1]
	if math.IsNaN(variance) || math.IsInf(variance, 0) || variance < 0 {
		p.stage = StageFailed
		return tilegrid.NewNumericalError("risk.Execute", fmt.Sprintf("portfolio variance %g", variance))
	}
	p.stdDev = math.Sqrt(variance)
	p.summary = NewSummary(p.results[0], p.stdDev, p.ds.PortfolioValue)

	klog.V(2).InfoS("var finished", "instruments", p.ds.Instruments, "observations", p.ds.Observations,
		"backend", p.cfg.backend, "weighting", p.cfg.weighting, "elapsed", time.Since(start))
	return nil
}

// Stage returns the last completed stage
func (p *Pipeline) Stage() Stage { return p.stage }

// Backend returns the backend the pipeline runs on
func (p *Pipeline) Backend() Backend { return p.cfg.backend }

// PortfolioStdDev returns the square root of the portfolio variance
func (p *Pipeline) PortfolioStdDev() float64 { return p.stdDev }

// WeightedAverageReturn returns the weight-averaged mean return
func (p *Pipeline) WeightedAverageReturn() float64 { return p.results[0] }

// PortfolioValue returns the dataset's portfolio value
func (p *Pipeline) PortfolioValue() float64 { return p.ds.PortfolioValue }

// VarianceCovariance returns the covariance of instruments x and y
func (p *Pipeline) VarianceCovariance(x, y int) float64 {
	return p.cov[y*p.ds.Instruments+x]
}

// VarianceCovarianceMatrix returns the full covariance matrix
func (p *Pipeline) VarianceCovarianceMatrix() dense.Matrix[float64] {
	n := p.ds.Instruments
	return dense.Matrix[float64]{Data: p.cov, Width: n, Height: n}
}

// WeightedCovariance returns the per-instrument weighted covariance
func (p *Pipeline) WeightedCovariance() []float64 { return p.weightedCov }

// WeightedReturns returns the per-instrument weighted mean return
func (p *Pipeline) WeightedReturns() []float64 { return p.weightedRet }

// ExcessReturns returns the centered returns, observation-major with
// Instruments columns and Observations-1 rows
func (p *Pipeline) ExcessReturns() dense.Matrix[float64] {
	return dense.Matrix[float64]{Data: p.excess, Width: p.ds.Instruments, Height: p.ds.Observations - 1}
}

// Statistics returns the mean price and the mean return of an instrument
func (p *Pipeline) Statistics(instr int) (meanPrice, meanReturn float64) {
	return p.stats[2*instr], p.stats[2*instr+1]
}

// VaRPercent returns the VaR as a fraction of the portfolio, per percentile
func (p *Pipeline) VaRPercent() [NumPercentiles]float64 { return p.summary.VaRPercent }

// VaRValue returns the VaR in currency, per percentile
func (p *Pipeline) VaRValue() [NumPercentiles]float64 { return p.summary.VaRValue }

// Summary returns the full VaR summary
func (p *Pipeline) Summary() Summary { return p.summary }

// dump writes the output of stage s
func (p *Pipeline) dump(w io.Writer, s Stage) error {
	if _, err := fmt.Fprintf(w, "# %v\n", s); err != nil {
		return err
	}
	const verb = "%+.12f     "
	switch s {
	case StageReturns, StageCentering:
		return p.ExcessReturns().Fprint(w, verb)
	case StageAverageReturn:
		stats := dense.Matrix[float64]{Data: p.stats, Width: 2, Height: p.ds.Instruments}
		return stats.T().Fprint(w, verb)
	case StageCovariance:
		return p.VarianceCovarianceMatrix().Fprint(w, verb)
	case StageWeighting:
		for i := range p.weightedRet {
			if _, err := fmt.Fprintf(w, "Weighted Avg Return=%+.12f Weighted Covariance=%+.12f\n",
				p.weightedRet[i], p.weightedCov[i]); err != nil {
				return err
			}
		}
	case StageReduction:
		_, err := fmt.Fprintf(w, "Weighted Avg Return=%+.12f Variance=%+.12f\n", p.results[0], p.results[1])
		return err
	}
	return nil
}
