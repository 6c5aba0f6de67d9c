// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package matmul

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/LynnColeArt/tilegrid"
	"github.com/LynnColeArt/tilegrid/dense"
	"github.com/LynnColeArt/tilegrid/internal/fixture"
	"github.com/LynnColeArt/tilegrid/tiling"
)

var computeStrategies = []Strategy{Naive, Naive2D, Tiled, Blocked}

func testExecutors() []tilegrid.Executor {
	return []tilegrid.Executor{
		tilegrid.NewGroupedExecutor(nil),
		tilegrid.NewBarrierExecutor(nil),
	}
}

func multiply[T Float](t *testing.T, a, b dense.Matrix[T], opts ...Option) *Multiplication[T] {
	t.Helper()
	m, err := New(a, b, opts...)
	require.NoError(t, err)
	require.NoError(t, m.Execute(context.Background()))
	return m
}

// forEachBackend runs fn for every strategy on every executor
func forEachBackend(t *testing.T, fn func(t *testing.T, opts ...Option)) {
	for _, exec := range testExecutors() {
		for _, s := range computeStrategies {
			t.Run(fmt.Sprintf("%s/%s", exec.Name(), s), func(t *testing.T) {
				fn(t, WithExecutor(exec), WithStrategy(s), WithColumnBlock(tilegrid.MaxColumnBlock))
			})
		}
	}
}

type cell struct{ x, y int }

func TestIncrementingTransposeCombinations(t *testing.T) {
	const n = 10
	tests := []struct {
		name   string
		ta, tb bool
		want   map[cell]float64
	}{
		{
			name: "AxB",
			want: map[cell]float64{
				{0, 0}: 3355, {0, 9}: 44755, {9, 0}: 3850, {9, 9}: 53350,
				{3, 1}: 8420, {2, 6}: 32265, {7, 4}: 24940, {5, 9}: 49530,
			},
		},
		{
			name: "TAxB",
			ta:   true,
			want: map[cell]float64{
				{0, 0}: 29410, {9, 0}: 33550, {0, 9}: 33550, {9, 9}: 38500,
				{3, 1}: 31280, {2, 6}: 33210, {7, 4}: 34750, {5, 9}: 36300,
			},
		},
		{
			name: "AxTB",
			tb:   true,
			want: map[cell]float64{
				{0, 0}: 385, {9, 0}: 5335, {0, 9}: 5335, {9, 9}: 91285,
				{3, 1}: 5585, {2, 6}: 16785, {7, 4}: 34435, {5, 9}: 53085,
			},
		},
		{
			name: "TAxTB",
			ta:   true,
			tb:   true,
			want: map[cell]float64{
				{0, 0}: 3355, {9, 0}: 44755, {0, 9}: 3850, {9, 9}: 53350,
				{3, 1}: 17510, {2, 6}: 14085, {7, 4}: 38575, {5, 9}: 31350,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachBackend(t, func(t *testing.T, opts ...Option) {
				a := fixture.Incrementing[float64](n, n, 0, tt.ta)
				b := fixture.Incrementing[float64](n, n, 0, tt.tb)
				m := multiply(t, a, b, opts...)

				require.Equal(t, n, m.ResultWidth())
				require.Equal(t, n, m.ResultHeight())
				for c, want := range tt.want {
					assert.Equal(t, want, m.At(OperandR, c.x, c.y), "R(%d,%d)", c.x, c.y)
				}
			})
		})
	}
}

func TestCheckValueMatchesEveryCell(t *testing.T) {
	const n = 10
	forEachBackend(t, func(t *testing.T, opts ...Option) {
		a := fixture.Incrementing[float32](n, n, 0, false)
		b := fixture.Incrementing[float32](n, n, 0, false)
		m := multiply(t, a, b, opts...)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				require.Equal(t, float32(fixture.CheckValue(x, y, n)), m.At(OperandR, x, y), "R(%d,%d)", x, y)
			}
		}
	})
}

func TestOffsetScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, opts ...Option) {
		a := fixture.Incrementing[float64](10, 10, 0, false)
		b := fixture.Incrementing[float64](10, 10, 100, false)
		m := multiply(t, a, b, opts...)

		assert.Equal(t, 8855.0, m.At(OperandR, 0, 0))
		assert.Equal(t, 9350.0, m.At(OperandR, 9, 0))
		assert.Equal(t, 140255.0, m.At(OperandR, 0, 9))
		assert.Equal(t, 148850.0, m.At(OperandR, 9, 9))
	})
}

func TestNonSquare(t *testing.T) {
	t.Run("CxD", func(t *testing.T) {
		forEachBackend(t, func(t *testing.T, opts ...Option) {
			c := fixture.Incrementing[float64](4, 10, 0, false)
			d := fixture.Incrementing[float64](10, 4, 0, false)
			m := multiply(t, c, d, opts...)

			require.Equal(t, 10, m.ResultWidth())
			require.Equal(t, 10, m.ResultHeight())
			want := map[cell]float64{
				{0, 0}: 210, {9, 0}: 300, {0, 9}: 2514, {9, 9}: 3900,
				{3, 1}: 544, {2, 6}: 1958, {7, 4}: 1752, {5, 9}: 3284,
			}
			for c, v := range want {
				assert.Equal(t, v, m.At(OperandR, c.x, c.y), "R(%d,%d)", c.x, c.y)
			}
		})
	})

	t.Run("TCxC", func(t *testing.T) {
		forEachBackend(t, func(t *testing.T, opts ...Option) {
			c := fixture.Incrementing[float64](8, 4, 0, false)
			m := multiply(t, c.T(), c, opts...)

			require.Equal(t, 8, m.ResultWidth())
			require.Equal(t, 8, m.ResultHeight())
			assert.Equal(t, 996.0, m.At(OperandR, 0, 0))
			assert.Equal(t, 1360.0, m.At(OperandR, 7, 0))
			assert.Equal(t, 1360.0, m.At(OperandR, 0, 7))
			assert.Equal(t, 1920.0, m.At(OperandR, 7, 7))
		})
	})
}

func TestDimensionMismatch(t *testing.T) {
	a := fixture.Incrementing[float64](10, 10, 0, false)
	d := fixture.Incrementing[float64](10, 4, 0, false)

	_, err := New(a, d)
	require.Error(t, err)
	assert.ErrorIs(t, err, tilegrid.ErrDimensionMismatch)
	assert.True(t, tilegrid.IsDimensionMismatch(err))
	assert.Contains(t, err.Error(), "A.width=10 while B.height=4")

	_, err = New(a, d.T())
	assert.NoError(t, err)

	c := fixture.Incrementing[float64](4, 10, 0, false)
	_, err = New(c, d)
	assert.NoError(t, err)
}

func TestMalformedOperand(t *testing.T) {
	a := dense.Matrix[float64]{Data: make([]float64, 5), Width: 2, Height: 3}
	b := fixture.Incrementing[float64](3, 2, 0, false)
	_, err := New(a, b)
	assert.ErrorIs(t, err, tilegrid.ErrInvalidArg)
}

// gonumProduct computes op(a)·op(b) with gonum as an independent oracle
func gonumProduct(a, b dense.Matrix[float64]) []float64 {
	var want mat.Dense
	want.Mul(dense.Gonum(a), dense.Gonum(b))
	return dense.FromGonum(&want).Data
}

func TestRandomAgainstGonum(t *testing.T) {
	shapes := []struct {
		m, k, n int
	}{
		{16, 16, 16},
		{64, 64, 64},
		{37, 29, 41},
		{1, 7, 1},
		{33, 1, 17},
	}
	approx := cmpopts.EquateApprox(tilegrid.DefaultRelTol, 1e-9)

	for i, s := range shapes {
		for _, ta := range []bool{false, true} {
			for _, tb := range []bool{false, true} {
				// Stored shapes are chosen so the effective shapes are m x k and k x n
				a := fixture.Random[float64](s.k, s.m, uint64(i))
				if ta {
					a = fixture.Random[float64](s.m, s.k, uint64(i))
					a.Transposed = true
				}
				b := fixture.Random[float64](s.n, s.k, uint64(i+100))
				if tb {
					b = fixture.Random[float64](s.k, s.n, uint64(i+100))
					b.Transposed = true
				}
				want := gonumProduct(a, b)

				name := fmt.Sprintf("%dx%dx%d/ta=%t/tb=%t", s.m, s.k, s.n, ta, tb)
				t.Run(name, func(t *testing.T) {
					for _, st := range computeStrategies {
						m := multiply(t, a, b, WithStrategy(st), WithColumnBlock(tilegrid.MaxColumnBlock))
						if diff := cmp.Diff(want, m.Result(), approx); diff != "" {
							t.Errorf("%v result mismatch (-gonum +got):\n%s", st, diff)
						}
					}
				})
			}
		}
	}
}

func widen(m dense.Matrix[float32]) dense.Matrix[float64] {
	out := dense.Matrix[float64]{Data: make([]float64, len(m.Data)), Width: m.Width, Height: m.Height, Transposed: m.Transposed}
	for i, v := range m.Data {
		out.Data[i] = float64(v)
	}
	return out
}

func TestRandomFloat32AgainstGonum(t *testing.T) {
	shapes := []struct {
		m, k, n  int
		wantTile int
	}{
		{64, 64, 64, 16},
		{16, 48, 32, 16},
		{24, 40, 8, 8},
		{37, 29, 41, 2},
	}
	// Single precision sums drift by a few ulps; AbsTol covers results
	// that cancel to near zero
	tol := tilegrid.ToleranceConfig{AbsTol: 1e-4, RelTol: tilegrid.DefaultRelTol}

	for i, s := range shapes {
		for _, ta := range []bool{false, true} {
			a := fixture.Random[float32](s.k, s.m, uint64(i+200))
			if ta {
				a = fixture.Random[float32](s.m, s.k, uint64(i+200))
				a.Transposed = true
			}
			b := fixture.Random[float32](s.n, s.k, uint64(i+300))
			want := gonumProduct(widen(a), widen(b))

			t.Run(fmt.Sprintf("%dx%dx%d/ta=%t", s.m, s.k, s.n, ta), func(t *testing.T) {
				for _, st := range computeStrategies {
					m := multiply(t, a, b, WithStrategy(st), WithColumnBlock(tilegrid.MaxColumnBlock))
					if st == Tiled || st == Blocked {
						assert.Equal(t, s.wantTile, m.Plan().TileSize, "%v plan", st)
					}
					got := widen(m.ResultMatrix()).Data
					if res := tilegrid.VerifyArray(want, got, tol); !res.OK() {
						t.Errorf("%v: %v", st, res)
					}
				}
			})
		}
	}
}

func TestNewKernelEdgeTiles(t *testing.T) {
	// 8-wide tiles over shapes no tile divides: edge groups stage zeros and
	// skip their writes
	a := fixture.Random[float64](29, 37, 1)
	b := fixture.Random[float64](41, 29, 2)
	want := gonumProduct(a, b)

	plan := tiling.Plan{TileSize: 8, NumTiles: 4, LocalCapacity: tilegrid.MaxTileEdge * tilegrid.MaxTileEdge}
	for _, cols := range []int{1, 2, 4, 8} {
		for _, exec := range testExecutors() {
			t.Run(fmt.Sprintf("cols=%d/%s", cols, exec.Name()), func(t *testing.T) {
				r := make([]float64, 41*37)
				kernel, rng, err := NewKernel(a, b, r, 1, plan, cols)
				require.NoError(t, err)
				require.NoError(t, tilegrid.Launch(context.Background(), exec, kernel, rng))
				assert.Empty(t, cmp.Diff(want, r, cmpopts.EquateApprox(1e-12, 1e-12)))
			})
		}
	}
}

func TestNewKernelAlpha(t *testing.T) {
	a := fixture.Incrementing[float64](4, 4, 0, false)
	r := make([]float64, 16)
	plan := tiling.NewPlanner(tilegrid.DefaultMaxGroupSize, tilegrid.MaxTileEdge).Plan(4, 4, 4)
	kernel, rng, err := NewKernel(a.T(), a, r, 0.5, plan, 1)
	require.NoError(t, err)
	require.NoError(t, tilegrid.Launch(context.Background(), tilegrid.NewGroupedExecutor(nil), kernel, rng))

	// column 0 of a is 1, 5, 9, 13
	assert.Equal(t, (1.0+25+81+169)/2, r[0])
}

func TestNewKernelRejects(t *testing.T) {
	a := fixture.Incrementing[float64](4, 4, 0, false)
	plan := tiling.Plan{TileSize: 4, NumTiles: 1, LocalCapacity: 16}

	_, _, err := NewKernel(a, a, make([]float64, 15), 1, plan, 1)
	assert.ErrorIs(t, err, tilegrid.ErrInvalidArg)

	_, _, err = NewKernel(a, a, make([]float64, 16), 1, plan, 3)
	assert.ErrorIs(t, err, tilegrid.ErrInvalidArg)

	_, _, err = NewKernel(a, fixture.Incrementing[float64](4, 3, 0, false), make([]float64, 16), 1, plan, 1)
	assert.ErrorIs(t, err, tilegrid.ErrDimensionMismatch)
}

func TestAutoStrategy(t *testing.T) {
	small := fixture.Incrementing[float64](4, 4, 0, false)
	m, err := New(small, small)
	require.NoError(t, err)
	assert.Equal(t, Naive, m.Strategy())

	big := fixture.Random[float64](64, 64, 3)
	m, err = New(big, big, WithColumnBlock(4))
	require.NoError(t, err)
	assert.Equal(t, Blocked, m.Strategy())
	assert.Equal(t, 16, m.Plan().TileSize)
	assert.Equal(t, 4, m.ColumnBlock())
}

func TestPlanFollowsDivisibility(t *testing.T) {
	a := fixture.Random[float64](24, 24, 4)
	m, err := New(a, a, WithStrategy(Tiled))
	require.NoError(t, err)
	assert.Equal(t, 8, m.Plan().TileSize)
	assert.Equal(t, 3, m.Plan().NumTiles)
	assert.Equal(t, 1, m.ColumnBlock())
}

func TestExecuteIsRepeatable(t *testing.T) {
	a := fixture.Incrementing[float64](8, 8, 0, false)
	m := multiply(t, a, a, WithStrategy(Blocked))
	first := append([]float64(nil), m.Result()...)
	require.NoError(t, m.Execute(context.Background()))
	assert.Equal(t, first, m.Result())
}

func TestSharedPool(t *testing.T) {
	pool := tilegrid.NewPool(2)
	defer pool.Close()

	a := fixture.Incrementing[float64](10, 10, 0, false)
	m := multiply(t, a, a, WithStrategy(Naive), WithPool(pool))
	assert.Equal(t, 53350.0, m.At(OperandR, 9, 9))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := fixture.Random[float64](32, 32, 5)
	for _, s := range computeStrategies {
		m, err := New(a, a, WithStrategy(s))
		require.NoError(t, err)
		assert.Error(t, m.Execute(ctx), "%v", s)
	}
}

func TestOperandAccessAndPrint(t *testing.T) {
	a := fixture.Incrementing[float64](3, 2, 0, false)
	b := fixture.Incrementing[float64](3, 2, 0, true)
	m := multiply(t, a, b)

	assert.Equal(t, 6.0, m.At(OperandA, 2, 1))
	// b read transposed: element (x=1, y=2) is stored at row 1, column 2
	assert.Equal(t, 6.0, m.At(OperandB, 1, 2))
	assert.Equal(t, 2, m.ResultWidth())
	assert.Equal(t, 2, m.ResultHeight())

	var buf bytes.Buffer
	require.NoError(t, m.Print(&buf, OperandB))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "true", lines[0])
	assert.Equal(t, []string{"1", "4"}, strings.Fields(lines[1]))

	assert.Panics(t, func() { m.At(Operand(7), 0, 0) })
}

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies() {
		got, err := ParseStrategy(strings.ToUpper(s.String()))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("systolic")
	assert.ErrorIs(t, err, tilegrid.ErrInvalidArg)
	assert.Equal(t, "Strategy(42)", Strategy(42).String())
}

func TestColumnBlockFor(t *testing.T) {
	tests := []struct {
		want, tile, expected int
	}{
		{8, 16, 8},
		{8, 4, 4},
		{6, 16, 4},
		{3, 2, 2},
		{1, 16, 1},
		{32, 32, tilegrid.MaxColumnBlock},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, columnBlockFor(tt.want, tt.tile), "want=%d tile=%d", tt.want, tt.tile)
	}
}

func BenchmarkMultiply(b *testing.B) {
	for _, n := range []int{64, 256} {
		a := fixture.Random[float32](n, n, 1)
		for _, s := range computeStrategies {
			b.Run(fmt.Sprintf("%v/%d", s, n), func(b *testing.B) {
				m, err := New(a, a, WithStrategy(s))
				if err != nil {
					b.Fatal(err)
				}
				b.SetBytes(int64(3 * n * n * 4))
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := m.Execute(context.Background()); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
