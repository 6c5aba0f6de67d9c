// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/tilegrid/internal/benchlog"
	"github.com/LynnColeArt/tilegrid/matmul"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMatmulCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := runCommand(t, "matmul", "--size", "16", "--runs", "2",
		"--strategy", "naive,naive2d,tiled,blocked,tiled", "--results-dir", dir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "Matrix Multiplication Single Precision 16x16")
	assert.Contains(t, out, "Matrix Multiplication Double Precision 16x16")
	assert.Contains(t, out, "Passed: 8 | Failed: 0")

	file, err := benchlog.Latest(dir)
	require.NoError(t, err)
	results, err := benchlog.Load(file)
	require.NoError(t, err)
	require.Len(t, results, 8)
	assert.Equal(t, 2, results[0].Runs)
	assert.Equal(t, "naive", results[0].Params["strategy"])
}

func TestMatmulCommandBarrierExecutor(t *testing.T) {
	out, err := runCommand(t, "matmul", "--size", "8", "--runs", "1",
		"--strategy", "tiled", "--precision", "double", "--executor", "barrier")
	require.NoError(t, err, out)
	assert.NotContains(t, out, "Single Precision")
	assert.Contains(t, out, "Passed: 1 | Failed: 0")
}

func TestMatmulCommandRejectsInput(t *testing.T) {
	_, err := runCommand(t, "matmul", "--strategy", "systolic")
	assert.Error(t, err)

	_, err = runCommand(t, "matmul", "--precision", "half")
	assert.Error(t, err)

	_, err = runCommand(t, "matmul", "--executor", "gpu")
	assert.Error(t, err)

	_, err = runCommand(t, "matmul", "--size", "0")
	assert.Error(t, err)
}

func TestVaRCommand(t *testing.T) {
	out, err := runCommand(t, "var", "--instruments", "16", "--observations", "8",
		"--runs", "2", "--workers", "2")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Value At Risk for 16 instruments and 8 observations")
	assert.Contains(t, out, "cpu based VaR average")
	assert.Contains(t, out, "tiled based VaR average")
	assert.Contains(t, out, "VCV VaR (99.0%)")
	assert.Contains(t, out, "Passed: 2 | Failed: 0")
}

func TestVaRCommandDebug(t *testing.T) {
	out, err := runCommand(t, "var", "--instruments", "4", "--observations", "4",
		"--runs", "1", "--mode", "tiled", "--weighting", "cross", "--debug", "--summary=false")
	require.NoError(t, err, out)
	assert.Contains(t, out, "# covariance")
	assert.NotContains(t, out, "VCV VaR")
}

func TestVaRCommandRejectsInput(t *testing.T) {
	_, err := runCommand(t, "var", "--mode", "gpu")
	assert.Error(t, err)

	_, err = runCommand(t, "var", "--weighting", "equal")
	assert.Error(t, err)

	_, err = runCommand(t, "var", "--observations", "1")
	assert.Error(t, err)
}

func TestParseStrategies(t *testing.T) {
	got, err := parseStrategies([]string{"tiled", "Blocked", "tiled"})
	require.NoError(t, err)
	assert.Equal(t, []matmul.Strategy{matmul.Tiled, matmul.Blocked}, got)
}

func TestVersionFlag(t *testing.T) {
	out, err := runCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "tilebench version ")
}

func TestFlagNamesNormalized(t *testing.T) {
	dir := t.TempDir()
	out, err := runCommand(t, "var", "--instruments", "4", "--observations", "4",
		"--runs", "1", "--mode", "cpu", "--results_dir", dir)
	require.NoError(t, err, out)
	_, err = benchlog.Latest(dir)
	assert.NoError(t, err)

	assert.Equal(t, pflag.NormalizedName("log-file"), wordSepNormalizeFunc(nil, "log_file"))
	assert.Equal(t, pflag.NormalizedName("v"), wordSepNormalizeFunc(nil, "v"))
}
