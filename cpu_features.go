// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tilegrid

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks the SIMD extensions relevant to register blocking
type CPUFeatures struct {
	HasAVX     bool
	HasAVX2    bool
	HasAVX512F bool
	HasFMA     bool
	HasSSE4    bool
	HasNEON    bool
	HasSVE     bool
}

// Global CPU feature detection
var cpuFeatures CPUFeatures

func init() {
	detectCPUFeatures()
}

// detectCPUFeatures populates the global cpuFeatures struct. The x86 and
// ARM64 fields of x/sys/cpu exist on every platform and are simply false
// off their architecture.
func detectCPUFeatures() {
	cpuFeatures = CPUFeatures{
		HasSSE4:    cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:     cpu.X86.HasAVX,
		HasAVX2:    cpu.X86.HasAVX2,
		HasAVX512F: cpu.X86.HasAVX512F,
		HasFMA:     cpu.X86.HasFMA,
		HasNEON:    cpu.ARM64.HasASIMD,
		HasSVE:     cpu.ARM64.HasSVE,
	}
}

// DetectedFeatures returns the features found at start-up
func DetectedFeatures() CPUFeatures {
	return cpuFeatures
}

// PreferredColumnBlock returns how many adjacent output columns one
// work-item should accumulate. Wide vector units keep 8 accumulators in
// registers; narrower ones spill past 4.
func (f CPUFeatures) PreferredColumnBlock() int {
	switch {
	case f.HasAVX512F, f.HasAVX2 && f.HasFMA, f.HasSVE:
		return MaxColumnBlock
	case f.HasNEON, f.HasAVX, f.HasSSE4:
		return 4
	default:
		return 2
	}
}

// String returns a string describing available CPU features
func (f CPUFeatures) String() string {
	var features []string
	if f.HasSSE4 {
		features = append(features, "SSE4")
	}
	if f.HasAVX {
		features = append(features, "AVX")
	}
	if f.HasAVX2 {
		features = append(features, "AVX2")
	}
	if f.HasFMA {
		features = append(features, "FMA")
	}
	if f.HasAVX512F {
		features = append(features, "AVX512F")
	}
	if f.HasNEON {
		features = append(features, "NEON")
	}
	if f.HasSVE {
		features = append(features, "SVE")
	}

	if len(features) == 0 {
		return "No SIMD extensions detected"
	}
	return "CPU features: " + strings.Join(features, ", ")
}
