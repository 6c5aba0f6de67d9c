// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tilegrid

import (
	"fmt"
	"runtime"
	"sync"
)

// Device represents a compute device. In tilegrid this is the host CPU with
// its cores; groups of work-items are emulated on goroutines.
type Device struct {
	ID           int         // Unique device identifier
	Name         string      // Human-readable device name
	NumCores     int         // Number of CPU cores
	MaxGroupSize int         // Largest number of work-items synchronised as one group
	Features     CPUFeatures // Detected SIMD extensions
}

var (
	defaultDevice *Device
	initOnce      sync.Once
)

// DefaultDevice returns the host CPU device
func DefaultDevice() *Device {
	initOnce.Do(func() {
		defaultDevice = &Device{
			ID:           0,
			Name:         fmt.Sprintf("CPU (%s/%s)", runtime.GOOS, runtime.GOARCH),
			NumCores:     runtime.NumCPU(),
			MaxGroupSize: DefaultMaxGroupSize,
			Features:     DetectedFeatures(),
		}
	})
	return defaultDevice
}

// ColumnBlock returns the register-blocking width preferred on this device
func (d *Device) ColumnBlock() int {
	return d.Features.PreferredColumnBlock()
}

// String describes the device in one line
func (d *Device) String() string {
	return fmt.Sprintf("%s: %d cores, max group size %d, %s",
		d.Name, d.NumCores, d.MaxGroupSize, d.Features)
}
