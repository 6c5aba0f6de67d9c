// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tilegrid

import (
	"fmt"
	"runtime/debug"
)

const modulePath = "github.com/LynnColeArt/tilegrid"

// Version returns the module version tilegrid was built at and its
// checksum. A binary built inside this module reports the main module
// version, which is "(devel)" for a plain checkout. Both values are empty
// without build info.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	if b.Main.Path == modulePath {
		return b.Main.Version, b.Main.Sum
	}
	for _, m := range b.Deps {
		if m.Path != modulePath {
			continue
		}
		if r := m.Replace; r != nil {
			if r.Version == "" {
				return fmt.Sprintf("%s=>%s", m.Version, r.Path), r.Sum
			}
			return fmt.Sprintf("%s=>%s", m.Version, r.Version), r.Sum
		}
		return m.Version, m.Sum
	}
	return "", ""
}
