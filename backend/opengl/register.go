// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package opengl

import (
	"github.com/gogpu/g3d/backend"
	"github.com/gogpu/g3d/device"
)

// init registers the GL device on package import. Opening it requires a
// current GL 3.3 core context on the calling thread.
func init() {
	backend.Register(backend.BackendGL, func(backend.Options) (device.Device, error) {
		return New()
	})
}
