// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/g3d/backend"
	"github.com/gogpu/g3d/device"
)

// init registers the wgpu device on package import. It needs a provider to
// share a GPU device with; without one it reports the backend unavailable so
// that backend.Default moves on.
func init() {
	backend.Register(backend.BackendWGPU, func(opts backend.Options) (device.Device, error) {
		if opts.Provider == nil {
			return nil, fmt.Errorf("wgpu: no device provider: %w", backend.ErrBackendNotAvailable)
		}
		return NewFromProvider(opts.Provider, opts.Width, opts.Height)
	})
}
