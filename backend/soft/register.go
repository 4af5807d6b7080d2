// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"fmt"

	"github.com/gogpu/g3d/backend"
	"github.com/gogpu/g3d/device"
)

// init registers the software device on package import.
func init() {
	backend.Register(backend.BackendSoft, func(opts backend.Options) (device.Device, error) {
		if opts.Width <= 0 || opts.Height <= 0 {
			return nil, fmt.Errorf("soft: screen %dx%d: %w", opts.Width, opts.Height, device.ErrUnsupported)
		}
		return New(opts.Width, opts.Height), nil
	})
}
