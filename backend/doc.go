// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend selects the device implementation g3d renders with.
//
// Device backends register a factory from an init function and are
// selected at runtime by name:
//
//	import _ "github.com/gogpu/g3d/backend/soft"
//
//	dev, err := backend.Open(backend.BackendSoft, backend.Options{Width: 800, Height: 600})
//
// Default tries the registered backends in priority order and returns the
// first one that opens.
//
// # Available Backends
//
//   - "wgpu": WebGPU HAL device; needs Options.Provider
//   - "gl": OpenGL 3.3 core; needs a current GL context on the calling thread
//   - "soft": CPU rasterizer (always available)
package backend
