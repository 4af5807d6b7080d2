// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pick resolves screen positions to scene objects by rendering
// object identifiers into an offscreen integer target and reading the
// pixel under the pointer back from the device.
//
// Every registered object gets a dense positive ID and a draw in the ID
// pass. A pointer release schedules the pass for the next frame; once it
// has executed, the pixel under the pointer is read and the selection is
// updated. Zero means background.
//
//	p, err := pick.New(renderer, programs, camera)
//	p.Register(obj)
//	p.OnPicked(func(prev, next pick.Pickable) { ... })
//	p.PointerUp(x, y) // resolved during the next Render
package pick
