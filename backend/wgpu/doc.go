// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements device.Device on the WebGPU hardware abstraction
// layer of gogpu/wgpu.
//
// Programs are WGSL modules with a vs_main and an fs_main entry point,
// compiled to SPIR-V with gogpu/naga and reflected from naga's IR:
//
//   - Free-standing uniforms are the members of the struct bound at
//     @group(0) @binding(0). Their values are packed into a per-frame
//     uniform arena and bound with a dynamic offset.
//   - Uniform blocks are var<uniform> globals of @group(1); the binding
//     number is the block index and the struct type name is the block name.
//   - Textures live in @group(2): texture k at binding 2k and its sampler
//     at binding 2k+1. The texture global's name is the sampler uniform.
//
// The stateful device contract is mapped onto command encoding: binds and
// fixed-function toggles are recorded on the CPU, render pipelines are
// built per state combination and kept in an LRU cache, and a render pass
// stays open until the bound framebuffer changes or the frame is flushed.
//
// The default framebuffer is an offscreen color and depth pair. Hosts that
// present to a surface copy ScreenTexture into it after Flush.
//
// Importing the package registers the "wgpu" backend. Opening it requires
// backend.Options.Provider, typically a gogpu application:
//
//	dev, err := backend.Open(backend.BackendWGPU, backend.Options{
//		Width: w, Height: h, Provider: app,
//	})
package wgpu
