// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package g3d is the core of a real-time 3D engine: a render-pass
// scheduler, GPU resource lifetimes with a shader variant cache, a spatial
// transform hierarchy and GPU picking.
//
// # Quick Start
//
//	import "github.com/gogpu/g3d"
//
//	e, err := g3d.New(800, 600, g3d.WithPicking(true))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer e.Close()
//
//	cube := g3d.NewMesh("cube", geometry)
//	cube.Color = mgl32.Vec4{1, 0.5, 0, 1}
//	e.Add(cube)
//
//	for running {
//		e.Update(dt)
//		if err := e.Render(); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// # Architecture
//
// The Engine is a thin facade over the sub-packages:
//   - device: the stateful Device contract and the Context that drops
//     redundant state changes
//   - resource: buffers, geometry, textures, framebuffers and programs that
//     allocate their device objects on first use
//   - shader: templates and the per-flag-set variant cache
//   - pipeline: passes (Pipeline) of draws (SubPipeline) ordered by the
//     Renderer
//   - space: transforms with lazy inverses, the scene graph and cameras
//   - pick: the integer ID pass and pointer resolution
//   - bake: texture mip chains computed on worker goroutines
//
// Devices come from backend packages: backend/soft (CPU reference),
// backend/opengl (OpenGL 3.3 core) and backend/wgpu (WebGPU HAL). The
// software and wgpu backends register themselves when g3d is imported; the
// OpenGL backend needs a current context and is imported by the host.
//
// # Coordinate System
//
// World space is right-handed with Y up; cameras look down -Z. Pointer
// coordinates are window coordinates with the origin at the top-left. The
// device works bottom-up like OpenGL.
//
// # Threading
//
// An Engine is driven from one goroutine. Only texture bakes run
// elsewhere; their results are uploaded by Update.
package g3d
