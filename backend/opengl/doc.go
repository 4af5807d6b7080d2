// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package opengl implements device.Device on OpenGL 3.3 core through
// github.com/go-gl/gl.
//
// GL calls are bound to the thread that owns the context: create and use
// the Device on that thread (runtime.LockOSThread in main). Device IDs are
// the GL object names, so the default framebuffer is 0 in both worlds.
//
// Programs are GLSL 330 sources. Reflection reads active uniforms and
// uniform blocks from the linked program; block members are reported with
// their block index and are not given a location.
//
// Importing the package registers the "gl" backend:
//
//	import _ "github.com/gogpu/g3d/backend/opengl"
package opengl
