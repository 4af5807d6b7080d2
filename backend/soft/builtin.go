// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/device"
)

// Kernels registered by New. Their names and uniforms match the built-in
// shader templates of package shader.
const (
	KernelUnlit = "unlit"
	KernelPick  = "pick"
)

var builtins = map[string]Kernel{
	KernelUnlit: unlitKernel(),
	KernelPick:  pickKernel(),
}

func position(in [][]float32) mgl32.Vec4 {
	p := mgl32.Vec4{0, 0, 0, 1}
	if len(in) > 0 {
		copy(p[:3], in[0])
	}
	return p
}

func transformVertex(u *Uniforms, in [][]float32) mgl32.Vec4 {
	return u.Mat4("uViewProj").Mul4(u.Mat4("uModel")).Mul4x1(position(in))
}

// unlitKernel draws a flat color, modulated by a texture when built with
// TEXTURED (texture coordinates at location 1).
func unlitKernel() Kernel {
	return Kernel{
		Uniforms: []KernelUniform{
			{Name: "uModel", Type: device.UniformMat4},
			{Name: "uViewProj", Type: device.UniformMat4},
			{Name: "uColor", Type: device.UniformVec4},
			{Name: "uTexture", Type: device.UniformSampler},
		},
		Vertex: func(u *Uniforms, in [][]float32) (mgl32.Vec4, []float32) {
			var uv []float32
			if u.Defined("TEXTURED") && len(in) > 1 {
				uv = []float32{in[1][0], in[1][1]}
			}
			return transformVertex(u, in), uv
		},
		Fragment: func(u *Uniforms, vary []float32) ([]mgl32.Vec4, bool) {
			c := u.Vec4("uColor")
			if u.Defined("TEXTURED") && len(vary) >= 2 {
				t := u.Sample("uTexture", mgl32.Vec2{vary[0], vary[1]})
				c = mgl32.Vec4{c[0] * t[0], c[1] * t[1], c[2] * t[2], c[3] * t[3]}
			}
			return []mgl32.Vec4{c}, false
		},
	}
}

// pickKernel writes the integer uniform uID to the first attachment.
func pickKernel() Kernel {
	return Kernel{
		Uniforms: []KernelUniform{
			{Name: "uModel", Type: device.UniformMat4},
			{Name: "uViewProj", Type: device.UniformMat4},
			{Name: "uID", Type: device.UniformInt},
		},
		Vertex: func(u *Uniforms, in [][]float32) (mgl32.Vec4, []float32) {
			return transformVertex(u, in), nil
		},
		Fragment: func(u *Uniforms, _ []float32) ([]mgl32.Vec4, bool) {
			return []mgl32.Vec4{{float32(u.Int("uID")), 0, 0, 1}}, false
		},
	}
}
