// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import "github.com/gogpu/g3d/device"

// Built-in template names.
const (
	// Unlit draws geometry in the flat color uColor. With the TEXTURED flag
	// the color is modulated by uTexture sampled at the coordinates of
	// vertex location 1.
	Unlit = "unlit"

	// Pick writes the integer uniform uID into an integer color target.
	Pick = "pick"
)

// FlagTextured enables texturing in the Unlit template.
const FlagTextured = "TEXTURED"

const unlitVertexGLSL = `#version 330 core
layout(location = 0) in vec3 aPosition;
#ifdef TEXTURED
layout(location = 1) in vec2 aUV;
out vec2 vUV;
#endif
uniform mat4 uModel;
uniform mat4 uViewProj;

void main() {
#ifdef TEXTURED
	vUV = aUV;
#endif
	gl_Position = uViewProj * uModel * vec4(aPosition, 1.0);
}
`

const unlitFragmentGLSL = `#version 330 core
uniform vec4 uColor;
#ifdef TEXTURED
uniform sampler2D uTexture;
in vec2 vUV;
#endif
layout(location = 0) out vec4 oColor;

void main() {
	vec4 c = uColor;
#ifdef TEXTURED
	c *= texture(uTexture, vUV);
#endif
	oColor = c;
}
`

const pickFragmentGLSL = `#version 330 core
uniform int uID;
layout(location = 0) out int oID;

void main() {
	oID = uID;
}
`

// WGSL modules carry both entry points (vs_main, fs_main). Free-standing
// uniforms live in the Uniforms struct at group 0 binding 0; textures and
// their samplers occupy consecutive bindings of group 2.
//
// Matrices follow the GL convention of a [-1, 1] depth range; clipDepthWGSL
// maps it onto the [0, 1] range WebGPU clips against.
const clipDepthWGSL = `fn clip_depth(p: vec4<f32>) -> vec4<f32> {
	return vec4<f32>(p.xy, 0.5 * (p.z + p.w), p.w);
}
`

const unlitWGSL = clipDepthWGSL + `struct Uniforms {
	uModel: mat4x4<f32>,
	uViewProj: mat4x4<f32>,
	uColor: vec4<f32>,
};
@group(0) @binding(0) var<uniform> u: Uniforms;
#ifdef TEXTURED
@group(2) @binding(0) var uTexture: texture_2d<f32>;
@group(2) @binding(1) var uTexture_sampler: sampler;
#endif

struct VertexOut {
	@builtin(position) position: vec4<f32>,
	@location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(
	@location(0) position: vec3<f32>
#ifdef TEXTURED
	, @location(1) uv: vec2<f32>
#endif
) -> VertexOut {
	var out: VertexOut;
	out.position = clip_depth(u.uViewProj * u.uModel * vec4<f32>(position, 1.0));
#ifdef TEXTURED
	out.uv = uv;
#else
	out.uv = vec2<f32>(0.0, 0.0);
#endif
	return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
	var c = u.uColor;
#ifdef TEXTURED
	c = c * textureSample(uTexture, uTexture_sampler, in.uv);
#endif
	return c;
}
`

const pickWGSL = clipDepthWGSL + `struct Uniforms {
	uModel: mat4x4<f32>,
	uViewProj: mat4x4<f32>,
	uID: i32,
};
@group(0) @binding(0) var<uniform> u: Uniforms;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
	return clip_depth(u.uViewProj * u.uModel * vec4<f32>(position, 1.0));
}

@fragment
fn fs_main() -> @location(0) vec4<i32> {
	return vec4<i32>(u.uID, 0, 0, 1);
}
`

// Builtins returns the templates every Cache starts with.
func Builtins() []Template {
	return []Template{
		{
			Name:  Unlit,
			Flags: []string{FlagTextured},
			Sources: map[device.ShaderLanguage]Source{
				device.LanguageGLSL: {Vertex: unlitVertexGLSL, Fragment: unlitFragmentGLSL},
				device.LanguageWGSL: {Vertex: unlitWGSL, Fragment: unlitWGSL},
			},
		},
		{
			Name: Pick,
			Sources: map[device.ShaderLanguage]Source{
				device.LanguageGLSL: {Vertex: unlitVertexGLSL, Fragment: pickFragmentGLSL},
				device.LanguageWGSL: {Vertex: pickWGSL, Fragment: pickWGSL},
			},
		},
	}
}
