// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/resource"
)

// UniformFunc uploads uniforms for a draw. The pipeline's program is in use
// when it runs.
type UniformFunc func(ctx *device.Context, p *resource.Program)

// SubPipeline is one draw: a geometry, the textures it samples and the
// uniform upload that precedes the draw call.
type SubPipeline struct {
	Label    string
	Geometry *resource.Geometry

	// Uniforms runs once per execution, right before the draw call.
	Uniforms UniformFunc

	// Draw overrides the draw call derived from Geometry.
	Draw *device.DrawCall

	textures []*resource.Texture
	disabled bool
}

// NewSubPipeline returns an enabled SubPipeline.
func NewSubPipeline(label string, geo *resource.Geometry, uniforms UniformFunc) *SubPipeline {
	return &SubPipeline{Label: label, Geometry: geo, Uniforms: uniforms}
}

// AddTexture appends t and returns the texture unit it binds to. Units
// follow insertion order starting at 0.
func (s *SubPipeline) AddTexture(t *resource.Texture) int {
	s.textures = append(s.textures, t)
	return len(s.textures) - 1
}

// Textures returns the bound textures by unit.
func (s *SubPipeline) Textures() []*resource.Texture { return s.textures }

// SetEnabled includes or skips the SubPipeline during execution.
func (s *SubPipeline) SetEnabled(enabled bool) { s.disabled = !enabled }

// Enabled reports whether the SubPipeline draws.
func (s *SubPipeline) Enabled() bool { return !s.disabled }

func (s *SubPipeline) realize(ctx *device.Context) error {
	for _, t := range s.textures {
		if err := t.Realize(ctx); err != nil {
			return err
		}
	}
	return s.Geometry.Realize(ctx)
}

// execute binds geometry and textures, uploads uniforms and draws.
func (s *SubPipeline) execute(ctx *device.Context, p *resource.Program) error {
	ctx.Bind(s.Geometry)
	for unit, t := range s.textures {
		ctx.BindTexture(unit, t)
	}
	if s.Uniforms != nil {
		s.Uniforms(ctx, p)
	}
	call := s.Geometry.DrawCall()
	if s.Draw != nil {
		call = *s.Draw
	}
	return ctx.Device().Draw(call)
}
