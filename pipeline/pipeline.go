// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/resource"
)

// DepthState is the depth configuration of a Pipeline.
type DepthState struct {
	Test  bool
	Func  gputypes.CompareFunction
	Write bool
}

// BlendState is the blend configuration of a Pipeline.
type BlendState struct {
	Enabled bool
	Src     gputypes.BlendFactor
	Dst     gputypes.BlendFactor
	Op      gputypes.BlendOperation
}

// CullState is the face culling configuration of a Pipeline.
type CullState struct {
	Enabled bool
	Face    gputypes.CullMode
}

// DefaultDepth tests with Less and writes depth.
var DefaultDepth = DepthState{Test: true, Func: gputypes.CompareFunctionLess, Write: true}

// AlphaBlend is straight alpha blending.
var AlphaBlend = BlendState{
	Enabled: true,
	Src:     gputypes.BlendFactorSrcAlpha,
	Dst:     gputypes.BlendFactorOneMinusSrcAlpha,
	Op:      gputypes.BlendOperationAdd,
}

// BlockBinding attaches a uniform buffer to a uniform block of the program.
type BlockBinding struct {
	Block  string
	Buffer *resource.UniformBuffer
}

// Pipeline is a batch of SubPipelines sharing a program, a target and the
// fixed-function state.
//
// Execution per frame: bind the target (and clear it); stop if there is
// nothing to draw; bind the program; apply depth, blend, cull, viewport and
// draw buffers; run every enabled SubPipeline, then every one-shot
// SubPipeline; drop the one-shot list; run AfterExecute.
type Pipeline struct {
	Label    string
	Priority int

	Program *resource.Program

	// Target is the framebuffer drawn to; nil selects the screen.
	Target *resource.Framebuffer

	// Clear, when set, clears the target right after binding it.
	Clear *device.ClearOptions

	Depth DepthState
	Blend BlendState
	Cull  CullState

	// Viewport defaults to the target bounds (or the screen).
	Viewport image.Rectangle

	// DrawBuffers selects the target's color attachments. Nil leaves the
	// current selection in place.
	DrawBuffers []int

	// Blocks routes uniform buffers to the program's uniform blocks.
	Blocks []BlockBinding

	// Uniforms runs once per execution after the program is bound, before
	// any SubPipeline. Use it for values shared by every draw.
	Uniforms UniformFunc

	// AfterExecute runs after the one-shot list was drained.
	AfterExecute func(ctx *device.Context) error

	subs []*SubPipeline
	once []*SubPipeline
	seq  uint64
}

// New returns a Pipeline with default depth testing.
func New(label string, program *resource.Program) *Pipeline {
	return &Pipeline{Label: label, Program: program, Depth: DefaultDepth}
}

// Add appends a SubPipeline drawn every execution.
func (p *Pipeline) Add(s *SubPipeline) { p.subs = append(p.subs, s) }

// AddOnce appends a SubPipeline drawn by the next execution only.
func (p *Pipeline) AddOnce(s *SubPipeline) { p.once = append(p.once, s) }

// Remove removes a persistent SubPipeline and reports whether it was
// present.
func (p *Pipeline) Remove(s *SubPipeline) bool {
	i := slices.Index(p.subs, s)
	if i < 0 {
		return false
	}
	p.subs = slices.Delete(p.subs, i, i+1)
	return true
}

// SubPipelines returns the persistent SubPipelines in draw order.
func (p *Pipeline) SubPipelines() []*SubPipeline { return p.subs }

// Pending returns the number of one-shot SubPipelines waiting.
func (p *Pipeline) Pending() int { return len(p.once) }

// Empty reports whether the next execution would only bind and clear.
func (p *Pipeline) Empty() bool { return len(p.subs) == 0 && len(p.once) == 0 }

// Realize realizes the target, then every SubPipeline's textures and
// geometry, then the program.
func (p *Pipeline) Realize(ctx *device.Context) error {
	if p.Target != nil {
		if err := p.Target.Realize(ctx); err != nil {
			return err
		}
	}
	for _, s := range p.subs {
		if err := s.realize(ctx); err != nil {
			return fmt.Errorf("sub-pipeline %q: %w", s.Label, err)
		}
	}
	for _, s := range p.once {
		if err := s.realize(ctx); err != nil {
			return fmt.Errorf("sub-pipeline %q: %w", s.Label, err)
		}
	}
	for _, b := range p.Blocks {
		if err := b.Buffer.Realize(ctx); err != nil {
			return err
		}
	}
	if p.Program != nil {
		return p.Program.Realize(ctx)
	}
	return nil
}

// Execute runs the pipeline once. screen is the bounds of the default
// framebuffer, used when Target is nil.
func (p *Pipeline) Execute(ctx *device.Context, screen image.Rectangle) error {
	bounds := screen
	if p.Target != nil {
		ctx.Bind(p.Target)
		bounds = p.Target.Bounds()
	} else {
		ctx.Unbind(device.KindFramebuffer, 0)
	}
	if p.Clear != nil {
		ctx.SetViewport(bounds)
		if p.DrawBuffers != nil {
			ctx.SetDrawBuffers(p.DrawBuffers)
		}
		if p.Clear.Mask&device.ClearDepth != 0 {
			// Depth clears honor the write mask on GL.
			ctx.SetDepthWrite(true)
		}
		ctx.Clear(*p.Clear)
	}
	if p.Empty() {
		return p.after(ctx)
	}
	if p.Program == nil {
		return fmt.Errorf("no program: %w", device.ErrUnknownResource)
	}

	ctx.Bind(p.Program)
	ctx.SetDepthTest(p.Depth.Test, p.Depth.Func)
	ctx.SetDepthWrite(p.Depth.Write)
	ctx.SetBlend(p.Blend.Enabled, p.Blend.Src, p.Blend.Dst, p.Blend.Op)
	ctx.SetCullFace(p.Cull.Enabled, p.Cull.Face)
	vp := p.Viewport
	if vp.Empty() {
		vp = bounds
	}
	ctx.SetViewport(vp)
	if p.DrawBuffers != nil {
		ctx.SetDrawBuffers(p.DrawBuffers)
	}
	for _, b := range p.Blocks {
		if slot, ok := p.Program.BlockSlot(b.Block); ok {
			ctx.BindUniformBuffer(slot, b.Buffer)
		}
	}
	if p.Uniforms != nil {
		p.Uniforms(ctx, p.Program)
	}

	for _, s := range p.subs {
		if s.disabled {
			continue
		}
		if err := s.execute(ctx, p.Program); err != nil {
			return fmt.Errorf("sub-pipeline %q: %w", s.Label, err)
		}
	}
	once := p.once
	p.once = nil
	for _, s := range once {
		if s.disabled {
			continue
		}
		if err := s.execute(ctx, p.Program); err != nil {
			return fmt.Errorf("sub-pipeline %q: %w", s.Label, err)
		}
	}
	return p.after(ctx)
}

func (p *Pipeline) after(ctx *device.Context) error {
	if p.AfterExecute == nil {
		return nil
	}
	return p.AfterExecute(ctx)
}
