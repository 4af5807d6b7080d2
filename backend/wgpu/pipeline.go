// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

// pipelineKey identifies a render pipeline: a program drawn with a vertex
// layout into a framebuffer under one fixed-function state.
type pipelineKey struct {
	program     device.ProgramID
	geometry    device.GeometryID
	framebuffer device.FramebufferID

	depthTest  bool
	depthWrite bool
	depthFunc  gputypes.CompareFunction
	blend      bool
	blendSrc   gputypes.BlendFactor
	blendDst   gputypes.BlendFactor
	blendOp    gputypes.BlendOperation
	cullFace   gputypes.CullMode
	drawMask   uint8
}

func (d *Device) pipelineKey() pipelineKey {
	s := &d.state
	k := pipelineKey{
		program:     s.program,
		geometry:    s.geometry,
		framebuffer: s.framebuffer,
		depthTest:   s.depthTest,
		depthWrite:  s.depthTest && s.depthWrite,
		blend:       s.blend,
	}
	if s.depthTest {
		k.depthFunc = s.depthFunc
	}
	if s.blend {
		k.blendSrc, k.blendDst, k.blendOp = s.blendSrc, s.blendDst, s.blendOp
	}
	if s.cull {
		k.cullFace = s.cullFace
	}
	for _, a := range s.drawBuffers {
		if a >= 0 && a < 8 {
			k.drawMask |= 1 << a
		}
	}
	return k
}

// pipeline returns the render pipeline for the current state, building it
// on a cache miss.
func (d *Device) pipeline(p *program, g *geometry, fb *framebuffer) (hal.RenderPipeline, error) {
	key := d.pipelineKey()
	return d.pipelines.GetOrCreate(key, func() (hal.RenderPipeline, error) {
		return d.buildPipeline(key, p, g, fb)
	})
}

func (d *Device) buildPipeline(key pipelineKey, p *program, g *geometry, fb *framebuffer) (hal.RenderPipeline, error) {
	targets := make([]gputypes.ColorTargetState, len(fb.color))
	for i, c := range fb.color {
		format := d.textures[c].format
		mask := gputypes.ColorWriteMask(0)
		if key.drawMask&(1<<i) != 0 {
			mask = gputypes.ColorWriteMaskAll
		}
		targets[i] = gputypes.ColorTargetState{
			Format:    format,
			Blend:     blendState(&d.state, format),
			WriteMask: mask,
		}
	}

	var depth *hal.DepthStencilState
	if t := d.textures[fb.depth]; t != nil {
		compare := gputypes.CompareFunctionAlways
		if key.depthTest {
			compare = key.depthFunc
		}
		always := hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways}
		depth = &hal.DepthStencilState{
			Format:            t.format,
			DepthWriteEnabled: key.depthWrite,
			DepthCompare:      compare,
			StencilFront:      always,
			StencilBack:       always,
		}
	}

	var stripIndex *gputypes.IndexFormat
	if g.desc.Index != device.InvalidID && isStrip(g.desc.Topology) {
		f := g.desc.IndexFormat
		stripIndex = &f
	}

	pipe, err := d.dev.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  p.label,
		Layout: p.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
			Buffers:    g.layouts,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:         g.desc.Topology,
			StripIndexFormat: stripIndex,
			FrontFace:        gputypes.FrontFaceCCW,
			CullMode:         key.cullFace,
		},
		DepthStencil: depth,
		Multisample:  gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
			Targets:    targets,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: pipeline %q: %w: %v", p.label, device.ErrLink, err)
	}
	logging.Logger().Debug("wgpu: pipeline created", "program", p.label, "cached", d.pipelines.Len()+1)
	return pipe, nil
}

func isStrip(t gputypes.PrimitiveTopology) bool {
	return t == gputypes.PrimitiveTopologyTriangleStrip || t == gputypes.PrimitiveTopologyLineStrip
}

// groupKey identifies a bind group of the blocks or textures group by the
// resources it references.
type groupKey struct {
	program device.ProgramID
	group   uint8
	ids     [maxBindings]uint64
}

// uses reports whether the bind group references the resource id.
func (k groupKey) uses(id uint64) bool {
	return slices.Contains(k.ids[:], id)
}

// blockGroup returns the bind group of the uniform buffers routed to p's
// blocks. Blocks without a bound buffer read zeros.
func (d *Device) blockGroup(id device.ProgramID, p *program) (hal.BindGroup, error) {
	key := groupKey{program: id, group: groupBlocks}
	for i, b := range p.iface.blocks {
		key.ids[i] = uint64(d.state.uniformBuffers[p.blockSlots[b.binding]])
	}
	return d.groups.GetOrCreate(key, func() (hal.BindGroup, error) {
		entries := make([]gputypes.BindGroupEntry, len(p.iface.blocks))
		for i, b := range p.iface.blocks {
			raw := p.blockFallback
			size := b.size
			if buf := d.buffers[device.BufferID(key.ids[i])]; buf != nil {
				raw = buf.raw
				size = min(size, buf.size)
			}
			entries[i] = gputypes.BindGroupEntry{
				Binding:  b.binding,
				Resource: gputypes.BufferBinding{Buffer: raw.NativeHandle(), Size: uint64(size)},
			}
		}
		return d.createGroup(p, groupBlocks, entries)
	})
}

// textureGroup returns the bind group of the textures bound to the units
// p's samplers point at. Empty units read a fallback texture.
func (d *Device) textureGroup(id device.ProgramID, p *program) (hal.BindGroup, error) {
	key := groupKey{program: id, group: groupTextures}
	for i, unit := range p.units {
		key.ids[i] = uint64(d.state.textures[int(unit)])
	}
	return d.groups.GetOrCreate(key, func() (hal.BindGroup, error) {
		entries := make([]gputypes.BindGroupEntry, 0, 2*len(p.iface.textures))
		for i, t := range p.iface.textures {
			tex := d.textures[device.TextureID(key.ids[i])]
			if tex == nil || sampleType(tex.format) != t.sample {
				var err error
				if tex, err = d.fallbackTexture(t.sample); err != nil {
					return nil, err
				}
			}
			entries = append(entries,
				gputypes.BindGroupEntry{Binding: t.binding, Resource: gputypes.TextureViewBinding{TextureView: tex.view.NativeHandle()}},
				gputypes.BindGroupEntry{Binding: t.binding + 1, Resource: gputypes.SamplerBinding{Sampler: tex.sampler.NativeHandle()}},
			)
		}
		return d.createGroup(p, groupTextures, entries)
	})
}

func (d *Device) createGroup(p *program, group int, entries []gputypes.BindGroupEntry) (hal.BindGroup, error) {
	g, err := d.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s-group%d", p.label, group),
		Layout:  p.layouts[group],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: bind group %d of %q: %w: %v", group, p.label, device.ErrUnsupported, err)
	}
	return g, nil
}

// arenaSize is the capacity of the per-frame uniform arena.
const arenaSize = 256 << 10

// arena packs the Uniforms images of one frame's draws into a single
// uniform buffer addressed with dynamic offsets. The CPU copy is written to
// the GPU right before submission.
type arena struct {
	buf  hal.Buffer
	data []byte
	used int
}

func newArena(dev hal.Device) (*arena, error) {
	buf, err := dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "uniform-arena",
		Size:  arenaSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: uniform arena: %w: %v", device.ErrUnsupported, err)
	}
	return &arena{buf: buf, data: make([]byte, arenaSize)}, nil
}

// alloc copies p into the arena and returns its offset, or false when the
// arena is full.
func (a *arena) alloc(p []byte) (uint32, bool) {
	off := alignUp(a.used, uniformAlignment)
	if off+len(p) > len(a.data) {
		return 0, false
	}
	copy(a.data[off:], p)
	a.used = off + len(p)
	return uint32(off), true
}

func (a *arena) reset() { a.used = 0 }

func (a *arena) destroy(dev hal.Device) {
	if a.buf != nil {
		dev.DestroyBuffer(a.buf)
		a.buf = nil
	}
}
