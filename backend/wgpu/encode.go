// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"image"
	"slices"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

// pendingClear is a clear recorded for the bound framebuffer. It becomes
// the load operations of the next render pass.
type pendingClear struct {
	opts        device.ClearOptions
	drawBuffers []int
}

// flight is a submitted command buffer awaiting completion.
type flight struct {
	idx uint64
	cmd hal.CommandBuffer
}

func (d *Device) ensureEncoder() error {
	if d.enc != nil {
		return nil
	}
	enc, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "g3d-frame"})
	if err != nil {
		return fmt.Errorf("wgpu: command encoder: %w", err)
	}
	if err := enc.BeginEncoding("g3d-frame"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	d.enc = enc
	return nil
}

// beginPass opens a render pass on the bound framebuffer, consuming a
// pending clear.
func (d *Device) beginPass() error {
	if d.pass != nil {
		return nil
	}
	fb := d.framebuffers[d.state.framebuffer]
	if fb == nil {
		return fmt.Errorf("wgpu: framebuffer %d: %w", d.state.framebuffer, device.ErrUnknownResource)
	}
	if err := d.ensureEncoder(); err != nil {
		return err
	}
	clr := d.clear
	d.clear = nil

	desc := &hal.RenderPassDescriptor{Label: "g3d-pass"}
	for i, c := range fb.color {
		att := hal.RenderPassColorAttachment{
			View:    d.textures[c].view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}
		if clr != nil && clr.opts.Mask&device.ClearColor != 0 && slices.Contains(clr.drawBuffers, i) {
			att.LoadOp = gputypes.LoadOpClear
			att.ClearValue = clr.opts.Color
		}
		desc.ColorAttachments = append(desc.ColorAttachments, att)
	}
	if t := d.textures[fb.depth]; t != nil {
		att := &hal.RenderPassDepthStencilAttachment{
			View:           t.view,
			DepthLoadOp:    gputypes.LoadOpLoad,
			DepthStoreOp:   gputypes.StoreOpStore,
			StencilLoadOp:  gputypes.LoadOpLoad,
			StencilStoreOp: gputypes.StoreOpStore,
		}
		if clr != nil && clr.opts.Mask&device.ClearDepth != 0 {
			att.DepthLoadOp = gputypes.LoadOpClear
			att.DepthClearValue = clr.opts.Depth
			att.StencilLoadOp = gputypes.LoadOpClear
		}
		if !t.format.HasStencil() {
			att.StencilLoadOp, att.StencilStoreOp = 0, 0
		}
		desc.DepthStencilAttachment = att
	}
	d.pass = d.enc.BeginRenderPass(desc)
	return nil
}

// endPass closes the open render pass. A pending clear with no draw after
// it is encoded as an empty pass.
func (d *Device) endPass() {
	if d.pass == nil && d.clear != nil {
		if err := d.beginPass(); err != nil {
			logging.Logger().Warn("wgpu: clear dropped", "err", err)
			d.clear = nil
		}
	}
	if d.pass != nil {
		d.pass.End()
		d.pass = nil
	}
}

// Clear implements device.Device.
func (d *Device) Clear(opts device.ClearOptions) {
	d.endPass()
	d.clear = &pendingClear{opts: opts, drawBuffers: slices.Clone(d.state.drawBuffers)}
}

// Draw implements device.Device.
func (d *Device) Draw(call device.DrawCall) error {
	id := d.state.program
	p := d.programs[id]
	if p == nil {
		return fmt.Errorf("wgpu: draw without program: %w", device.ErrUnknownResource)
	}
	g := d.geometries[d.state.geometry]
	if g == nil {
		return fmt.Errorf("wgpu: draw without geometry: %w", device.ErrUnknownResource)
	}
	fb := d.framebuffers[d.state.framebuffer]
	if fb == nil {
		return fmt.Errorf("wgpu: framebuffer %d: %w", d.state.framebuffer, device.ErrUnknownResource)
	}
	if call.Kind.Indexed() && g.desc.Index == device.InvalidID {
		return fmt.Errorf("wgpu: indexed draw of non-indexed geometry: %w", device.ErrUnsupported)
	}

	offset, ok := d.arena.alloc(p.data)
	if !ok {
		if err := d.submit(); err != nil {
			return err
		}
		offset, _ = d.arena.alloc(p.data)
	}
	pipe, err := d.pipeline(p, g, fb)
	if err != nil {
		return err
	}
	blocks, err := d.blockGroup(id, p)
	if err != nil {
		return err
	}
	textures, err := d.textureGroup(id, p)
	if err != nil {
		return err
	}
	if err := d.beginPass(); err != nil {
		return err
	}

	rp := d.pass
	vp := d.state.viewport
	// Device rows are bottom-up; WebGPU viewports are top-down.
	rp.SetViewport(float32(vp.Min.X), float32(fb.height-vp.Max.Y), float32(vp.Dx()), float32(vp.Dy()), 0, 1)
	rp.SetPipeline(pipe)
	var dynamic []uint32
	if p.iface.uniformsSize > 0 {
		dynamic = []uint32{offset}
	}
	rp.SetBindGroup(groupUniforms, p.uniformGroup, dynamic)
	rp.SetBindGroup(groupBlocks, blocks, nil)
	rp.SetBindGroup(groupTextures, textures, nil)
	for slot, l := range g.desc.Layouts {
		rp.SetVertexBuffer(uint32(slot), d.buffers[l.Buffer].raw, 0)
	}

	instances := uint32(1)
	if call.Kind.Instanced() {
		instances = uint32(max(call.Instances, 0))
	}
	if call.Kind.Indexed() {
		rp.SetIndexBuffer(d.buffers[g.desc.Index].raw, g.desc.IndexFormat, 0)
		rp.DrawIndexed(uint32(call.Count), instances, uint32(call.First), 0, 0)
	} else {
		rp.Draw(uint32(call.Count), instances, uint32(call.First), 0)
	}
	return nil
}

// submit ends encoding, uploads the uniform arena and submits the frame.
func (d *Device) submit() error {
	d.endPass()
	if d.enc == nil {
		return nil
	}
	enc := d.enc
	d.enc = nil
	cmd, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	if d.arena.used > 0 {
		if err := d.queue.WriteBuffer(d.arena.buf, 0, d.arena.data[:alignUp(d.arena.used, 4)]); err != nil {
			d.dev.FreeCommandBuffer(cmd)
			return fmt.Errorf("wgpu: uniform upload: %w", err)
		}
	}
	d.arena.reset()
	idx, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.dev.FreeCommandBuffer(cmd)
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	d.lastIdx = idx
	d.flights = append(d.flights, flight{idx: idx, cmd: cmd})
	return nil
}

// collect frees command buffers and retired objects whose submissions the
// GPU has completed.
func (d *Device) collect() {
	done := d.queue.PollCompleted()
	d.flights = slices.DeleteFunc(d.flights, func(f flight) bool {
		if f.idx > done {
			return false
		}
		d.dev.FreeCommandBuffer(f.cmd)
		return true
	})
	d.retired = slices.DeleteFunc(d.retired, func(r retired) bool {
		if r.after > done {
			return false
		}
		r.release()
		return true
	})
}

// Flush implements device.Device: it submits the recorded frame and
// releases what the GPU no longer uses.
func (d *Device) Flush() error {
	err := d.submit()
	d.collect()
	return err
}

// wait blocks until every submission has completed.
func (d *Device) wait() error {
	if d.queue.PollCompleted() >= d.lastIdx {
		return nil
	}
	return d.dev.WaitIdle()
}

// ReadPixels implements device.Device. The pending frame is submitted and
// awaited; the rectangle is then copied through a staging buffer.
func (d *Device) ReadPixels(id device.FramebufferID, attachment int, rect image.Rectangle, dst []byte) error {
	fb := d.framebuffers[id]
	if fb == nil || attachment < 0 || attachment >= len(fb.color) {
		return fmt.Errorf("wgpu: framebuffer %d attachment %d: %w", id, attachment, device.ErrUnknownResource)
	}
	t := d.textures[fb.color[attachment]]
	if t == nil {
		return fmt.Errorf("wgpu: framebuffer %d attachment %d: %w", id, attachment, device.ErrUnknownResource)
	}
	if rect.Empty() || !rect.In(image.Rect(0, 0, t.width, t.height)) {
		return fmt.Errorf("wgpu: read %v: %w", rect, device.ErrOutOfBounds)
	}
	bpp := texFormats[t.format].size
	row := rect.Dx() * bpp
	if len(dst) < row*rect.Dy() {
		return fmt.Errorf("wgpu: destination holds %d bytes, need %d: %w", len(dst), row*rect.Dy(), device.ErrOutOfBounds)
	}

	if err := d.ensureEncoder(); err != nil {
		return err
	}
	d.endPass()
	pitch := alignUp(row, copyPitchAlignment)
	size := uint64(pitch * rect.Dy())
	staging, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: staging buffer: %w", err)
	}
	defer d.dev.DestroyBuffer(staging)

	// Texture rows are top-down.
	top := t.height - rect.Max.Y
	d.enc.CopyTextureToBuffer(t.raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{BytesPerRow: uint32(pitch), RowsPerImage: uint32(rect.Dy())},
		TextureBase: hal.ImageCopyTexture{
			Texture: t.raw,
			Origin:  hal.Origin3D{X: uint32(rect.Min.X), Y: uint32(top)},
			Aspect:  gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: uint32(rect.Dx()), Height: uint32(rect.Dy()), DepthOrArrayLayers: 1},
	}})
	if err := d.submit(); err != nil {
		return err
	}
	if err := d.wait(); err != nil {
		return fmt.Errorf("wgpu: wait for readback: %w", err)
	}
	d.collect()

	m, err := d.dev.MapBuffer(staging, 0, size)
	if err != nil {
		return fmt.Errorf("wgpu: map readback: %w", err)
	}
	src := unsafe.Slice((*byte)(m.Ptr), size)
	n := rect.Dy()
	for i := range n {
		copy(dst[(n-1-i)*row:(n-i)*row], src[i*pitch:i*pitch+row])
	}
	if err := d.dev.UnmapBuffer(staging); err != nil {
		logging.Logger().Warn("wgpu: unmap readback", "err", err)
	}
	if t.format == gputypes.TextureFormatBGRA8Unorm {
		convertBGRAToRGBA(dst, rect.Dx()*rect.Dy())
	}
	return nil
}
