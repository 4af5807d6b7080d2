// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"image"
	"slices"

	"github.com/gogpu/gputypes"
)

// Kind identifies a binding point family.
type Kind uint8

// Binding kinds.
const (
	KindFramebuffer Kind = iota + 1
	KindProgram
	KindGeometry
	KindTexture
	KindUniformBuffer
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFramebuffer:
		return "framebuffer"
	case KindProgram:
		return "program"
	case KindGeometry:
		return "geometry"
	case KindTexture:
		return "texture"
	case KindUniformBuffer:
		return "uniform-buffer"
	default:
		return "unknown"
	}
}

// Bindable is a realized resource that can be bound to a device.
//
// Implementations are expected to be pointer types so that identity
// comparison distinguishes instances.
type Bindable interface {
	// BindKind reports the binding point family.
	BindKind() Kind

	// BindTo issues the device bind call for slot. Slot is the texture unit
	// or uniform buffer slot; it is 0 for other kinds.
	BindTo(d Device, slot int)
}

type bindKey struct {
	kind Kind
	slot int
}

// tracked is one field of the render state snapshot. A field starts unknown,
// so the first request always reaches the device.
type tracked[T comparable] struct {
	v  T
	ok bool
}

// set stores v and reports whether the device needs to hear about it.
func (t *tracked[T]) set(v T) bool {
	if t.ok && t.v == v {
		return false
	}
	t.v, t.ok = v, true
	return true
}

type blendFunc struct {
	src, dst gputypes.BlendFactor
}

// RenderState is the Context's belief about device state.
type RenderState struct {
	depthTest  tracked[bool]
	depthFunc  tracked[gputypes.CompareFunction]
	depthWrite tracked[bool]
	blend      tracked[bool]
	blendFunc  tracked[blendFunc]
	blendOp    tracked[gputypes.BlendOperation]
	cull       tracked[bool]
	cullFace   tracked[gputypes.CullMode]
	viewport   tracked[image.Rectangle]

	drawBuffers      []int
	drawBuffersKnown bool
}

// Stats counts state requests.
type Stats struct {
	// Issued is the number of calls forwarded to the device.
	Issued int
	// Skipped is the number of requests dropped as redundant.
	Skipped int
}

// Context wraps a Device with a state snapshot and a bind cache.
//
// All binds and fixed-function changes of the core go through a Context.
// Anything else that touches the device must call Reset afterwards.
// Context is not safe for concurrent use.
type Context struct {
	dev   Device
	state RenderState
	bound map[bindKey]Bindable
	stats Stats
}

// NewContext returns a Context for d with an unknown state snapshot.
func NewContext(d Device) *Context {
	return &Context{
		dev:   d,
		bound: make(map[bindKey]Bindable),
	}
}

// Device returns the wrapped device.
func (c *Context) Device() Device { return c.dev }

// Limits returns the device limits.
func (c *Context) Limits() Limits { return c.dev.Limits() }

// Stats returns the issued/skipped counters.
func (c *Context) Stats() Stats { return c.stats }

// Reset forgets the state snapshot and the bind cache.
func (c *Context) Reset() {
	c.state = RenderState{}
	clear(c.bound)
}

func (c *Context) count(issued bool) bool {
	if issued {
		c.stats.Issued++
	} else {
		c.stats.Skipped++
	}
	return issued
}

// Bind binds r to its binding point unless it is already bound there.
func (c *Context) Bind(r Bindable) {
	c.bindSlot(r, 0)
}

// BindTexture binds a texture resource to a texture unit.
func (c *Context) BindTexture(unit int, r Bindable) {
	c.bindSlot(r, unit)
}

// BindUniformBuffer binds a uniform buffer resource to a block slot.
func (c *Context) BindUniformBuffer(slot int, r Bindable) {
	c.bindSlot(r, slot)
}

func (c *Context) bindSlot(r Bindable, slot int) {
	key := bindKey{kind: r.BindKind(), slot: slot}
	if cur, ok := c.bound[key]; ok && cur == r {
		c.count(false)
		return
	}
	c.bound[key] = r
	c.count(true)
	r.BindTo(c.dev, slot)
}

// Unbind binds the zero resource to a binding point. For KindFramebuffer
// this selects the default framebuffer.
func (c *Context) Unbind(kind Kind, slot int) {
	key := bindKey{kind: kind, slot: slot}
	if cur, ok := c.bound[key]; ok && cur == nil {
		c.count(false)
		return
	}
	c.bound[key] = nil
	c.count(true)
	switch kind {
	case KindFramebuffer:
		c.dev.BindFramebuffer(DefaultFramebuffer)
	case KindProgram:
		c.dev.UseProgram(InvalidID)
	case KindGeometry:
		c.dev.BindGeometry(InvalidID)
	case KindTexture:
		c.dev.BindTexture(slot, InvalidID)
	case KindUniformBuffer:
		c.dev.BindUniformBuffer(slot, InvalidID)
	}
}

// Bound returns the resource the Context believes is bound at a binding
// point. The second result is false when the binding is unknown.
func (c *Context) Bound(kind Kind, slot int) (Bindable, bool) {
	r, ok := c.bound[bindKey{kind: kind, slot: slot}]
	return r, ok
}

// Forget drops r from the bind cache without a device call. Resources call
// it when they are destroyed so that a new resource reusing the device
// handle is not mistaken for r.
func (c *Context) Forget(r Bindable) {
	for key, cur := range c.bound {
		if cur == r {
			delete(c.bound, key)
		}
	}
}

func (c *Context) toggle(capability Capability, enable bool) {
	if enable {
		c.dev.Enable(capability)
	} else {
		c.dev.Disable(capability)
	}
}

// SetDepthTest enables or disables depth testing. The compare function is
// only applied while the test is enabled.
func (c *Context) SetDepthTest(enable bool, fn gputypes.CompareFunction) {
	if c.count(c.state.depthTest.set(enable)) {
		c.toggle(CapabilityDepthTest, enable)
	}
	if !enable {
		return
	}
	if c.count(c.state.depthFunc.set(fn)) {
		c.dev.DepthFunc(fn)
	}
}

// SetDepthWrite sets the depth write mask.
func (c *Context) SetDepthWrite(enable bool) {
	if c.count(c.state.depthWrite.set(enable)) {
		c.dev.DepthMask(enable)
	}
}

// SetBlend enables or disables blending. Factors and equation are only
// applied while blending is enabled.
func (c *Context) SetBlend(enable bool, src, dst gputypes.BlendFactor, op gputypes.BlendOperation) {
	if c.count(c.state.blend.set(enable)) {
		c.toggle(CapabilityBlend, enable)
	}
	if !enable {
		return
	}
	if c.count(c.state.blendFunc.set(blendFunc{src: src, dst: dst})) {
		c.dev.BlendFunc(src, dst)
	}
	if c.count(c.state.blendOp.set(op)) {
		c.dev.BlendEquation(op)
	}
}

// SetCullFace enables or disables face culling. The face is only applied
// while culling is enabled.
func (c *Context) SetCullFace(enable bool, face gputypes.CullMode) {
	if c.count(c.state.cull.set(enable)) {
		c.toggle(CapabilityCullFace, enable)
	}
	if !enable {
		return
	}
	if c.count(c.state.cullFace.set(face)) {
		c.dev.CullFace(face)
	}
}

// SetViewport sets the viewport rectangle.
func (c *Context) SetViewport(rect image.Rectangle) {
	if c.count(c.state.viewport.set(rect)) {
		c.dev.Viewport(rect)
	}
}

// SetDrawBuffers selects the color attachments fragment outputs write to.
func (c *Context) SetDrawBuffers(attachments []int) {
	if c.state.drawBuffersKnown && slices.Equal(c.state.drawBuffers, attachments) {
		c.count(false)
		return
	}
	c.state.drawBuffers = slices.Clone(attachments)
	c.state.drawBuffersKnown = true
	c.count(true)
	c.dev.DrawBuffers(attachments)
}

// Clear clears the bound framebuffer. Clears are not state and are always
// forwarded.
func (c *Context) Clear(opts ClearOptions) {
	c.dev.Clear(opts)
}
