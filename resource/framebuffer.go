// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"
	"image"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

// Framebuffer is a set of render attachments.
type Framebuffer struct {
	Label string

	color []*Texture
	depth *Texture

	h handle[device.FramebufferID]
}

// NewFramebuffer returns a described framebuffer. depth may be nil.
func NewFramebuffer(label string, color []*Texture, depth *Texture) *Framebuffer {
	return &Framebuffer{Label: label, color: color, depth: depth}
}

// Stage returns the lifecycle stage.
func (f *Framebuffer) Stage() Stage { return f.h.stage }

// ID returns the device handle.
func (f *Framebuffer) ID() device.FramebufferID { return f.h.id }

// Color returns the color attachment at index i.
func (f *Framebuffer) Color(i int) *Texture { return f.color[i] }

// Depth returns the depth attachment, or nil.
func (f *Framebuffer) Depth() *Texture { return f.depth }

// Size returns the size of the first color attachment.
func (f *Framebuffer) Size() (width, height int) {
	if len(f.color) == 0 || f.color[0] == nil {
		return 0, 0
	}
	return f.color[0].Size()
}

// Bounds returns the attachment rectangle anchored at the origin.
func (f *Framebuffer) Bounds() image.Rectangle {
	w, h := f.Size()
	return image.Rect(0, 0, w, h)
}

// validate checks the attachment set before any device call.
func (f *Framebuffer) validate() error {
	if len(f.color) == 0 {
		return fmt.Errorf("%w: no color attachment", device.ErrIncompleteFramebuffer)
	}
	w, h := f.Size()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty attachment %dx%d", device.ErrIncompleteFramebuffer, w, h)
	}
	for i, c := range f.color {
		if c == nil {
			return fmt.Errorf("%w: color attachment %d is nil", device.ErrIncompleteFramebuffer, i)
		}
		cw, ch := c.Size()
		if cw != w || ch != h {
			return fmt.Errorf("%w: color attachment %d is %dx%d, want %dx%d",
				device.ErrIncompleteFramebuffer, i, cw, ch, w, h)
		}
		if c.Format().HasDepth() {
			return fmt.Errorf("%w: color attachment %d has depth format %v",
				device.ErrIncompleteFramebuffer, i, c.Format())
		}
	}
	if f.depth != nil {
		dw, dh := f.depth.Size()
		if dw != w || dh != h {
			return fmt.Errorf("%w: depth attachment is %dx%d, want %dx%d",
				device.ErrIncompleteFramebuffer, dw, dh, w, h)
		}
		if !f.depth.Format().HasDepth() {
			return fmt.Errorf("%w: depth attachment has color format %v",
				device.ErrIncompleteFramebuffer, f.depth.Format())
		}
	}
	return nil
}

// Realize validates the attachments, realizes them and allocates the
// framebuffer. A malformed attachment set reports
// device.ErrIncompleteFramebuffer.
func (f *Framebuffer) Realize(ctx *device.Context) error {
	return f.h.realize(f.Label, func() (device.FramebufferID, error) {
		if err := f.validate(); err != nil {
			return device.InvalidID, err
		}
		desc := device.FramebufferDescriptor{Label: f.Label, Color: make([]device.TextureID, len(f.color))}
		desc.Width, desc.Height = f.Size()
		for i, c := range f.color {
			if err := c.Realize(ctx); err != nil {
				return device.InvalidID, err
			}
			desc.Color[i] = c.ID()
		}
		if f.depth != nil {
			if err := f.depth.Realize(ctx); err != nil {
				return device.InvalidID, err
			}
			desc.Depth = f.depth.ID()
		}
		id, err := ctx.Device().CreateFramebuffer(&desc)
		if err == nil {
			logging.Logger().Debug("resource: framebuffer realized", "label", f.Label,
				"width", desc.Width, "height", desc.Height, "colors", len(desc.Color))
		}
		return id, err
	})
}

// Resize resizes every attachment. A realized framebuffer returns to
// Described and is rebuilt by the next Realize.
func (f *Framebuffer) Resize(ctx *device.Context, width, height int) {
	if w, h := f.Size(); w == width && h == height {
		return
	}
	ctx.Forget(f)
	f.h.unrealize(ctx.Device().DestroyFramebuffer)
	for _, c := range f.color {
		c.Resize(ctx, width, height)
	}
	if f.depth != nil {
		f.depth.Resize(ctx, width, height)
	}
}

// ReadPixels copies rect of color attachment i into dst. rect is in device
// coordinates with the origin at the bottom-left.
func (f *Framebuffer) ReadPixels(ctx *device.Context, i int, rect image.Rectangle, dst []byte) error {
	if !f.h.realized() {
		return fmt.Errorf("resource %q: read from unrealized framebuffer: %w", f.Label, device.ErrUnknownResource)
	}
	if !rect.In(f.Bounds()) {
		return fmt.Errorf("resource %q: %v outside %v: %w", f.Label, rect, f.Bounds(), device.ErrOutOfBounds)
	}
	return ctx.Device().ReadPixels(f.h.id, i, rect, dst)
}

// Attachments returns the color attachment indices, for DrawBuffers.
func (f *Framebuffer) Attachments() []int {
	out := make([]int, len(f.color))
	for i := range out {
		out[i] = i
	}
	return out
}

// BindKind implements device.Bindable.
func (f *Framebuffer) BindKind() device.Kind { return device.KindFramebuffer }

// BindTo implements device.Bindable.
func (f *Framebuffer) BindTo(d device.Device, _ int) { d.BindFramebuffer(f.h.id) }

// Destroy releases the framebuffer and its attachments.
func (f *Framebuffer) Destroy(ctx *device.Context) {
	ctx.Forget(f)
	f.h.destroy(ctx.Device().DestroyFramebuffer)
	for _, c := range f.color {
		c.Destroy(ctx)
	}
	if f.depth != nil {
		f.depth.Destroy(ctx)
	}
}
