// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

// Texture is a 2D device texture.
type Texture struct {
	desc device.TextureDescriptor
	h    handle[device.TextureID]

	// pending holds uploads for mip levels above 0 made before realization.
	pending map[int][]byte
}

// NewTexture returns a described texture. MipLevels below 1 means 1.
func NewTexture(desc device.TextureDescriptor) *Texture {
	desc.MipLevels = max(desc.MipLevels, 1)
	if desc.Usage == gputypes.TextureUsageNone {
		desc.Usage = gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	}
	return &Texture{desc: desc}
}

// NewRenderTarget returns a described texture usable as a render attachment
// and as a copy source for readback.
func NewRenderTarget(label string, width, height int, format gputypes.TextureFormat) *Texture {
	return NewTexture(device.TextureDescriptor{
		Label:  label,
		Width:  width,
		Height: height,
		Format: format,
		Usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc,
		Filter: gputypes.FilterModeNearest,
		Wrap:   gputypes.AddressModeClampToEdge,
	})
}

// Label returns the debug label.
func (t *Texture) Label() string { return t.desc.Label }

// Stage returns the lifecycle stage.
func (t *Texture) Stage() Stage { return t.h.stage }

// ID returns the device handle.
func (t *Texture) ID() device.TextureID { return t.h.id }

// Size returns the texture dimensions.
func (t *Texture) Size() (width, height int) { return t.desc.Width, t.desc.Height }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.desc.Format }

// MipLevels returns the number of mip levels.
func (t *Texture) MipLevels() int { return t.desc.MipLevels }

// Realize allocates the device texture and uploads data set so far.
func (t *Texture) Realize(ctx *device.Context) error {
	return t.h.realize(t.desc.Label, func() (device.TextureID, error) {
		dev := ctx.Device()
		id, err := dev.CreateTexture(&t.desc)
		if err != nil {
			return id, err
		}
		for level, data := range t.pending {
			if err := dev.WriteTexture(id, level, data); err != nil {
				dev.DestroyTexture(id)
				return device.InvalidID, err
			}
		}
		t.pending = nil
		t.desc.Data = nil
		logging.Logger().Debug("resource: texture realized", "label", t.desc.Label,
			"width", t.desc.Width, "height", t.desc.Height, "format", t.desc.Format)
		return id, nil
	})
}

// SetData replaces the content of one mip level. Before realization the
// data is kept and uploaded by Realize.
func (t *Texture) SetData(ctx *device.Context, level int, data []byte) error {
	if level < 0 || level >= t.desc.MipLevels {
		return fmt.Errorf("resource %q: mip level %d out of range [0,%d)", t.desc.Label, level, t.desc.MipLevels)
	}
	switch t.h.stage {
	case Realized:
		return ctx.Device().WriteTexture(t.h.id, level, data)
	case Destroyed:
		return fmt.Errorf("resource %q: %w", t.desc.Label, device.ErrDestroyed)
	}
	if level == 0 {
		t.desc.Data = data
		return nil
	}
	if t.pending == nil {
		t.pending = make(map[int][]byte)
	}
	t.pending[level] = data
	return nil
}

// Resize changes the dimensions. A realized texture releases its handle
// and returns to Described; its content is lost.
func (t *Texture) Resize(ctx *device.Context, width, height int) {
	if t.desc.Width == width && t.desc.Height == height {
		return
	}
	ctx.Forget(t)
	t.h.unrealize(ctx.Device().DestroyTexture)
	t.desc.Width, t.desc.Height = width, height
	t.desc.Data = nil
	t.pending = nil
}

// BindKind implements device.Bindable.
func (t *Texture) BindKind() device.Kind { return device.KindTexture }

// BindTo implements device.Bindable.
func (t *Texture) BindTo(d device.Device, unit int) { d.BindTexture(unit, t.h.id) }

// Destroy releases the device texture.
func (t *Texture) Destroy(ctx *device.Context) {
	ctx.Forget(t)
	t.h.destroy(ctx.Device().DestroyTexture)
}
