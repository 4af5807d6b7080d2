// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

// Buffer is a device buffer holding vertex, index or uniform data.
type Buffer struct {
	desc device.BufferDescriptor
	h    handle[device.BufferID]
}

// NewBuffer returns a described buffer.
func NewBuffer(desc device.BufferDescriptor) *Buffer {
	return &Buffer{desc: desc}
}

// NewVertexBuffer returns a described vertex buffer with initial data.
func NewVertexBuffer(label string, data []byte) *Buffer {
	return NewBuffer(device.BufferDescriptor{
		Label: label,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		Data:  data,
	})
}

// NewIndexBuffer returns a described index buffer with initial data.
func NewIndexBuffer(label string, data []byte) *Buffer {
	return NewBuffer(device.BufferDescriptor{
		Label: label,
		Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
		Data:  data,
	})
}

// Label returns the debug label.
func (b *Buffer) Label() string { return b.desc.Label }

// Stage returns the lifecycle stage.
func (b *Buffer) Stage() Stage { return b.h.stage }

// ID returns the device handle, or device.InvalidID before realization.
func (b *Buffer) ID() device.BufferID { return b.h.id }

// Size returns the allocation size in bytes.
func (b *Buffer) Size() int { return max(b.desc.Size, len(b.desc.Data)) }

// Realize allocates the device buffer.
func (b *Buffer) Realize(ctx *device.Context) error {
	return b.h.realize(b.desc.Label, func() (device.BufferID, error) {
		id, err := ctx.Device().CreateBuffer(&b.desc)
		if err == nil {
			logging.Logger().Debug("resource: buffer realized", "label", b.desc.Label, "size", b.Size())
			b.desc.Data = nil
		}
		return id, err
	})
}

// Write replaces bytes starting at offset. Before realization the data is
// kept as the initial content.
func (b *Buffer) Write(ctx *device.Context, offset int, data []byte) error {
	if b.h.realized() {
		return ctx.Device().WriteBuffer(b.h.id, offset, data)
	}
	if b.h.stage == Destroyed {
		return device.ErrDestroyed
	}
	if offset < 0 {
		return fmt.Errorf("resource %q: write at %d: %w", b.desc.Label, offset, device.ErrOutOfBounds)
	}
	end := offset + len(data)
	if end > len(b.desc.Data) {
		grown := make([]byte, max(end, b.desc.Size))
		copy(grown, b.desc.Data)
		b.desc.Data = grown
	}
	copy(b.desc.Data[offset:], data)
	return nil
}

// Destroy releases the device buffer.
func (b *Buffer) Destroy(ctx *device.Context) {
	b.h.destroy(ctx.Device().DestroyBuffer)
}

// UniformBuffer is a buffer backing a uniform block. It binds to a block
// slot through device.Context.BindUniformBuffer.
type UniformBuffer struct {
	Buffer
}

// NewUniformBuffer returns a described uniform buffer of size bytes.
func NewUniformBuffer(label string, size int) *UniformBuffer {
	return &UniformBuffer{Buffer: Buffer{desc: device.BufferDescriptor{
		Label: label,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		Size:  size,
	}}}
}

// BindKind implements device.Bindable.
func (u *UniformBuffer) BindKind() device.Kind { return device.KindUniformBuffer }

// BindTo implements device.Bindable.
func (u *UniformBuffer) BindTo(d device.Device, slot int) { d.BindUniformBuffer(slot, u.h.id) }

// Destroy releases the device buffer and drops it from the bind cache.
func (u *UniformBuffer) Destroy(ctx *device.Context) {
	ctx.Forget(u)
	u.Buffer.Destroy(ctx)
}
