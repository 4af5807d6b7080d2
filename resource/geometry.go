// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

// VertexStream is one vertex buffer and the attributes read from it.
type VertexStream struct {
	Buffer     *Buffer
	Stride     uint64
	StepMode   gputypes.VertexStepMode
	Attributes []gputypes.VertexAttribute
}

// Geometry is a vertex input configuration plus the draw parameters that go
// with it. Realization realizes every referenced buffer first.
type Geometry struct {
	Label    string
	Streams  []VertexStream
	Topology gputypes.PrimitiveTopology

	// Index is the optional index buffer.
	Index       *Buffer
	IndexFormat gputypes.IndexFormat

	// Count is the number of vertices, or indices for indexed geometry.
	Count int
	// First is the first vertex or index drawn.
	First int
	// Instances is the instance count. Values above 1 select the instanced
	// draw entry points.
	Instances int

	h handle[device.GeometryID]
}

// Stage returns the lifecycle stage.
func (g *Geometry) Stage() Stage { return g.h.stage }

// ID returns the device handle.
func (g *Geometry) ID() device.GeometryID { return g.h.id }

// DrawCall returns the draw matching the geometry: indexed when an index
// buffer is set, instanced when Instances is above 1.
func (g *Geometry) DrawCall() device.DrawCall {
	instances := max(g.Instances, 1)
	var kind device.DrawKind
	switch {
	case g.Index != nil && instances > 1:
		kind = device.DrawIndexedInstanced
	case g.Index != nil:
		kind = device.DrawIndexed
	case instances > 1:
		kind = device.DrawArraysInstanced
	default:
		kind = device.DrawArrays
	}
	return device.DrawCall{Kind: kind, First: g.First, Count: g.Count, Instances: instances}
}

// Realize realizes the buffers and allocates the vertex input object.
func (g *Geometry) Realize(ctx *device.Context) error {
	if g.h.realized() {
		return nil
	}
	return g.h.realize(g.Label, func() (device.GeometryID, error) {
		desc := device.GeometryDescriptor{
			Label:       g.Label,
			Topology:    g.Topology,
			IndexFormat: g.IndexFormat,
			Layouts:     make([]device.VertexLayout, 0, len(g.Streams)),
		}
		for _, s := range g.Streams {
			if err := s.Buffer.Realize(ctx); err != nil {
				return device.InvalidID, err
			}
			desc.Layouts = append(desc.Layouts, device.VertexLayout{
				Buffer:     s.Buffer.ID(),
				Stride:     s.Stride,
				StepMode:   s.StepMode,
				Attributes: s.Attributes,
			})
		}
		if g.Index != nil {
			if err := g.Index.Realize(ctx); err != nil {
				return device.InvalidID, err
			}
			desc.Index = g.Index.ID()
		}
		id, err := ctx.Device().CreateGeometry(&desc)
		if err == nil {
			logging.Logger().Debug("resource: geometry realized", "label", g.Label, "streams", len(g.Streams))
		}
		return id, err
	})
}

// BindKind implements device.Bindable.
func (g *Geometry) BindKind() device.Kind { return device.KindGeometry }

// BindTo implements device.Bindable.
func (g *Geometry) BindTo(d device.Device, _ int) { d.BindGeometry(g.h.id) }

// Destroy releases the vertex input object. Buffers are left alone; they
// may be shared with other geometries.
func (g *Geometry) Destroy(ctx *device.Context) {
	ctx.Forget(g)
	g.h.destroy(ctx.Device().DestroyGeometry)
}
