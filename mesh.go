// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package g3d

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/pipeline"
	"github.com/gogpu/g3d/resource"
	"github.com/gogpu/g3d/space"
)

// Mesh is a geometry drawn with the unlit program at the model matrix of
// its node. Color multiplies the Texture, if any.
//
// Texture and Transparent select the pass a mesh joins and are read when
// the mesh is added to an Engine; Color is read every frame.
type Mesh struct {
	*space.SpacialNode

	Geometry    *resource.Geometry
	Color       mgl32.Vec4
	Texture     *resource.Texture
	Transparent bool

	sub  *pipeline.SubPipeline
	pass *pipeline.Pipeline
}

// NewMesh returns an opaque white mesh with its own detached node.
func NewMesh(name string, geo *resource.Geometry) *Mesh {
	return &Mesh{
		SpacialNode: space.NewSpacialNode(name),
		Geometry:    geo,
		Color:       mgl32.Vec4{1, 1, 1, 1},
	}
}

// PickGeometry implements pick.Pickable.
func (m *Mesh) PickGeometry() *resource.Geometry { return m.Geometry }

// SetVisible shows or hides the mesh. Hidden meshes stay pickable.
func (m *Mesh) SetVisible(visible bool) {
	if m.sub != nil {
		m.sub.SetEnabled(visible)
	}
}

// Visible reports whether the mesh draws.
func (m *Mesh) Visible() bool { return m.sub == nil || m.sub.Enabled() }

// Added reports whether the mesh belongs to an Engine.
func (m *Mesh) Added() bool { return m.sub != nil }
