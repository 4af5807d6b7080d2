// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package space

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Projection selects the camera projection.
type Projection uint8

// Projections.
const (
	Perspective Projection = iota
	Orthographic
)

// Camera is a scene node with a projection. Its view matrix is the inverse
// of its model matrix.
type Camera struct {
	*SpacialNode

	projection Projection

	// fovY is the vertical field of view in radians (perspective).
	fovY float32
	// height is the vertical extent of the view volume (orthographic).
	height float32
	aspect float32
	near   float32
	far    float32

	view mgl32.Mat4
}

// NewPerspectiveCamera returns a camera at the origin looking down -Z.
func NewPerspectiveCamera(fovY, aspect, near, far float32) *Camera {
	return &Camera{
		SpacialNode: NewSpacialNode("camera"),
		projection:  Perspective,
		fovY:        fovY,
		aspect:      aspect,
		near:        near,
		far:         far,
		view:        mgl32.Ident4(),
	}
}

// NewOrthographicCamera returns an orthographic camera whose view volume is
// height units tall.
func NewOrthographicCamera(height, aspect, near, far float32) *Camera {
	return &Camera{
		SpacialNode: NewSpacialNode("camera"),
		projection:  Orthographic,
		height:      height,
		aspect:      aspect,
		near:        near,
		far:         far,
		view:        mgl32.Ident4(),
	}
}

// SetAspect sets the width/height ratio, typically after a resize.
func (c *Camera) SetAspect(aspect float32) { c.aspect = aspect }

// Aspect returns the width/height ratio.
func (c *Camera) Aspect() float32 { return c.aspect }

// LookAt places the camera at eye looking at target.
func (c *Camera) LookAt(eye, target, up mgl32.Vec3) {
	c.SetTransform(mgl32.LookAtV(eye, target, up).Inv())
}

// View returns the inverse of the model matrix. A degenerate model matrix
// leaves the previous view in place.
func (c *Camera) View() mgl32.Mat4 {
	model := c.ModelMatrix()
	if math.Abs(float64(model.Det())) >= singularDet {
		c.view = model.Inv()
	}
	return c.view
}

// Projection returns the projection matrix.
func (c *Camera) Projection() mgl32.Mat4 {
	if c.projection == Orthographic {
		h := c.height / 2
		w := h * c.aspect
		return mgl32.Ortho(-w, w, -h, h, c.near, c.far)
	}
	return mgl32.Perspective(c.fovY, c.aspect, c.near, c.far)
}

// ViewProjection returns Projection × View.
func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}
