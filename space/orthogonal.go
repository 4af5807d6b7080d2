// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package space

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// singularDet is the determinant magnitude below which a matrix is treated
// as singular.
const singularDet = 1e-12

// Listener is called synchronously after a transform mutation.
type Listener func(s *OrthogonalSpace)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Subscription is the handle returned by OnChange. The subscriber owns it
// and ends the registration with Cancel.
type Subscription struct {
	space *OrthogonalSpace
	id    uint64
}

// Cancel removes the listener. Calling Cancel more than once, or on a zero
// Subscription, does nothing.
func (s *Subscription) Cancel() {
	if s == nil || s.space == nil {
		return
	}
	s.space.removeListener(s.id)
	s.space = nil
}

// OrthogonalSpace is a local transform with a lazily computed inverse.
//
// The zero value is not ready for use; call NewOrthogonalSpace.
type OrthogonalSpace struct {
	local mgl32.Mat4
	inv   mgl32.Mat4

	dirty    bool
	singular bool

	// inversions counts actual matrix inversions.
	inversions int

	listeners []listenerEntry
	nextID    uint64
}

// NewOrthogonalSpace returns an identity transform.
func NewOrthogonalSpace() *OrthogonalSpace {
	s := &OrthogonalSpace{}
	s.init()
	return s
}

func (s *OrthogonalSpace) init() {
	s.local = mgl32.Ident4()
	s.inv = mgl32.Ident4()
}

// OnChange registers fn to be called after every mutation.
func (s *OrthogonalSpace) OnChange(fn Listener) *Subscription {
	s.nextID++
	s.listeners = append(s.listeners, listenerEntry{id: s.nextID, fn: fn})
	return &Subscription{space: s, id: s.nextID}
}

func (s *OrthogonalSpace) removeListener(id uint64) {
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// changed marks the inverse dirty and fires one event. Listeners see a
// snapshot, so they may cancel or subscribe while being notified.
func (s *OrthogonalSpace) changed() {
	s.dirty = true
	if len(s.listeners) == 0 {
		return
	}
	snapshot := s.listeners
	for _, l := range snapshot {
		l.fn(s)
	}
}

func (s *OrthogonalSpace) setColumn(col int, x, y, z, w float32) {
	s.local.SetCol(col, mgl32.Vec4{x, y, z, w})
	s.changed()
}

// SetAxisX overwrites the X axis column.
func (s *OrthogonalSpace) SetAxisX(x, y, z float32) { s.setColumn(0, x, y, z, 0) }

// SetAxisY overwrites the Y axis column.
func (s *OrthogonalSpace) SetAxisY(x, y, z float32) { s.setColumn(1, x, y, z, 0) }

// SetAxisZ overwrites the Z axis column.
func (s *OrthogonalSpace) SetAxisZ(x, y, z float32) { s.setColumn(2, x, y, z, 0) }

// SetPosition overwrites the position column.
func (s *OrthogonalSpace) SetPosition(x, y, z float32) { s.setColumn(3, x, y, z, 1) }

// TransformSelf right-multiplies the local transform by m, so m is applied
// before the existing transform.
func (s *OrthogonalSpace) TransformSelf(m mgl32.Mat4) {
	s.local = s.local.Mul4(m)
	s.changed()
}

// SetTransform replaces the local transform.
func (s *OrthogonalSpace) SetTransform(m mgl32.Mat4) {
	s.local = m
	s.changed()
}

// Transform returns the local transform.
func (s *OrthogonalSpace) Transform() mgl32.Mat4 { return s.local }

// TransformInv returns the inverse of the local transform. When the
// transform is singular the last good inverse is returned; use Inverse to
// detect that case.
func (s *OrthogonalSpace) TransformInv() mgl32.Mat4 {
	s.refreshInverse()
	return s.inv
}

// Inverse returns the inverse of the local transform, or the last good
// inverse together with ErrDegenerateTransform.
func (s *OrthogonalSpace) Inverse() (mgl32.Mat4, error) {
	s.refreshInverse()
	if s.singular {
		return s.inv, ErrDegenerateTransform
	}
	return s.inv, nil
}

func (s *OrthogonalSpace) refreshInverse() {
	if !s.dirty {
		return
	}
	s.dirty = false
	det := s.local.Det()
	if math.Abs(float64(det)) < singularDet {
		s.singular = true
		return
	}
	s.inversions++
	s.inv = s.local.Inv()
	s.singular = false
}

func (s *OrthogonalSpace) column(col int, dst *mgl32.Vec3) {
	c := s.local.Col(col)
	dst[0], dst[1], dst[2] = c[0], c[1], c[2]
}

// AxisX copies the X axis into dst.
func (s *OrthogonalSpace) AxisX(dst *mgl32.Vec3) { s.column(0, dst) }

// AxisY copies the Y axis into dst.
func (s *OrthogonalSpace) AxisY(dst *mgl32.Vec3) { s.column(1, dst) }

// AxisZ copies the Z axis into dst.
func (s *OrthogonalSpace) AxisZ(dst *mgl32.Vec3) { s.column(2, dst) }

// Position copies the position into dst.
func (s *OrthogonalSpace) Position(dst *mgl32.Vec3) { s.column(3, dst) }
