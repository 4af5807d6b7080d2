// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package space

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// SpacialNode is a scene graph node: a local transform with at most one
// parent and an ordered list of children.
type SpacialNode struct {
	OrthogonalSpace

	// Name is an optional label used in logs.
	Name string

	parent   *SpacialNode
	children []*SpacialNode
	model    mgl32.Mat4

	modelListeners []modelListener
	nextModelID    uint64
}

// ModelListener is called when the model matrix of a node may have changed:
// after a mutation of its own transform or of any ancestor, and when the node
// is attached or detached.
type ModelListener func(n *SpacialNode)

type modelListener struct {
	id uint64
	fn ModelListener
}

// ModelSubscription is the handle returned by OnModelChange.
type ModelSubscription struct {
	node *SpacialNode
	id   uint64
}

// Cancel removes the listener. Repeated calls do nothing.
func (s *ModelSubscription) Cancel() {
	if s == nil || s.node == nil {
		return
	}
	n := s.node
	for i, l := range n.modelListeners {
		if l.id == s.id {
			n.modelListeners = append(n.modelListeners[:i:i], n.modelListeners[i+1:]...)
			break
		}
	}
	s.node = nil
}

// NewSpacialNode returns a detached node with an identity transform.
func NewSpacialNode(name string) *SpacialNode {
	n := &SpacialNode{Name: name}
	n.init()
	n.model = n.local
	return n
}

// OnModelChange registers fn for model matrix changes of n.
func (n *SpacialNode) OnModelChange(fn ModelListener) *ModelSubscription {
	n.nextModelID++
	n.modelListeners = append(n.modelListeners, modelListener{id: n.nextModelID, fn: fn})
	return &ModelSubscription{node: n, id: n.nextModelID}
}

// Mutators shadow OrthogonalSpace so that a change also reaches model
// listeners of the node and of its subtree.

// SetAxisX overwrites the X axis column.
func (n *SpacialNode) SetAxisX(x, y, z float32) {
	n.OrthogonalSpace.SetAxisX(x, y, z)
	n.modelChanged()
}

// SetAxisY overwrites the Y axis column.
func (n *SpacialNode) SetAxisY(x, y, z float32) {
	n.OrthogonalSpace.SetAxisY(x, y, z)
	n.modelChanged()
}

// SetAxisZ overwrites the Z axis column.
func (n *SpacialNode) SetAxisZ(x, y, z float32) {
	n.OrthogonalSpace.SetAxisZ(x, y, z)
	n.modelChanged()
}

// SetPosition overwrites the position column.
func (n *SpacialNode) SetPosition(x, y, z float32) {
	n.OrthogonalSpace.SetPosition(x, y, z)
	n.modelChanged()
}

// TransformSelf right-multiplies the local transform by m.
func (n *SpacialNode) TransformSelf(m mgl32.Mat4) {
	n.OrthogonalSpace.TransformSelf(m)
	n.modelChanged()
}

// SetTransform replaces the local transform.
func (n *SpacialNode) SetTransform(m mgl32.Mat4) {
	n.OrthogonalSpace.SetTransform(m)
	n.modelChanged()
}

func (n *SpacialNode) modelChanged() {
	for _, l := range n.modelListeners {
		l.fn(n)
	}
	for _, c := range n.children {
		c.modelChanged()
	}
}

// Parent returns the parent node, or nil.
func (n *SpacialNode) Parent() *SpacialNode { return n.parent }

// Children returns the children in insertion order. The slice must not be
// modified.
func (n *SpacialNode) Children() []*SpacialNode { return n.children }

// IsAncestorOf reports whether n is other or one of its ancestors.
func (n *SpacialNode) IsAncestorOf(other *SpacialNode) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// AddChild appends c to the children of n. A child that already has a
// parent is detached from it first. Adding an ancestor of n returns
// ErrCycle and leaves the graph unchanged.
func (n *SpacialNode) AddChild(c *SpacialNode) error {
	if c.IsAncestorOf(n) {
		return ErrCycle
	}
	if c.parent == n {
		return nil
	}
	if c.parent != nil {
		c.parent.removeChild(c)
	}
	c.parent = n
	n.children = append(n.children, c)
	c.modelChanged()
	return nil
}

// RemoveChild detaches c from n. It reports false if c is not a child of n.
func (n *SpacialNode) RemoveChild(c *SpacialNode) bool {
	if c == nil || c.parent != n {
		return false
	}
	n.removeChild(c)
	c.parent = nil
	c.modelChanged()
	return true
}

func (n *SpacialNode) removeChild(c *SpacialNode) {
	if i := slices.Index(n.children, c); i >= 0 {
		n.children = slices.Delete(n.children, i, i+1)
	}
}

// Detach removes n from its parent, if any.
func (n *SpacialNode) Detach() {
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
}

// ModelMatrix returns parent.ModelMatrix() × local, or the local transform
// for a root node. It is recomputed on every call.
func (n *SpacialNode) ModelMatrix() mgl32.Mat4 {
	if n.parent == nil {
		return n.local
	}
	n.model = n.parent.ModelMatrix().Mul4(n.local)
	return n.model
}

// WorldPosition returns the position column of the model matrix.
func (n *SpacialNode) WorldPosition() mgl32.Vec3 {
	return n.ModelMatrix().Col(3).Vec3()
}

// Traverse calls fn for n and its descendants in depth-first pre-order.
// When fn returns false the children of that node are skipped.
func (n *SpacialNode) Traverse(fn func(*SpacialNode) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Traverse(fn)
	}
}
