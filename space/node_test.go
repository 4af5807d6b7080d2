// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package space

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestModelMatrixComposition(t *testing.T) {
	parent := NewSpacialNode("parent")
	child := NewSpacialNode("child")
	grandchild := NewSpacialNode("grandchild")

	parent.SetTransform(mgl32.Translate3D(1, 2, 3))
	child.SetTransform(mgl32.HomogRotate3DY(0.7))
	grandchild.SetTransform(mgl32.Scale3D(2, 1, 0.5))
	grandchild.SetPosition(0, 4, 0)

	if err := parent.AddChild(child); err != nil {
		t.Fatalf("AddChild(child) error = %v", err)
	}
	if err := child.AddChild(grandchild); err != nil {
		t.Fatalf("AddChild(grandchild) error = %v", err)
	}

	want := parent.Transform().Mul4(child.Transform()).Mul4(grandchild.Transform())
	if got := grandchild.ModelMatrix(); !got.ApproxEqualThreshold(want, eps) {
		t.Errorf("ModelMatrix() = %v, want %v", got, want)
	}

	// Changing an ancestor is visible on the next read.
	parent.SetPosition(-5, 0, 0)
	want = parent.Transform().Mul4(child.Transform()).Mul4(grandchild.Transform())
	if got := grandchild.ModelMatrix(); !got.ApproxEqualThreshold(want, eps) {
		t.Errorf("ModelMatrix() after ancestor change = %v, want %v", got, want)
	}
}

func TestRootModelMatrixIsLocal(t *testing.T) {
	n := NewSpacialNode("root")
	n.SetPosition(1, 1, 1)
	if got := n.ModelMatrix(); got != n.Transform() {
		t.Errorf("ModelMatrix() = %v, want %v", got, n.Transform())
	}
}

func TestAddChildReparents(t *testing.T) {
	a := NewSpacialNode("a")
	b := NewSpacialNode("b")
	c := NewSpacialNode("c")

	_ = a.AddChild(c)
	_ = b.AddChild(c)

	if c.Parent() != b {
		t.Errorf("Parent() = %v, want b", c.Parent())
	}
	if len(a.Children()) != 0 {
		t.Errorf("len(a.Children()) = %d, want 0", len(a.Children()))
	}
	if len(b.Children()) != 1 {
		t.Errorf("len(b.Children()) = %d, want 1", len(b.Children()))
	}
}

func TestAddChildRejectsCycle(t *testing.T) {
	a := NewSpacialNode("a")
	b := NewSpacialNode("b")
	_ = a.AddChild(b)

	if err := b.AddChild(a); !errors.Is(err, ErrCycle) {
		t.Errorf("AddChild(ancestor) error = %v, want %v", err, ErrCycle)
	}
	if err := a.AddChild(a); !errors.Is(err, ErrCycle) {
		t.Errorf("AddChild(self) error = %v, want %v", err, ErrCycle)
	}
	if a.Parent() != nil {
		t.Error("graph changed after rejected AddChild")
	}
}

func TestRemoveChildAndDetach(t *testing.T) {
	a := NewSpacialNode("a")
	b := NewSpacialNode("b")
	c := NewSpacialNode("c")

	if a.RemoveChild(b) {
		t.Error("RemoveChild(non-child) = true, want false")
	}
	_ = a.AddChild(b)
	_ = a.AddChild(c)
	if !a.RemoveChild(b) {
		t.Error("RemoveChild(b) = false, want true")
	}
	c.Detach()
	if c.Parent() != nil || len(a.Children()) != 0 {
		t.Errorf("after Detach: parent = %v, children = %d", c.Parent(), len(a.Children()))
	}
}

func TestModelChangePropagates(t *testing.T) {
	root := NewSpacialNode("root")
	mid := NewSpacialNode("mid")
	leaf := NewSpacialNode("leaf")
	_ = root.AddChild(mid)
	_ = mid.AddChild(leaf)

	events := 0
	sub := leaf.OnModelChange(func(*SpacialNode) { events++ })

	root.SetPosition(1, 0, 0)
	mid.TransformSelf(mgl32.Scale3D(2, 2, 2))
	leaf.SetAxisX(1, 0, 0)
	if events != 3 {
		t.Errorf("events = %d, want 3", events)
	}

	sub.Cancel()
	root.SetPosition(0, 0, 0)
	if events != 3 {
		t.Errorf("events after Cancel = %d, want 3", events)
	}
}

func TestTraversePreOrder(t *testing.T) {
	root := NewSpacialNode("root")
	a := NewSpacialNode("a")
	b := NewSpacialNode("b")
	a1 := NewSpacialNode("a1")
	_ = root.AddChild(a)
	_ = root.AddChild(b)
	_ = a.AddChild(a1)

	var got []string
	root.Traverse(func(n *SpacialNode) bool {
		got = append(got, n.Name)
		return true
	})
	want := []string{"root", "a", "a1", "b"}
	if len(got) != len(want) {
		t.Fatalf("Traverse() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Traverse()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	got = got[:0]
	root.Traverse(func(n *SpacialNode) bool {
		got = append(got, n.Name)
		return n.Name != "a"
	})
	if len(got) != 3 {
		t.Errorf("Traverse() with pruning = %v, want [root a b]", got)
	}
}

func TestCameraViewIsInverseModel(t *testing.T) {
	cam := NewPerspectiveCamera(mgl32.DegToRad(60), 1.5, 0.1, 100)
	cam.LookAt(mgl32.Vec3{0, 2, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})

	want := mgl32.LookAtV(mgl32.Vec3{0, 2, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	if got := cam.View(); !got.ApproxEqualThreshold(want, eps) {
		t.Errorf("View() = %v, want %v", got, want)
	}

	vp := cam.ViewProjection()
	wantVP := mgl32.Perspective(mgl32.DegToRad(60), 1.5, 0.1, 100).Mul4(want)
	if !vp.ApproxEqualThreshold(wantVP, eps) {
		t.Errorf("ViewProjection() = %v, want %v", vp, wantVP)
	}
}

func TestOrthographicCamera(t *testing.T) {
	cam := NewOrthographicCamera(4, 2, 0.1, 10)
	want := mgl32.Ortho(-4, 4, -2, 2, 0.1, 10)
	if got := cam.Projection(); !got.ApproxEqualThreshold(want, eps) {
		t.Errorf("Projection() = %v, want %v", got, want)
	}
	cam.SetAspect(1)
	want = mgl32.Ortho(-2, 2, -2, 2, 0.1, 10)
	if got := cam.Projection(); !got.ApproxEqualThreshold(want, eps) {
		t.Errorf("Projection() after SetAspect = %v, want %v", got, want)
	}
}
