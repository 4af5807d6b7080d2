// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package space implements the spatial transform hierarchy.
//
// OrthogonalSpace is a local transform made of three axis columns and a
// position column. Its inverse is computed lazily: mutations only mark it
// dirty, and the next read inverts once. Every mutation fires exactly one
// change event to the listeners registered with OnChange.
//
// SpacialNode adds single-parent composition on top of OrthogonalSpace.
// ModelMatrix composes parent.ModelMatrix() × local on every read, so it
// is always current without any invalidation bookkeeping.
//
// Matrices are mgl32 column-major: column 0..2 are the X, Y and Z axes and
// column 3 is the position.
package space

import "errors"

var (
	// ErrDegenerateTransform is returned by Inverse when the axes are
	// coplanar and the matrix cannot be inverted.
	ErrDegenerateTransform = errors.New("space: degenerate transform")

	// ErrCycle is returned by AddChild when the child is an ancestor of the
	// parent (or the parent itself).
	ErrCycle = errors.New("space: node would become its own ancestor")
)
