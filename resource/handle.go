// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"

	"github.com/gogpu/g3d/device"
)

// Stage is the lifecycle stage of a resource.
type Stage uint8

// Lifecycle stages.
const (
	// Described resources carry parameters only.
	Described Stage = iota
	// Realized resources own a device handle.
	Realized
	// Destroyed resources released their handle and are unusable.
	Destroyed
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case Described:
		return "described"
	case Realized:
		return "realized"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// handle is the stage/ID pair shared by every resource. The ID is only
// meaningful while the stage is Realized.
type handle[ID comparable] struct {
	stage Stage
	id    ID
}

// realize runs create once. Realized handles are left alone; destroyed
// handles report device.ErrDestroyed.
func (h *handle[ID]) realize(label string, create func() (ID, error)) error {
	switch h.stage {
	case Realized:
		return nil
	case Destroyed:
		return fmt.Errorf("resource %q: %w", label, device.ErrDestroyed)
	}
	id, err := create()
	if err != nil {
		return fmt.Errorf("resource %q: %w", label, err)
	}
	h.id = id
	h.stage = Realized
	return nil
}

// unrealize releases the device handle and returns to Described.
func (h *handle[ID]) unrealize(release func(ID)) {
	if h.stage == Realized {
		release(h.id)
		var zero ID
		h.id = zero
		h.stage = Described
	}
}

// destroy releases the device handle, if any, and enters Destroyed.
func (h *handle[ID]) destroy(release func(ID)) {
	h.unrealize(release)
	h.stage = Destroyed
}

func (h *handle[ID]) realized() bool { return h.stage == Realized }
