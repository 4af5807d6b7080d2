// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"fmt"
)

// ErrVital marks unrecoverable precondition violations: an unsupported
// device, a shader that fails to compile or link, a malformed framebuffer.
// Every vital sentinel below wraps it, so errors.Is(err, ErrVital) reports
// whether the operation that produced err must be abandoned.
var ErrVital = errors.New("vital")

// Vital error sentinels. Backends wrap them with details.
var (
	// ErrUnsupported is returned when the device lacks a required capability.
	ErrUnsupported = fmt.Errorf("device: unsupported: %w", ErrVital)

	// ErrCompile is returned when a shader stage fails to compile.
	ErrCompile = fmt.Errorf("device: shader compile failed: %w", ErrVital)

	// ErrLink is returned when a program fails to link.
	ErrLink = fmt.Errorf("device: program link failed: %w", ErrVital)

	// ErrIncompleteFramebuffer is returned for an invalid attachment set.
	ErrIncompleteFramebuffer = fmt.Errorf("device: incomplete framebuffer: %w", ErrVital)

	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = fmt.Errorf("device: unknown resource: %w", ErrVital)

	// ErrDestroyed is returned when a destroyed resource is used again.
	ErrDestroyed = fmt.Errorf("device: resource destroyed: %w", ErrVital)
)

// ErrOutOfBounds is returned by ReadPixels for a rectangle outside the
// attachment. It is not vital: callers treat it as "nothing to read".
var ErrOutOfBounds = errors.New("device: read rectangle out of bounds")

// IsVital reports whether err is a vital error.
func IsVital(err error) bool {
	return errors.Is(err, ErrVital)
}
