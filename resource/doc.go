// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resource provides GPU resource objects with deferred allocation.
//
// Every resource is constructed described: it carries its parameters and no
// device handle. Realize allocates the handle the first time it is called
// and does nothing afterwards. Destroy releases the handle; a destroyed
// resource cannot be realized again.
//
//	tex := resource.NewTexture(device.TextureDescriptor{Width: 256, Height: 256, Format: gputypes.TextureFormatRGBA8Unorm})
//	if err := tex.Realize(ctx); err != nil {
//		return err // Vital: the device refused the texture
//	}
//	ctx.BindTexture(0, tex)
//
// Resources are owned by the render goroutine and are not safe for
// concurrent use.
package resource
