// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bake

import (
	"image"
	"math/bits"

	xdraw "golang.org/x/image/draw"
)

// MipLevels returns the length of the full mip chain of a w×h image.
func MipLevels(w, h int) int {
	n := max(w, h)
	if n <= 0 {
		return 0
	}
	return bits.Len(uint(n))
}

// MipChain converts img to RGBA8 and downsamples it level by level with a
// bilinear filter. Each level halves the previous one, clamped at 1.
// levels limits the chain; zero or negative produces the full chain.
func MipChain(img image.Image, levels int) *Result {
	b := img.Bounds()
	full := MipLevels(b.Dx(), b.Dy())
	if levels <= 0 || levels > full {
		levels = full
	}
	res := &Result{Width: b.Dx(), Height: b.Dy(), Levels: make([][]byte, 0, levels)}
	if levels == 0 {
		return res
	}

	cur := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(cur, cur.Bounds(), img, b.Min, xdraw.Src)
	res.Levels = append(res.Levels, flipRows(cur))

	for len(res.Levels) < levels {
		w, h := max(cur.Rect.Dx()/2, 1), max(cur.Rect.Dy()/2, 1)
		next := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(next, next.Rect, cur, cur.Rect, xdraw.Src, nil)
		res.Levels = append(res.Levels, flipRows(next))
		cur = next
	}
	return res
}

// flipRows returns the pixels of img with the bottom row first.
func flipRows(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	row := 4 * w
	out := make([]byte, row*h)
	for y := range h {
		src := img.Pix[y*img.Stride : y*img.Stride+row]
		copy(out[(h-1-y)*row:], src)
	}
	return out
}
