// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import (
	"image"
	"image/draw"
	"math/bits"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"
)

// MipLevelCount returns the number of levels in a complete mip chain for
// the given base dimensions: each level halves both dimensions (floored at
// one pixel) down to 1x1.
func MipLevelCount(w, h int) int {
	if w <= 0 || h <= 0 {
		return 0
	}
	m := w
	if h > m {
		m = h
	}
	return bits.Len(uint(m))
}

// mipDims returns the dimensions of a given mip level.
func mipDims(w, h, level int) (int, int) {
	w >>= level
	h >>= level
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// imageToRGBA converts an image to a zero-origin RGBA image, reusing the
// input when it already is one.
func imageToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}

// rgbaMipChain builds a complete mip chain from a base RGBA image by
// successive CatmullRom downscaling, each level half the previous one.
// The returned slice starts with the base level.
func rgbaMipChain(base *image.RGBA) []TexelLevel {
	w := base.Rect.Dx()
	h := base.Rect.Dy()
	n := MipLevelCount(w, h)

	levels := make([]TexelLevel, 0, n)
	levels = append(levels, TexelLevel{Data: base.Pix, RowBytes: base.Stride})

	prev := base
	for level := 1; level < n; level++ {
		lw, lh := mipDims(w, h, level)
		dst := image.NewRGBA(image.Rect(0, 0, lw, lh))
		xdraw.CatmullRom.Scale(dst, dst.Rect, prev, prev.Rect, xdraw.Src, nil)
		levels = append(levels, TexelLevel{Data: dst.Pix, RowBytes: dst.Stride})
		prev = dst
	}
	return levels
}

// mipChainFromBytes builds a complete mip chain from raw base-level texels.
// Only RGBA8 data is supported: CPU resampling interprets the byte layout,
// so other channel orders must build their chains elsewhere.
func mipChainFromBytes(data []byte, w, h, rowBytes int, format gputypes.TextureFormat) ([]TexelLevel, error) {
	if format != gputypes.TextureFormatRGBA8Unorm {
		return nil, ErrMipChainUnsupported
	}
	if rowBytes <= 0 {
		rowBytes = w * 4
	}
	base := &image.RGBA{
		Pix:    data,
		Stride: rowBytes,
		Rect:   image.Rect(0, 0, w, h),
	}
	return rgbaMipChain(base), nil
}
