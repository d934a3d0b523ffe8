// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package atlas

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/gogpu/ganesh"
	"github.com/gogpu/gputypes"
)

// Atlas errors.
var (
	// ErrNilProvider is returned when no proxy provider is passed.
	ErrNilProvider = errors.New("atlas: nil proxy provider")

	// ErrInvalidSpecs is returned when the specs cannot describe an atlas.
	ErrInvalidSpecs = errors.New("atlas: invalid specs")
)

// Default atlas limits.
const (
	// DefaultMinSize is the smallest atlas dimension (64x64).
	DefaultMinSize = 64

	// DefaultMaxPreferredTextureSize is the preferred dimension cap (2048).
	DefaultMaxPreferredTextureSize = 2048

	// DefaultMaxTextureSize is the hard dimension cap (8192).
	DefaultMaxTextureSize = 8192

	// rectPadding keeps one texel between packed rectangles so samplers
	// never bleed across neighbors.
	rectPadding = 1
)

// Specs bound the atlas dimensions and seed its initial size.
type Specs struct {
	// MinWidth and MinHeight floor the initial size.
	MinWidth  int
	MinHeight int

	// MaxPreferredTextureSize caps the initial size; growth may exceed it
	// up to MaxTextureSize.
	MaxPreferredTextureSize int

	// MaxTextureSize is the hard cap the device imposes.
	MaxTextureSize int

	// ApproxNumPixels estimates the total pixel area this atlas will
	// pack; the initial power-of-two size is derived from it.
	ApproxNumPixels int
}

// DefaultSpecs returns sensible atlas bounds.
func DefaultSpecs() Specs {
	return Specs{
		MinWidth:                DefaultMinSize,
		MinHeight:               DefaultMinSize,
		MaxPreferredTextureSize: DefaultMaxPreferredTextureSize,
		MaxTextureSize:          DefaultMaxTextureSize,
	}
}

// Atlas packs rectangles while a frame is recorded, growing by power-of-
// two doubling, and materializes one texture of the final size at flush
// through a fully-lazy proxy. Placements handed out by AddRect stay valid
// across growth.
type Atlas struct {
	specs  Specs
	packer *shelfPacker

	width  int
	height int

	drawBoundsW int
	drawBoundsH int

	proxy *ganesh.TextureProxy
}

// New creates an atlas and its fully-lazy texture proxy. The proxy exists
// immediately — draws may reference it — while the atlas keeps growing
// until Instantiate fixes the final dimensions.
func New(specs Specs, pp *ganesh.ProxyProvider, format gputypes.TextureFormat, origin ganesh.Origin) (*Atlas, error) {
	if pp == nil {
		return nil, ErrNilProvider
	}
	if specs.MinWidth <= 0 {
		specs.MinWidth = DefaultMinSize
	}
	if specs.MinHeight <= 0 {
		specs.MinHeight = DefaultMinSize
	}
	if specs.MaxPreferredTextureSize <= 0 {
		specs.MaxPreferredTextureSize = DefaultMaxPreferredTextureSize
	}
	if specs.MaxTextureSize <= 0 {
		specs.MaxTextureSize = DefaultMaxTextureSize
	}
	if specs.MaxTextureSize < specs.MaxPreferredTextureSize {
		return nil, fmt.Errorf("%w: max %d below preferred %d", ErrInvalidSpecs,
			specs.MaxTextureSize, specs.MaxPreferredTextureSize)
	}

	w, h := initialSize(specs)
	a := &Atlas{
		specs:  specs,
		packer: newShelfPacker(w, h, rectPadding),
		width:  w,
		height: h,
	}

	// The callback reads the atlas's final dimensions at flush time.
	cb := func(alloc ganesh.Allocator) (*ganesh.Surface, error) {
		if alloc == nil {
			return nil, nil // teardown: nothing captured to release
		}
		return alloc.CreateTexture(ganesh.SurfaceDesc{
			Width:       a.width,
			Height:      a.height,
			Format:      format,
			SampleCount: 1,
			MipMode:     ganesh.MipModeNone,
			Fit:         ganesh.BackingFitExact,
			Budgeted:    ganesh.BudgetedYes,
		}, true, "atlas")
	}

	proxy, err := pp.CreateFullyLazyProxy(cb, format, origin, true)
	if err != nil {
		return nil, err
	}
	a.proxy = proxy
	return a, nil
}

// initialSize derives a power-of-two starting size from the approximate
// pixel count, splitting log2(area) between width and height with the
// extra bit going to width, clamped to the configured bounds.
func initialSize(specs Specs) (int, int) {
	w, h := specs.MinWidth, specs.MinHeight
	if specs.ApproxNumPixels > 0 {
		areaBits := bits.Len(uint(specs.ApproxNumPixels - 1))
		pw := 1 << ((areaBits + 1) / 2)
		ph := 1 << (areaBits / 2)
		if pw > w {
			w = pw
		}
		if ph > h {
			h = ph
		}
	}
	if w > specs.MaxPreferredTextureSize {
		w = specs.MaxPreferredTextureSize
	}
	if h > specs.MaxPreferredTextureSize {
		h = specs.MaxPreferredTextureSize
	}
	return w, h
}

// AddRect places a w x h rectangle, growing the atlas when full: the
// shorter dimension doubles first, up to the hard texture size cap.
// ok is false only when the rectangle can never fit, or when the atlas
// has already been materialized and its dimensions are fixed.
func (a *Atlas) AddRect(w, h int) (x, y int, ok bool) {
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	if a.proxy.IsInstantiated() {
		return 0, 0, false
	}

	for {
		if x, y, ok = a.packer.addRect(w, h); ok {
			if x+w > a.drawBoundsW {
				a.drawBoundsW = x + w
			}
			if y+h > a.drawBoundsH {
				a.drawBoundsH = y + h
			}
			return x, y, true
		}
		if !a.growForRect() {
			return 0, 0, false
		}
	}
}

// growForRect doubles one dimension, height first while it trails width.
// Returns false when both dimensions are already at the hard cap.
func (a *Atlas) growForRect() bool {
	max := a.specs.MaxTextureSize
	if a.width >= max && a.height >= max {
		return false
	}
	if a.height <= a.width && a.height < max {
		a.height *= 2
	} else {
		a.width *= 2
	}
	if a.width > max {
		a.width = max
	}
	if a.height > max {
		a.height = max
	}
	a.packer.grow(a.width, a.height)
	return true
}

// Instantiate materializes the atlas texture at its final dimensions
// through the fully-lazy proxy. After it returns nil, the proxy reports
// the final size and AddRect stops accepting rectangles.
func (a *Atlas) Instantiate(alloc ganesh.Allocator) error {
	return a.proxy.Instantiate(alloc)
}

// TextureProxy returns the atlas's proxy for attaching to draws. The
// reference is borrowed: the atlas owns it.
func (a *Atlas) TextureProxy() *ganesh.TextureProxy { return a.proxy }

// Width returns the current (pre-flush) or final (post-flush) width.
func (a *Atlas) Width() int { return a.width }

// Height returns the current or final height.
func (a *Atlas) Height() int { return a.height }

// DrawBounds returns the extent actually covered by packed rectangles,
// which may be well inside the atlas dimensions.
func (a *Atlas) DrawBounds() (w, h int) { return a.drawBoundsW, a.drawBoundsH }

// Utilization returns the fraction of atlas area packed (0.0 to 1.0).
func (a *Atlas) Utilization() float64 { return a.packer.utilization() }

// Release drops the atlas's proxy reference. The proxy survives if draws
// still hold references.
func (a *Atlas) Release() {
	if a.proxy != nil {
		a.proxy.Unref()
		a.proxy = nil
	}
}
