// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/gputypes"
)

// Origin identifies the row orientation of a surface.
type Origin uint8

const (
	// OriginTopLeft places row zero at the top of the surface.
	OriginTopLeft Origin = iota

	// OriginBottomLeft places row zero at the bottom, as GL render
	// targets conventionally do.
	OriginBottomLeft
)

// String returns a human-readable name for the origin.
func (o Origin) String() string {
	switch o {
	case OriginTopLeft:
		return "TopLeft"
	case OriginBottomLeft:
		return "BottomLeft"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(o))
	}
}

// MipMode describes the mipmap state requested for a surface.
type MipMode uint8

const (
	// MipModeNone requests no mip levels beyond the base.
	MipModeNone MipMode = iota

	// MipModeAllocated reserves space for a full mip chain without
	// filling it; levels are regenerated on the GPU as needed.
	MipModeAllocated

	// MipModeComplete requests a full mip chain with every level filled.
	MipModeComplete
)

// String returns a human-readable name for the mip mode.
func (m MipMode) String() string {
	switch m {
	case MipModeNone:
		return "None"
	case MipModeAllocated:
		return "Allocated"
	case MipModeComplete:
		return "Complete"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(m))
	}
}

// BackingFit controls whether the backing store must match the requested
// dimensions exactly or may be larger to enable reuse.
type BackingFit uint8

const (
	// BackingFitExact requires the backing store dimensions to equal the
	// requested dimensions.
	BackingFitExact BackingFit = iota

	// BackingFitApprox permits a larger backing store, quantized by
	// ApproxDimension, so near-sized requests can share one resource.
	BackingFitApprox
)

// String returns a human-readable name for the fit policy.
func (f BackingFit) String() string {
	switch f {
	case BackingFitExact:
		return "Exact"
	case BackingFitApprox:
		return "Approx"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

// Budgeted reports whether a surface counts against the resource cache
// budget. Wrapped external objects are never budgeted.
type Budgeted uint8

const (
	// BudgetedNo excludes the surface from cache budget accounting.
	BudgetedNo Budgeted = iota

	// BudgetedYes counts the surface against the cache budget, making it
	// a candidate for reuse and eviction once unreferenced.
	BudgetedYes
)

// String returns a human-readable name for the budget class.
func (b Budgeted) String() string {
	switch b {
	case BudgetedNo:
		return "No"
	case BudgetedYes:
		return "Yes"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(b))
	}
}

// LazyType controls whether a lazy instantiation callback may run again
// after the backing store has been reclaimed.
type LazyType uint8

const (
	// LazySingleUse callbacks are dropped after the first successful
	// instantiation; the proxy can never be re-instantiated.
	LazySingleUse LazyType = iota

	// LazyReusable callbacks survive instantiation. If the backing store
	// is reclaimed while the proxy lives on, the same callback runs again
	// on the next instantiation.
	LazyReusable
)

// String returns a human-readable name for the lazy type.
func (t LazyType) String() string {
	switch t {
	case LazySingleUse:
		return "SingleUse"
	case LazyReusable:
		return "Reusable"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// minApproxDimension is the floor of the approximate-fit quantization grid.
const minApproxDimension = 16

// ApproxDimension maps a requested dimension onto the approximate-fit
// quantization grid: the next power of two, with a floor of 16. The
// allocator sizes approximate-fit backing stores with it and the exactness
// predicate uses it to decide whether a request already lies on the grid.
func ApproxDimension(n int) int {
	if n <= minApproxDimension {
		return minApproxDimension
	}
	return 1 << bits.Len(uint(n-1))
}

// SurfaceDesc describes a wanted surface. It is a plain immutable value:
// once attached to a proxy it never changes (fully-lazy proxies learn their
// dimensions at instantiation, which is the one sanctioned exception).
type SurfaceDesc struct {
	// Width and Height are the requested dimensions in pixels. Both
	// positive, or both non-positive meaning "unknown", which is legal
	// only for fully-lazy proxies.
	Width  int
	Height int

	// Format is the pixel layout of the surface.
	Format gputypes.TextureFormat

	// SampleCount is the MSAA sample count; 1 means no multisampling.
	SampleCount int

	// MipMode is the requested mipmap state.
	MipMode MipMode

	// Fit selects exact or approximate backing-store sizing.
	Fit BackingFit

	// Budgeted selects whether the surface counts against the cache budget.
	Budgeted Budgeted
}

// LazyDims reports whether the descriptor's dimensions are still unknown.
func (d SurfaceDesc) LazyDims() bool {
	return d.Width <= 0 && d.Height <= 0
}

// IsValid reports whether the descriptor is internally consistent.
// Unknown dimensions are valid (fully-lazy proxies); a mixed known/unknown
// pair is not.
func (d SurfaceDesc) IsValid() bool {
	if d.SampleCount < 1 {
		return false
	}
	if d.LazyDims() {
		return true
	}
	return d.Width > 0 && d.Height > 0
}

// String returns a compact form for debug logging.
func (d SurfaceDesc) String() string {
	return fmt.Sprintf("SurfaceDesc(%dx%d fmt=%d samples=%d mip=%s fit=%s budgeted=%s)",
		d.Width, d.Height, d.Format, d.SampleCount, d.MipMode, d.Fit, d.Budgeted)
}

// FormatBytesPerPixel returns the byte size of one pixel in the given
// format. Formats outside the set ganesh allocates default to 4.
func FormatBytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	default:
		return 4
	}
}
