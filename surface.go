// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Surface-related errors.
var (
	// ErrSurfaceReleased is returned when operating on a released surface.
	ErrSurfaceReleased = errors.New("ganesh: surface has been released")

	// ErrInvalidDimensions is returned when surface dimensions are not positive.
	ErrInvalidDimensions = errors.New("ganesh: invalid surface dimensions")
)

// SurfaceListener observes the moment a surface loses its last reference.
// The resource cache implements it to keep purgeable surfaces around for
// reuse instead of destroying them immediately.
type SurfaceListener interface {
	// SurfaceUnreferenced is called when the last reference is dropped.
	// Returning true takes ownership of the surface (it stays alive for
	// reuse); returning false lets the surface release its backend now.
	SurfaceUnreferenced(s *Surface) bool
}

// SurfaceConfig holds configuration for creating a realized Surface.
type SurfaceConfig struct {
	// Width is the backing-store width in pixels.
	Width int

	// Height is the backing-store height in pixels.
	Height int

	// Format is the pixel format.
	Format gputypes.TextureFormat

	// SampleCount is the MSAA sample count; values below 1 are treated as 1.
	SampleCount int

	// MipMapped reports whether a full mip chain was allocated.
	MipMapped bool

	// Renderable reports whether the surface can be a render target.
	Renderable bool

	// Budgeted selects whether the surface counts against the cache budget.
	Budgeted Budgeted

	// Texture is the hal texture handle. Nil for logical surfaces.
	Texture hal.Texture

	// View is an optional texture view created alongside the texture.
	View hal.TextureView

	// Device is the device the texture lives on; used for destruction.
	Device hal.Device

	// Ownership states whether ganesh may destroy the texture through the
	// device. Allocated surfaces are adopted; wrapped ones are explicit.
	Ownership WrapOwnership

	// Release is an optional callback invoked exactly once when the
	// surface releases its backend object.
	Release func()

	// Label is an optional debug label.
	Label string
}

// Surface is a realized backend resource: the concrete object a proxy
// resolves to once instantiated. It is reference-counted with shared
// ownership — the proxy, the resource cache, and recorded command streams
// may each hold a reference, and whichever releases last frees the backend.
//
// A Surface with nil hal handles is a logical surface: legal for deferred
// recording and tests, where no device exists.
type Surface struct {
	mu sync.Mutex // guards key, listener, release, handles

	width       int
	height      int
	format      gputypes.TextureFormat
	sampleCount int
	mipmapped   bool
	renderable  bool
	budgeted    Budgeted

	texture   hal.Texture
	view      hal.TextureView
	device    hal.Device
	ownership WrapOwnership
	release   func()

	sizeBytes int64
	label     string

	key      UniqueKey
	listener SurfaceListener

	refs     atomic.Int32
	released atomic.Bool
}

// NewSurface creates a realized surface from a config.
// The returned surface carries one reference owned by the caller.
func NewSurface(cfg SurfaceConfig) (*Surface, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, cfg.Width, cfg.Height)
	}
	samples := cfg.SampleCount
	if samples < 1 {
		samples = 1
	}

	s := &Surface{
		width:       cfg.Width,
		height:      cfg.Height,
		format:      cfg.Format,
		sampleCount: samples,
		mipmapped:   cfg.MipMapped,
		renderable:  cfg.Renderable,
		budgeted:    cfg.Budgeted,
		texture:     cfg.Texture,
		view:        cfg.View,
		device:      cfg.Device,
		ownership:   cfg.Ownership,
		release:     cfg.Release,
		label:       cfg.Label,
	}
	s.sizeBytes = surfaceSizeBytes(cfg.Width, cfg.Height, cfg.Format, samples, cfg.MipMapped)
	s.refs.Store(1)
	return s, nil
}

// surfaceSizeBytes estimates the GPU footprint of a surface. A complete
// mip chain adds one third of the base level, the geometric series limit.
func surfaceSizeBytes(w, h int, format gputypes.TextureFormat, samples int, mipmapped bool) int64 {
	base := int64(w) * int64(h) * int64(FormatBytesPerPixel(format)) * int64(samples)
	if mipmapped {
		base += base / 3
	}
	return base
}

// Ref adds a reference.
func (s *Surface) Ref() {
	s.refs.Add(1)
}

// Unref drops a reference. When the last reference is dropped the surface
// either hands itself to its listener (which may keep it purgeable for
// reuse) or releases its backend object via Close.
func (s *Surface) Unref() {
	n := s.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic("ganesh: surface reference count underflow")
	}

	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()

	if l != nil && l.SurfaceUnreferenced(s) {
		return
	}
	s.Close()
}

// RefCount returns the current reference count. Intended for tests and
// cache bookkeeping, not for lifetime decisions.
func (s *Surface) RefCount() int {
	return int(s.refs.Load())
}

// Width returns the backing-store width in pixels.
func (s *Surface) Width() int { return s.width }

// Height returns the backing-store height in pixels.
func (s *Surface) Height() int { return s.height }

// Format returns the pixel format.
func (s *Surface) Format() gputypes.TextureFormat { return s.format }

// SampleCount returns the MSAA sample count.
func (s *Surface) SampleCount() int { return s.sampleCount }

// MipMapped reports whether a full mip chain was allocated.
func (s *Surface) MipMapped() bool { return s.mipmapped }

// Renderable reports whether the surface can be a render target.
func (s *Surface) Renderable() bool { return s.renderable }

// Budgeted returns the surface's budget class.
func (s *Surface) Budgeted() Budgeted { return s.budgeted }

// SizeBytes returns the estimated GPU footprint in bytes.
func (s *Surface) SizeBytes() int64 { return s.sizeBytes }

// Label returns the debug label.
func (s *Surface) Label() string { return s.label }

// IsReleased reports whether the backend object has been released.
func (s *Surface) IsReleased() bool { return s.released.Load() }

// Texture returns the hal texture handle; nil for logical surfaces.
func (s *Surface) Texture() hal.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texture
}

// View returns the hal texture view, if one was created.
func (s *Surface) View() hal.TextureView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// UniqueKey returns the key mirrored from a keyed proxy, or the zero key.
func (s *Surface) UniqueKey() UniqueKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// SetUniqueKey mirrors a proxy's key onto the surface so the resource
// cache can find it after the proxy is gone. Called by allocator
// implementations; drawing code never needs it.
func (s *Surface) SetUniqueKey(key UniqueKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
}

// ClearUniqueKey strips the mirrored key so no lookup path can find the
// surface anymore. Called by the resource cache on invalidation.
func (s *Surface) ClearUniqueKey() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = UniqueKey{}
}

// SetListener installs the last-reference observer. Called by the resource
// cache when it registers a budgeted surface.
func (s *Surface) SetListener(l SurfaceListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Close releases the backend object. Borrowed textures are never destroyed
// through the device; the release callback, if any, fires exactly once
// either way. Close is idempotent and safe on logical surfaces.
func (s *Surface) Close() {
	if s.released.Swap(true) {
		return
	}

	s.mu.Lock()
	release := s.release
	texture := s.texture
	view := s.view
	device := s.device
	ownership := s.ownership
	s.release = nil
	s.texture = nil
	s.view = nil
	s.device = nil
	s.listener = nil
	s.mu.Unlock()

	if release != nil {
		release()
	}

	if device != nil && ownership == WrapAdopted {
		if view != nil {
			device.DestroyTextureView(view)
		}
		if texture != nil {
			device.DestroyTexture(texture)
		}
	}
}

// String returns a string representation of the surface.
func (s *Surface) String() string {
	status := "active"
	if s.released.Load() {
		status = "released"
	}
	return fmt.Sprintf("Surface[%s %dx%d fmt=%d samples=%d %d bytes %s]",
		s.label, s.width, s.height, s.format, s.sampleCount, s.sizeBytes, status)
}
