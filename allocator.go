// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

// TexelLevel holds the source texels of one mip level for eager uploads.
type TexelLevel struct {
	// Data is the tightly or loosely packed pixel data for the level.
	Data []byte

	// RowBytes is the stride between rows. Zero means tightly packed.
	RowBytes int
}

// Allocator is the resource allocation backend a ProxyProvider forwards to.
// The provider never allocates GPU memory itself: eager creation, lazy
// instantiation, and backend wrapping all go through an Allocator.
//
// Every returned surface carries one reference owned by the caller.
// The concrete implementation lives in the resource package; tests supply
// lightweight fakes.
type Allocator interface {
	// CreateTexture allocates a backing store matching desc. Approximate-
	// fit descriptors may be backed by a larger store, sized on the
	// ApproxDimension grid.
	CreateTexture(desc SurfaceDesc, renderable bool, label string) (*Surface, error)

	// CreateTextureWithData allocates like CreateTexture and uploads the
	// given mip levels, base level first.
	CreateTextureWithData(desc SurfaceDesc, renderable bool, label string, levels []TexelLevel) (*Surface, error)

	// WrapBackendTexture adapts an externally created texture without
	// allocating. Ownership and release semantics are the caller's.
	// sampleCount and renderable describe how the texture will be used;
	// pass 1 and false for plain sampled textures.
	WrapBackendTexture(btex BackendTexture, sampleCount int, renderable bool, ownership WrapOwnership, release func()) (*Surface, error)

	// WrapBackendRenderTarget adapts an externally created render target.
	// Render targets are always borrowed.
	WrapBackendRenderTarget(brt BackendRenderTarget, release func()) (*Surface, error)

	// FindByUniqueKey returns the already-instantiated surface registered
	// under key, or nil. A hit adds a reference owned by the caller.
	FindByUniqueKey(key UniqueKey) *Surface

	// AssignUniqueKey registers a realized surface under key so it can be
	// found after its proxy is gone.
	AssignUniqueKey(key UniqueKey, s *Surface) error
}

// ResourceCache is the invalidation sink a ProxyProvider notifies when a
// unique key stops naming a proxy and must also stop naming any realized
// surface.
type ResourceCache interface {
	// ProcessInvalidUniqueKey drops every resource-level association for
	// key. Absent keys are a silent no-op.
	ProcessInvalidUniqueKey(key UniqueKey)
}
