// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// WrapOwnership states who owns a wrapped backend object's lifetime.
type WrapOwnership uint8

const (
	// WrapBorrowed leaves ownership with the caller: ganesh never destroys
	// the object through the device, only drops its handle.
	WrapBorrowed WrapOwnership = iota

	// WrapAdopted transfers ownership to ganesh: the object is destroyed
	// through the device when the wrapping surface is released.
	WrapAdopted
)

// String returns a human-readable name for the ownership policy.
func (w WrapOwnership) String() string {
	switch w {
	case WrapBorrowed:
		return "Borrowed"
	case WrapAdopted:
		return "Adopted"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(w))
	}
}

// BackendTexture describes an already-real, externally created texture to
// be adapted into a proxy. The hal handles may be nil for logical backend
// objects used in recording or tests.
type BackendTexture struct {
	// Width and Height are the texture dimensions in pixels.
	Width  int
	Height int

	// Format is the texture's pixel layout.
	Format gputypes.TextureFormat

	// MipMapped reports whether the texture carries a full mip chain.
	MipMapped bool

	// Texture is the underlying hal texture handle.
	Texture hal.Texture

	// Device is the device the texture was created on. Required when the
	// texture is adopted so it can be destroyed through the right device.
	Device hal.Device
}

// IsValid reports whether the description is usable.
func (b BackendTexture) IsValid() bool {
	return b.Width > 0 && b.Height > 0
}

// BackendRenderTarget describes an already-real, externally created render
// target (for example a swapchain image) to be adapted into a proxy.
// Render targets are always borrowed: the presentation layer owns them.
type BackendRenderTarget struct {
	// Width and Height are the target dimensions in pixels.
	Width  int
	Height int

	// Format is the target's pixel layout.
	Format gputypes.TextureFormat

	// SampleCount is the MSAA sample count; 1 means no multisampling.
	SampleCount int

	// Texture is the underlying hal texture handle, if any.
	Texture hal.Texture

	// View is the render attachment view, if the owner created one.
	View hal.TextureView
}

// IsValid reports whether the description is usable.
func (b BackendRenderTarget) IsValid() bool {
	return b.Width > 0 && b.Height > 0 && b.SampleCount >= 1
}
