// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package resource

import (
	"errors"
	"fmt"

	"github.com/gogpu/ganesh"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Allocator errors.
var (
	// ErrInvalidDescriptor is returned when a descriptor cannot be allocated.
	ErrInvalidDescriptor = errors.New("resource: invalid surface descriptor")

	// ErrNoCache is returned when key bookkeeping is requested without a cache.
	ErrNoCache = errors.New("resource: provider has no cache")
)

// defaultTextureUsage is the usage for allocated textures; render targets
// add RenderAttachment on top.
const defaultTextureUsage = gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst |
	gputypes.TextureUsageTextureBinding

// Provider is the hal-backed implementation of ganesh.Allocator. It backs
// descriptors with device textures, applies approximate-fit sizing, uploads
// texel levels through the queue, and delegates key bookkeeping to its
// Cache.
//
// A nil device yields logical surfaces with no GPU backing, so deferred
// recording and tests run deviceless.
type Provider struct {
	device hal.Device
	queue  hal.Queue
	cache  *Cache
}

// NewProvider creates an allocator on the given device and queue. Either
// may be nil for deviceless operation. cache may be nil when no surface
// reuse is wanted; budgeted surfaces then destroy their backends on final
// release.
func NewProvider(device hal.Device, queue hal.Queue, cache *Cache) *Provider {
	return &Provider{device: device, queue: queue, cache: cache}
}

// Cache returns the provider's cache, or nil.
func (p *Provider) Cache() *Cache { return p.cache }

// CreateTexture implements ganesh.Allocator. Approximate-fit descriptors
// are backed at ApproxDimension sizes so near-sized requests can reuse one
// store.
func (p *Provider) CreateTexture(desc ganesh.SurfaceDesc, renderable bool, label string) (*ganesh.Surface, error) {
	if !desc.IsValid() || desc.LazyDims() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDescriptor, desc)
	}

	bw, bh := desc.Width, desc.Height
	if desc.Fit == ganesh.BackingFitApprox {
		bw = ganesh.ApproxDimension(bw)
		bh = ganesh.ApproxDimension(bh)
	}

	mipmapped := desc.MipMode != ganesh.MipModeNone
	mipLevels := 1
	if mipmapped {
		mipLevels = ganesh.MipLevelCount(bw, bh)
	}

	var texture hal.Texture
	var view hal.TextureView
	if p.device != nil {
		usage := defaultTextureUsage
		if renderable {
			usage |= gputypes.TextureUsageRenderAttachment
		}

		tex, err := p.device.CreateTexture(&hal.TextureDescriptor{
			Label:         label,
			Size:          hal.Extent3D{Width: uint32(bw), Height: uint32(bh), DepthOrArrayLayers: 1},
			MipLevelCount: uint32(mipLevels),
			SampleCount:   uint32(desc.SampleCount),
			Dimension:     gputypes.TextureDimension2D,
			Format:        desc.Format,
			Usage:         usage,
		})
		if err != nil {
			return nil, fmt.Errorf("resource: create texture: %w", err)
		}
		texture = tex

		v, err := p.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: label + "_view",
		})
		if err != nil {
			p.device.DestroyTexture(tex)
			return nil, fmt.Errorf("resource: create texture view: %w", err)
		}
		view = v
	}

	s, err := ganesh.NewSurface(ganesh.SurfaceConfig{
		Width:       bw,
		Height:      bh,
		Format:      desc.Format,
		SampleCount: desc.SampleCount,
		MipMapped:   mipmapped,
		Renderable:  renderable,
		Budgeted:    desc.Budgeted,
		Texture:     texture,
		View:        view,
		Device:      p.device,
		Ownership:   ganesh.WrapAdopted,
		Label:       label,
	})
	if err != nil {
		if p.device != nil {
			p.device.DestroyTextureView(view)
			p.device.DestroyTexture(texture)
		}
		return nil, err
	}

	if desc.Budgeted == ganesh.BudgetedYes && p.cache != nil {
		if err := p.cache.RegisterSurface(s); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// CreateTextureWithData implements ganesh.Allocator: CreateTexture plus a
// per-level texel upload, base level first. Uploads cover the requested
// dimensions; an approximate-fit store larger than the request keeps its
// padding undefined.
func (p *Provider) CreateTextureWithData(desc ganesh.SurfaceDesc, renderable bool, label string, levels []ganesh.TexelLevel) (*ganesh.Surface, error) {
	s, err := p.CreateTexture(desc, renderable, label)
	if err != nil {
		return nil, err
	}

	if p.queue != nil && s.Texture() != nil {
		bpp := ganesh.FormatBytesPerPixel(desc.Format)
		w, h := desc.Width, desc.Height
		for i, level := range levels {
			if len(level.Data) == 0 {
				continue
			}
			rowBytes := level.RowBytes
			if rowBytes <= 0 {
				rowBytes = w * bpp
			}
			p.queue.WriteTexture(
				&hal.ImageCopyTexture{
					Texture:  s.Texture(),
					MipLevel: uint32(i),
					Origin:   hal.Origin3D{X: 0, Y: 0, Z: 0},
					Aspect:   gputypes.TextureAspectAll,
				},
				level.Data,
				&hal.ImageDataLayout{
					Offset:       0,
					BytesPerRow:  uint32(rowBytes),
					RowsPerImage: uint32(h),
				},
				&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
			)

			w >>= 1
			h >>= 1
			if w < 1 {
				w = 1
			}
			if h < 1 {
				h = 1
			}
		}
	}
	return s, nil
}

// WrapBackendTexture implements ganesh.Allocator. The wrapped surface is
// never budgeted and never enters the cache.
func (p *Provider) WrapBackendTexture(btex ganesh.BackendTexture, sampleCount int, renderable bool, ownership ganesh.WrapOwnership, release func()) (*ganesh.Surface, error) {
	if !btex.IsValid() {
		return nil, fmt.Errorf("%w: backend texture %dx%d", ErrInvalidDescriptor, btex.Width, btex.Height)
	}
	return ganesh.NewSurface(ganesh.SurfaceConfig{
		Width:       btex.Width,
		Height:      btex.Height,
		Format:      btex.Format,
		SampleCount: sampleCount,
		MipMapped:   btex.MipMapped,
		Renderable:  renderable,
		Budgeted:    ganesh.BudgetedNo,
		Texture:     btex.Texture,
		Device:      btex.Device,
		Ownership:   ownership,
		Release:     release,
		Label:       "wrapped_texture",
	})
}

// WrapBackendRenderTarget implements ganesh.Allocator. Render targets are
// always borrowed: the presentation layer owns their lifetime.
func (p *Provider) WrapBackendRenderTarget(brt ganesh.BackendRenderTarget, release func()) (*ganesh.Surface, error) {
	if !brt.IsValid() {
		return nil, fmt.Errorf("%w: backend render target %dx%d", ErrInvalidDescriptor, brt.Width, brt.Height)
	}
	return ganesh.NewSurface(ganesh.SurfaceConfig{
		Width:       brt.Width,
		Height:      brt.Height,
		Format:      brt.Format,
		SampleCount: brt.SampleCount,
		Renderable:  true,
		Budgeted:    ganesh.BudgetedNo,
		Texture:     brt.Texture,
		View:        brt.View,
		Ownership:   ganesh.WrapBorrowed,
		Release:     release,
		Label:       "wrapped_render_target",
	})
}

// FindByUniqueKey implements ganesh.Allocator by delegating to the cache.
func (p *Provider) FindByUniqueKey(key ganesh.UniqueKey) *ganesh.Surface {
	if p.cache == nil {
		return nil
	}
	return p.cache.FindByUniqueKey(key)
}

// AssignUniqueKey implements ganesh.Allocator by delegating to the cache.
func (p *Provider) AssignUniqueKey(key ganesh.UniqueKey, s *ganesh.Surface) error {
	if p.cache == nil {
		return ErrNoCache
	}
	return p.cache.AssignUniqueKey(key, s)
}
