// Package ganesh provides deferred GPU surface proxies for the GoGPU
// ecosystem.
//
// # Overview
//
// ganesh lets a renderer describe the textures and render targets it will
// need before any GPU memory is allocated. Descriptions are deduplicated
// with content-addressed unique keys so the same logical surface is never
// instantiated twice, and actual allocation is deferred to flush time via
// caller-supplied instantiation callbacks.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/ganesh"
//	    "github.com/gogpu/ganesh/resource"
//	)
//
//	cache, _ := resource.NewCache(resource.DefaultCacheConfig())
//	alloc := resource.NewProvider(device, queue, cache)
//	pp := ganesh.NewProxyProvider(alloc, cache, &ganesh.SingleOwner{})
//
//	// Describe a surface; nothing is allocated yet.
//	desc := ganesh.SurfaceDesc{
//	    Width: 256, Height: 256,
//	    Format:      gputypes.TextureFormatRGBA8Unorm,
//	    SampleCount: 1,
//	    Fit:         ganesh.BackingFitApprox,
//	    Budgeted:    ganesh.BudgetedYes,
//	}
//	proxy, _ := pp.CreateProxy(desc, ganesh.OriginTopLeft, false)
//
//	// ... record draws referencing proxy ...
//
//	// At flush time, materialize the backing store.
//	_ = proxy.Instantiate(alloc)
//
// # Architecture
//
// The library is organized into:
//   - Public API: ProxyProvider, TextureProxy, RenderTargetProxy, Surface,
//     UniqueKey, SurfaceDesc
//   - resource: byte-budgeted cache and hal-backed allocator
//   - atlas: a deferred rectangle-packing atlas built on fully-lazy proxies
//
// # Threading
//
// A ProxyProvider is single-owner: all mutating calls must come from one
// goroutine, enforced by SingleOwner. Run parallel recordings by giving each
// its own provider; the backing resource.Cache is safe to share.
package ganesh

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
