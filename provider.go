// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
)

// rgbaFormat is the pixel format of eager image uploads.
const rgbaFormat = gputypes.TextureFormatRGBA8Unorm

// ProviderStats contains key-table traffic counters for one provider.
type ProviderStats struct {
	// NumKeyed is the current number of keyed proxies in the table.
	NumKeyed int

	// Assigns counts successful AssignUniqueKey calls.
	Assigns uint64

	// Adoptions counts successful AdoptUniqueKey calls.
	Adoptions uint64

	// Removals counts explicit key removals (not organic proxy teardown).
	Removals uint64

	// Hits counts key lookups that resolved to a live proxy.
	Hits uint64

	// Misses counts key lookups that found nothing.
	Misses uint64

	// Wraps counts backend objects adapted into proxies.
	Wraps uint64
}

// String returns a human-readable summary of the stats.
func (s ProviderStats) String() string {
	return fmt.Sprintf("ProxyProvider[%d keyed, %d assigns, %d adoptions, %d removals, %d hits, %d misses, %d wraps]",
		s.NumKeyed, s.Assigns, s.Adoptions, s.Removals, s.Hits, s.Misses, s.Wraps)
}

// ProxyProvider is the factory and keyed registry for surface proxies. It
// owns the unique-key table, mediates creation, wrapping, and invalidation,
// and forwards all actual allocation to its Allocator — it never touches
// GPU memory itself.
//
// The table holds weak references: a proxy's teardown notifies the provider
// so the entry is erased, and the provider never keeps a proxy alive merely
// because it is keyed.
//
// A provider is single-owner state: every call must come from the owning
// goroutine (enforced by the SingleOwner passed at construction). Give each
// parallel recording session its own provider; the backing cache may be
// shared.
type ProxyProvider struct {
	alloc Allocator
	cache ResourceCache
	owner *SingleOwner

	table map[UniqueKey]*TextureProxy

	abandoned bool
	stats     ProviderStats
}

// NewProxyProvider creates a provider bound to an allocation backend and an
// invalidation sink. A nil alloc makes the provider a deferred-recording
// one: purely lazy creation works, eager creation and wrapping do not.
// A nil owner disables single-owner checking.
func NewProxyProvider(alloc Allocator, cache ResourceCache, owner *SingleOwner) *ProxyProvider {
	return &ProxyProvider{
		alloc: alloc,
		cache: cache,
		owner: owner,
		table: make(map[UniqueKey]*TextureProxy),
	}
}

// IsAbandoned reports whether Abandon has been called.
func (pp *ProxyProvider) IsAbandoned() bool {
	return pp.abandoned
}

// IsRecordingDeferred reports whether the provider operates without a live
// allocator and is only building a deferred command list for later replay.
// Also true after abandonment.
func (pp *ProxyProvider) IsRecordingDeferred() bool {
	return pp.alloc == nil
}

// NumUniqueKeyProxies returns the current size of the key table.
func (pp *ProxyProvider) NumUniqueKeyProxies() int {
	return len(pp.table)
}

// Stats returns a snapshot of the provider's counters.
func (pp *ProxyProvider) Stats() ProviderStats {
	s := pp.stats
	s.NumKeyed = len(pp.table)
	return s
}

// Abandon irreversibly severs the provider from its allocator and cache,
// used on device loss. The key table is dropped without backend
// invalidation — backend teardown is the device's problem at that point.
// Every subsequent mutating call is a safe no-op or returns ErrAbandoned;
// no severed state is ever dereferenced.
func (pp *ProxyProvider) Abandon() {
	pp.owner.check()
	if pp.abandoned {
		return
	}
	for _, p := range pp.table {
		p.clearUniqueKey()
	}
	pp.table = make(map[UniqueKey]*TextureProxy)
	pp.alloc = nil
	pp.cache = nil
	pp.abandoned = true
	Logger().Info("ganesh: proxy provider abandoned")
}

// AssignUniqueKey attaches key to proxy and inserts it into the table so
// FindProxyByUniqueKey(key) resolves to it. It fails without mutating any
// state if the key is invalid, the proxy already carries a key, the key
// already maps to a different live proxy, or the provider is abandoned.
//
// If the proxy is already instantiated, the key is mirrored onto its
// backing surface so resource-level lookups can find it too.
func (pp *ProxyProvider) AssignUniqueKey(key UniqueKey, proxy *TextureProxy) error {
	pp.owner.check()
	if pp.abandoned {
		return ErrAbandoned
	}
	if proxy == nil {
		return ErrNilProxy
	}
	if !key.IsValid() {
		return ErrInvalidKey
	}
	if proxy.UniqueKey().IsValid() {
		return ErrProxyAlreadyKeyed
	}
	if _, ok := pp.table[key]; ok {
		return ErrKeyInUse
	}

	pp.table[key] = proxy
	proxy.setUniqueKey(pp, key)
	pp.stats.Assigns++

	if proxy.IsInstantiated() && pp.alloc != nil {
		if err := pp.alloc.AssignUniqueKey(key, proxy.Target()); err != nil {
			Logger().Warn("ganesh: mirroring key onto surface failed", "error", err)
		}
	}
	return nil
}

// AdoptUniqueKey copies the key already present on a realized surface onto
// the proxy wrapping it and registers the pair. The proxy must be
// instantiated with that exact surface as its target, and the surface must
// carry a valid key. Used when wrapping existing backend objects.
func (pp *ProxyProvider) AdoptUniqueKey(proxy *TextureProxy, surface *Surface) error {
	pp.owner.check()
	if pp.abandoned {
		return ErrAbandoned
	}
	if proxy == nil || surface == nil {
		return ErrNilProxy
	}
	key := surface.UniqueKey()
	if !key.IsValid() {
		return ErrInvalidKey
	}
	if proxy.Target() != surface {
		return ErrSurfaceMismatch
	}
	if proxy.UniqueKey().IsValid() {
		return ErrProxyAlreadyKeyed
	}
	if _, ok := pp.table[key]; ok {
		return ErrKeyInUse
	}

	pp.table[key] = proxy
	proxy.setUniqueKey(pp, key)
	pp.stats.Adoptions++
	return nil
}

// ProcessInvalidUniqueKey erases whatever the key resolves to, by key
// alone, and forwards the invalidation to the resource cache so no
// parallel lookup path can find a surface under it either. Removing an
// absent key is a silent no-op. This is the call shape for holders that
// only ever had the key, such as deletion notifications.
func (pp *ProxyProvider) ProcessInvalidUniqueKey(key UniqueKey) {
	pp.owner.check()
	if pp.abandoned || !key.IsValid() {
		return
	}
	if p, ok := pp.table[key]; ok {
		delete(pp.table, key)
		p.clearUniqueKey()
		pp.stats.Removals++
	}
	if pp.cache != nil {
		pp.cache.ProcessInvalidUniqueKey(key)
	}
}

// RemoveUniqueKeyFromProxy erases the proxy's table entry directly, without
// a hash lookup, for callers that already hold the proxy. When
// invalidateSurface is true the key is also stripped from the instantiated
// backing surface via the cache sink. Removing from an unkeyed proxy is a
// silent no-op.
func (pp *ProxyProvider) RemoveUniqueKeyFromProxy(proxy *TextureProxy, invalidateSurface bool) {
	pp.owner.check()
	if proxy == nil {
		return
	}
	key := proxy.UniqueKey()
	if !key.IsValid() {
		return
	}
	if !pp.abandoned {
		delete(pp.table, key)
		pp.stats.Removals++
	}
	proxy.clearUniqueKey()
	if invalidateSurface && pp.cache != nil {
		pp.cache.ProcessInvalidUniqueKey(key)
	}
}

// RemoveAllUniqueKeys drops every table entry with cache invalidation.
// Used when a recording is discarded wholesale.
func (pp *ProxyProvider) RemoveAllUniqueKeys() {
	pp.owner.check()
	if pp.abandoned {
		return
	}
	for key, p := range pp.table {
		p.clearUniqueKey()
		if pp.cache != nil {
			pp.cache.ProcessInvalidUniqueKey(key)
		}
		pp.stats.Removals++
	}
	clear(pp.table)
}

// InvalidateDomain removes every key belonging to the given domain,
// leaving other domains untouched.
func (pp *ProxyProvider) InvalidateDomain(d Domain) {
	pp.owner.check()
	if pp.abandoned {
		return
	}
	var doomed []UniqueKey
	for key := range pp.table {
		if key.Domain() == d {
			doomed = append(doomed, key)
		}
	}
	for _, key := range doomed {
		pp.ProcessInvalidUniqueKey(key)
	}
}

// FindProxyByUniqueKey returns the live proxy registered under key, or nil
// on a miss — a normal outcome, not an error. A hit adds a reference owned
// by the caller. A single hash lookup resolves the key: the uniqueness
// invariant guarantees at most one live entry, so there is no ranking.
func (pp *ProxyProvider) FindProxyByUniqueKey(key UniqueKey, origin Origin) *TextureProxy {
	pp.owner.check()
	if pp.abandoned || !key.IsValid() {
		return nil
	}
	p, ok := pp.table[key]
	if !ok {
		pp.stats.Misses++
		return nil
	}
	if p.Origin() != origin {
		panic(fmt.Sprintf("ganesh: keyed proxy found with origin %s, lookup asked for %s", p.Origin(), origin))
	}
	pp.stats.Hits++
	p.Ref()
	return p
}

// FindOrCreateProxyByUniqueKey is FindProxyByUniqueKey with an allocator
// fallback: on a table miss it asks the allocator whether an
// already-instantiated surface is registered under the key (the resource
// may legitimately have outlived its proxy) and wraps it into a fresh
// keyed proxy. Returns nil when neither level has a match.
func (pp *ProxyProvider) FindOrCreateProxyByUniqueKey(key UniqueKey, origin Origin) *TextureProxy {
	pp.owner.check()
	if pp.abandoned || !key.IsValid() {
		return nil
	}
	if p, ok := pp.table[key]; ok {
		if p.Origin() != origin {
			panic(fmt.Sprintf("ganesh: keyed proxy found with origin %s, lookup asked for %s", p.Origin(), origin))
		}
		pp.stats.Hits++
		p.Ref()
		return p
	}
	pp.stats.Misses++
	if pp.alloc == nil {
		return nil
	}
	surf := pp.alloc.FindByUniqueKey(key)
	if surf == nil {
		return nil
	}

	mip := MipModeNone
	if surf.MipMapped() {
		mip = MipModeComplete
	}
	proxy := &TextureProxy{SurfaceProxy{
		desc: SurfaceDesc{
			Width:       surf.Width(),
			Height:      surf.Height(),
			Format:      surf.Format(),
			SampleCount: surf.SampleCount(),
			MipMode:     mip,
			Fit:         BackingFitExact,
			Budgeted:    surf.Budgeted(),
		},
		origin:      origin,
		renderable:  surf.Renderable(),
		textureable: true,
		target:      surf, // adopts the reference from FindByUniqueKey
		label:       surf.Label(),
	}}
	proxy.refs.Store(1)

	pp.table[key] = proxy
	proxy.setUniqueKey(pp, key)
	return proxy
}

// CreateProxy is the plain deferred creation path: no callback, no backing
// store yet. The proxy instantiates later directly from its descriptor via
// the allocator. This is the workhorse path for intra-frame surfaces.
func (pp *ProxyProvider) CreateProxy(desc SurfaceDesc, origin Origin, renderable bool) (*TextureProxy, error) {
	pp.owner.check()
	if pp.abandoned {
		return nil, ErrAbandoned
	}
	if !desc.IsValid() || desc.LazyDims() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDesc, desc)
	}
	proxy := &TextureProxy{SurfaceProxy{
		desc:        desc,
		origin:      origin,
		renderable:  renderable,
		textureable: true,
	}}
	proxy.refs.Store(1)
	return proxy, nil
}

// CreateMipMapProxy is CreateProxy with a descriptor requesting an
// allocated (not filled) mip chain.
func (pp *ProxyProvider) CreateMipMapProxy(desc SurfaceDesc, origin Origin) (*TextureProxy, error) {
	desc.MipMode = MipModeAllocated
	return pp.CreateProxy(desc, origin, false)
}

// CreateInstantiatedProxy allocates through the allocator immediately and
// returns an already-instantiated proxy. Requires a live allocator.
func (pp *ProxyProvider) CreateInstantiatedProxy(desc SurfaceDesc, origin Origin, renderable bool) (*TextureProxy, error) {
	pp.owner.check()
	if pp.abandoned {
		return nil, ErrAbandoned
	}
	if pp.alloc == nil {
		return nil, ErrDeferredRecording
	}
	if !desc.IsValid() || desc.LazyDims() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDesc, desc)
	}
	surf, err := pp.alloc.CreateTexture(desc, renderable, "")
	if err != nil {
		return nil, fmt.Errorf("ganesh: create instantiated proxy: %w", err)
	}
	proxy := &TextureProxy{SurfaceProxy{
		desc:        desc,
		origin:      origin,
		renderable:  renderable,
		textureable: true,
		target:      surf,
	}}
	proxy.refs.Store(1)
	return proxy, nil
}

// CreateTextureProxyWithData is the eager creation path with source
// texels: the upload is scheduled at creation. MipModeComplete descriptors
// generate the full level chain on the CPU before upload, which is
// supported for RGBA8 data only.
func (pp *ProxyProvider) CreateTextureProxyWithData(desc SurfaceDesc, origin Origin, data []byte, rowBytes int) (*TextureProxy, error) {
	pp.owner.check()
	if pp.abandoned {
		return nil, ErrAbandoned
	}
	if pp.alloc == nil {
		return nil, ErrDeferredRecording
	}
	if !desc.IsValid() || desc.LazyDims() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDesc, desc)
	}

	var levels []TexelLevel
	if desc.MipMode == MipModeComplete {
		chain, err := mipChainFromBytes(data, desc.Width, desc.Height, rowBytes, desc.Format)
		if err != nil {
			return nil, err
		}
		levels = chain
	} else {
		levels = []TexelLevel{{Data: data, RowBytes: rowBytes}}
	}
	return pp.createEagerProxy(desc, origin, false, levels, "")
}

// CreateProxyFromImage eagerly creates an RGBA8 texture proxy from a CPU
// image.
func (pp *ProxyProvider) CreateProxyFromImage(img image.Image, fit BackingFit, budgeted Budgeted, origin Origin) (*TextureProxy, error) {
	pp.owner.check()
	if pp.abandoned {
		return nil, ErrAbandoned
	}
	if pp.alloc == nil {
		return nil, ErrDeferredRecording
	}
	rgba := imageToRGBA(img)
	desc := SurfaceDesc{
		Width:       rgba.Rect.Dx(),
		Height:      rgba.Rect.Dy(),
		Format:      rgbaFormat,
		SampleCount: 1,
		MipMode:     MipModeNone,
		Fit:         fit,
		Budgeted:    budgeted,
	}
	if !desc.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDesc, desc)
	}
	levels := []TexelLevel{{Data: rgba.Pix, RowBytes: rgba.Stride}}
	return pp.createEagerProxy(desc, origin, false, levels, "")
}

// CreateMipMappedProxyFromImage eagerly creates an RGBA8 texture proxy
// with a complete mip chain built on the CPU from the given image.
func (pp *ProxyProvider) CreateMipMappedProxyFromImage(img image.Image, budgeted Budgeted, origin Origin) (*TextureProxy, error) {
	pp.owner.check()
	if pp.abandoned {
		return nil, ErrAbandoned
	}
	if pp.alloc == nil {
		return nil, ErrDeferredRecording
	}
	rgba := imageToRGBA(img)
	desc := SurfaceDesc{
		Width:       rgba.Rect.Dx(),
		Height:      rgba.Rect.Dy(),
		Format:      rgbaFormat,
		SampleCount: 1,
		MipMode:     MipModeComplete,
		Fit:         BackingFitExact, // mip chains never share oversized stores
		Budgeted:    budgeted,
	}
	if !desc.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDesc, desc)
	}
	return pp.createEagerProxy(desc, origin, false, rgbaMipChain(rgba), "")
}

// createEagerProxy allocates and uploads through the allocator and binds
// the result to a fresh proxy.
func (pp *ProxyProvider) createEagerProxy(desc SurfaceDesc, origin Origin, renderable bool, levels []TexelLevel, label string) (*TextureProxy, error) {
	surf, err := pp.alloc.CreateTextureWithData(desc, renderable, label, levels)
	if err != nil {
		return nil, fmt.Errorf("ganesh: create proxy with data: %w", err)
	}
	proxy := &TextureProxy{SurfaceProxy{
		desc:        desc,
		origin:      origin,
		renderable:  renderable,
		textureable: true,
		target:      surf,
		label:       label,
	}}
	proxy.refs.Store(1)
	return proxy, nil
}

// CreateLazyProxy creates a deferred proxy whose backing store is produced
// by cb at flush time. The descriptor's dimensions must be known; use
// CreateFullyLazyProxy when they are not.
func (pp *ProxyProvider) CreateLazyProxy(cb LazyInstantiateCallback, desc SurfaceDesc, origin Origin, renderable bool, lazyType LazyType) (*TextureProxy, error) {
	pp.owner.check()
	if pp.abandoned {
		return nil, ErrAbandoned
	}
	if cb == nil {
		return nil, ErrNilCallback
	}
	if !desc.IsValid() || desc.LazyDims() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDesc, desc)
	}
	proxy := &TextureProxy{SurfaceProxy{
		desc:        desc,
		origin:      origin,
		renderable:  renderable,
		textureable: true,
		lazyType:    lazyType,
		lazyCB:      cb,
	}}
	proxy.refs.Store(1)
	return proxy, nil
}

// CreateFullyLazyProxy creates a deferred proxy whose dimensions are not
// yet known: the callback's output defines them at flush time. Callers
// must not query size-dependent values on the proxy until it reports
// itself instantiated. Fully-lazy proxies are approximate-fit and budgeted.
func (pp *ProxyProvider) CreateFullyLazyProxy(cb LazyInstantiateCallback, format gputypes.TextureFormat, origin Origin, renderable bool) (*TextureProxy, error) {
	pp.owner.check()
	if pp.abandoned {
		return nil, ErrAbandoned
	}
	if cb == nil {
		return nil, ErrNilCallback
	}
	proxy := &TextureProxy{SurfaceProxy{
		desc: SurfaceDesc{
			Width:       -1,
			Height:      -1,
			Format:      format,
			SampleCount: 1,
			MipMode:     MipModeNone,
			Fit:         BackingFitApprox,
			Budgeted:    BudgetedYes,
		},
		origin:      origin,
		renderable:  renderable,
		textureable: true,
		fullyLazy:   true,
		lazyType:    LazySingleUse,
		lazyCB:      cb,
	}}
	proxy.refs.Store(1)
	return proxy, nil
}

// CreateLazyRenderTargetProxy creates a deferred render-target proxy.
// textureable controls whether later passes may sample the target.
func (pp *ProxyProvider) CreateLazyRenderTargetProxy(cb LazyInstantiateCallback, desc SurfaceDesc, origin Origin, textureable bool, lazyType LazyType) (*RenderTargetProxy, error) {
	pp.owner.check()
	if pp.abandoned {
		return nil, ErrAbandoned
	}
	if cb == nil {
		return nil, ErrNilCallback
	}
	if !desc.IsValid() || desc.LazyDims() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDesc, desc)
	}
	proxy := &RenderTargetProxy{SurfaceProxy{
		desc:        desc,
		origin:      origin,
		renderable:  true,
		textureable: textureable,
		lazyType:    lazyType,
		lazyCB:      cb,
	}}
	proxy.refs.Store(1)
	return proxy, nil
}

// WrapBackendTexture adapts an already-real, externally owned texture into
// a proxy without taking allocation ownership. The ownership flag decides
// whether ganesh destroys the object on final release (WrapAdopted) or
// only drops its handle (WrapBorrowed); release, if non-nil, is invoked
// exactly once on final release either way. Wrapped proxies are never
// budgeted and never keyed at creation.
func (pp *ProxyProvider) WrapBackendTexture(btex BackendTexture, origin Origin, ownership WrapOwnership, release func()) (*TextureProxy, error) {
	return pp.wrapTexture(btex, 1, false, origin, ownership, release)
}

// WrapRenderableBackendTexture is WrapBackendTexture for textures that
// will also serve as render targets, with an explicit sample count.
func (pp *ProxyProvider) WrapRenderableBackendTexture(btex BackendTexture, sampleCount int, origin Origin, ownership WrapOwnership, release func()) (*TextureProxy, error) {
	if sampleCount < 1 {
		sampleCount = 1
	}
	return pp.wrapTexture(btex, sampleCount, true, origin, ownership, release)
}

func (pp *ProxyProvider) wrapTexture(btex BackendTexture, sampleCount int, renderable bool, origin Origin, ownership WrapOwnership, release func()) (*TextureProxy, error) {
	pp.owner.check()
	if pp.abandoned {
		return nil, ErrAbandoned
	}
	if pp.alloc == nil {
		return nil, ErrDeferredRecording
	}
	if !btex.IsValid() {
		return nil, fmt.Errorf("%w: backend texture %dx%d", ErrInvalidBackend, btex.Width, btex.Height)
	}

	surf, err := pp.alloc.WrapBackendTexture(btex, sampleCount, renderable, ownership, release)
	if err != nil {
		return nil, fmt.Errorf("ganesh: wrap backend texture: %w", err)
	}

	mip := MipModeNone
	if btex.MipMapped {
		mip = MipModeComplete
	}
	proxy := &TextureProxy{SurfaceProxy{
		desc: SurfaceDesc{
			Width:       btex.Width,
			Height:      btex.Height,
			Format:      btex.Format,
			SampleCount: sampleCount,
			MipMode:     mip,
			Fit:         BackingFitExact,
			Budgeted:    BudgetedNo,
		},
		origin:      origin,
		renderable:  renderable,
		textureable: true,
		target:      surf,
	}}
	proxy.refs.Store(1)
	pp.stats.Wraps++
	return proxy, nil
}

// WrapBackendRenderTarget adapts an already-real, externally owned render
// target (for example a swapchain image) into a proxy. Render targets are
// always borrowed — the presentation layer owns their lifetime — and never
// textureable.
func (pp *ProxyProvider) WrapBackendRenderTarget(brt BackendRenderTarget, origin Origin, release func()) (*RenderTargetProxy, error) {
	pp.owner.check()
	if pp.abandoned {
		return nil, ErrAbandoned
	}
	if pp.alloc == nil {
		return nil, ErrDeferredRecording
	}
	if !brt.IsValid() {
		return nil, fmt.Errorf("%w: backend render target %dx%d", ErrInvalidBackend, brt.Width, brt.Height)
	}

	surf, err := pp.alloc.WrapBackendRenderTarget(brt, release)
	if err != nil {
		return nil, fmt.Errorf("ganesh: wrap backend render target: %w", err)
	}

	proxy := &RenderTargetProxy{SurfaceProxy{
		desc: SurfaceDesc{
			Width:       brt.Width,
			Height:      brt.Height,
			Format:      brt.Format,
			SampleCount: brt.SampleCount,
			MipMode:     MipModeNone,
			Fit:         BackingFitExact,
			Budgeted:    BudgetedNo,
		},
		origin:     origin,
		renderable: true,
		target:     surf,
	}}
	proxy.refs.Store(1)
	pp.stats.Wraps++
	return proxy, nil
}

// proxyReleased is the weak-table back-notification: a keyed proxy's
// teardown erases its own table entry. Organic teardown is not counted as
// an explicit removal.
func (pp *ProxyProvider) proxyReleased(sp *SurfaceProxy) {
	pp.owner.check()
	key := sp.key
	if key.IsValid() && !pp.abandoned {
		if tp, ok := pp.table[key]; ok && &tp.SurfaceProxy == sp {
			delete(pp.table, key)
		}
	}
	sp.clearUniqueKey()
}

// setUniqueKey registers the key and provider back-reference on a proxy.
func (p *SurfaceProxy) setUniqueKey(pp *ProxyProvider, key UniqueKey) {
	p.key = key
	p.provider = pp
}

// clearUniqueKey detaches the proxy from its provider's table.
func (p *SurfaceProxy) clearUniqueKey() {
	p.key = UniqueKey{}
	p.provider = nil
}
