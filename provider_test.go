// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
)

// fakeAllocator is a logical-surface Allocator for tests: it allocates
// device-less surfaces and keeps a key registry the way the resource
// provider does.
type fakeAllocator struct {
	byKey      map[UniqueKey]*Surface
	creates    int
	lastLevels int
	failNext   error
	failAssign error
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{byKey: make(map[UniqueKey]*Surface)}
}

func (a *fakeAllocator) CreateTexture(desc SurfaceDesc, renderable bool, label string) (*Surface, error) {
	if a.failNext != nil {
		err := a.failNext
		a.failNext = nil
		return nil, err
	}
	a.creates++
	w, h := desc.Width, desc.Height
	if desc.Fit == BackingFitApprox {
		w = ApproxDimension(w)
		h = ApproxDimension(h)
	}
	return NewSurface(SurfaceConfig{
		Width:       w,
		Height:      h,
		Format:      desc.Format,
		SampleCount: desc.SampleCount,
		MipMapped:   desc.MipMode != MipModeNone,
		Renderable:  renderable,
		Budgeted:    desc.Budgeted,
		Label:       label,
	})
}

func (a *fakeAllocator) CreateTextureWithData(desc SurfaceDesc, renderable bool, label string, levels []TexelLevel) (*Surface, error) {
	a.lastLevels = len(levels)
	return a.CreateTexture(desc, renderable, label)
}

func (a *fakeAllocator) WrapBackendTexture(btex BackendTexture, sampleCount int, renderable bool, ownership WrapOwnership, release func()) (*Surface, error) {
	return NewSurface(SurfaceConfig{
		Width:       btex.Width,
		Height:      btex.Height,
		Format:      btex.Format,
		SampleCount: sampleCount,
		MipMapped:   btex.MipMapped,
		Renderable:  renderable,
		Budgeted:    BudgetedNo,
		Ownership:   ownership,
		Release:     release,
	})
}

func (a *fakeAllocator) WrapBackendRenderTarget(brt BackendRenderTarget, release func()) (*Surface, error) {
	return NewSurface(SurfaceConfig{
		Width:       brt.Width,
		Height:      brt.Height,
		Format:      brt.Format,
		SampleCount: brt.SampleCount,
		Renderable:  true,
		Budgeted:    BudgetedNo,
		Release:     release,
	})
}

func (a *fakeAllocator) FindByUniqueKey(key UniqueKey) *Surface {
	s := a.byKey[key]
	if s != nil {
		s.Ref()
	}
	return s
}

func (a *fakeAllocator) AssignUniqueKey(key UniqueKey, s *Surface) error {
	if a.failAssign != nil {
		return a.failAssign
	}
	s.SetUniqueKey(key)
	a.byKey[key] = s
	return nil
}

// fakeCache records invalidation forwards.
type fakeCache struct {
	invalidated []UniqueKey
}

func (c *fakeCache) ProcessInvalidUniqueKey(key UniqueKey) {
	c.invalidated = append(c.invalidated, key)
}

func testDesc(w, h int) SurfaceDesc {
	return SurfaceDesc{
		Width:       w,
		Height:      h,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		SampleCount: 1,
		Fit:         BackingFitExact,
		Budgeted:    BudgetedYes,
	}
}

func testKey(t *testing.T) UniqueKey {
	t.Helper()
	return NewKeyBuilder(NewDomain()).AddUint32(1).Build()
}

// TestAssignAndFindUniqueKey tests the basic keyed round trip.
func TestAssignAndFindUniqueKey(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)
	key := testKey(t)

	proxy, err := pp.CreateProxy(testDesc(64, 64), OriginTopLeft, false)
	if err != nil {
		t.Fatalf("CreateProxy: %v", err)
	}
	defer proxy.Unref()

	if err := pp.AssignUniqueKey(key, proxy); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}
	if proxy.UniqueKey() != key {
		t.Errorf("proxy key = %v, want %v", proxy.UniqueKey(), key)
	}
	if pp.NumUniqueKeyProxies() != 1 {
		t.Errorf("NumUniqueKeyProxies = %d, want 1", pp.NumUniqueKeyProxies())
	}

	found := pp.FindProxyByUniqueKey(key, OriginTopLeft)
	if found != proxy {
		t.Fatalf("FindProxyByUniqueKey = %v, want %v", found, proxy)
	}
	if found.RefCount() != 2 {
		t.Errorf("RefCount after find = %d, want 2", found.RefCount())
	}
	found.Unref()
}

// TestAssignUniqueKeyRejections tests that invalid assignments fail without
// mutating the table.
func TestAssignUniqueKeyRejections(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)
	key := testKey(t)

	a, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	defer a.Unref()
	b, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	defer b.Unref()

	if err := pp.AssignUniqueKey(key, nil); !errors.Is(err, ErrNilProxy) {
		t.Errorf("nil proxy: err = %v, want ErrNilProxy", err)
	}
	if err := pp.AssignUniqueKey(UniqueKey{}, a); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("zero key: err = %v, want ErrInvalidKey", err)
	}

	if err := pp.AssignUniqueKey(key, a); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}
	if err := pp.AssignUniqueKey(key, b); !errors.Is(err, ErrKeyInUse) {
		t.Errorf("key reuse: err = %v, want ErrKeyInUse", err)
	}
	if b.UniqueKey().IsValid() {
		t.Error("rejected assignment still keyed the proxy")
	}
	other := testKey(t)
	if err := pp.AssignUniqueKey(other, a); !errors.Is(err, ErrProxyAlreadyKeyed) {
		t.Errorf("second key: err = %v, want ErrProxyAlreadyKeyed", err)
	}
	if pp.NumUniqueKeyProxies() != 1 {
		t.Errorf("NumUniqueKeyProxies = %d, want 1", pp.NumUniqueKeyProxies())
	}
}

// TestFindMissIsSilent tests that a lookup of an unknown key returns nil
// without error.
func TestFindMissIsSilent(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)
	if got := pp.FindProxyByUniqueKey(testKey(t), OriginTopLeft); got != nil {
		t.Errorf("find on empty table = %v, want nil", got)
	}
	if s := pp.Stats(); s.Misses != 1 {
		t.Errorf("Misses = %d, want 1", s.Misses)
	}
}

// TestWeakTable tests that a keyed proxy's teardown erases its table entry.
func TestWeakTable(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)
	key := testKey(t)

	proxy, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	if err := pp.AssignUniqueKey(key, proxy); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}

	proxy.Unref() // last reference: the table must not keep it alive

	if pp.NumUniqueKeyProxies() != 0 {
		t.Errorf("NumUniqueKeyProxies = %d, want 0 after teardown", pp.NumUniqueKeyProxies())
	}
	if got := pp.FindProxyByUniqueKey(key, OriginTopLeft); got != nil {
		t.Errorf("find after teardown = %v, want nil", got)
	}
}

// TestKeyReuseAfterRelease tests the full key lifecycle: a key blocked by a
// live proxy becomes assignable again once that proxy is gone.
func TestKeyReuseAfterRelease(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)
	key := testKey(t)

	a, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	if err := pp.AssignUniqueKey(key, a); err != nil {
		t.Fatalf("AssignUniqueKey(a): %v", err)
	}

	b, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	defer b.Unref()
	if err := pp.AssignUniqueKey(key, b); !errors.Is(err, ErrKeyInUse) {
		t.Fatalf("assign while held: err = %v, want ErrKeyInUse", err)
	}

	a.Unref()
	if got := pp.FindProxyByUniqueKey(key, OriginTopLeft); got != nil {
		t.Fatalf("find after release = %v, want nil", got)
	}
	if err := pp.AssignUniqueKey(key, b); err != nil {
		t.Fatalf("assign after release: %v", err)
	}
}

// TestProcessInvalidUniqueKey tests removal by key with cache forwarding
// and idempotence.
func TestProcessInvalidUniqueKey(t *testing.T) {
	cache := &fakeCache{}
	pp := NewProxyProvider(newFakeAllocator(), cache, nil)
	key := testKey(t)

	proxy, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	defer proxy.Unref()
	if err := pp.AssignUniqueKey(key, proxy); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}

	pp.ProcessInvalidUniqueKey(key)
	if proxy.UniqueKey().IsValid() {
		t.Error("proxy still keyed after invalidation")
	}
	if pp.NumUniqueKeyProxies() != 0 {
		t.Errorf("NumUniqueKeyProxies = %d, want 0", pp.NumUniqueKeyProxies())
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != key {
		t.Errorf("cache invalidations = %v, want [%v]", cache.invalidated, key)
	}

	pp.ProcessInvalidUniqueKey(key) // absent key: silent no-op
	if pp.NumUniqueKeyProxies() != 0 {
		t.Error("repeated invalidation mutated the table")
	}
}

// TestRemoveUniqueKeyFromProxy tests direct removal from a held proxy.
func TestRemoveUniqueKeyFromProxy(t *testing.T) {
	cache := &fakeCache{}
	pp := NewProxyProvider(newFakeAllocator(), cache, nil)
	key := testKey(t)

	proxy, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	defer proxy.Unref()
	if err := pp.AssignUniqueKey(key, proxy); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}

	pp.RemoveUniqueKeyFromProxy(proxy, false)
	if proxy.UniqueKey().IsValid() {
		t.Error("proxy still keyed after removal")
	}
	if len(cache.invalidated) != 0 {
		t.Errorf("cache invalidated without invalidateSurface: %v", cache.invalidated)
	}

	// Unkeyed removal is a no-op.
	pp.RemoveUniqueKeyFromProxy(proxy, true)
	if len(cache.invalidated) != 0 {
		t.Error("removal from unkeyed proxy reached the cache")
	}
}

// TestRemoveAllUniqueKeys tests wholesale removal with cache invalidation.
func TestRemoveAllUniqueKeys(t *testing.T) {
	cache := &fakeCache{}
	pp := NewProxyProvider(newFakeAllocator(), cache, nil)

	var proxies []*TextureProxy
	for i := 0; i < 3; i++ {
		p, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
		proxies = append(proxies, p)
		if err := pp.AssignUniqueKey(testKey(t), p); err != nil {
			t.Fatalf("AssignUniqueKey: %v", err)
		}
	}

	pp.RemoveAllUniqueKeys()
	if pp.NumUniqueKeyProxies() != 0 {
		t.Errorf("NumUniqueKeyProxies = %d, want 0", pp.NumUniqueKeyProxies())
	}
	if len(cache.invalidated) != 3 {
		t.Errorf("cache invalidations = %d, want 3", len(cache.invalidated))
	}
	for _, p := range proxies {
		if p.UniqueKey().IsValid() {
			t.Error("proxy still keyed after RemoveAllUniqueKeys")
		}
		p.Unref()
	}
}

// TestInvalidateDomain tests that domain invalidation leaves other domains
// untouched.
func TestInvalidateDomain(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)
	glyphs := NewDomain()
	masks := NewDomain()

	g, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	defer g.Unref()
	m, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	defer m.Unref()

	gKey := NewKeyBuilder(glyphs).AddUint32(1).Build()
	mKey := NewKeyBuilder(masks).AddUint32(1).Build()
	if err := pp.AssignUniqueKey(gKey, g); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}
	if err := pp.AssignUniqueKey(mKey, m); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}

	pp.InvalidateDomain(glyphs)

	if found := pp.FindProxyByUniqueKey(gKey, OriginTopLeft); found != nil {
		t.Error("glyph key survived domain invalidation")
	}
	found := pp.FindProxyByUniqueKey(mKey, OriginTopLeft)
	if found == nil {
		t.Fatal("mask key lost to another domain's invalidation")
	}
	found.Unref()
}

// TestFindOrCreateRevivesSurface tests the allocator fallback: a realized
// surface that outlived its proxy gets wrapped into a fresh keyed proxy.
func TestFindOrCreateRevivesSurface(t *testing.T) {
	alloc := newFakeAllocator()
	pp := NewProxyProvider(alloc, nil, nil)
	key := testKey(t)

	surf, err := alloc.CreateTexture(testDesc(32, 16), false, "orphan")
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if err := alloc.AssignUniqueKey(key, surf); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}

	proxy := pp.FindOrCreateProxyByUniqueKey(key, OriginTopLeft)
	if proxy == nil {
		t.Fatal("FindOrCreateProxyByUniqueKey = nil, want revived proxy")
	}
	defer proxy.Unref()

	if !proxy.IsInstantiated() || proxy.Target() != surf {
		t.Error("revived proxy does not wrap the registered surface")
	}
	if proxy.Width() != 32 || proxy.Height() != 16 {
		t.Errorf("revived dims = %dx%d, want 32x16", proxy.Width(), proxy.Height())
	}
	if proxy.UniqueKey() != key {
		t.Errorf("revived key = %v, want %v", proxy.UniqueKey(), key)
	}
	if pp.NumUniqueKeyProxies() != 1 {
		t.Errorf("NumUniqueKeyProxies = %d, want 1", pp.NumUniqueKeyProxies())
	}

	// The table hit path must now serve the same proxy.
	again := pp.FindOrCreateProxyByUniqueKey(key, OriginTopLeft)
	if again != proxy {
		t.Errorf("second lookup = %v, want %v", again, proxy)
	}
	again.Unref()
	surf.Unref()
}

// TestFindOrCreateMiss tests that a miss at both levels returns nil.
func TestFindOrCreateMiss(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)
	if got := pp.FindOrCreateProxyByUniqueKey(testKey(t), OriginTopLeft); got != nil {
		t.Errorf("FindOrCreateProxyByUniqueKey = %v, want nil", got)
	}
}

// TestFindOriginMismatchPanics tests that a lookup with the wrong origin is
// a contract violation.
func TestFindOriginMismatchPanics(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)
	key := testKey(t)

	proxy, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	defer proxy.Unref()
	if err := pp.AssignUniqueKey(key, proxy); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("origin-mismatched lookup did not panic")
		}
	}()
	pp.FindProxyByUniqueKey(key, OriginBottomLeft)
}

// TestAdoptUniqueKey tests copying a surface's key onto its wrapping proxy.
func TestAdoptUniqueKey(t *testing.T) {
	alloc := newFakeAllocator()
	pp := NewProxyProvider(alloc, nil, nil)
	key := testKey(t)

	proxy, err := pp.CreateInstantiatedProxy(testDesc(8, 8), OriginTopLeft, false)
	if err != nil {
		t.Fatalf("CreateInstantiatedProxy: %v", err)
	}
	defer proxy.Unref()

	surf := proxy.Target()
	if err := alloc.AssignUniqueKey(key, surf); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}

	if err := pp.AdoptUniqueKey(proxy, surf); err != nil {
		t.Fatalf("AdoptUniqueKey: %v", err)
	}
	if proxy.UniqueKey() != key {
		t.Errorf("adopted key = %v, want %v", proxy.UniqueKey(), key)
	}

	other, _ := pp.CreateInstantiatedProxy(testDesc(8, 8), OriginTopLeft, false)
	defer other.Unref()
	if err := pp.AdoptUniqueKey(other, surf); !errors.Is(err, ErrSurfaceMismatch) && !errors.Is(err, ErrKeyInUse) {
		t.Errorf("adopt with foreign surface: err = %v, want ErrSurfaceMismatch or ErrKeyInUse", err)
	}
}

// TestKeyMirroredOntoSurface tests that keying an instantiated proxy makes
// the surface findable at the resource level, and that a deferred proxy
// mirrors its key at instantiation.
func TestKeyMirroredOntoSurface(t *testing.T) {
	alloc := newFakeAllocator()
	pp := NewProxyProvider(alloc, nil, nil)

	// Already instantiated: mirrored at assignment.
	k1 := testKey(t)
	inst, err := pp.CreateInstantiatedProxy(testDesc(8, 8), OriginTopLeft, false)
	if err != nil {
		t.Fatalf("CreateInstantiatedProxy: %v", err)
	}
	defer inst.Unref()
	if err := pp.AssignUniqueKey(k1, inst); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}
	if inst.Target().UniqueKey() != k1 {
		t.Error("key not mirrored onto instantiated surface")
	}

	// Deferred: mirrored when instantiation happens.
	k2 := testKey(t)
	def, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	defer def.Unref()
	if err := pp.AssignUniqueKey(k2, def); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}
	if err := def.Instantiate(alloc); err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if def.Target().UniqueKey() != k2 {
		t.Error("key not mirrored at instantiation")
	}
	if alloc.byKey[k2] != def.Target() {
		t.Error("surface not registered with the allocator at instantiation")
	}
}

// TestDeferredRecordingProvider tests a provider without an allocator:
// lazy creation works, eager creation and wrapping do not.
func TestDeferredRecordingProvider(t *testing.T) {
	pp := NewProxyProvider(nil, nil, nil)
	if !pp.IsRecordingDeferred() {
		t.Fatal("provider with nil allocator not deferred")
	}

	if _, err := pp.CreateInstantiatedProxy(testDesc(8, 8), OriginTopLeft, false); !errors.Is(err, ErrDeferredRecording) {
		t.Errorf("eager create: err = %v, want ErrDeferredRecording", err)
	}
	if _, err := pp.WrapBackendTexture(BackendTexture{Width: 8, Height: 8}, OriginTopLeft, WrapBorrowed, nil); !errors.Is(err, ErrDeferredRecording) {
		t.Errorf("wrap: err = %v, want ErrDeferredRecording", err)
	}

	proxy, err := pp.CreateLazyProxy(func(Allocator) (*Surface, error) {
		return nil, nil
	}, testDesc(8, 8), OriginTopLeft, false, LazySingleUse)
	if err != nil {
		t.Fatalf("CreateLazyProxy on deferred provider: %v", err)
	}
	proxy.Unref()
}

// TestWrapBackendTexture tests ownership and release semantics of wrapped
// textures.
func TestWrapBackendTexture(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)

	released := 0
	btex := BackendTexture{
		Width: 128, Height: 64,
		Format: gputypes.TextureFormatBGRA8Unorm,
	}
	proxy, err := pp.WrapBackendTexture(btex, OriginTopLeft, WrapBorrowed, func() { released++ })
	if err != nil {
		t.Fatalf("WrapBackendTexture: %v", err)
	}

	if !proxy.IsInstantiated() {
		t.Fatal("wrapped proxy not instantiated")
	}
	if proxy.Budgeted() != BudgetedNo {
		t.Error("wrapped proxy is budgeted")
	}
	if proxy.Width() != 128 || proxy.Height() != 64 {
		t.Errorf("wrapped dims = %dx%d, want 128x64", proxy.Width(), proxy.Height())
	}
	if proxy.UniqueKey().IsValid() {
		t.Error("wrapped proxy carries a key at creation")
	}

	proxy.Unref()
	if released != 1 {
		t.Errorf("release callback fired %d times, want 1", released)
	}

	if _, err := pp.WrapBackendTexture(BackendTexture{}, OriginTopLeft, WrapBorrowed, nil); !errors.Is(err, ErrInvalidBackend) {
		t.Errorf("invalid backend: err = %v, want ErrInvalidBackend", err)
	}
}

// TestWrapBackendRenderTarget tests wrapping a swapchain-style target.
func TestWrapBackendRenderTarget(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)

	brt := BackendRenderTarget{
		Width: 800, Height: 600,
		Format:      gputypes.TextureFormatBGRA8Unorm,
		SampleCount: 4,
	}
	proxy, err := pp.WrapBackendRenderTarget(brt, OriginBottomLeft, nil)
	if err != nil {
		t.Fatalf("WrapBackendRenderTarget: %v", err)
	}
	defer proxy.Unref()

	if !proxy.Renderable() {
		t.Error("wrapped render target not renderable")
	}
	if proxy.Textureable() {
		t.Error("wrapped render target is textureable")
	}
	if proxy.SampleCount() != 4 {
		t.Errorf("SampleCount = %d, want 4", proxy.SampleCount())
	}
	if proxy.Origin() != OriginBottomLeft {
		t.Errorf("Origin = %v, want BottomLeft", proxy.Origin())
	}
}

// TestCreateProxyFromImage tests eager creation from a CPU image.
func TestCreateProxyFromImage(t *testing.T) {
	alloc := newFakeAllocator()
	pp := NewProxyProvider(alloc, nil, nil)

	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	img.Set(3, 3, color.NRGBA{R: 255, A: 255})

	proxy, err := pp.CreateProxyFromImage(img, BackingFitExact, BudgetedYes, OriginTopLeft)
	if err != nil {
		t.Fatalf("CreateProxyFromImage: %v", err)
	}
	defer proxy.Unref()

	if !proxy.IsInstantiated() {
		t.Fatal("image proxy not instantiated")
	}
	if proxy.Width() != 20 || proxy.Height() != 10 {
		t.Errorf("dims = %dx%d, want 20x10", proxy.Width(), proxy.Height())
	}
	if alloc.lastLevels != 1 {
		t.Errorf("uploaded levels = %d, want 1", alloc.lastLevels)
	}
}

// TestCreateMipMappedProxyFromImage tests the CPU mip chain upload path.
func TestCreateMipMappedProxyFromImage(t *testing.T) {
	alloc := newFakeAllocator()
	pp := NewProxyProvider(alloc, nil, nil)

	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	proxy, err := pp.CreateMipMappedProxyFromImage(img, BudgetedYes, OriginTopLeft)
	if err != nil {
		t.Fatalf("CreateMipMappedProxyFromImage: %v", err)
	}
	defer proxy.Unref()

	if proxy.MipMode() != MipModeComplete {
		t.Errorf("MipMode = %v, want Complete", proxy.MipMode())
	}
	if want := MipLevelCount(16, 8); alloc.lastLevels != want {
		t.Errorf("uploaded levels = %d, want %d", alloc.lastLevels, want)
	}
}

// TestCreateTextureProxyWithData tests eager creation from raw texels,
// including the unsupported-format mip chain error.
func TestCreateTextureProxyWithData(t *testing.T) {
	alloc := newFakeAllocator()
	pp := NewProxyProvider(alloc, nil, nil)

	desc := testDesc(4, 4)
	data := make([]byte, 4*4*4)
	proxy, err := pp.CreateTextureProxyWithData(desc, OriginTopLeft, data, 0)
	if err != nil {
		t.Fatalf("CreateTextureProxyWithData: %v", err)
	}
	proxy.Unref()

	desc.MipMode = MipModeComplete
	desc.Format = gputypes.TextureFormatR8Unorm
	if _, err := pp.CreateTextureProxyWithData(desc, OriginTopLeft, data, 0); !errors.Is(err, ErrMipChainUnsupported) {
		t.Errorf("R8 mip chain: err = %v, want ErrMipChainUnsupported", err)
	}
}

// TestAbandon tests abandonment finality: mutators fail, lookups miss, and
// nothing panics.
func TestAbandon(t *testing.T) {
	alloc := newFakeAllocator()
	cache := &fakeCache{}
	pp := NewProxyProvider(alloc, cache, nil)
	key := testKey(t)

	proxy, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	if err := pp.AssignUniqueKey(key, proxy); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}

	pp.Abandon()
	if !pp.IsAbandoned() {
		t.Fatal("IsAbandoned = false after Abandon")
	}
	if !pp.IsRecordingDeferred() {
		t.Error("abandoned provider still reports a live allocator")
	}
	if proxy.UniqueKey().IsValid() {
		t.Error("proxy still keyed after Abandon")
	}
	if len(cache.invalidated) != 0 {
		t.Error("Abandon forwarded invalidations to a severed cache")
	}

	if _, err := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false); !errors.Is(err, ErrAbandoned) {
		t.Errorf("create after abandon: err = %v, want ErrAbandoned", err)
	}
	if err := pp.AssignUniqueKey(testKey(t), proxy); !errors.Is(err, ErrAbandoned) {
		t.Errorf("assign after abandon: err = %v, want ErrAbandoned", err)
	}
	if got := pp.FindProxyByUniqueKey(key, OriginTopLeft); got != nil {
		t.Errorf("find after abandon = %v, want nil", got)
	}

	pp.Abandon() // idempotent
	proxy.Unref()
}

// TestAbandonBeforeInstantiation tests that a lazy proxy created before
// abandonment still runs its cleanup branch at teardown.
func TestAbandonBeforeInstantiation(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)

	cleanup := 0
	proxy, err := pp.CreateLazyProxy(func(alloc Allocator) (*Surface, error) {
		if alloc == nil {
			cleanup++
			return nil, nil
		}
		t.Error("callback instantiated after abandonment")
		return nil, nil
	}, testDesc(8, 8), OriginTopLeft, false, LazySingleUse)
	if err != nil {
		t.Fatalf("CreateLazyProxy: %v", err)
	}

	pp.Abandon()
	proxy.Unref()
	if cleanup != 1 {
		t.Errorf("cleanup calls = %d, want 1", cleanup)
	}
}

// TestProviderStats tests the traffic counters.
func TestProviderStats(t *testing.T) {
	pp := NewProxyProvider(newFakeAllocator(), nil, nil)
	key := testKey(t)

	proxy, _ := pp.CreateProxy(testDesc(8, 8), OriginTopLeft, false)
	defer proxy.Unref()
	if err := pp.AssignUniqueKey(key, proxy); err != nil {
		t.Fatalf("AssignUniqueKey: %v", err)
	}
	if found := pp.FindProxyByUniqueKey(key, OriginTopLeft); found != nil {
		found.Unref()
	}
	pp.FindProxyByUniqueKey(testKey(t), OriginTopLeft)

	s := pp.Stats()
	if s.Assigns != 1 {
		t.Errorf("Assigns = %d, want 1", s.Assigns)
	}
	if s.Hits != 1 {
		t.Errorf("Hits = %d, want 1", s.Hits)
	}
	if s.Misses != 1 {
		t.Errorf("Misses = %d, want 1", s.Misses)
	}
	if s.NumKeyed != 1 {
		t.Errorf("NumKeyed = %d, want 1", s.NumKeyed)
	}
}
