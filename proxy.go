// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import (
	"fmt"
	"sync/atomic"
)

// LazyInstantiateCallback produces the backend resource for a lazy proxy.
// It is invoked at most once per instantiation attempt, with a live
// Allocator, and must return a surface exactly compatible with the proxy's
// recorded descriptor (a mismatch is a contract violation, not an error).
//
// The callback must also tolerate a nil Allocator: that is the teardown
// signal. On that path its only obligation is to release any resources it
// privately captured and return (nil, nil); it must never allocate.
type LazyInstantiateCallback func(alloc Allocator) (*Surface, error)

// SurfaceProxy is the deferred handle standing in for a GPU surface. It
// owns a descriptor, at most one unique key, and either a reference to an
// already-real backend surface or a pending instantiation callback.
//
// A proxy can be referenced and drawn through before its backing store
// exists, or even before its dimensions are known (fully-lazy proxies).
// State transitions one way, uninstantiated to instantiated, except for
// reusable-lazy proxies which may cycle back via Deinstantiate.
//
// Proxies are reference-counted. Every factory and lookup on ProxyProvider
// returns a reference owned by the caller; drop it with Unref. All methods
// except Ref and Unref follow the provider's single-owner discipline.
type SurfaceProxy struct {
	desc   SurfaceDesc
	origin Origin

	renderable  bool
	textureable bool
	fullyLazy   bool // created without dimensions

	lazyType LazyType
	lazyCB   LazyInstantiateCallback

	target *Surface

	// key and provider are set while the proxy is registered in a
	// provider's table; teardown uses them to deregister.
	key      UniqueKey
	provider *ProxyProvider

	label string
	refs  atomic.Int32
}

// Ref adds a reference.
func (p *SurfaceProxy) Ref() {
	p.refs.Add(1)
}

// Unref drops a reference. Dropping the last reference tears the proxy
// down: the provider is notified so the key table entry is erased, a still
// pending callback is invoked once with a nil allocator (cleanup-only
// branch), and the target surface reference is released. The backing
// surface may outlive the proxy if other holders remain.
func (p *SurfaceProxy) Unref() {
	n := p.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic("ganesh: proxy reference count underflow")
	}

	if p.provider != nil {
		p.provider.proxyReleased(p)
	}
	if p.lazyCB != nil {
		_, _ = p.lazyCB(nil)
		p.lazyCB = nil
	}
	if p.target != nil {
		p.target.Unref()
		p.target = nil
	}
}

// RefCount returns the current reference count, for tests.
func (p *SurfaceProxy) RefCount() int {
	return int(p.refs.Load())
}

// Width returns the requested width.
// It panics on a fully-lazy proxy whose dimensions are not yet known:
// size-dependent values must never be silently treated as zero.
func (p *SurfaceProxy) Width() int {
	if p.desc.LazyDims() {
		panic("ganesh: dimensions undefined on an uninstantiated fully-lazy proxy")
	}
	return p.desc.Width
}

// Height returns the requested height.
// It panics on a fully-lazy proxy whose dimensions are not yet known.
func (p *SurfaceProxy) Height() int {
	if p.desc.LazyDims() {
		panic("ganesh: dimensions undefined on an uninstantiated fully-lazy proxy")
	}
	return p.desc.Height
}

// Dims is the non-panicking dimension query: ok is false while a
// fully-lazy proxy's dimensions are unknown.
func (p *SurfaceProxy) Dims() (w, h int, ok bool) {
	if p.desc.LazyDims() {
		return 0, 0, false
	}
	return p.desc.Width, p.desc.Height, true
}

// BackingWidth returns the worst-case backing-store width: the actual
// width when instantiated, the approximate-fit quantized width otherwise.
// Panics like Width while dimensions are unknown.
func (p *SurfaceProxy) BackingWidth() int {
	if p.target != nil {
		return p.target.Width()
	}
	w := p.Width()
	if p.desc.Fit == BackingFitApprox {
		return ApproxDimension(w)
	}
	return w
}

// BackingHeight returns the worst-case backing-store height.
// Panics like Height while dimensions are unknown.
func (p *SurfaceProxy) BackingHeight() int {
	if p.target != nil {
		return p.target.Height()
	}
	h := p.Height()
	if p.desc.Fit == BackingFitApprox {
		return ApproxDimension(h)
	}
	return h
}

// Desc returns the proxy's descriptor.
func (p *SurfaceProxy) Desc() SurfaceDesc { return p.desc }

// Origin returns the row orientation.
func (p *SurfaceProxy) Origin() Origin { return p.origin }

// Fit returns the backing-fit policy.
func (p *SurfaceProxy) Fit() BackingFit { return p.desc.Fit }

// Budgeted returns the budget class.
func (p *SurfaceProxy) Budgeted() Budgeted { return p.desc.Budgeted }

// MipMode returns the requested mipmap state.
func (p *SurfaceProxy) MipMode() MipMode { return p.desc.MipMode }

// SampleCount returns the MSAA sample count.
func (p *SurfaceProxy) SampleCount() int { return p.desc.SampleCount }

// Renderable reports whether the proxy can back a render target.
func (p *SurfaceProxy) Renderable() bool { return p.renderable }

// Textureable reports whether the proxy can be sampled as a texture.
func (p *SurfaceProxy) Textureable() bool { return p.textureable }

// IsLazy reports whether instantiation is still pending.
func (p *SurfaceProxy) IsLazy() bool { return p.target == nil }

// IsFullyLazy reports whether the proxy was created without dimensions
// and has not learned them yet.
func (p *SurfaceProxy) IsFullyLazy() bool { return p.fullyLazy && p.desc.LazyDims() }

// IsInstantiated reports whether a backing surface is bound.
func (p *SurfaceProxy) IsInstantiated() bool { return p.target != nil }

// LazyType returns the callback reuse policy.
func (p *SurfaceProxy) LazyType() LazyType { return p.lazyType }

// UniqueKey returns the attached key, or the zero key.
func (p *SurfaceProxy) UniqueKey() UniqueKey { return p.key }

// Label returns the debug label.
func (p *SurfaceProxy) Label() string { return p.label }

// Target returns the bound backing surface, or nil. The reference is
// borrowed: callers that retain it must Ref it themselves.
func (p *SurfaceProxy) Target() *Surface { return p.target }

// IsFunctionallyExact reports whether the backing store can be assumed to
// match the requested dimensions exactly. Exact-fit proxies always are.
// Approximate-fit proxies are exact only when the instantiated backing
// matches the request, or, before instantiation, when the request already
// lies on the ApproxDimension grid. Consumers needing pixel-exact bounds
// must consult this and otherwise apply a sub-rectangle.
func (p *SurfaceProxy) IsFunctionallyExact() bool {
	if p.desc.Fit == BackingFitExact {
		return true
	}
	if p.target != nil {
		return p.target.Width() == p.desc.Width && p.target.Height() == p.desc.Height
	}
	if p.desc.LazyDims() {
		return false
	}
	return ApproxDimension(p.desc.Width) == p.desc.Width &&
		ApproxDimension(p.desc.Height) == p.desc.Height
}

// Instantiate binds a backing surface, invoking the pending callback if
// one is owned or allocating directly from the descriptor otherwise.
// Already-instantiated proxies return nil immediately. On failure the
// proxy stays uninstantiated and the error propagates; no retry happens
// here — the caller decides whether to abort the draw or retry at a
// later flush.
func (p *SurfaceProxy) Instantiate(alloc Allocator) error {
	if p.target != nil {
		return nil
	}
	if alloc == nil {
		return ErrNoAllocator
	}

	var surf *Surface
	if p.lazyCB != nil {
		s, err := p.lazyCB(alloc)
		if err != nil {
			Logger().Warn("ganesh: lazy instantiation failed", "label", p.label, "error", err)
			return fmt.Errorf("ganesh: lazy instantiation: %w", err)
		}
		if s == nil {
			return ErrInstantiationFailed
		}
		p.checkLazyResult(s)
		if p.desc.LazyDims() {
			p.desc.Width = s.Width()
			p.desc.Height = s.Height()
		}
		if p.lazyType == LazySingleUse {
			p.lazyCB = nil
		}
		surf = s
	} else {
		if p.desc.LazyDims() {
			panic("ganesh: deferred proxy has no callback and no dimensions")
		}
		s, err := alloc.CreateTexture(p.desc, p.renderable, p.label)
		if err != nil {
			Logger().Warn("ganesh: deferred instantiation failed", "label", p.label, "error", err)
			return fmt.Errorf("ganesh: deferred instantiation: %w", err)
		}
		if s == nil {
			return ErrInstantiationFailed
		}
		surf = s
	}

	p.target = surf
	if p.key.IsValid() {
		if err := alloc.AssignUniqueKey(p.key, surf); err != nil {
			Logger().Warn("ganesh: mirroring key onto surface failed", "label", p.label, "error", err)
		}
	}
	return nil
}

// checkLazyResult verifies the callback's output against the recorded
// descriptor. A mismatch is a fatal contract violation.
func (p *SurfaceProxy) checkLazyResult(s *Surface) {
	if !p.desc.LazyDims() {
		switch p.desc.Fit {
		case BackingFitExact:
			if s.Width() != p.desc.Width || s.Height() != p.desc.Height {
				panic(fmt.Sprintf("ganesh: lazy result %dx%d does not match exact-fit descriptor %dx%d",
					s.Width(), s.Height(), p.desc.Width, p.desc.Height))
			}
		case BackingFitApprox:
			if s.Width() < p.desc.Width || s.Height() < p.desc.Height {
				panic(fmt.Sprintf("ganesh: lazy result %dx%d smaller than approx-fit descriptor %dx%d",
					s.Width(), s.Height(), p.desc.Width, p.desc.Height))
			}
		}
	}
	if s.Format() != p.desc.Format {
		panic(fmt.Sprintf("ganesh: lazy result format %d does not match descriptor format %d",
			s.Format(), p.desc.Format))
	}
	if s.SampleCount() != p.desc.SampleCount {
		panic(fmt.Sprintf("ganesh: lazy result sample count %d does not match descriptor sample count %d",
			s.SampleCount(), p.desc.SampleCount))
	}
	if p.renderable && !s.Renderable() {
		panic("ganesh: lazy result is not renderable but proxy requires it")
	}
}

// Deinstantiate drops the backing surface of a reusable-lazy proxy so the
// cache can reclaim it while the proxy survives in a pending command
// stream. The retained callback runs again on the next Instantiate.
// Returns ErrNotReusable for single-use or uninstantiated proxies.
func (p *SurfaceProxy) Deinstantiate() error {
	if p.target == nil || p.lazyType != LazyReusable || p.lazyCB == nil {
		return ErrNotReusable
	}
	p.target.Unref()
	p.target = nil
	return nil
}

// String returns a compact form for debug logging.
func (p *SurfaceProxy) String() string {
	state := "lazy"
	switch {
	case p.target != nil:
		state = "instantiated"
	case p.IsFullyLazy():
		state = "fully-lazy"
	}
	return fmt.Sprintf("Proxy[%s %s %s origin=%s]", p.label, p.desc, state, p.origin)
}
