// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import "errors"

// Proxy provider errors.
var (
	// ErrAbandoned is returned by mutating provider calls after Abandon.
	ErrAbandoned = errors.New("ganesh: proxy provider is abandoned")

	// ErrInvalidKey is returned when an operation requires a valid unique key.
	ErrInvalidKey = errors.New("ganesh: invalid unique key")

	// ErrNilProxy is returned when a nil proxy is passed to a provider call.
	ErrNilProxy = errors.New("ganesh: nil proxy")

	// ErrProxyAlreadyKeyed is returned when assigning a key to a proxy that
	// already carries one. The existing key-to-proxy mapping is unchanged.
	ErrProxyAlreadyKeyed = errors.New("ganesh: proxy already carries a unique key")

	// ErrKeyInUse is returned when a key already resolves to a different
	// live proxy. The existing mapping is unchanged.
	ErrKeyInUse = errors.New("ganesh: unique key already maps to a live proxy")

	// ErrSurfaceMismatch is returned by AdoptUniqueKey when the proxy is not
	// instantiated with the given surface as its target.
	ErrSurfaceMismatch = errors.New("ganesh: proxy target does not match surface")

	// ErrDeferredRecording is returned when an operation needs a live
	// allocator but the provider is only recording a deferred command list.
	ErrDeferredRecording = errors.New("ganesh: provider has no allocator (deferred recording)")

	// ErrInvalidDesc is returned when a surface descriptor fails validation.
	ErrInvalidDesc = errors.New("ganesh: invalid surface descriptor")

	// ErrNilCallback is returned when a lazy creation path is given no callback.
	ErrNilCallback = errors.New("ganesh: nil instantiation callback")

	// ErrInvalidBackend is returned when wrapping an invalid backend object.
	ErrInvalidBackend = errors.New("ganesh: invalid backend object")
)

// Proxy instantiation errors.
var (
	// ErrNoAllocator is returned by Instantiate when called with a nil allocator.
	ErrNoAllocator = errors.New("ganesh: nil allocator")

	// ErrInstantiationFailed is returned when the lazy callback or the
	// allocator produced no backend resource. The proxy stays uninstantiated.
	ErrInstantiationFailed = errors.New("ganesh: instantiation produced no surface")

	// ErrNotReusable is returned by Deinstantiate on a proxy that is not
	// reusable-lazy or is not currently instantiated.
	ErrNotReusable = errors.New("ganesh: proxy cannot be deinstantiated")

	// ErrMipChainUnsupported is returned when CPU mip generation is requested
	// for a pixel format it does not support.
	ErrMipChainUnsupported = errors.New("ganesh: mip chain generation unsupported for format")
)
