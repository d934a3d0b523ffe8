// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

// TextureProxy is the texture variant of a surface proxy: it can be
// sampled by draws and may additionally be renderable. Texture proxies are
// the only proxies a ProxyProvider keys — render targets are identified by
// the pass that owns them, not by content.
type TextureProxy struct {
	SurfaceProxy
}
