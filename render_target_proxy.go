// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

// RenderTargetProxy is the render-target variant of a surface proxy. It is
// always renderable and may additionally be textureable, in which case a
// later pass can sample what an earlier pass drew.
type RenderTargetProxy struct {
	SurfaceProxy
}
