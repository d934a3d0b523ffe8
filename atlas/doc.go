// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package atlas provides a deferred texture atlas built on fully-lazy
// proxies: rectangles are packed while a frame is being recorded, the
// atlas grows as needed, and a single texture of the final size is
// allocated only at flush time through the proxy's instantiation callback.
//
// An Atlas follows the single-owner discipline of the ProxyProvider it was
// created from; it is not safe for concurrent use.
package atlas
