// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package resource provides the concrete allocation backend for ganesh
// proxy providers: a hal-backed allocator (Provider) and a byte-budgeted
// surface cache (Cache) with LRU eviction of purgeable surfaces.
//
// The cache is safe for concurrent use and may back several single-owner
// proxy providers at once; keys naming shared persistent resources resolve
// against it across recording sessions.
//
// A Provider constructed with a nil device produces logical surfaces with
// no GPU backing. That keeps deferred recording and tests runnable without
// a device, and is also how the demo command operates.
package resource
