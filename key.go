// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sync/atomic"
)

// Domain is a namespace tag for unique keys. Domains allow selective bulk
// invalidation of every key belonging to one subsystem (glyph atlases, path
// masks, ...) without touching the rest of the table.
//
// The zero Domain is invalid; allocate domains with NewDomain.
type Domain uint32

// domainCounter backs NewDomain. Starts at zero so the first allocated
// domain is 1, keeping the zero value invalid.
var domainCounter atomic.Uint32

// NewDomain allocates a new unique key domain.
// NewDomain is safe for concurrent use.
func NewDomain() Domain {
	return Domain(domainCounter.Add(1))
}

// UniqueKey is a content-addressed identity optionally attached to a surface
// proxy and used purely for cache lookup. It is independent of the proxy's
// descriptor: two proxies with identical descriptors may carry different
// keys, and a key says nothing about the surface it names.
//
// UniqueKey is a comparable value type: equality and hash are structural.
// The zero value is invalid. Keys are built with KeyBuilder.
type UniqueKey struct {
	domain Domain
	data   string // packed little-endian content words
	hash   uint64 // FNV-1a over domain + data
}

// IsValid reports whether the key names anything at all.
// The zero UniqueKey is invalid.
func (k UniqueKey) IsValid() bool {
	return k.domain != 0
}

// Domain returns the key's namespace tag.
func (k UniqueKey) Domain() Domain {
	return k.domain
}

// Hash returns the key's precomputed 64-bit FNV-1a hash.
func (k UniqueKey) Hash() uint64 {
	return k.hash
}

// String returns a short human-readable form for debug logging.
func (k UniqueKey) String() string {
	if !k.IsValid() {
		return "UniqueKey(invalid)"
	}
	return fmt.Sprintf("UniqueKey(domain=%d hash=%016x len=%d)", k.domain, k.hash, len(k.data))
}

// KeyBuilder accumulates content words into a UniqueKey. A builder is not
// safe for concurrent use; build keys on the goroutine that owns them.
//
// Example:
//
//	b := ganesh.NewKeyBuilder(glyphDomain)
//	b.AddUint32(uint32(glyphID))
//	b.AddUint32(uint32(sizeClass))
//	key := b.Build()
type KeyBuilder struct {
	domain Domain
	buf    []byte
}

// NewKeyBuilder creates a builder for keys in the given domain.
func NewKeyBuilder(domain Domain) *KeyBuilder {
	return &KeyBuilder{domain: domain, buf: make([]byte, 0, 32)}
}

// AddUint32 appends a 32-bit content word.
func (b *KeyBuilder) AddUint32(v uint32) *KeyBuilder {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
	return b
}

// AddUint64 appends a 64-bit content word.
func (b *KeyBuilder) AddUint64(v uint64) *KeyBuilder {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
	return b
}

// AddBytes appends raw bytes, length-prefixed so that adjacent fields of
// varying length cannot alias each other.
func (b *KeyBuilder) AddBytes(p []byte) *KeyBuilder {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(p)))
	b.buf = append(b.buf, p...)
	return b
}

// AddString appends a string, length-prefixed like AddBytes.
func (b *KeyBuilder) AddString(s string) *KeyBuilder {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

// Build finalizes the key. The builder may be reused afterwards; further
// Add calls extend the same content and produce a different key.
func (b *KeyBuilder) Build() UniqueKey {
	if b.domain == 0 {
		return UniqueKey{}
	}

	h := fnv.New64a()
	var dom [4]byte
	binary.LittleEndian.PutUint32(dom[:], uint32(b.domain))
	_, _ = h.Write(dom[:])  // fnv.Write never returns an error
	_, _ = h.Write(b.buf)

	return UniqueKey{
		domain: b.domain,
		data:   string(b.buf),
		hash:   h.Sum64(),
	}
}
