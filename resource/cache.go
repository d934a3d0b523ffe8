// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package resource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/ganesh"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Cache errors.
var (
	// ErrCacheClosed is returned when operating on a closed cache.
	ErrCacheClosed = errors.New("resource: cache closed")

	// ErrNilSurface is returned when a nil surface is registered or keyed.
	ErrNilSurface = errors.New("resource: nil surface")
)

// Default cache limits.
const (
	// DefaultMaxBytes is the default GPU memory budget (256 MB).
	DefaultMaxBytes = 256 * 1024 * 1024

	// DefaultMaxPurgeable is the default cap on purgeable surfaces kept
	// for reuse, independent of the byte budget.
	DefaultMaxPurgeable = 4096
)

// CacheConfig holds configuration for creating a Cache.
type CacheConfig struct {
	// MaxBytes is the GPU memory budget in bytes for budgeted surfaces.
	// Defaults to DefaultMaxBytes if <= 0.
	MaxBytes int64

	// MaxPurgeable caps how many zero-reference surfaces are kept for
	// reuse. Defaults to DefaultMaxPurgeable if <= 0.
	MaxPurgeable int
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{MaxBytes: DefaultMaxBytes, MaxPurgeable: DefaultMaxPurgeable}
}

// CacheStats contains cache usage statistics.
type CacheStats struct {
	// BudgetBytes is the memory budget in bytes.
	BudgetBytes int64

	// UsedBytes is the footprint of all registered budgeted surfaces,
	// purgeable ones included.
	UsedBytes int64

	// PurgeableBytes is the footprint of zero-reference surfaces kept
	// for reuse.
	PurgeableBytes int64

	// SurfaceCount is the number of registered budgeted surfaces.
	SurfaceCount int

	// PurgeableCount is the number of purgeable surfaces.
	PurgeableCount int

	// Hits counts key lookups that found a surface.
	Hits uint64

	// Misses counts key lookups that found nothing.
	Misses uint64

	// Evictions counts purgeable surfaces the cache released, whether to
	// stay within budget or through purges and key replacement.
	Evictions uint64
}

// String returns a human-readable string of cache stats.
func (s CacheStats) String() string {
	return fmt.Sprintf("Cache[%d/%d KB used, %d purgeable (%d KB), %d hits, %d misses, %d evictions]",
		s.UsedBytes/1024, s.BudgetBytes/1024, s.PurgeableCount, s.PurgeableBytes/1024,
		s.Hits, s.Misses, s.Evictions)
}

// Cache is a byte-budgeted cache over realized surfaces. Budgeted surfaces
// register here; when one loses its last reference it becomes purgeable
// and enters an LRU for reuse-by-key instead of being destroyed. Going
// over budget evicts the oldest purgeable surfaces first. Live surfaces
// are never evicted.
//
// Cache implements ganesh.ResourceCache (the provider's invalidation sink)
// and ganesh.SurfaceListener (the last-reference hook).
//
// Cache is safe for concurrent use: it outlives single-owner recording
// sessions and may serve several at once.
type Cache struct {
	mu sync.Mutex

	budgetBytes    int64
	usedBytes      int64
	purgeableBytes int64
	maxPurgeable   int

	surfaces  map[*ganesh.Surface]struct{}
	byKey     map[ganesh.UniqueKey]*ganesh.Surface
	purgeable *simplelru.LRU[*ganesh.Surface, struct{}]

	hits      uint64
	misses    uint64
	evictions uint64

	closed bool
}

// NewCache creates a cache with the given configuration.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxPurgeable <= 0 {
		cfg.MaxPurgeable = DefaultMaxPurgeable
	}

	// Eviction is driven manually so the evicted surface's backend can be
	// released outside the lock; the LRU itself never destroys anything.
	l, err := simplelru.NewLRU[*ganesh.Surface, struct{}](cfg.MaxPurgeable, nil)
	if err != nil {
		return nil, fmt.Errorf("resource: create purgeable LRU: %w", err)
	}

	return &Cache{
		budgetBytes:  cfg.MaxBytes,
		maxPurgeable: cfg.MaxPurgeable,
		surfaces:     make(map[*ganesh.Surface]struct{}),
		byKey:        make(map[ganesh.UniqueKey]*ganesh.Surface),
		purgeable:    l,
	}, nil
}

// RegisterSurface puts a budgeted surface under cache accounting and
// installs the cache as its last-reference listener. Allocators call this
// for every budgeted surface they create.
func (c *Cache) RegisterSurface(s *ganesh.Surface) error {
	if s == nil {
		return ErrNilSurface
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCacheClosed
	}
	if _, ok := c.surfaces[s]; ok {
		c.mu.Unlock()
		return nil
	}
	c.surfaces[s] = struct{}{}
	c.usedBytes += s.SizeBytes()
	s.SetListener(c)
	doomed := c.evictLocked()
	c.mu.Unlock()

	closeAll(doomed)
	return nil
}

// SurfaceUnreferenced implements ganesh.SurfaceListener. A keyed budgeted
// surface becomes purgeable and is kept for reuse; anything else is let go
// and destroys its backend.
func (c *Cache) SurfaceUnreferenced(s *ganesh.Surface) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if s.RefCount() > 0 {
		// A lookup revived the surface between the count hitting zero and
		// this call taking the lock. It is live again; keep it that way.
		c.mu.Unlock()
		return true
	}
	if _, ok := c.surfaces[s]; !ok {
		// Keyed but outside cache accounting: drop the index entry so no
		// lookup can resolve to the surface about to be destroyed.
		if key := s.UniqueKey(); key.IsValid() && c.byKey[key] == s {
			delete(c.byKey, key)
		}
		c.mu.Unlock()
		return false
	}
	if !s.UniqueKey().IsValid() {
		// Nothing can ever find it again; drop accounting and let it die.
		c.unregisterLocked(s)
		c.mu.Unlock()
		return false
	}

	var doomed []*ganesh.Surface
	if c.purgeable.Len() >= c.maxPurgeable {
		doomed = append(doomed, c.removeOldestLocked())
	}
	c.purgeable.Add(s, struct{}{})
	c.purgeableBytes += s.SizeBytes()
	doomed = append(doomed, c.evictLocked()...)
	c.mu.Unlock()

	closeAll(doomed)
	return true
}

// AssignUniqueKey registers a surface in the key index and mirrors the key
// onto it. Re-assigning a key displaces whatever surface held it before:
// the old surface is stripped of the key and, if purgeable, destroyed,
// since nothing could revive it anymore.
//
// A keyed surface outside cache accounting (non-budgeted) gets the cache as
// its last-reference listener so its index entry dies with it; such
// surfaces are never kept purgeable.
func (c *Cache) AssignUniqueKey(key ganesh.UniqueKey, s *ganesh.Surface) error {
	if s == nil {
		return ErrNilSurface
	}
	if !key.IsValid() {
		return ganesh.ErrInvalidKey
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCacheClosed
	}

	var doomed []*ganesh.Surface
	if old, ok := c.byKey[key]; ok && old != s {
		old.ClearUniqueKey()
		if c.purgeable.Contains(old) {
			c.purgeable.Remove(old)
			c.purgeableBytes -= old.SizeBytes()
			c.unregisterLocked(old)
			doomed = append(doomed, old)
		}
	}
	// Re-keying: the surface's previous index entry must go, or a lookup on
	// the old key would still resolve to it.
	if prev := s.UniqueKey(); prev.IsValid() && prev != key && c.byKey[prev] == s {
		delete(c.byKey, prev)
	}
	c.byKey[key] = s
	s.SetUniqueKey(key)
	// A surface outside cache accounting has no last-reference hook, so its
	// index entry would outlive it. Hook it here; SurfaceUnreferenced drops
	// the entry and still lets the surface destroy its backend.
	if _, ok := c.surfaces[s]; !ok {
		s.SetListener(c)
	}
	c.mu.Unlock()

	closeAll(doomed)
	return nil
}

// FindByUniqueKey returns the surface registered under key, reviving it
// from the purgeable set if needed, or nil. A hit adds a reference owned
// by the caller.
func (c *Cache) FindByUniqueKey(key ganesh.UniqueKey) *ganesh.Surface {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !key.IsValid() {
		return nil
	}
	s, ok := c.byKey[key]
	if !ok {
		c.misses++
		return nil
	}
	if s.IsReleased() {
		// Stale entry for a surface destroyed behind the cache's back.
		delete(c.byKey, key)
		c.misses++
		return nil
	}
	c.hits++
	if c.purgeable.Contains(s) {
		c.purgeable.Remove(s)
		c.purgeableBytes -= s.SizeBytes()
	}
	s.Ref()
	return s
}

// ProcessInvalidUniqueKey implements ganesh.ResourceCache: it drops the
// key index entry and strips the mirrored key so no lookup path can find
// the surface. A purgeable surface is destroyed outright, since nothing
// could ever revive it. Absent keys are a silent no-op.
func (c *Cache) ProcessInvalidUniqueKey(key ganesh.UniqueKey) {
	c.mu.Lock()
	s, ok := c.byKey[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.byKey, key)
	s.ClearUniqueKey()

	var doomed []*ganesh.Surface
	if c.purgeable.Contains(s) {
		c.purgeable.Remove(s)
		c.purgeableBytes -= s.SizeBytes()
		c.unregisterLocked(s)
		doomed = append(doomed, s)
	}
	c.mu.Unlock()

	closeAll(doomed)
}

// SetBudget updates the byte budget. Lowering it below current usage
// evicts purgeable surfaces immediately.
func (c *Cache) SetBudget(maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCacheClosed
	}
	c.budgetBytes = maxBytes
	doomed := c.evictLocked()
	c.mu.Unlock()

	closeAll(doomed)
	return nil
}

// PurgeAll destroys every purgeable surface immediately. Live surfaces are
// untouched.
func (c *Cache) PurgeAll() {
	c.mu.Lock()
	doomed := c.purgeAllLocked()
	c.mu.Unlock()

	closeAll(doomed)
}

// Stats returns current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		BudgetBytes:    c.budgetBytes,
		UsedBytes:      c.usedBytes,
		PurgeableBytes: c.purgeableBytes,
		SurfaceCount:   len(c.surfaces),
		PurgeableCount: c.purgeable.Len(),
		Hits:           c.hits,
		Misses:         c.misses,
		Evictions:      c.evictions,
	}
}

// Close destroys all purgeable surfaces and stops accepting work. Live
// surfaces survive their holders and destroy their own backends on final
// release, since a closed cache declines SurfaceUnreferenced.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	doomed := c.purgeAllLocked()
	for key, s := range c.byKey {
		s.ClearUniqueKey()
		delete(c.byKey, key)
	}
	c.closed = true
	c.mu.Unlock()

	closeAll(doomed)
}

// unregisterLocked drops accounting for a surface. Caller must hold mu.
func (c *Cache) unregisterLocked(s *ganesh.Surface) {
	if _, ok := c.surfaces[s]; !ok {
		return
	}
	delete(c.surfaces, s)
	c.usedBytes -= s.SizeBytes()
	if key := s.UniqueKey(); key.IsValid() {
		delete(c.byKey, key)
		s.ClearUniqueKey()
	}
}

// removeOldestLocked pops the least recently used purgeable surface and
// unregisters it. Caller must hold mu and close the returned surface
// after unlocking.
func (c *Cache) removeOldestLocked() *ganesh.Surface {
	s, _, ok := c.purgeable.RemoveOldest()
	if !ok {
		return nil
	}
	c.purgeableBytes -= s.SizeBytes()
	c.unregisterLocked(s)
	c.evictions++
	ganesh.Logger().Debug("resource: evicting surface", "label", s.Label(), "bytes", s.SizeBytes())
	return s
}

// evictLocked pops purgeable surfaces oldest-first until within budget.
// Caller must hold mu and close the returned surfaces after unlocking.
func (c *Cache) evictLocked() []*ganesh.Surface {
	var doomed []*ganesh.Surface
	for c.usedBytes > c.budgetBytes && c.purgeable.Len() > 0 {
		if s := c.removeOldestLocked(); s != nil {
			doomed = append(doomed, s)
		}
	}
	return doomed
}

// purgeAllLocked empties the purgeable set. Caller must hold mu and close
// the returned surfaces after unlocking.
func (c *Cache) purgeAllLocked() []*ganesh.Surface {
	var doomed []*ganesh.Surface
	for c.purgeable.Len() > 0 {
		if s := c.removeOldestLocked(); s != nil {
			doomed = append(doomed, s)
		}
	}
	return doomed
}

// closeAll releases backend objects outside the cache lock: Close may run
// arbitrary release callbacks that must not re-enter the cache under mu.
func closeAll(doomed []*ganesh.Surface) {
	for _, s := range doomed {
		if s != nil {
			s.Close()
		}
	}
}
