// Package cache implements the factorize, build and code generation result
// caches shared by every compilation run of one compiler instance.
package cache

import (
	"context"
	"errors"
	"slices"
	"sync"
	"unique"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/zerr"
)

type entryKey struct {
	kind domain.CacheKind
	fp   domain.Fingerprint
}

// Cache is the long-lived result cache of a compiler instance.
// Runs read and write it through a Session; only committed sessions become
// visible to later runs.
type Cache struct {
	store   ports.CacheStore
	metrics ports.CacheMetrics
	enabled bool

	mu sync.RWMutex
	// pathIndex maps a file path to the entries that depend on it beyond their fingerprint.
	pathIndex map[unique.Handle[string]][]entryKey
}

// New creates a cache over the given store. metrics may be nil.
func New(store ports.CacheStore, metrics ports.CacheMetrics, enabled bool) *Cache {
	return &Cache{
		store:     store,
		metrics:   metrics,
		enabled:   enabled && store != nil,
		pathIndex: make(map[unique.Handle[string]][]entryKey),
	}
}

// Enabled reports whether lookups can hit at all.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Begin starts a session for one compilation run identified by token.
func (c *Cache) Begin(token string) *Session {
	return &Session{
		cache:  c,
		token:  token,
		staged: make(map[entryKey]domain.CacheEntry),
	}
}

// InvalidatePaths deletes every entry that recorded a dependency on one of paths.
// Entries keyed purely by content need no invalidation; this covers results
// such as resolutions whose validity depends on directory contents.
func (c *Cache) InvalidatePaths(ctx context.Context, paths []string) error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	var keys []entryKey
	for _, p := range paths {
		h := unique.Make(p)
		keys = append(keys, c.pathIndex[h]...)
	}
	for _, k := range keys {
		c.unindexLocked(k)
	}
	c.mu.Unlock()

	var errs error
	for _, k := range keys {
		if err := c.store.Delete(ctx, k.kind, k.fp); err != nil {
			errs = errors.Join(errs, zerr.With(err, "fingerprint", string(k.fp)))
		}
	}
	return errs
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Cache) lookup(ctx context.Context, kind domain.CacheKind, fp domain.Fingerprint) (*domain.CacheEntry, bool) {
	entry, err := c.store.Get(ctx, kind, fp)
	if err != nil || entry == nil {
		return nil, false
	}
	if len(entry.Paths) > 0 {
		c.mu.Lock()
		c.indexLocked(entryKey{kind: kind, fp: fp}, entry.Paths)
		c.mu.Unlock()
	}
	return entry, true
}

func (c *Cache) observe(kind domain.CacheKind, hit bool) {
	if c.metrics != nil {
		c.metrics.ObserveLookup(kind, hit)
	}
}

func (c *Cache) indexLocked(key entryKey, paths []string) {
	for _, p := range paths {
		h := unique.Make(p)
		if !slices.Contains(c.pathIndex[h], key) {
			c.pathIndex[h] = append(c.pathIndex[h], key)
		}
	}
}

func (c *Cache) unindexLocked(key entryKey) {
	for h, keys := range c.pathIndex {
		keys = slices.DeleteFunc(keys, func(k entryKey) bool { return k == key })
		if len(keys) == 0 {
			delete(c.pathIndex, h)
			continue
		}
		c.pathIndex[h] = keys
	}
}
