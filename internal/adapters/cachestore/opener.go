package cachestore

import (
	"cmp"
	"path/filepath"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CacheStoreOpener = (*Opener)(nil)

// Opener selects the store backend from the cache options.
type Opener struct{}

// NewOpener creates a new Opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open returns the store for opts. A disabled cache has no store.
func (o *Opener) Open(opts domain.CacheOptions, contextDir string) (ports.CacheStore, error) {
	if !opts.Enabled {
		return nil, nil
	}
	switch cmp.Or(opts.Type, domain.CacheMemory) {
	case domain.CacheMemory:
		return NewMemoryStore(), nil
	case domain.CacheFilesystem:
		dir := cmp.Or(opts.Directory, domain.DefaultCachePath())
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(contextDir, dir)
		}
		return OpenBadger(dir)
	default:
		return nil, zerr.With(domain.ErrInvalidCacheType, "type", string(opts.Type))
	}
}
