package ports

import (
	"context"

	"go.trai.ch/pack/internal/core/domain"
)

// CacheStore is the backing storage of the result caches.
// Implementations must allow concurrent reads.
//
//go:generate mockgen -source=cache_store.go -destination=mocks/mock_cache_store.go -package=mocks
type CacheStore interface {
	// Get returns the entry for the fingerprint, or nil, nil when absent.
	Get(ctx context.Context, kind domain.CacheKind, fp domain.Fingerprint) (*domain.CacheEntry, error)
	// Put stores the entry, replacing any previous one.
	Put(ctx context.Context, entry domain.CacheEntry) error
	// Delete removes the entry if present.
	Delete(ctx context.Context, kind domain.CacheKind, fp domain.Fingerprint) error
	// Close releases the store.
	Close() error
}

// CacheStoreOpener opens the cache store selected by the options.
type CacheStoreOpener interface {
	// Open returns a store for the given options rooted at contextDir.
	Open(opts domain.CacheOptions, contextDir string) (CacheStore, error)
}

// CacheMetrics observes cache lookups.
type CacheMetrics interface {
	// ObserveLookup records one lookup of the given kind.
	ObserveLookup(kind domain.CacheKind, hit bool)
}
