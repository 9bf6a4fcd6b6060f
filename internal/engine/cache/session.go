package cache

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/zerr"
)

// Session is the view of the cache owned by one compilation run.
// Writes are staged and only reach the store on Commit, so an aborted run
// never leaves entries behind. Session is safe for concurrent use.
type Session struct {
	cache *Cache
	token string

	mu       sync.Mutex
	staged   map[entryKey]domain.CacheEntry
	counters [3]domain.CacheCounter
	done     bool
}

// Token returns the run token entries written by this session carry.
func (s *Session) Token() string {
	return s.token
}

// Get returns the cached value for the fingerprint.
// Store failures are reported as misses. When the cache is disabled every
// lookup misses and nothing is counted.
func (s *Session) Get(ctx context.Context, kind domain.CacheKind, fp domain.Fingerprint) ([]byte, bool) {
	return s.get(ctx, kind, fp, nil)
}

func (s *Session) get(
	ctx context.Context,
	kind domain.CacheKind,
	fp domain.Fingerprint,
	decode func([]byte) error,
) ([]byte, bool) {
	if !s.cache.enabled {
		return nil, false
	}

	key := entryKey{kind: kind, fp: fp}
	s.mu.Lock()
	staged, ok := s.staged[key]
	s.mu.Unlock()

	var value []byte
	if ok {
		value = staged.Value
	} else if entry, hit := s.cache.lookup(ctx, kind, fp); hit {
		value = entry.Value
		ok = true
	}
	if ok && decode != nil && decode(value) != nil {
		value, ok = nil, false
	}

	s.count(kind, ok)
	s.cache.observe(kind, ok)
	return value, ok
}

// Put stages a value. The last write for a fingerprint wins.
// paths lists files the value depends on beyond its fingerprint.
func (s *Session) Put(kind domain.CacheKind, fp domain.Fingerprint, value []byte, paths ...string) {
	if !s.cache.enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.staged[entryKey{kind: kind, fp: fp}] = domain.CacheEntry{
		Kind:        kind,
		Fingerprint: fp,
		Value:       value,
		Token:       s.token,
		Paths:       slices.Clone(paths),
	}
}

// Commit writes the staged entries to the store.
// Write failures are returned joined but never undo the other writes.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	staged := s.staged
	s.staged = nil
	s.mu.Unlock()

	if !s.cache.enabled {
		return nil
	}

	keys := slices.SortedFunc(maps.Keys(staged), func(a, b entryKey) int {
		if a.kind != b.kind {
			return int(a.kind) - int(b.kind)
		}
		if a.fp < b.fp {
			return -1
		}
		if a.fp > b.fp {
			return 1
		}
		return 0
	})

	var errs error
	for _, k := range keys {
		entry := staged[k]
		if err := s.cache.store.Put(ctx, entry); err != nil {
			errs = errors.Join(errs, zerr.With(
				zerr.Wrap(err, domain.ErrCacheStoreWrite.Error()),
				"fingerprint", string(k.fp),
			))
			continue
		}
		if len(entry.Paths) > 0 {
			s.cache.mu.Lock()
			s.cache.indexLocked(k, entry.Paths)
			s.cache.mu.Unlock()
		}
	}
	return errs
}

// Discard drops the staged entries. Later Puts are ignored.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.staged = nil
}

// Counters returns the hit/total counters per kind.
// ok is false when the cache is disabled, so callers can omit the metric
// entirely instead of reporting a zero rate.
func (s *Session) Counters() (counters map[domain.CacheKind]domain.CacheCounter, ok bool) {
	if !s.cache.enabled {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counters = make(map[domain.CacheKind]domain.CacheCounter, len(domain.CacheKinds))
	for _, k := range domain.CacheKinds {
		counters[k] = s.counters[k]
	}
	return counters, true
}

func (s *Session) count(kind domain.CacheKind, hit bool) {
	if int(kind) >= len(s.counters) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[kind].Total++
	if hit {
		s.counters[kind].Hits++
	}
}
