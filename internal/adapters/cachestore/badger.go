// Package cachestore implements the backing stores of the result caches.
package cachestore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CacheStore = (*BadgerStore)(nil)

// BadgerStore persists cache entries in a badger database.
// Keys are "<kind>/<fingerprint>", values are JSON encoded entries.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens or creates the database in dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions(dir).WithLogger(nil))
}

// OpenBadgerInMemory opens a database that lives only in memory.
func OpenBadgerInMemory() (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheStoreOpen.Error()), "dir", opts.Dir)
	}
	return &BadgerStore{db: db}, nil
}

// Key returns the database key of an entry.
func Key(kind domain.CacheKind, fp domain.Fingerprint) []byte {
	return []byte(kind.String() + "/" + string(fp))
}

// Get returns the entry for the fingerprint, or nil, nil when absent.
func (s *BadgerStore) Get(ctx context.Context, kind domain.CacheKind, fp domain.Fingerprint) (*domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *domain.CacheEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(kind, fp))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e domain.CacheEntry
			if err := json.Unmarshal(val, &e); err != nil {
				return zerr.Wrap(err, domain.ErrCacheDecode.Error())
			}
			entry = &e
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheStoreRead.Error()), "key", string(Key(kind, fp)))
	}
	return entry, nil
}

// Put stores the entry, replacing any previous one.
func (s *BadgerStore) Put(ctx context.Context, entry domain.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheEncode.Error())
	}
	key := Key(entry.Kind, entry.Fingerprint)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheStoreWrite.Error()), "key", string(key))
	}
	return nil
}

// Delete removes the entry if present.
func (s *BadgerStore) Delete(ctx context.Context, kind domain.CacheKind, fp domain.Fingerprint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := Key(kind, fp)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheStoreWrite.Error()), "key", string(key))
	}
	return nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
