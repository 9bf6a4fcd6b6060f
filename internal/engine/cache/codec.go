package cache

import (
	"context"
	"encoding/json"

	"go.trai.ch/pack/internal/core/domain"
)

// Load looks up a JSON encoded value. A value that fails to decode counts as a miss.
func Load[T any](ctx context.Context, s *Session, kind domain.CacheKind, fp domain.Fingerprint) (T, bool) {
	var v T
	_, ok := s.get(ctx, kind, fp, func(data []byte) error {
		return json.Unmarshal(data, &v)
	})
	if !ok {
		var zero T
		return zero, false
	}
	return v, true
}

// Save stages v as JSON. Values that cannot be encoded are not cached.
func Save[T any](s *Session, kind domain.CacheKind, fp domain.Fingerprint, v T, paths ...string) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.Put(kind, fp, data, paths...)
}
