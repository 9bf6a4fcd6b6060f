package fs

import (
	"context"
	"os"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.SourceReader = (*Reader)(nil)

// Reader reads module sources from disk. Identities are absolute paths.
type Reader struct{}

// NewReader creates a new Reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read returns the content of the file behind identity.
func (r *Reader) Read(ctx context.Context, identity domain.Identifier) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := identity.String()
	data, err := os.ReadFile(path) //nolint:gosec // identities come from the resolver
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrSourceRead.Error()), "path", path)
	}
	return data, nil
}
