package ports

import (
	"context"

	"go.trai.ch/pack/internal/core/domain"
)

// AssetEmitter writes compilation assets to disk.
//
//go:generate mockgen -source=emitter.go -destination=mocks/mock_emitter.go -package=mocks
type AssetEmitter interface {
	// Emit writes assets under outDir and records the manifest under root.
	// It returns the number of files actually written.
	Emit(ctx context.Context, root, outDir string, manifest domain.Manifest, assets []domain.Asset) (int, error)
}
