package ports

import (
	"context"

	"go.trai.ch/pack/internal/core/domain"
)

// SourceReader reads the raw source of a module.
//
//go:generate mockgen -source=loader.go -destination=mocks/mock_loader.go -package=mocks
type SourceReader interface {
	// Read returns the source bytes of the module with the given identity.
	Read(ctx context.Context, identity domain.Identifier) ([]byte, error)
}

// Loader turns raw source into a build result with its dependency requests.
type Loader interface {
	// Build parses the source. Syntax or transform failures wrap domain.ErrModuleBuild.
	Build(ctx context.Context, identity domain.Identifier, source []byte) (*domain.BuildResult, error)
}
