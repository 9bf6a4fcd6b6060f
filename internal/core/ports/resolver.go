package ports

import (
	"context"

	"go.trai.ch/pack/internal/core/domain"
)

// Resolver maps a request issued from a directory to a module identity.
//
//go:generate mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type Resolver interface {
	// Resolve returns the identity of the module the request points to.
	// Failures wrap domain.ErrResolution.
	Resolve(ctx context.Context, request, contextDir string) (domain.Identifier, error)
}
