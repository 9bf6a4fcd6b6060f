package ports

import (
	"context"

	"go.trai.ch/pack/internal/core/domain"
)

// CodeGenerator renders modules and chunks to executable code.
//
//go:generate mockgen -source=generator.go -destination=mocks/mock_generator.go -package=mocks
type CodeGenerator interface {
	// Generate produces the code of one module for one runtime.
	Generate(ctx context.Context, in domain.CodegenInput) (domain.CodegenResult, error)
	// RenderChunk produces the asset content of one chunk.
	RenderChunk(ctx context.Context, in domain.ChunkRenderInput) ([]byte, error)
}
