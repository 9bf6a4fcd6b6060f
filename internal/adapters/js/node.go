package js

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pack/internal/adapters/fs"
	"go.trai.ch/pack/internal/core/ports"
)

const (
	// LoaderNodeID is the unique identifier for the loader Graft node.
	LoaderNodeID graft.ID = "adapter.js.loader"
	// GeneratorNodeID is the unique identifier for the code generator Graft node.
	GeneratorNodeID graft.ID = "adapter.js.generator"
)

func init() {
	graft.Register(graft.Node[ports.Loader]{
		ID:        LoaderNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Loader, error) {
			return NewLoader(), nil
		},
	})

	graft.Register(graft.Node[ports.CodeGenerator]{
		ID:        GeneratorNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.HasherNodeID},
		Run: func(ctx context.Context) (ports.CodeGenerator, error) {
			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewGenerator(hasher), nil
		},
	})
}
