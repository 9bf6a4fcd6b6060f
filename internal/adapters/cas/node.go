package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pack/internal/core/ports"
)

// NodeID is the unique identifier for the asset emitter Graft node.
const NodeID graft.ID = "adapter.asset_emitter"

func init() {
	graft.Register(graft.Node[ports.AssetEmitter]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.AssetEmitter, error) {
			return NewEmitter(), nil
		},
	})
}
