package metrics

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/pack/internal/core/ports"
)

const (
	// RegistryNodeID is the unique identifier for the Prometheus registry Graft node.
	RegistryNodeID graft.ID = "adapter.metrics.registry"
	// NodeID is the unique identifier for the cache metrics Graft node.
	NodeID graft.ID = "adapter.metrics"
)

func init() {
	graft.Register(graft.Node[*prometheus.Registry]{
		ID:        RegistryNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*prometheus.Registry, error) {
			return prometheus.NewRegistry(), nil
		},
	})

	graft.Register(graft.Node[ports.CacheMetrics]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{RegistryNodeID},
		Run: func(ctx context.Context) (ports.CacheMetrics, error) {
			reg, err := graft.Dep[*prometheus.Registry](ctx)
			if err != nil {
				return nil, err
			}
			return NewCacheMetrics(reg), nil
		},
	})
}
