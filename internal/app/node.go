package app

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/pack/internal/adapters/cachestore"         //nolint:depguard // Wired in app layer
	"go.trai.ch/pack/internal/adapters/cas"                //nolint:depguard // Wired in app layer
	"go.trai.ch/pack/internal/adapters/config"             //nolint:depguard // Wired in app layer
	"go.trai.ch/pack/internal/adapters/fs"                 //nolint:depguard // Wired in app layer
	"go.trai.ch/pack/internal/adapters/js"                 //nolint:depguard // Wired in app layer
	"go.trai.ch/pack/internal/adapters/logger"             //nolint:depguard // Wired in app layer
	"go.trai.ch/pack/internal/adapters/metrics"            //nolint:depguard // Wired in app layer
	"go.trai.ch/pack/internal/adapters/telemetry"          //nolint:depguard // Wired in app layer
	"go.trai.ch/pack/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in app layer
	"go.trai.ch/pack/internal/adapters/watcher"            //nolint:depguard // Wired in app layer
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/pack/internal/engine/scheduler"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			cachestore.NodeID,
			metrics.NodeID,
			metrics.RegistryNodeID,
			scheduler.NodeID,
			js.GeneratorNodeID,
			fs.HasherNodeID,
			cas.NodeID,
			watcher.NodeID,
			telemetry.TracerNodeID,
			progrock.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			progrock.NodeID,
		},
		Run: runComponentsNode,
	})
}

//nolint:cyclop // one lookup per dependency
func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}
	opener, err := graft.Dep[ports.CacheStoreOpener](ctx)
	if err != nil {
		return nil, err
	}
	cacheMetrics, err := graft.Dep[ports.CacheMetrics](ctx)
	if err != nil {
		return nil, err
	}
	registry, err := graft.Dep[*prometheus.Registry](ctx)
	if err != nil {
		return nil, err
	}
	schedulers, err := graft.Dep[*scheduler.Factory](ctx)
	if err != nil {
		return nil, err
	}
	generator, err := graft.Dep[ports.CodeGenerator](ctx)
	if err != nil {
		return nil, err
	}
	hasher, err := graft.Dep[ports.Hasher](ctx)
	if err != nil {
		return nil, err
	}
	emitter, err := graft.Dep[ports.AssetEmitter](ctx)
	if err != nil {
		return nil, err
	}
	w, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	rec, err := graft.Dep[ports.Telemetry](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, opener, cacheMetrics, registry, schedulers, generator, hasher, emitter, w, tracer, rec, log), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	a, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	rec, err := graft.Dep[ports.Telemetry](ctx)
	if err != nil {
		return nil, err
	}
	return &Components{App: a, Logger: log, Telemetry: rec}, nil
}
