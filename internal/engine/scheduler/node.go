package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pack/internal/adapters/fs"                 //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pack/internal/adapters/js"                 //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pack/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pack/internal/core/ports"
)

// NodeID is the unique identifier for the scheduler factory Graft node.
const NodeID graft.ID = "engine.scheduler"

// Factory creates schedulers for a resolver. The resolver depends on the
// loaded configuration, everything else is shared by the process.
type Factory struct {
	reader    ports.SourceReader
	loader    ports.Loader
	hasher    ports.Hasher
	telemetry ports.Telemetry
}

// NewFactory creates a Factory sharing the given adapters.
func NewFactory(reader ports.SourceReader, loader ports.Loader, hasher ports.Hasher, telemetry ports.Telemetry) *Factory {
	return &Factory{reader: reader, loader: loader, hasher: hasher, telemetry: telemetry}
}

// New creates a Scheduler resolving requests with resolver.
func (f *Factory) New(resolver ports.Resolver) *Scheduler {
	return NewScheduler(resolver, f.reader, f.loader, f.hasher, f.telemetry)
}

func init() {
	graft.Register(graft.Node[*Factory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			fs.ReaderNodeID,
			js.LoaderNodeID,
			fs.HasherNodeID,
			progrock.NodeID,
		},
		Run: func(ctx context.Context) (*Factory, error) {
			reader, err := graft.Dep[ports.SourceReader](ctx)
			if err != nil {
				return nil, err
			}

			loader, err := graft.Dep[ports.Loader](ctx)
			if err != nil {
				return nil, err
			}

			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}

			telemetry, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}

			return NewFactory(reader, loader, hasher, telemetry), nil
		},
	})
}
