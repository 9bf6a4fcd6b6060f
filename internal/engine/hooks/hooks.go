// Package hooks provides the typed callback slots a compilation invokes at
// fixed points of its pipeline.
package hooks

import (
	"context"
	"sync"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/zerr"
)

// Callback observes or mutates the value passed to a slot.
// Returning an error aborts the compilation run.
type Callback[T any] func(ctx context.Context, v T) error

type tap[T any] struct {
	name string
	fn   Callback[T]
}

// Slot is an ordered list of callbacks for one lifecycle point.
type Slot[T any] struct {
	name string

	mu   sync.RWMutex
	taps []tap[T]
}

// NewSlot creates an empty slot.
func NewSlot[T any](name string) *Slot[T] {
	return &Slot[T]{name: name}
}

// Name returns the name of the lifecycle point.
func (s *Slot[T]) Name() string {
	return s.name
}

// Tap registers fn under the given plugin name.
func (s *Slot[T]) Tap(name string, fn Callback[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taps = append(s.taps, tap[T]{name: name, fn: fn})
}

// Len returns the number of registered callbacks.
func (s *Slot[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.taps)
}

// Call invokes every callback in registration order and stops at the first error.
func (s *Slot[T]) Call(ctx context.Context, v T) error {
	s.mu.RLock()
	taps := s.taps
	s.mu.RUnlock()

	for _, t := range taps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.fn(ctx, v); err != nil {
			return zerr.With(zerr.With(zerr.Wrap(err, domain.ErrHookFailed.Error()), "hook", s.name), "plugin", t.name)
		}
	}
	return nil
}

// ModuleDependencies is passed after the dependencies of a module were processed.
type ModuleDependencies struct {
	Module *domain.Module
	Edges  []domain.DependencyEdge
}

// Hooks are the extension points of a compiler.
type Hooks struct {
	// ModuleAdded fires once a module is registered in the graph.
	ModuleAdded *Slot[*domain.Module]
	// DependenciesProcessed fires once every request of a built module is resolved.
	DependenciesProcessed *Slot[ModuleDependencies]
	// FinishModules fires at the barrier, when the module graph is closed.
	FinishModules *Slot[*domain.ModuleGraph]
	// AfterChunks fires once chunks and chunk groups are assembled.
	// Chunk ids are not assigned yet.
	AfterChunks *Slot[*domain.ChunkGraph]
	// AfterHash fires once chunk ids and content hashes are final.
	AfterHash *Slot[*domain.ChunkGraph]
}

// New creates hooks with empty slots.
func New() *Hooks {
	return &Hooks{
		ModuleAdded:           NewSlot[*domain.Module]("moduleAdded"),
		DependenciesProcessed: NewSlot[ModuleDependencies]("dependenciesProcessed"),
		FinishModules:         NewSlot[*domain.ModuleGraph]("finishModules"),
		AfterChunks:           NewSlot[*domain.ChunkGraph]("afterChunks"),
		AfterHash:             NewSlot[*domain.ChunkGraph]("afterHash"),
	}
}
