package domain

import (
	"context"
	"sync"

	"go.trai.ch/zerr"
)

// PendingEntrypoint is the handle returned when an entry is enqueued.
// It resolves to the entry's ChunkGroup once chunk assembly finished.
type PendingEntrypoint struct {
	Name    string
	Request string
	Context string

	once  sync.Once
	done  chan struct{}
	group *ChunkGroup
	err   error
}

// NewPendingEntrypoint validates the request and returns an unresolved handle.
func NewPendingEntrypoint(name, request, contextDir string) (*PendingEntrypoint, error) {
	if request == "" {
		return nil, zerr.With(ErrEmptyRequest, "entry", name)
	}
	return &PendingEntrypoint{
		Name:    name,
		Request: request,
		Context: contextDir,
		done:    make(chan struct{}),
	}, nil
}

// Resolve fills the handle. Only the first call has an effect.
func (p *PendingEntrypoint) Resolve(group *ChunkGroup, err error) {
	p.once.Do(func() {
		p.group = group
		p.err = err
		close(p.done)
	})
}

// Done is closed once the handle is resolved.
func (p *PendingEntrypoint) Done() <-chan struct{} {
	return p.done
}

// ChunkGroup returns the resolved group without blocking.
func (p *PendingEntrypoint) ChunkGroup() (*ChunkGroup, bool) {
	select {
	case <-p.done:
		return p.group, p.group != nil
	default:
		return nil, false
	}
}

// Wait blocks until the handle is resolved or ctx is done.
func (p *PendingEntrypoint) Wait(ctx context.Context) (*ChunkGroup, error) {
	select {
	case <-p.done:
		return p.group, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
