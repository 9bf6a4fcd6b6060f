// Package progrock records per-module build progress with Progrock.
package progrock

import (
	"context"
	"io"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/pack/internal/core/ports"
)

var _ ports.Telemetry = (*Recorder)(nil)

// Recorder implements the ports.Telemetry interface using the vito/progrock library.
type Recorder struct {
	w     progrock.Writer
	rec   *progrock.Recorder
	board *Board
}

// New creates a new Recorder writing to a Board.
func New() *Recorder {
	return NewRecorder(nil)
}

// NewRecorder creates a new Recorder. Updates always reach the Recorder's
// Board, and also w when it is not nil.
func NewRecorder(w progrock.Writer) *Recorder {
	board := NewBoard()
	var out progrock.Writer = board
	if w != nil {
		out = progrock.MultiWriter{board, w}
	}
	return &Recorder{
		w:     out,
		rec:   progrock.NewRecorder(out),
		board: board,
	}
}

// Board returns the per-module states recorded so far.
func (r *Recorder) Board() *Board {
	return r.board
}

// WriteSummary renders the recorded module states to w.
func (r *Recorder) WriteSummary(w io.Writer, root string) error {
	return r.board.WriteSummary(w, root)
}

// Record starts a vertex for name. Vertices are keyed by the digest of the
// name so rebuilding the same module updates its existing vertex.
func (r *Recorder) Record(ctx context.Context, name string) (context.Context, ports.Vertex) {
	v := r.rec.Vertex(digest.FromString(name), name)
	return ctx, &Vertex{vertex: v}
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	return r.w.Close()
}
