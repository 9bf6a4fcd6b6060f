package ports

import (
	"context"
	"io"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
}

// Span represents a unit of work.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	// Phase marks spans that represent a compilation phase.
	Phase bool
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)

// WithPhase marks the span as a compilation phase.
func WithPhase() SpanOption {
	return func(c *SpanConfig) {
		c.Phase = true
	}
}

// Telemetry records per-module progress vertices.
type Telemetry interface {
	// Record starts a vertex with the given name.
	Record(ctx context.Context, name string) (context.Context, Vertex)
	// Close flushes the recording.
	Close() error
}

// Vertex is one recorded unit of progress.
type Vertex interface {
	// Stdout returns a writer for log output of the vertex.
	Stdout() io.Writer
	// Complete marks the vertex as finished.
	Complete(err error)
	// Cached marks the vertex as served from cache.
	Cached()
}
