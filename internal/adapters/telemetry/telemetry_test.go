package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/adapters/telemetry"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/pack/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestInterfaceSatisfaction(_ *testing.T) {
	var _ ports.Tracer = (*telemetry.OTelTracer)(nil)
	var _ ports.Span = (*telemetry.OTelSpan)(nil)
	var _ ports.Tracer = (*telemetry.NoOpTracer)(nil)
	var _ ports.Span = (*telemetry.NoOpSpan)(nil)
}

func TestOTelTracer_Start(t *testing.T) {
	tracer := telemetry.NewOTelTracer("test-tracer")
	assert.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test-span")
	assert.NotNil(t, span)

	span.SetAttribute("key", "value")
	span.SetAttribute("count", 3)
	span.SetAttribute("other", struct{}{})
	span.RecordError(nil)
	n, err := span.Write([]byte("test log"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	span.End()
	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNoOpTracer_Start(t *testing.T) {
	tracer := telemetry.NewNoOpTracer()

	_, span := tracer.Start(context.Background(), "test-span")
	assert.NotNil(t, span)

	span.SetAttribute("key", "value")
	span.RecordError(errors.New("boom"))
	n, err := span.Write([]byte("test log"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	span.End()
}

func TestBridge_LogsPhaseSpans(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)

	logger.EXPECT().Info(gomock.Regex(`^create chunks: \d+ ms$`)).Times(1)
	logger.EXPECT().Warn(gomock.Regex(`^hashing failed after \d+ ms$`)).Times(1)

	tracer := telemetry.NewProviderTracer("test", telemetry.NewBridge(logger))
	ctx := context.Background()

	_, phase := tracer.Start(ctx, "create chunks", ports.WithPhase())
	phase.End()

	_, failed := tracer.Start(ctx, "hashing", ports.WithPhase())
	failed.RecordError(errors.New("boom"))
	failed.End()

	_, plain := tracer.Start(ctx, "module build")
	plain.End()

	require.NoError(t, tracer.Shutdown(ctx))
}

func TestBridge_NilLogger(t *testing.T) {
	tracer := telemetry.NewProviderTracer("test", telemetry.NewBridge(nil))
	_, span := tracer.Start(context.Background(), "create chunks", ports.WithPhase())
	span.End()
	require.NoError(t, tracer.Shutdown(context.Background()))
}
