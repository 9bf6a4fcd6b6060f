package hooks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/engine/hooks"
	"go.trai.ch/zerr"
)

func TestSlot_CallsInRegistrationOrder(t *testing.T) {
	t.Parallel()

	s := hooks.NewSlot[int]("test")
	var calls []string
	s.Tap("first", func(_ context.Context, v int) error {
		calls = append(calls, "first")
		assert.Equal(t, 7, v)
		return nil
	})
	s.Tap("second", func(_ context.Context, _ int) error {
		calls = append(calls, "second")
		return nil
	})

	require.NoError(t, s.Call(context.Background(), 7))
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "test", s.Name())
}

func TestSlot_StopsAtFirstError(t *testing.T) {
	t.Parallel()

	s := hooks.NewSlot[string]("afterHash")
	boom := errors.New("boom")
	called := false
	s.Tap("broken", func(context.Context, string) error { return boom })
	s.Tap("never", func(context.Context, string) error {
		called = true
		return nil
	})

	err := s.Call(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrHookFailed.Error())
	assert.False(t, called)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	meta := zErr.Metadata()
	assert.Equal(t, "afterHash", meta["hook"])
	assert.Equal(t, "broken", meta["plugin"])
}

func TestSlot_CancelledContext(t *testing.T) {
	t.Parallel()

	s := hooks.NewSlot[int]("test")
	s.Tap("p", func(context.Context, int) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Call(ctx, 1), context.Canceled)
}

func TestNew_AllSlotsEmpty(t *testing.T) {
	t.Parallel()

	h := hooks.New()
	assert.Zero(t, h.ModuleAdded.Len())
	assert.Zero(t, h.DependenciesProcessed.Len())
	assert.Zero(t, h.FinishModules.Len())
	assert.Zero(t, h.AfterChunks.Len())
	assert.Zero(t, h.AfterHash.Len())
}
