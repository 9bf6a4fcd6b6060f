package progrock_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/adapters/telemetry/progrock"
)

func TestRecorder_Record(t *testing.T) {
	recorder := progrock.New()

	ctx := context.Background()
	_, built := recorder.Record(ctx, "/p/a.js")
	n, err := built.Stdout().Write([]byte("building\n"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	built.Complete(nil)

	_, cached := recorder.Record(ctx, "/p/b.js")
	cached.Cached()
	cached.Complete(nil)

	_, failed := recorder.Record(ctx, "/p/c.js")
	failed.Complete(errors.New("syntax error"))

	assert.Equal(t, []progrock.VertexState{
		{Name: "/p/a.js", Status: progrock.StatusBuilt},
		{Name: "/p/b.js", Status: progrock.StatusCached},
		{Name: "/p/c.js", Status: progrock.StatusFailed, Error: "syntax error"},
	}, withoutDurations(t, recorder.Board().Vertices()))

	var out bytes.Buffer
	require.NoError(t, recorder.WriteSummary(&out, "/p"))
	assert.Contains(t, out.String(), "a.js")
	assert.Contains(t, out.String(), "b.js cached")
	assert.Contains(t, out.String(), "c.js syntax error")
	assert.NotContains(t, out.String(), "/p/")
	assert.Contains(t, out.String(), "3 modules: 1 built, 1 cached, 1 failed")

	require.NoError(t, recorder.Close())
}

func withoutDurations(t *testing.T, vs []progrock.VertexState) []progrock.VertexState {
	t.Helper()
	for i := range vs {
		assert.GreaterOrEqual(t, vs[i].Duration, time.Duration(0))
		vs[i].Duration = 0
	}
	return vs
}

func TestBoard_RecordingAgainReplacesState(t *testing.T) {
	t.Parallel()

	recorder := progrock.New()
	ctx := context.Background()

	_, first := recorder.Record(ctx, "/p/a.js")
	first.Complete(errors.New("broken"))
	_, second := recorder.Record(ctx, "/p/a.js")
	second.Cached()
	second.Complete(nil)

	vs := recorder.Board().Vertices()
	require.Len(t, vs, 1)
	assert.Equal(t, progrock.StatusCached, vs[0].Status)
	assert.Empty(t, vs[0].Error)
}

func TestBoard_EmptySummary(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, progrock.NewBoard().WriteSummary(&out, ""))
	assert.Empty(t, out.String())
}
