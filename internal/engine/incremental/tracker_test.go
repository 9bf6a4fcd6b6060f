package incremental_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/engine/incremental"
	"go.trai.ch/pack/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// newGraph builds:
//
//	/src/a.js --sync--> /src/b.js --missing--> ./x
//	/src/a.js --async-> /src/lazy/c.js
func newGraph(t *testing.T) (*domain.ModuleGraph, map[string]scheduler.EntryResult) {
	t.Helper()
	g := domain.NewModuleGraph()
	a, _ := g.AddModule(domain.NewIdentifier("/src/a.js"))
	b, _ := g.AddModule(domain.NewIdentifier("/src/b.js"))
	c, _ := g.AddModule(domain.NewIdentifier("/src/lazy/c.js"))

	require.NoError(t, g.ReplaceEdges(a, []domain.DependencyEdge{
		{From: a, To: b, Request: "./b", Type: domain.DepEsmImport},
		{From: a, To: c, Request: "./lazy/c", Type: domain.DepDynamicImport},
	}))
	require.NoError(t, g.ReplaceEdges(b, []domain.DependencyEdge{
		{From: b, To: domain.MissingModule, Request: "./x", Type: domain.DepCjsRequire, Err: domain.ErrResolution},
	}))
	return g, map[string]scheduler.EntryResult{"main": {Module: a}}
}

func TestApply_ChangedModule(t *testing.T) {
	t.Parallel()

	g, entries := newGraph(t)
	plan := incremental.Apply(g, incremental.Update{Changed: []string{"/src/b.js"}, Entries: entries})

	assert.Equal(t, []domain.ModuleID{1}, plan.Rebuild)
	assert.Equal(t, []scheduler.Refactorize{
		{From: 0, Request: domain.DependencyRequest{Request: "./b", Type: domain.DepEsmImport}},
	}, plan.Refactorize)
	assert.Empty(t, plan.Entries)
	assert.Empty(t, plan.Invalidate)
	assert.Equal(t, 3, g.Len())
}

func TestApply_ChangedEntryModule(t *testing.T) {
	t.Parallel()

	g, entries := newGraph(t)
	plan := incremental.Apply(g, incremental.Update{Changed: []string{"/src/a.js", "/src/a.js"}, Entries: entries})

	assert.Equal(t, []domain.ModuleID{0}, plan.Rebuild)
	assert.Empty(t, plan.Refactorize)
	assert.Equal(t, []string{"main"}, plan.Entries)
}

func TestApply_RemovedModule(t *testing.T) {
	t.Parallel()

	g, entries := newGraph(t)
	plan := incremental.Apply(g, incremental.Update{Removed: []string{"/src/lazy/c.js"}, Entries: entries})

	assert.Empty(t, plan.Rebuild)
	assert.Equal(t, []scheduler.Refactorize{
		{From: 0, Request: domain.DependencyRequest{Request: "./lazy/c", Type: domain.DepDynamicImport}},
	}, plan.Refactorize)
	assert.Equal(t, []domain.Identifier{domain.NewIdentifier("/src/lazy/c.js")}, plan.Pruned)
	assert.Equal(t, []string{"/src/lazy", "/src/lazy/c.js"}, plan.Invalidate)

	assert.Equal(t, 2, g.Len())
	_, ok := g.Lookup(domain.NewIdentifier("/src/lazy/c.js"))
	assert.False(t, ok)
	require.NoError(t, g.Validate())
}

func TestApply_RemovedDirectoryPrunesEverythingUnder(t *testing.T) {
	t.Parallel()

	g, entries := newGraph(t)
	plan := incremental.Apply(g, incremental.Update{Removed: []string{"/src/"}, Entries: entries})

	assert.Equal(t, 0, g.Len())
	assert.Len(t, plan.Pruned, 3)
	assert.Empty(t, plan.Refactorize)
	assert.Equal(t, []string{"main"}, plan.Entries)
}

func TestApply_ChangedThenRemovedIsNotRebuilt(t *testing.T) {
	t.Parallel()

	g, entries := newGraph(t)
	plan := incremental.Apply(g, incremental.Update{
		Changed: []string{"/src/b.js"},
		Removed: []string{"/src/b.js"},
		Entries: entries,
	})

	assert.Empty(t, plan.Rebuild)
	assert.Len(t, plan.Refactorize, 1)
	assert.Equal(t, []domain.Identifier{domain.NewIdentifier("/src/b.js")}, plan.Pruned)
}

func TestApply_NewFileRetriesMissingRequests(t *testing.T) {
	t.Parallel()

	g, entries := newGraph(t)
	entries["broken"] = scheduler.EntryResult{Module: domain.MissingModule, Err: zerr.With(domain.ErrResolution, "request", "./nope")}

	plan := incremental.Apply(g, incremental.Update{Changed: []string{"/src/x.js"}, Entries: entries})

	assert.Empty(t, plan.Rebuild)
	assert.Equal(t, []scheduler.Refactorize{
		{From: 1, Request: domain.DependencyRequest{Request: "./x", Type: domain.DepCjsRequire}},
	}, plan.Refactorize)
	assert.Equal(t, []string{"broken"}, plan.Entries)
	assert.Empty(t, plan.Invalidate)
	assert.False(t, plan.Empty())
}

func TestApply_EmptyUpdate(t *testing.T) {
	t.Parallel()

	g, entries := newGraph(t)
	plan := incremental.Apply(g, incremental.Update{Entries: entries})

	assert.True(t, plan.Empty())
	assert.Empty(t, plan.Invalidate)
	assert.Equal(t, 3, g.Len())
}

func TestApply_UnknownPathWithoutMissingRequests(t *testing.T) {
	t.Parallel()

	g := domain.NewModuleGraph()
	a, _ := g.AddModule(domain.NewIdentifier("/src/a.js"))

	plan := incremental.Apply(g, incremental.Update{
		Changed: []string{"/elsewhere/readme.md", "/src/a"},
		Entries: map[string]scheduler.EntryResult{"main": {Module: a}},
	})

	assert.True(t, plan.Empty())
	assert.Empty(t, plan.Invalidate)
}

func TestCollect(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	orphan, _ := g.AddModule(domain.NewIdentifier("/src/orphan.js"))
	require.NoError(t, g.ReplaceEdges(orphan, []domain.DependencyEdge{
		{From: orphan, To: 1, Request: "./b", Type: domain.DepEsmImport},
	}))

	removed := incremental.Collect(g, []domain.ModuleID{0})

	assert.Equal(t, []domain.Identifier{domain.NewIdentifier("/src/orphan.js")}, removed)
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []domain.ModuleID{0}, g.Issuers(1))
	require.NoError(t, g.Validate())
}
