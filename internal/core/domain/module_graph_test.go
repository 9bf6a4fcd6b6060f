package domain_test

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/core/domain"
)

func addModules(t *testing.T, g *domain.ModuleGraph, names ...string) []domain.ModuleID {
	t.Helper()
	ids := make([]domain.ModuleID, len(names))
	for i, name := range names {
		id, created := g.AddModule(domain.NewIdentifier(name))
		require.True(t, created)
		ids[i] = id
	}
	return ids
}

func TestModuleGraph_AddModuleDedupesIdentity(t *testing.T) {
	t.Parallel()

	g := domain.NewModuleGraph()
	a, created := g.AddModule(domain.NewIdentifier("/a.js"))
	require.True(t, created)

	again, created := g.AddModule(domain.NewIdentifier("/a.js"))
	assert.False(t, created)
	assert.Equal(t, a, again)
	assert.Equal(t, 1, g.Len())

	m, ok := g.Module(a)
	require.True(t, ok)
	assert.Equal(t, domain.StatePending, m.State)
	assert.Equal(t, "/a.js", m.Identity.String())
}

func TestModuleGraph_ConcurrentRegistration(t *testing.T) {
	t.Parallel()

	g := domain.NewModuleGraph()
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.AddModule(domain.NewIdentifier("/shared.js")); ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, g.Len())
}

func TestModuleGraph_EdgesAndIssuers(t *testing.T) {
	t.Parallel()

	g := domain.NewModuleGraph()
	ids := addModules(t, g, "/a.js", "/b.js", "/c.js")
	a, b, c := ids[0], ids[1], ids[2]

	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: a, To: b, Request: "./b", Type: domain.DepEsmImport}))
	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: c, To: b, Request: "./b", Type: domain.DepCjsRequire}))
	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: b, To: a, Request: "./a", Type: domain.DepEsmImport}))
	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: a, To: domain.MissingModule, Request: "./nope"}))

	assert.Equal(t, []domain.ModuleID{a, c}, g.Issuers(b))
	assert.Equal(t, []domain.ModuleID{b}, g.Issuers(a))
	assert.Len(t, g.Edges(a), 2)
	assert.Len(t, g.IncomingEdges(b), 2)
	require.NoError(t, g.Validate())

	err := g.AddEdge(domain.DependencyEdge{From: a, To: domain.ModuleID(99), Request: "./ghost"})
	require.ErrorContains(t, err, domain.ErrGraphInvariant.Error())
}

func TestModuleGraph_ReplaceEdges(t *testing.T) {
	t.Parallel()

	g := domain.NewModuleGraph()
	ids := addModules(t, g, "/a.js", "/b.js", "/c.js")
	a, b, c := ids[0], ids[1], ids[2]

	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: a, To: b, Request: "./b"}))
	require.NoError(t, g.ReplaceEdges(a, []domain.DependencyEdge{{From: a, To: c, Request: "./c"}}))

	assert.Empty(t, g.Issuers(b))
	assert.Equal(t, []domain.ModuleID{a}, g.Issuers(c))

	err := g.ReplaceEdges(a, []domain.DependencyEdge{{From: b, To: c}})
	require.ErrorContains(t, err, domain.ErrGraphInvariant.Error())
}

func TestModuleGraph_RemoveModule(t *testing.T) {
	t.Parallel()

	g := domain.NewModuleGraph()
	ids := addModules(t, g, "/a.js", "/b.js", "/c.js")
	a, b, c := ids[0], ids[1], ids[2]

	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: a, To: b, Request: "./b"}))
	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: a, To: c, Request: "./c"}))
	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: b, To: c, Request: "./c"}))

	removed := g.RemoveModule(b)
	require.Len(t, removed, 1)
	assert.Equal(t, "./b", removed[0].Request)

	_, ok := g.Module(b)
	assert.False(t, ok)
	_, ok = g.Lookup(domain.NewIdentifier("/b.js"))
	assert.False(t, ok)
	assert.Equal(t, []domain.ModuleID{a}, g.Issuers(c))
	assert.Len(t, g.Edges(a), 1)
	require.NoError(t, g.Validate())

	var live []string
	for m := range g.Modules() {
		live = append(live, m.Identity.String())
	}
	assert.Equal(t, []string{"/a.js", "/c.js"}, live)

	again, created := g.AddModule(domain.NewIdentifier("/b.js"))
	assert.True(t, created)
	assert.NotEqual(t, b, again, "ids are never reused")
}

func TestModuleGraph_Reachable(t *testing.T) {
	t.Parallel()

	g := domain.NewModuleGraph()
	ids := addModules(t, g, "/a.js", "/b.js", "/c.js", "/orphan.js")
	a, b, c := ids[0], ids[1], ids[2]

	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: a, To: b}))
	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: b, To: c}))
	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: c, To: a}))

	reach := g.Reachable([]domain.ModuleID{a})
	got := make([]domain.ModuleID, 0, len(reach))
	for id := range reach {
		got = append(got, id)
	}
	slices.Sort(got)
	assert.Equal(t, []domain.ModuleID{a, b, c}, got)
}

func TestModuleGraph_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	g := domain.NewModuleGraph()
	ids := addModules(t, g, "/a.js", "/b.js")
	require.NoError(t, g.AddEdge(domain.DependencyEdge{From: ids[0], To: ids[1]}))

	c := g.Clone()
	c.RemoveModule(ids[1])
	m, ok := c.Module(ids[0])
	require.True(t, ok)
	m.State = domain.StateFailed

	orig, ok := g.Module(ids[0])
	require.True(t, ok)
	assert.Equal(t, domain.StatePending, orig.State)
	assert.Len(t, g.Edges(ids[0]), 1)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 1, c.Len())
}
