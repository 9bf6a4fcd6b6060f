package chunkgraph_test

import (
	"regexp"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/engine/chunkgraph"
)

type edge struct {
	from, kind, to string
}

// newGraph registers the modules in name order and links them.
func newGraph(t *testing.T, sizes map[string]int, edges ...edge) *domain.ModuleGraph {
	t.Helper()
	g := domain.NewModuleGraph()
	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		id, _ := g.AddModule(domain.NewIdentifier(name))
		m, _ := g.Module(id)
		m.State = domain.StateBuilt
		m.Build = &domain.BuildResult{Size: sizes[name]}
	}

	out := make(map[domain.ModuleID][]domain.DependencyEdge)
	for _, e := range edges {
		from := id(t, g, e.from)
		de := domain.DependencyEdge{From: from, Request: e.to}
		switch e.kind {
		case "sync":
			de.Type = domain.DepEsmImport
		case "async":
			de.Type = domain.DepDynamicImport
		case "weak":
			de.Type = domain.DepRequireResolve
		case "missing":
			de.Type = domain.DepCjsRequire
		}
		if e.kind == "missing" {
			de.To = domain.MissingModule
		} else {
			de.To = id(t, g, e.to)
		}
		out[from] = append(out[from], de)
	}
	for from, es := range out {
		require.NoError(t, g.ReplaceEdges(from, es))
	}
	return g
}

func id(t *testing.T, g *domain.ModuleGraph, name string) domain.ModuleID {
	t.Helper()
	mid, ok := g.Lookup(domain.NewIdentifier(name))
	require.True(t, ok, name)
	return mid
}

func modules(t *testing.T, g *domain.ModuleGraph, cg *domain.ChunkGraph, ukey domain.ChunkUkey) []string {
	t.Helper()
	c, ok := cg.Chunk(ukey)
	require.True(t, ok)
	out := make([]string, 0, len(c.Modules))
	for _, mid := range c.Modules {
		m, _ := g.Module(mid)
		out = append(out, m.Identity.String())
	}
	return out
}

func chunkByName(t *testing.T, cg *domain.ChunkGraph, name string) *domain.Chunk {
	t.Helper()
	for c := range cg.Chunks() {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "chunk not found", "%q", name)
	return nil
}

func TestBuild_EntrypointsAndSharedAsyncBoundary(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 10, "/b.js": 20, "/c.js": 30, "/d.js": 40},
		edge{"/a.js", "sync", "/b.js"},
		edge{"/a.js", "async", "/c.js"},
		edge{"/d.js", "sync", "/b.js"},
		edge{"/d.js", "async", "/c.js"},
	)
	cg, warnings := chunkgraph.Build(g, []chunkgraph.Entry{
		{Name: "main", Module: id(t, g, "/a.js")},
		{Name: "other", Module: id(t, g, "/d.js")},
	}, chunkgraph.Options{})
	require.Empty(t, warnings)

	eps := cg.Entrypoints()
	require.Len(t, eps, 2)
	assert.Equal(t, "main", eps[0].Name)
	assert.Equal(t, "other", eps[1].Name)

	assert.Equal(t, []string{"/a.js", "/b.js"}, modules(t, g, cg, 0))
	assert.Equal(t, []string{"/b.js", "/d.js"}, modules(t, g, cg, 1))
	assert.Equal(t, []string{"/c.js"}, modules(t, g, cg, 2))

	async, ok := cg.Group(2)
	require.True(t, ok)
	assert.Equal(t, domain.GroupAsync, async.Kind)
	assert.Equal(t, []domain.GroupUkey{0, 1}, async.Parents)
	assert.Equal(t, "main|other", async.Runtime)

	c0, _ := cg.Chunk(0)
	assert.True(t, c0.HostsRuntime)
	assert.Equal(t, "main", c0.Runtime)
	assert.Equal(t, 30, c0.Size)
	c2, _ := cg.Chunk(2)
	assert.False(t, c2.HostsRuntime)
	assert.Equal(t, "main|other", c2.Runtime)

	assert.Equal(t, []domain.ChunkUkey{0}, cg.ChunksOfModule(id(t, g, "/a.js")))
	assert.Equal(t, []domain.ChunkUkey{0, 1}, cg.ChunksOfModule(id(t, g, "/b.js")))
}

func TestBuild_AsyncChunkSkipsModulesLoadedByParent(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 1, "/b.js": 1, "/c.js": 1, "/e.js": 1},
		edge{"/a.js", "sync", "/b.js"},
		edge{"/a.js", "async", "/c.js"},
		edge{"/c.js", "sync", "/b.js"},
		edge{"/c.js", "sync", "/e.js"},
	)
	cg, _ := chunkgraph.Build(g, []chunkgraph.Entry{{Name: "main", Module: id(t, g, "/a.js")}}, chunkgraph.Options{})

	assert.Equal(t, []string{"/a.js", "/b.js"}, modules(t, g, cg, 0))
	assert.Equal(t, []string{"/c.js", "/e.js"}, modules(t, g, cg, 1))
}

func TestBuild_CyclesAndIgnoredEdges(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 1, "/b.js": 1, "/c.js": 1, "/d.js": 1, "/w.js": 1},
		edge{"/a.js", "sync", "/b.js"},
		edge{"/b.js", "sync", "/a.js"},
		edge{"/b.js", "weak", "/w.js"},
		edge{"/b.js", "missing", "./gone"},
		edge{"/a.js", "async", "/c.js"},
		edge{"/c.js", "async", "/d.js"},
		edge{"/d.js", "async", "/c.js"},
	)
	cg, _ := chunkgraph.Build(g, []chunkgraph.Entry{{Name: "main", Module: id(t, g, "/a.js")}}, chunkgraph.Options{})

	assert.Equal(t, []string{"/a.js", "/b.js"}, modules(t, g, cg, 0))
	assert.Equal(t, []string{"/c.js"}, modules(t, g, cg, 1))
	assert.Equal(t, []string{"/d.js"}, modules(t, g, cg, 2))
	assert.Empty(t, cg.ChunksOfModule(id(t, g, "/w.js")))

	c, _ := cg.Group(1)
	assert.Equal(t, []domain.GroupUkey{0, 2}, c.Parents)
}

func TestBuild_UnresolvedEntryKeepsEmptyChunk(t *testing.T) {
	t.Parallel()

	g := newGraph(t, map[string]int{"/a.js": 1})
	cg, _ := chunkgraph.Build(g, []chunkgraph.Entry{
		{Name: "broken", Module: domain.MissingModule},
	}, chunkgraph.Options{})

	assert.Empty(t, modules(t, g, cg, 0))
	refs := cg.EntrypointChunks("broken")
	require.Len(t, refs, 1)
	assert.False(t, refs[0].Resolved())
	assert.Equal(t, "null", refs[0].String())
}

func TestBuild_SplitSharedModules(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 10, "/b.js": 20, "/c.js": 30, "/d.js": 40},
		edge{"/a.js", "sync", "/b.js"},
		edge{"/a.js", "async", "/c.js"},
		edge{"/d.js", "sync", "/b.js"},
		edge{"/d.js", "async", "/c.js"},
	)
	cg, warnings := chunkgraph.Build(g, []chunkgraph.Entry{
		{Name: "main", Module: id(t, g, "/a.js")},
		{Name: "other", Module: id(t, g, "/d.js")},
	}, chunkgraph.Options{SplitChunks: domain.SplitChunksOptions{
		Enabled:     true,
		Chunks:      domain.ChunksAll,
		CacheGroups: []domain.CacheGroup{{Key: "default", MinChunks: 2}},
	}})
	require.Empty(t, warnings)

	assert.Equal(t, []string{"/a.js"}, modules(t, g, cg, 0))
	assert.Equal(t, []string{"/d.js"}, modules(t, g, cg, 1))
	assert.Equal(t, []string{"/b.js"}, modules(t, g, cg, 3))

	split, _ := cg.Chunk(3)
	assert.Equal(t, domain.ChunkSplit, split.Kind)
	assert.Equal(t, 20, split.Size)
	assert.Equal(t, "main|other", split.Runtime)

	main, _ := cg.Entrypoint("main")
	assert.Equal(t, []domain.ChunkUkey{3, 0}, main.Chunks)
	other, _ := cg.Entrypoint("other")
	assert.Equal(t, []domain.ChunkUkey{3, 1}, other.Chunks)
	assert.True(t, cg.IsInitial(3))
}

func TestBuild_SplitPriorityThenDeclarationOrder(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 1, "/b.js": 1, "/node_modules/lib.js": 5, "/shared.js": 5},
		edge{"/a.js", "sync", "/node_modules/lib.js"},
		edge{"/a.js", "sync", "/shared.js"},
		edge{"/b.js", "sync", "/node_modules/lib.js"},
		edge{"/b.js", "sync", "/shared.js"},
	)
	entries := []chunkgraph.Entry{
		{Name: "main", Module: id(t, g, "/a.js")},
		{Name: "other", Module: id(t, g, "/b.js")},
	}

	t.Run("priority", func(t *testing.T) {
		t.Parallel()
		cg, _ := chunkgraph.Build(g, entries, chunkgraph.Options{SplitChunks: domain.SplitChunksOptions{
			Enabled:     true,
			Chunks:      domain.ChunksAll,
			CacheGroups: domain.DefaultCacheGroups(),
		}})

		assert.Equal(t, []string{"/node_modules/lib.js"}, modules(t, g, cg, 2))
		assert.Equal(t, []string{"/shared.js"}, modules(t, g, cg, 3))
		main, _ := cg.Entrypoint("main")
		assert.Equal(t, []domain.ChunkUkey{2, 3, 0}, main.Chunks)
	})

	t.Run("declaration order", func(t *testing.T) {
		t.Parallel()
		shared := regexp.MustCompile(`shared`)
		cg, _ := chunkgraph.Build(g, entries, chunkgraph.Options{SplitChunks: domain.SplitChunksOptions{
			Enabled: true,
			Chunks:  domain.ChunksAll,
			CacheGroups: []domain.CacheGroup{
				{Key: "first", Name: "first", Test: shared, MinChunks: 1},
				{Key: "second", Name: "second", Test: shared, MinChunks: 1},
			},
		}})

		first := chunkByName(t, cg, "first")
		assert.Equal(t, []string{"/shared.js"}, modules(t, g, cg, first.Ukey))
		for c := range cg.Chunks() {
			assert.NotEqual(t, "second", c.Name)
		}
	})
}

func TestBuild_SplitHonorsMinSize(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 1, "/b.js": 1, "/shared.js": 5},
		edge{"/a.js", "sync", "/shared.js"},
		edge{"/b.js", "sync", "/shared.js"},
	)
	cg, _ := chunkgraph.Build(g, []chunkgraph.Entry{
		{Name: "main", Module: id(t, g, "/a.js")},
		{Name: "other", Module: id(t, g, "/b.js")},
	}, chunkgraph.Options{SplitChunks: domain.SplitChunksOptions{
		Enabled:     true,
		Chunks:      domain.ChunksAll,
		MinSize:     1000,
		CacheGroups: []domain.CacheGroup{{Key: "default", MinChunks: 2}},
	}})

	assert.Equal(t, 2, cg.ChunkCount())
}

func TestBuild_SplitAsyncFilterIgnoresInitialChunks(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 1, "/b.js": 1, "/shared.js": 5},
		edge{"/a.js", "sync", "/shared.js"},
		edge{"/b.js", "sync", "/shared.js"},
	)
	cg, _ := chunkgraph.Build(g, []chunkgraph.Entry{
		{Name: "main", Module: id(t, g, "/a.js")},
		{Name: "other", Module: id(t, g, "/b.js")},
	}, chunkgraph.Options{SplitChunks: domain.SplitChunksOptions{
		Enabled:     true,
		CacheGroups: []domain.CacheGroup{{Key: "default", MinChunks: 2}},
	}})

	assert.Equal(t, 2, cg.ChunkCount())
}

func TestBuild_MaxSize(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 1, "/node_modules/x1.js": 100, "/node_modules/x2.js": 100, "/node_modules/x3.js": 300},
		edge{"/a.js", "sync", "/node_modules/x1.js"},
		edge{"/a.js", "sync", "/node_modules/x2.js"},
		edge{"/a.js", "sync", "/node_modules/x3.js"},
	)
	cg, warnings := chunkgraph.Build(g, []chunkgraph.Entry{{Name: "main", Module: id(t, g, "/a.js")}},
		chunkgraph.Options{SplitChunks: domain.SplitChunksOptions{
			Enabled: true,
			Chunks:  domain.ChunksAll,
			CacheGroups: []domain.CacheGroup{{
				Key:       "vendors",
				Name:      "vendors",
				Test:      regexp.MustCompile(`node_modules`),
				MinChunks: 1,
				MaxSize:   150,
			}},
		}})

	require.Len(t, warnings, 1)
	assert.Equal(t, domain.SplitConstraintUnsatisfiable, warnings[0].Kind)
	assert.Equal(t, domain.SeverityWarning, warnings[0].Severity)
	assert.Equal(t, "/node_modules/x3.js", warnings[0].Module.String())

	assert.Equal(t, []string{"/node_modules/x1.js"}, modules(t, g, cg, chunkByName(t, cg, "vendors").Ukey))
	assert.Equal(t, []string{"/node_modules/x2.js"}, modules(t, g, cg, chunkByName(t, cg, "vendors~1").Ukey))
	assert.Equal(t, []string{"/node_modules/x3.js"}, modules(t, g, cg, chunkByName(t, cg, "vendors~2").Ukey))

	for c := range cg.Chunks() {
		if c.Kind == domain.ChunkSplit && len(c.Modules) > 1 {
			assert.LessOrEqual(t, c.Size, 150)
		}
	}
	main, _ := cg.Entrypoint("main")
	assert.Len(t, main.Chunks, 4)
	assert.Equal(t, domain.ChunkUkey(0), main.Chunks[3])
}

func TestBuild_MinSizeAboveMaxSizeWarns(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 1, "/b.js": 1, "/shared.js": 50},
		edge{"/a.js", "sync", "/shared.js"},
		edge{"/b.js", "sync", "/shared.js"},
	)
	cg, warnings := chunkgraph.Build(g, []chunkgraph.Entry{
		{Name: "main", Module: id(t, g, "/a.js")},
		{Name: "other", Module: id(t, g, "/b.js")},
	}, chunkgraph.Options{SplitChunks: domain.SplitChunksOptions{
		Enabled:     true,
		Chunks:      domain.ChunksAll,
		CacheGroups: []domain.CacheGroup{{Key: "default", MinChunks: 2, MinSize: 500, MaxSize: 100}},
	}})

	require.Len(t, warnings, 1)
	assert.ErrorContains(t, warnings[0], domain.ErrSplitConstraintUnsatisfiable.Error())
	assert.Equal(t, 2, cg.ChunkCount())
}

func TestBuild_RuntimeChunk(t *testing.T) {
	t.Parallel()

	g := newGraph(t, map[string]int{"/a.js": 1, "/b.js": 1})
	entries := []chunkgraph.Entry{
		{Name: "main", Module: id(t, g, "/a.js")},
		{Name: "other", Module: id(t, g, "/b.js")},
	}

	t.Run("single", func(t *testing.T) {
		t.Parallel()
		cg, _ := chunkgraph.Build(g, entries, chunkgraph.Options{RuntimeChunk: domain.RuntimeChunkSingle})

		rt := chunkByName(t, cg, chunkgraph.SingleRuntimeName)
		assert.Equal(t, domain.ChunkRuntime, rt.Kind)
		assert.True(t, rt.HostsRuntime)
		assert.Equal(t, "runtime", rt.Runtime)
		for _, ep := range cg.Entrypoints() {
			assert.Equal(t, rt.Ukey, ep.Chunks[0])
			assert.Equal(t, "runtime", ep.Runtime)
		}
		c0, _ := cg.Chunk(0)
		assert.False(t, c0.HostsRuntime)
	})

	t.Run("multiple", func(t *testing.T) {
		t.Parallel()
		cg, _ := chunkgraph.Build(g, entries, chunkgraph.Options{RuntimeChunk: domain.RuntimeChunkMultiple})

		main, _ := cg.Entrypoint("main")
		rt, _ := cg.Chunk(main.Chunks[0])
		assert.Equal(t, "runtime~main", rt.Name)
		assert.True(t, rt.HostsRuntime)
		other, _ := cg.Entrypoint("other")
		rt, _ = cg.Chunk(other.Chunks[0])
		assert.Equal(t, "runtime~other", rt.Name)
		assert.Equal(t, 4, cg.ChunkCount())
	})

	t.Run("embedded", func(t *testing.T) {
		t.Parallel()
		cg, _ := chunkgraph.Build(g, entries, chunkgraph.Options{})

		assert.Equal(t, 2, cg.ChunkCount())
		for c := range cg.Chunks() {
			assert.True(t, c.HostsRuntime)
		}
	})
}

func TestPropagateRuntimeRequirements(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 1, "/c.js": 1},
		edge{"/a.js", "async", "/c.js"},
	)
	a, c := id(t, g, "/a.js"), id(t, g, "/c.js")
	cg, _ := chunkgraph.Build(g, []chunkgraph.Entry{{Name: "main", Module: a}},
		chunkgraph.Options{RuntimeChunk: domain.RuntimeChunkSingle})

	chunkgraph.PropagateRuntimeRequirements(cg, func(ch *domain.Chunk) []string {
		switch {
		case slices.Contains(ch.Modules, a):
			return []string{domain.RuntimeRequire, domain.RuntimeEnsureChunk}
		case slices.Contains(ch.Modules, c):
			return []string{domain.RuntimeModule}
		default:
			return nil
		}
	})

	rt := chunkByName(t, cg, chunkgraph.SingleRuntimeName)
	assert.Equal(t, []string{
		domain.RuntimeRequire,
		domain.RuntimeOnChunksLoaded,
		domain.RuntimeEnsureChunk,
		domain.RuntimeModule,
	}, rt.RuntimeRequirements)

	async, _ := cg.Group(1)
	assert.Equal(t, []string{domain.RuntimeModule}, async.RuntimeRequirements)
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 10, "/b.js": 20, "/c.js": 30, "/d.js": 40, "/node_modules/x.js": 50},
		edge{"/a.js", "sync", "/b.js"},
		edge{"/a.js", "async", "/c.js"},
		edge{"/c.js", "sync", "/node_modules/x.js"},
		edge{"/d.js", "sync", "/b.js"},
		edge{"/d.js", "async", "/c.js"},
		edge{"/d.js", "sync", "/node_modules/x.js"},
	)
	entries := []chunkgraph.Entry{
		{Name: "main", Module: id(t, g, "/a.js")},
		{Name: "other", Module: id(t, g, "/d.js")},
	}
	opts := chunkgraph.Options{
		RuntimeChunk: domain.RuntimeChunkSingle,
		SplitChunks: domain.SplitChunksOptions{
			Enabled:     true,
			Chunks:      domain.ChunksAll,
			CacheGroups: domain.DefaultCacheGroups(),
		},
	}

	first, _ := chunkgraph.Build(g, entries, opts)
	second, _ := chunkgraph.Build(g.Clone(), entries, opts)
	assert.Equal(t, first, second)
}

func TestBuild_AsyncTargetLoadedByParentHasNoChunk(t *testing.T) {
	t.Parallel()

	g := newGraph(t,
		map[string]int{"/a.js": 1, "/b.js": 1},
		edge{"/a.js", "sync", "/b.js"},
		edge{"/a.js", "async", "/b.js"},
	)
	cg, _ := chunkgraph.Build(g, []chunkgraph.Entry{{Name: "main", Module: id(t, g, "/a.js")}}, chunkgraph.Options{})

	assert.Equal(t, 1, cg.ChunkCount())
	assert.Equal(t, []string{"/a.js", "/b.js"}, modules(t, g, cg, 0))

	async, ok := cg.Group(1)
	require.True(t, ok)
	assert.Equal(t, domain.GroupAsync, async.Kind)
	assert.Empty(t, async.Chunks)
}

func chunkNames(cg *domain.ChunkGraph) []string {
	var names []string
	for c := range cg.Chunks() {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names
}

func TestBuild_ChunkNamesStayUnique(t *testing.T) {
	t.Parallel()

	t.Run("entry named like the single runtime", func(t *testing.T) {
		t.Parallel()

		g := newGraph(t, map[string]int{"/a.js": 1, "/b.js": 1})
		cg, _ := chunkgraph.Build(g, []chunkgraph.Entry{
			{Name: chunkgraph.SingleRuntimeName, Module: id(t, g, "/a.js")},
			{Name: "other", Module: id(t, g, "/b.js")},
		}, chunkgraph.Options{RuntimeChunk: domain.RuntimeChunkSingle})

		assert.ElementsMatch(t, []string{"runtime", "other", "runtime~1"}, chunkNames(cg))

		entry, _ := cg.Chunk(0)
		assert.Equal(t, "runtime", entry.Name)
		assert.Equal(t, domain.ChunkEntry, entry.Kind)
		assert.False(t, entry.HostsRuntime)

		rt := chunkByName(t, cg, "runtime~1")
		assert.Equal(t, domain.ChunkRuntime, rt.Kind)
		assert.True(t, rt.HostsRuntime)
	})

	t.Run("cache group named like an entry", func(t *testing.T) {
		t.Parallel()

		g := newGraph(t,
			map[string]int{"/a.js": 1, "/b.js": 1, "/s.js": 1},
			edge{"/a.js", "sync", "/s.js"},
			edge{"/b.js", "sync", "/s.js"},
		)
		cg, _ := chunkgraph.Build(g, []chunkgraph.Entry{
			{Name: "main", Module: id(t, g, "/a.js")},
			{Name: "other", Module: id(t, g, "/b.js")},
		}, chunkgraph.Options{SplitChunks: domain.SplitChunksOptions{
			Enabled:     true,
			Chunks:      domain.ChunksAll,
			CacheGroups: []domain.CacheGroup{{Key: "shared", Name: "main", MinChunks: 2}},
		}})

		assert.Equal(t, 2, cg.ChunkCount())
		assert.ElementsMatch(t, []string{"main", "other"}, chunkNames(cg))
		assert.Equal(t, []string{"/a.js", "/s.js"}, modules(t, g, cg, 0))
		assert.Equal(t, []string{"/b.js"}, modules(t, g, cg, 1))

		other, _ := cg.Entrypoint("other")
		assert.Equal(t, []domain.ChunkUkey{0, 1}, other.Chunks)
		c1, _ := cg.Chunk(1)
		assert.True(t, c1.HostsRuntime)
	})
}
