// Package chunkgraph derives chunks and chunk groups from a closed module graph.
package chunkgraph

import (
	"maps"
	"slices"
	"strconv"

	"go.trai.ch/pack/internal/core/domain"
)

// Entry is an entrypoint with its resolved root module.
type Entry struct {
	Name string
	// Module is MissingModule when the entry failed to resolve; the entrypoint
	// still gets an empty entry chunk.
	Module domain.ModuleID
}

// Options configures chunk assembly.
type Options struct {
	SplitChunks  domain.SplitChunksOptions
	RuntimeChunk domain.RuntimeChunkStrategy
}

// Build assembles the chunk graph. Entrypoints keep the given order.
// The returned diagnostics are warnings only; Build never fails.
//
// Chunk ids are left unresolved. Assigning them is the job of the hashing pass.
func Build(graph *domain.ModuleGraph, entries []Entry, opts Options) (*domain.ChunkGraph, []domain.Diagnostic) {
	b := &builder{
		graph:    graph,
		cg:       domain.NewChunkGraph(),
		closures: make(map[domain.ModuleID]*closure),
		async:    make(map[domain.ModuleID]*domain.ChunkGroup),
	}

	b.assemble(entries)

	var warnings []domain.Diagnostic
	if opts.SplitChunks.Enabled {
		b.cg.Reindex()
		warnings = split(b.cg, graph, opts.SplitChunks)
	}
	removeEmptyChunks(b.cg)
	placeRuntime(b.cg, opts.RuntimeChunk)
	uniqueNames(b.cg)

	for c := range b.cg.Chunks() {
		c.Size = 0
		for _, id := range c.Modules {
			if m, ok := graph.Module(id); ok {
				c.Size += m.Size()
			}
		}
	}
	b.cg.Reindex()
	return b.cg, warnings
}

type closure struct {
	modules []domain.ModuleID
	set     map[domain.ModuleID]bool
	// async lists async import targets in discovery order.
	async []domain.ModuleID
}

type builder struct {
	graph    *domain.ModuleGraph
	cg       *domain.ChunkGraph
	closures map[domain.ModuleID]*closure
	async    map[domain.ModuleID]*domain.ChunkGroup
}

// closure walks the synchronous dependencies of origin breadth first.
// Weak and missing edges never pull modules in.
func (b *builder) closure(origin domain.ModuleID) *closure {
	if c, ok := b.closures[origin]; ok {
		return c
	}
	c := &closure{set: make(map[domain.ModuleID]bool)}
	b.closures[origin] = c
	if _, ok := b.graph.Module(origin); !ok {
		return c
	}

	seenAsync := make(map[domain.ModuleID]bool)
	queue := []domain.ModuleID{origin}
	c.set[origin] = true
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		c.modules = append(c.modules, id)

		for _, e := range b.graph.Edges(id) {
			if e.Missing() {
				continue
			}
			switch e.Kind() {
			case domain.KindSync:
				if !c.set[e.To] {
					c.set[e.To] = true
					queue = append(queue, e.To)
				}
			case domain.KindAsync:
				if !seenAsync[e.To] {
					seenAsync[e.To] = true
					c.async = append(c.async, e.To)
				}
			case domain.KindWeak:
			}
		}
	}
	return c
}

// assemble creates one group per entrypoint and one per async target, then
// places every module of a group's closure that its parents do not already load.
func (b *builder) assemble(entries []Entry) {
	var queue []*domain.ChunkGroup
	for _, e := range entries {
		g := b.cg.AddGroup(e.Name, domain.GroupEntrypoint, e.Module)
		b.cg.Connect(b.cg.AddChunk(e.Name, domain.ChunkEntry), g)
		queue = append(queue, g)
	}

	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		for _, target := range b.closure(g.Origin).async {
			child, ok := b.async[target]
			if !ok {
				child = b.cg.AddGroup("", domain.GroupAsync, target)
				b.cg.Connect(b.cg.AddChunk("", domain.ChunkAsync), child)
				b.async[target] = child
				queue = append(queue, child)
			}
			b.cg.ConnectGroups(g, child)
		}
	}

	available := b.availableModules()
	for g := range b.cg.Groups() {
		c, _ := b.cg.Chunk(g.Chunks[0])
		avail := available[g.Ukey]
		for _, id := range b.closure(g.Origin).modules {
			if !avail[id] {
				c.Modules = append(c.Modules, id)
			}
		}
		sortModules(b.graph, c.Modules)
	}
}

// availableModules computes, for each group, the modules already loaded by
// every path leading to it. The fixed point starts from "everything" for async
// groups so shared async boundaries with several parents converge.
func (b *builder) availableModules() map[domain.GroupUkey]map[domain.ModuleID]bool {
	available := make(map[domain.GroupUkey]map[domain.ModuleID]bool)
	var asyncGroups []*domain.ChunkGroup
	for g := range b.cg.Groups() {
		if g.Kind == domain.GroupEntrypoint {
			available[g.Ukey] = map[domain.ModuleID]bool{}
			continue
		}
		asyncGroups = append(asyncGroups, g)
	}

	for changed := true; changed; {
		changed = false
		for _, g := range asyncGroups {
			var next map[domain.ModuleID]bool
			for _, pk := range g.Parents {
				pa, ok := available[pk]
				if !ok {
					continue
				}
				parent, _ := b.cg.Group(pk)
				loaded := maps.Clone(pa)
				maps.Copy(loaded, b.closure(parent.Origin).set)
				if next == nil {
					next = loaded
					continue
				}
				maps.DeleteFunc(next, func(id domain.ModuleID, _ bool) bool { return !loaded[id] })
			}
			if next == nil {
				continue
			}
			if prev, ok := available[g.Ukey]; !ok || !maps.Equal(prev, next) {
				available[g.Ukey] = next
				changed = true
			}
		}
	}
	return available
}

// removeEmptyChunks drops async and split chunks left without modules. Their
// groups stay and resolve without loading anything.
func removeEmptyChunks(cg *domain.ChunkGraph) {
	for c := range cg.Chunks() {
		if len(c.Modules) == 0 && (c.Kind == domain.ChunkAsync || c.Kind == domain.ChunkSplit) {
			cg.RemoveChunk(c.Ukey)
		}
	}
}

// uniqueNames suffixes chunk names already taken by an earlier chunk, so a
// runtime or split chunk never shares its name, id or file with an entry.
func uniqueNames(cg *domain.ChunkGraph) {
	taken := make(map[string]bool)
	for c := range cg.Chunks() {
		if c.Name != "" {
			taken[c.Name] = true
		}
	}
	seen := make(map[string]bool)
	for c := range cg.Chunks() {
		if c.Name == "" {
			continue
		}
		if !seen[c.Name] {
			seen[c.Name] = true
			continue
		}
		base := c.Name
		for i := 1; ; i++ {
			name := base + "~" + strconv.Itoa(i)
			if !taken[name] {
				c.Name = name
				break
			}
		}
		taken[c.Name] = true
		seen[c.Name] = true
	}
}

// sortModules orders ids by module identity.
func sortModules(graph *domain.ModuleGraph, ids []domain.ModuleID) {
	slices.SortFunc(ids, func(a, b domain.ModuleID) int {
		return identityOf(graph, a).Compare(identityOf(graph, b))
	})
}

func identityOf(graph *domain.ModuleGraph, id domain.ModuleID) domain.Identifier {
	if m, ok := graph.Module(id); ok {
		return m.Identity
	}
	return domain.Identifier{}
}
