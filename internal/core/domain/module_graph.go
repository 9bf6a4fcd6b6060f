package domain

import (
	"iter"
	"slices"
	"sync"

	"go.trai.ch/zerr"
)

// ModuleGraph is the arena of modules and dependency edges of one compilation.
// Modules are addressed by ModuleID; edges never hold module pointers, so
// dependency cycles are plain data.
type ModuleGraph struct {
	mu         sync.RWMutex
	modules    []*Module
	byIdentity map[Identifier]ModuleID
	outgoing   [][]DependencyEdge
	incoming   []map[ModuleID]int
}

// NewModuleGraph creates a new empty ModuleGraph.
func NewModuleGraph() *ModuleGraph {
	return &ModuleGraph{
		byIdentity: make(map[Identifier]ModuleID),
	}
}

// AddModule registers a module for the given identity.
// If the identity is already registered, the existing id is returned and created is false.
func (g *ModuleGraph) AddModule(identity Identifier) (id ModuleID, created bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.byIdentity[identity]; ok {
		return id, false
	}

	id = ModuleID(len(g.modules))
	g.modules = append(g.modules, &Module{ID: id, Identity: identity, State: StatePending})
	g.outgoing = append(g.outgoing, nil)
	g.incoming = append(g.incoming, nil)
	g.byIdentity[identity] = id
	return id, true
}

// Module returns the module with the given id.
// The returned pointer is owned by the graph; only the goroutine driving the
// compilation may mutate it.
func (g *ModuleGraph) Module(id ModuleID) (*Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.moduleLocked(id)
}

func (g *ModuleGraph) moduleLocked(id ModuleID) (*Module, bool) {
	if int(id) >= len(g.modules) || g.modules[id] == nil {
		return nil, false
	}
	return g.modules[id], true
}

// Lookup returns the id registered for identity.
func (g *ModuleGraph) Lookup(identity Identifier) (ModuleID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.byIdentity[identity]
	return id, ok
}

// Len returns the number of live modules.
func (g *ModuleGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byIdentity)
}

// Modules returns an iterator over live modules in id order.
func (g *ModuleGraph) Modules() iter.Seq[*Module] {
	return func(yield func(*Module) bool) {
		g.mu.RLock()
		mods := slices.Clone(g.modules)
		g.mu.RUnlock()

		for _, m := range mods {
			if m == nil {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// AddEdge appends an outgoing edge to e.From.
// Both endpoints must be live modules; the target may be MissingModule.
func (g *ModuleGraph) AddEdge(e DependencyEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkEdgeLocked(e); err != nil {
		return err
	}
	g.outgoing[e.From] = append(g.outgoing[e.From], e)
	g.linkLocked(e)
	return nil
}

// ReplaceEdges swaps the full outgoing edge list of a module.
func (g *ModuleGraph) ReplaceEdges(from ModuleID, edges []DependencyEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.moduleLocked(from); !ok {
		return zerr.With(ErrGraphInvariant, "module", from.String())
	}
	for _, e := range edges {
		if e.From != from {
			return zerr.With(zerr.With(ErrGraphInvariant, "edge_from", e.From.String()), "module", from.String())
		}
		if err := g.checkEdgeLocked(e); err != nil {
			return err
		}
	}

	for _, e := range g.outgoing[from] {
		g.unlinkLocked(e)
	}
	g.outgoing[from] = slices.Clone(edges)
	for _, e := range edges {
		g.linkLocked(e)
	}
	return nil
}

// Edges returns a copy of the outgoing edges of a module in insertion order.
func (g *ModuleGraph) Edges(from ModuleID) []DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if int(from) >= len(g.outgoing) {
		return nil
	}
	return slices.Clone(g.outgoing[from])
}

// Issuers returns the sorted ids of modules with an edge to id.
func (g *ModuleGraph) Issuers(id ModuleID) []ModuleID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if int(id) >= len(g.incoming) {
		return nil
	}
	issuers := make([]ModuleID, 0, len(g.incoming[id]))
	for from := range g.incoming[id] {
		issuers = append(issuers, from)
	}
	slices.Sort(issuers)
	return issuers
}

// IncomingEdges returns every edge pointing at id, ordered by issuer.
func (g *ModuleGraph) IncomingEdges(id ModuleID) []DependencyEdge {
	var edges []DependencyEdge
	for _, from := range g.Issuers(id) {
		for _, e := range g.Edges(from) {
			if e.To == id {
				edges = append(edges, e)
			}
		}
	}
	return edges
}

// RemoveModule prunes a module, its outgoing edges and every edge pointing at it.
// The removed incoming edges are returned so their issuers can be revisited.
func (g *ModuleGraph) RemoveModule(id ModuleID) []DependencyEdge {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.moduleLocked(id)
	if !ok {
		return nil
	}

	for _, e := range g.outgoing[id] {
		g.unlinkLocked(e)
	}
	g.outgoing[id] = nil

	var removed []DependencyEdge
	issuers := make([]ModuleID, 0, len(g.incoming[id]))
	for from := range g.incoming[id] {
		issuers = append(issuers, from)
	}
	slices.Sort(issuers)
	for _, from := range issuers {
		kept := g.outgoing[from][:0]
		for _, e := range g.outgoing[from] {
			if e.To == id {
				removed = append(removed, e)
				continue
			}
			kept = append(kept, e)
		}
		g.outgoing[from] = kept
	}
	g.incoming[id] = nil

	delete(g.byIdentity, m.Identity)
	g.modules[id] = nil
	return removed
}

// Reachable returns the set of modules reachable from roots over non-missing edges.
func (g *ModuleGraph) Reachable(roots []ModuleID) map[ModuleID]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[ModuleID]bool)
	stack := slices.Clone(roots)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		if _, ok := g.moduleLocked(id); !ok {
			continue
		}
		seen[id] = true
		for _, e := range g.outgoing[id] {
			if !e.Missing() && !seen[e.To] {
				stack = append(stack, e.To)
			}
		}
	}
	return seen
}

// Validate checks that every edge references live modules or the missing
// sentinel and that the identity index is consistent with the arena.
func (g *ModuleGraph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	live := 0
	for id, m := range g.modules {
		if m == nil {
			if len(g.outgoing[id]) > 0 {
				return zerr.With(ErrGraphInvariant, "removed_module_edges", ModuleID(id).String())
			}
			continue
		}
		live++
		if m.ID != ModuleID(id) {
			return zerr.With(ErrGraphInvariant, "module_id", m.ID.String())
		}
		if got, ok := g.byIdentity[m.Identity]; !ok || got != m.ID {
			return zerr.With(ErrGraphInvariant, "identity", m.Identity.String())
		}
		for _, e := range g.outgoing[id] {
			if err := g.checkEdgeLocked(e); err != nil {
				return err
			}
		}
	}
	if live != len(g.byIdentity) {
		return zerr.With(ErrGraphInvariant, "identity_index", len(g.byIdentity))
	}
	return nil
}

// Clone returns a deep copy of the graph. Module ids are preserved.
func (g *ModuleGraph) Clone() *ModuleGraph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c := &ModuleGraph{
		modules:    make([]*Module, len(g.modules)),
		byIdentity: make(map[Identifier]ModuleID, len(g.byIdentity)),
		outgoing:   make([][]DependencyEdge, len(g.outgoing)),
		incoming:   make([]map[ModuleID]int, len(g.incoming)),
	}
	for i, m := range g.modules {
		if m != nil {
			c.modules[i] = m.Clone()
		}
		c.outgoing[i] = slices.Clone(g.outgoing[i])
		if g.incoming[i] != nil {
			c.incoming[i] = make(map[ModuleID]int, len(g.incoming[i]))
			for k, v := range g.incoming[i] {
				c.incoming[i][k] = v
			}
		}
	}
	for k, v := range g.byIdentity {
		c.byIdentity[k] = v
	}
	return c
}

func (g *ModuleGraph) checkEdgeLocked(e DependencyEdge) error {
	if _, ok := g.moduleLocked(e.From); !ok {
		return zerr.With(zerr.With(ErrGraphInvariant, "edge_from", e.From.String()), "request", e.Request)
	}
	if e.Missing() {
		return nil
	}
	if _, ok := g.moduleLocked(e.To); !ok {
		return zerr.With(zerr.With(ErrGraphInvariant, "edge_to", e.To.String()), "request", e.Request)
	}
	return nil
}

func (g *ModuleGraph) linkLocked(e DependencyEdge) {
	if e.Missing() {
		return
	}
	if g.incoming[e.To] == nil {
		g.incoming[e.To] = make(map[ModuleID]int)
	}
	g.incoming[e.To][e.From]++
}

func (g *ModuleGraph) unlinkLocked(e DependencyEdge) {
	if e.Missing() || int(e.To) >= len(g.incoming) || g.incoming[e.To] == nil {
		return
	}
	g.incoming[e.To][e.From]--
	if g.incoming[e.To][e.From] <= 0 {
		delete(g.incoming[e.To], e.From)
	}
}
