package domain

import (
	"encoding/json"
	"iter"
	"slices"
)

// ChunkUkey is the arena index of a chunk inside a ChunkGraph.
type ChunkUkey uint32

// GroupUkey is the arena index of a chunk group inside a ChunkGraph.
type GroupUkey uint32

// ChunkKind tells how a chunk came to exist.
type ChunkKind uint8

const (
	// ChunkEntry is the root chunk of an entrypoint.
	ChunkEntry ChunkKind = iota
	// ChunkAsync is the root chunk of an async chunk group.
	ChunkAsync
	// ChunkSplit is a chunk generated by the splitter.
	ChunkSplit
	// ChunkRuntime is a dedicated runtime chunk.
	ChunkRuntime
)

// String returns the name of the chunk kind.
func (k ChunkKind) String() string {
	switch k {
	case ChunkEntry:
		return "entry"
	case ChunkAsync:
		return "async"
	case ChunkSplit:
		return "split"
	case ChunkRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// ChunkRef is a chunk id that may not be assigned yet.
// An unresolved ref renders as null, never as an absent entry.
type ChunkRef struct {
	id       string
	resolved bool
}

// ResolvedChunkRef returns a ref for an assigned chunk id.
func ResolvedChunkRef(id string) ChunkRef {
	return ChunkRef{id: id, resolved: true}
}

// ID returns the chunk id and whether it has been assigned.
func (r ChunkRef) ID() (string, bool) {
	return r.id, r.resolved
}

// Resolved reports whether the chunk id has been assigned.
func (r ChunkRef) Resolved() bool {
	return r.resolved
}

// String returns the id, or "null" while unresolved.
func (r ChunkRef) String() string {
	if !r.resolved {
		return "null"
	}
	return r.id
}

// MarshalJSON implements json.Marshaler.
func (r ChunkRef) MarshalJSON() ([]byte, error) {
	if !r.resolved {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ChunkRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ChunkRef{}
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*r = ResolvedChunkRef(id)
	return nil
}

// Chunk is an output unit made of module ids.
type Chunk struct {
	Ukey ChunkUkey
	ID   ChunkRef
	Name string
	Kind ChunkKind
	// Modules are ordered by module identity.
	Modules []ModuleID
	Groups  []GroupUkey
	// Runtime names the runtime the chunk executes in.
	Runtime string
	// HostsRuntime is set on the chunk that carries the bootstrap runtime.
	HostsRuntime        bool
	RuntimeRequirements []string
	Size                int
	// Hash is empty until membership is frozen and hashing ran.
	Hash  string
	Files []string
}

// ChunkGroupKind distinguishes entrypoints from async load points.
type ChunkGroupKind uint8

const (
	// GroupEntrypoint is created for every configured entry.
	GroupEntrypoint ChunkGroupKind = iota
	// GroupAsync is created for every async import target.
	GroupAsync
)

// ChunkGroup is the ordered set of chunks loaded together for an entry or async boundary.
type ChunkGroup struct {
	Ukey GroupUkey
	Name string
	Kind ChunkGroupKind
	// Chunks are in load order.
	Chunks   []ChunkUkey
	Parents  []GroupUkey
	Children []GroupUkey
	// Origin is the entry module or async target module.
	Origin              ModuleID
	Runtime             string
	RuntimeRequirements []string
}

// ChunkGraph holds the chunks and chunk groups derived from a closed module graph.
type ChunkGraph struct {
	chunks       []*Chunk
	groups       []*ChunkGroup
	entrypoints  []GroupUkey
	moduleChunks map[ModuleID][]ChunkUkey
}

// NewChunkGraph creates an empty ChunkGraph.
func NewChunkGraph() *ChunkGraph {
	return &ChunkGraph{
		moduleChunks: make(map[ModuleID][]ChunkUkey),
	}
}

// AddChunk creates a new chunk.
func (cg *ChunkGraph) AddChunk(name string, kind ChunkKind) *Chunk {
	c := &Chunk{Ukey: ChunkUkey(len(cg.chunks)), Name: name, Kind: kind}
	cg.chunks = append(cg.chunks, c)
	return c
}

// AddGroup creates a new chunk group.
func (cg *ChunkGraph) AddGroup(name string, kind ChunkGroupKind, origin ModuleID) *ChunkGroup {
	g := &ChunkGroup{Ukey: GroupUkey(len(cg.groups)), Name: name, Kind: kind, Origin: origin}
	cg.groups = append(cg.groups, g)
	if kind == GroupEntrypoint {
		cg.entrypoints = append(cg.entrypoints, g.Ukey)
	}
	return g
}

// Chunk returns the chunk with the given key.
func (cg *ChunkGraph) Chunk(ukey ChunkUkey) (*Chunk, bool) {
	if int(ukey) >= len(cg.chunks) || cg.chunks[ukey] == nil {
		return nil, false
	}
	return cg.chunks[ukey], true
}

// Group returns the chunk group with the given key.
func (cg *ChunkGraph) Group(ukey GroupUkey) (*ChunkGroup, bool) {
	if int(ukey) >= len(cg.groups) {
		return nil, false
	}
	return cg.groups[ukey], true
}

// Chunks iterates live chunks in creation order.
func (cg *ChunkGraph) Chunks() iter.Seq[*Chunk] {
	return func(yield func(*Chunk) bool) {
		for _, c := range cg.chunks {
			if c == nil {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// ChunkCount returns the number of live chunks.
func (cg *ChunkGraph) ChunkCount() int {
	n := 0
	for range cg.Chunks() {
		n++
	}
	return n
}

// Groups iterates chunk groups in creation order.
func (cg *ChunkGraph) Groups() iter.Seq[*ChunkGroup] {
	return func(yield func(*ChunkGroup) bool) {
		for _, g := range cg.groups {
			if !yield(g) {
				return
			}
		}
	}
}

// Entrypoints returns entrypoint groups in declaration order.
func (cg *ChunkGraph) Entrypoints() []*ChunkGroup {
	out := make([]*ChunkGroup, 0, len(cg.entrypoints))
	for _, ukey := range cg.entrypoints {
		out = append(out, cg.groups[ukey])
	}
	return out
}

// Entrypoint returns the entrypoint group with the given name.
func (cg *ChunkGraph) Entrypoint(name string) (*ChunkGroup, bool) {
	for _, ukey := range cg.entrypoints {
		if cg.groups[ukey].Name == name {
			return cg.groups[ukey], true
		}
	}
	return nil, false
}

// Connect appends chunk c to group g.
func (cg *ChunkGraph) Connect(c *Chunk, g *ChunkGroup) {
	if !slices.Contains(g.Chunks, c.Ukey) {
		g.Chunks = append(g.Chunks, c.Ukey)
	}
	if !slices.Contains(c.Groups, g.Ukey) {
		c.Groups = append(c.Groups, g.Ukey)
	}
}

// InsertBefore places chunk c in group g right before chunk before.
// If before is not part of g, c is appended.
func (cg *ChunkGraph) InsertBefore(c *Chunk, g *ChunkGroup, before ChunkUkey) {
	if slices.Contains(g.Chunks, c.Ukey) {
		return
	}
	idx := slices.Index(g.Chunks, before)
	if idx < 0 {
		g.Chunks = append(g.Chunks, c.Ukey)
	} else {
		g.Chunks = slices.Insert(g.Chunks, idx, c.Ukey)
	}
	if !slices.Contains(c.Groups, g.Ukey) {
		c.Groups = append(c.Groups, g.Ukey)
	}
}

// ConnectGroups records a parent/child relation between two groups.
func (cg *ChunkGraph) ConnectGroups(parent, child *ChunkGroup) {
	if !slices.Contains(parent.Children, child.Ukey) {
		parent.Children = append(parent.Children, child.Ukey)
	}
	if !slices.Contains(child.Parents, parent.Ukey) {
		child.Parents = append(child.Parents, parent.Ukey)
	}
}

// RemoveChunk detaches a chunk from all its groups and drops it.
func (cg *ChunkGraph) RemoveChunk(ukey ChunkUkey) {
	c, ok := cg.Chunk(ukey)
	if !ok {
		return
	}
	for _, gk := range c.Groups {
		g := cg.groups[gk]
		g.Chunks = slices.DeleteFunc(g.Chunks, func(k ChunkUkey) bool { return k == ukey })
	}
	cg.chunks[ukey] = nil
}

// IsInitial reports whether the chunk is loaded by an entrypoint.
func (cg *ChunkGraph) IsInitial(ukey ChunkUkey) bool {
	c, ok := cg.Chunk(ukey)
	if !ok {
		return false
	}
	for _, gk := range c.Groups {
		if cg.groups[gk].Kind == GroupEntrypoint {
			return true
		}
	}
	return false
}

// Reindex rebuilds the module to chunk index after membership changes.
func (cg *ChunkGraph) Reindex() {
	cg.moduleChunks = make(map[ModuleID][]ChunkUkey)
	for c := range cg.Chunks() {
		for _, m := range c.Modules {
			cg.moduleChunks[m] = append(cg.moduleChunks[m], c.Ukey)
		}
	}
}

// ChunksOfModule returns the chunks containing a module, in chunk order.
func (cg *ChunkGraph) ChunksOfModule(id ModuleID) []ChunkUkey {
	return slices.Clone(cg.moduleChunks[id])
}

// EntrypointChunks returns the chunk refs of an entrypoint in load order.
// Chunks whose ids are not assigned yet are reported as unresolved refs.
func (cg *ChunkGraph) EntrypointChunks(name string) []ChunkRef {
	g, ok := cg.Entrypoint(name)
	if !ok {
		return nil
	}
	refs := make([]ChunkRef, 0, len(g.Chunks))
	for _, ukey := range g.Chunks {
		c, _ := cg.Chunk(ukey)
		refs = append(refs, c.ID)
	}
	return refs
}
