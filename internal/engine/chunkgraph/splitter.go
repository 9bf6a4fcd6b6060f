package chunkgraph

import (
	"cmp"
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/zerr"
)

// candidate is a set of modules one cache group wants to move into its own chunk.
type candidate struct {
	group   domain.CacheGroup
	order   int
	key     string
	modules map[domain.ModuleID]bool
	chunks  map[domain.ChunkUkey]bool
	size    int
	minSize int
	maxSize int
}

// split factors modules shared by chunks into generated chunks.
// Candidates are taken by priority, then declaration order, then module count
// descending, then key. A module is moved at most once.
func split(cg *domain.ChunkGraph, graph *domain.ModuleGraph, opts domain.SplitChunksOptions) []domain.Diagnostic {
	var warnings []domain.Diagnostic
	cands := collect(cg, graph, opts)
	for _, c := range cands {
		if c.maxSize > 0 && c.minSize > c.maxSize {
			warnings = append(warnings, domain.Diagnostic{
				Kind:     domain.SplitConstraintUnsatisfiable,
				Severity: domain.SeverityWarning,
				Err: zerr.With(zerr.With(zerr.With(domain.ErrSplitConstraintUnsatisfiable,
					"cache_group", c.group.Key), "min_size", c.minSize), "max_size", c.maxSize),
			})
			c.minSize = c.maxSize
		}
	}
	warnings = dedupeWarnings(warnings)

	named := make(map[string]*domain.Chunk)
	for c := range cg.Chunks() {
		if c.Name != "" {
			named[c.Name] = c
		}
	}
	maxSizes := make(map[domain.ChunkUkey]int)

	for len(cands) > 0 {
		slices.SortFunc(cands, compareCandidates)
		best := cands[0]
		cands = cands[1:]

		if len(best.modules) == 0 || best.size < best.minSize || wholeChunk(cg, best) {
			continue
		}

		target := extract(cg, graph, best, named)
		maxSizes[target.Ukey] = max(maxSizes[target.Ukey], best.maxSize)

		for _, other := range cands {
			for id := range best.modules {
				if other.modules[id] {
					delete(other.modules, id)
					other.size -= sizeOf(graph, id)
				}
			}
		}
		cands = slices.DeleteFunc(cands, func(c *candidate) bool { return len(c.modules) == 0 })
	}

	for _, ukey := range slices.Sorted(maps.Keys(maxSizes)) {
		if limit := maxSizes[ukey]; limit > 0 {
			warnings = append(warnings, enforceMaxSize(cg, graph, ukey, limit)...)
		}
	}
	return warnings
}

func collect(cg *domain.ChunkGraph, graph *domain.ModuleGraph, opts domain.SplitChunksOptions) []*candidate {
	var modules []*domain.Module
	for m := range graph.Modules() {
		modules = append(modules, m)
	}
	slices.SortFunc(modules, func(a, b *domain.Module) int { return a.Identity.Compare(b.Identity) })

	var cands []*candidate
	for order, group := range opts.CacheGroups {
		minChunks := cmp.Or(group.MinChunks, opts.MinChunks, 1)
		filter := cmp.Or(group.Chunks, opts.Chunks, domain.ChunksAsync)
		byKey := make(map[string]*candidate)

		for _, m := range modules {
			if group.Test != nil && !group.Test.MatchString(m.Identity.String()) {
				continue
			}
			var chunks []domain.ChunkUkey
			for _, ukey := range cg.ChunksOfModule(m.ID) {
				if selected(cg, ukey, filter) {
					chunks = append(chunks, ukey)
				}
			}
			if len(chunks) < minChunks {
				continue
			}

			key := group.Key + ":" + group.Name
			if group.Name == "" {
				key += chunkSignature(chunks)
			}
			c, ok := byKey[key]
			if !ok {
				c = &candidate{
					group:   group,
					order:   order,
					key:     key,
					modules: make(map[domain.ModuleID]bool),
					chunks:  make(map[domain.ChunkUkey]bool),
					minSize: cmp.Or(group.MinSize, opts.MinSize),
					maxSize: cmp.Or(group.MaxSize, opts.MaxSize),
				}
				byKey[key] = c
				cands = append(cands, c)
			}
			c.modules[m.ID] = true
			c.size += m.Size()
			for _, ukey := range chunks {
				c.chunks[ukey] = true
			}
		}
	}
	return cands
}

func compareCandidates(a, b *candidate) int {
	return cmp.Or(
		cmp.Compare(b.group.Priority, a.group.Priority),
		cmp.Compare(a.order, b.order),
		cmp.Compare(len(b.modules), len(a.modules)),
		strings.Compare(a.key, b.key),
	)
}

func selected(cg *domain.ChunkGraph, ukey domain.ChunkUkey, filter domain.ChunksFilter) bool {
	switch filter {
	case domain.ChunksInitial:
		return cg.IsInitial(ukey)
	case domain.ChunksAsync:
		return !cg.IsInitial(ukey)
	default:
		return true
	}
}

func chunkSignature(chunks []domain.ChunkUkey) string {
	var b strings.Builder
	for _, ukey := range chunks {
		b.WriteByte('~')
		b.WriteString(strconv.FormatUint(uint64(ukey), 10))
	}
	return b.String()
}

// wholeChunk reports whether an unnamed candidate would just rename one chunk.
func wholeChunk(cg *domain.ChunkGraph, c *candidate) bool {
	if c.group.Name != "" || len(c.chunks) != 1 {
		return false
	}
	ukey := slices.Collect(maps.Keys(c.chunks))[0]
	chunk, ok := cg.Chunk(ukey)
	return ok && len(chunk.Modules) == len(c.modules)
}

// extract moves the candidate modules out of their chunks into a split chunk
// that is loaded right before each source chunk. A named candidate reuses the
// chunk already carrying its name.
func extract(cg *domain.ChunkGraph, graph *domain.ModuleGraph, c *candidate, named map[string]*domain.Chunk) *domain.Chunk {
	target := named[c.group.Name]
	if target == nil {
		target = cg.AddChunk(c.group.Name, domain.ChunkSplit)
		if c.group.Name != "" {
			named[c.group.Name] = target
		}
	}

	for _, ukey := range slices.Sorted(maps.Keys(c.chunks)) {
		src, ok := cg.Chunk(ukey)
		if !ok || src.Ukey == target.Ukey {
			continue
		}
		src.Modules = slices.DeleteFunc(src.Modules, func(id domain.ModuleID) bool { return c.modules[id] })
		for _, gk := range src.Groups {
			g, _ := cg.Group(gk)
			cg.InsertBefore(target, g, src.Ukey)
		}
	}

	for id := range c.modules {
		if !slices.Contains(target.Modules, id) {
			target.Modules = append(target.Modules, id)
		}
	}
	sortModules(graph, target.Modules)
	return target
}

// enforceMaxSize packs the modules of a split chunk greedily, in identity
// order, into parts of at most limit bytes. A module larger than limit on its
// own becomes a part by itself and is reported.
func enforceMaxSize(cg *domain.ChunkGraph, graph *domain.ModuleGraph, ukey domain.ChunkUkey, limit int) []domain.Diagnostic {
	c, ok := cg.Chunk(ukey)
	if !ok {
		return nil
	}

	var warnings []domain.Diagnostic
	var parts [][]domain.ModuleID
	var current []domain.ModuleID
	size := 0
	for _, id := range c.Modules {
		ms := sizeOf(graph, id)
		if ms > limit {
			warnings = append(warnings, domain.Diagnostic{
				Kind:     domain.SplitConstraintUnsatisfiable,
				Severity: domain.SeverityWarning,
				Module:   identityOf(graph, id),
				Err: zerr.With(zerr.With(domain.ErrSplitConstraintUnsatisfiable,
					"size", ms), "max_size", limit),
			})
		}
		if len(current) > 0 && size+ms > limit {
			parts = append(parts, current)
			current, size = nil, 0
		}
		current = append(current, id)
		size += ms
	}
	if len(current) > 0 {
		parts = append(parts, current)
	}
	if len(parts) <= 1 {
		return warnings
	}

	c.Modules = parts[0]
	for i, mods := range parts[1:] {
		name := ""
		if c.Name != "" {
			name = c.Name + "~" + strconv.Itoa(i+1)
		}
		part := cg.AddChunk(name, domain.ChunkSplit)
		part.Modules = mods
		for _, gk := range c.Groups {
			g, _ := cg.Group(gk)
			cg.InsertBefore(part, g, c.Ukey)
		}
	}
	return warnings
}

func sizeOf(graph *domain.ModuleGraph, id domain.ModuleID) int {
	if m, ok := graph.Module(id); ok {
		return m.Size()
	}
	return 0
}

func dedupeWarnings(ws []domain.Diagnostic) []domain.Diagnostic {
	seen := make(map[string]bool, len(ws))
	return slices.DeleteFunc(ws, func(d domain.Diagnostic) bool {
		if seen[d.Error()] {
			return true
		}
		seen[d.Error()] = true
		return false
	})
}
