package chunkgraph

import (
	"maps"
	"slices"
	"strings"

	"go.trai.ch/pack/internal/core/domain"
)

// SingleRuntimeName is the runtime shared by all entrypoints with the single strategy.
const SingleRuntimeName = "runtime"

// runtimeSeparator joins the names of a chunk shared by several runtimes.
const runtimeSeparator = "|"

// placeRuntime decides which chunk hosts the bootstrap runtime of each
// entrypoint and labels every group and chunk with the runtimes it runs in.
func placeRuntime(cg *domain.ChunkGraph, strategy domain.RuntimeChunkStrategy) {
	var shared *domain.Chunk
	for _, g := range cg.Entrypoints() {
		var host *domain.Chunk
		switch strategy {
		case domain.RuntimeChunkSingle:
			if shared == nil {
				shared = cg.AddChunk(SingleRuntimeName, domain.ChunkRuntime)
			}
			host = shared
		case domain.RuntimeChunkMultiple:
			host = cg.AddChunk("runtime~"+g.Name, domain.ChunkRuntime)
		default:
			host = entryChunk(cg, g)
		}
		if host.Kind == domain.ChunkRuntime {
			if len(g.Chunks) > 0 {
				cg.InsertBefore(host, g, g.Chunks[0])
			} else {
				cg.Connect(host, g)
			}
		}
		host.HostsRuntime = true
		g.Runtime = host.Name
	}

	runtimes := make(map[domain.GroupUkey]map[string]bool)
	for g := range cg.Groups() {
		if g.Kind == domain.GroupEntrypoint {
			runtimes[g.Ukey] = map[string]bool{g.Runtime: true}
		}
	}
	for changed := true; changed; {
		changed = false
		for g := range cg.Groups() {
			if g.Kind == domain.GroupEntrypoint {
				continue
			}
			set := runtimes[g.Ukey]
			if set == nil {
				set = make(map[string]bool)
				runtimes[g.Ukey] = set
			}
			for _, pk := range g.Parents {
				for r := range runtimes[pk] {
					if !set[r] {
						set[r] = true
						changed = true
					}
				}
			}
		}
	}
	for g := range cg.Groups() {
		g.Runtime = joinRuntimes(runtimes[g.Ukey])
	}

	for c := range cg.Chunks() {
		set := make(map[string]bool)
		for _, gk := range c.Groups {
			maps.Copy(set, runtimes[gk])
		}
		c.Runtime = joinRuntimes(set)
	}
}

func entryChunk(cg *domain.ChunkGraph, g *domain.ChunkGroup) *domain.Chunk {
	for _, ukey := range g.Chunks {
		if c, ok := cg.Chunk(ukey); ok && c.Kind == domain.ChunkEntry && c.Name == g.Name {
			return c
		}
	}
	c := cg.AddChunk(g.Name, domain.ChunkEntry)
	cg.Connect(c, g)
	return c
}

func joinRuntimes(set map[string]bool) string {
	return strings.Join(slices.Sorted(maps.Keys(set)), runtimeSeparator)
}

// SplitRuntime returns the runtime names a chunk or group runs in.
func SplitRuntime(runtime string) []string {
	if runtime == "" {
		return nil
	}
	return strings.Split(runtime, runtimeSeparator)
}

// PropagateRuntimeRequirements collects the helpers each chunk needs from
// its modules, lifts them to the groups, and gives every runtime host the
// union required by all groups running in its runtime.
func PropagateRuntimeRequirements(cg *domain.ChunkGraph, moduleRequirements func(c *domain.Chunk) []string) {
	own := make(map[domain.ChunkUkey]map[string]bool)
	for c := range cg.Chunks() {
		set := make(map[string]bool)
		for _, r := range moduleRequirements(c) {
			set[r] = true
		}
		own[c.Ukey] = set
		c.RuntimeRequirements = slices.Sorted(maps.Keys(set))
	}

	byRuntime := make(map[string]map[string]bool)
	for g := range cg.Groups() {
		set := make(map[string]bool)
		for _, ukey := range g.Chunks {
			maps.Copy(set, own[ukey])
		}
		if len(g.Children) > 0 {
			set[domain.RuntimeEnsureChunk] = true
		}
		if g.Kind == domain.GroupEntrypoint && len(g.Chunks) > 1 {
			set[domain.RuntimeOnChunksLoaded] = true
		}
		g.RuntimeRequirements = slices.Sorted(maps.Keys(set))

		for _, r := range SplitRuntime(g.Runtime) {
			if byRuntime[r] == nil {
				byRuntime[r] = make(map[string]bool)
			}
			maps.Copy(byRuntime[r], set)
		}
	}

	for c := range cg.Chunks() {
		if !c.HostsRuntime {
			continue
		}
		set := maps.Clone(own[c.Ukey])
		for _, r := range SplitRuntime(c.Runtime) {
			maps.Copy(set, byRuntime[r])
		}
		set[domain.RuntimeRequire] = true
		c.RuntimeRequirements = slices.Sorted(maps.Keys(set))
	}
}
