package compiler

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/engine/chunkgraph"
	"go.trai.ch/pack/internal/engine/codegen"
	"go.trai.ch/pack/internal/engine/hashing"
	"go.trai.ch/zerr"
)

// primaryRuntime picks the runtime whose generated code a chunk is rendered
// with. Code generated for the other runtimes of the chunk only feeds its hash.
func primaryRuntime(c *domain.Chunk) string {
	if rts := chunkgraph.SplitRuntime(c.Runtime); len(rts) > 0 {
		return rts[0]
	}
	return ""
}

func moduleHashes(comp *Compilation, results *codegen.Results, c *domain.Chunk) []hashing.ModuleHash {
	out := make([]hashing.ModuleHash, 0, len(c.Modules))
	for _, id := range c.Modules {
		var hs []string
		for _, rt := range chunkgraph.SplitRuntime(c.Runtime) {
			if res, ok := results.Get(id, rt); ok {
				hs = append(hs, res.Hash)
			}
		}
		out = append(out, hashing.ModuleHash{ID: comp.ModuleIDs[id], Hash: strings.Join(hs, ",")})
	}
	return out
}

// hashChunks hashes every chunk. Runtime hosts are hashed last because the
// chunk loader they carry embeds the file names of the other chunks.
func hashChunks(comp *Compilation, results *codegen.Results) {
	var hosts, others []*domain.Chunk
	for c := range comp.Chunks.Chunks() {
		if c.HostsRuntime {
			hosts = append(hosts, c)
			continue
		}
		c.Hash = hashing.ChunkHash(c, moduleHashes(comp, results, c))
		others = append(others, c)
	}
	slices.SortFunc(others, func(a, b *domain.Chunk) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	for _, c := range hosts {
		parts := moduleHashes(comp, results, c)
		for _, o := range others {
			parts = append(parts, hashing.ModuleHash{ID: "chunk:" + o.ID.String(), Hash: o.Hash})
		}
		c.Hash = hashing.ChunkHash(c, parts)
	}
	comp.Hash = hashing.CompilationHash(comp.Chunks)
}

// AssetName expands the [name], [id] and [contenthash] placeholders of an
// output filename template for a chunk. Unnamed chunks use their id as name.
func AssetName(template string, c *domain.Chunk) string {
	id := c.ID.String()
	return strings.NewReplacer(
		"[name]", cmp.Or(c.Name, id),
		"[id]", id,
		"[contenthash]", hashing.Short(c.Hash),
	).Replace(template)
}

func (c *Compiler) render(ctx context.Context, comp *Compilation, results *codegen.Results) error {
	template := cmp.Or(c.opts.Output.Filename, domain.DefaultOutputFilename)
	files := make(map[string]string, comp.Chunks.ChunkCount())
	for ch := range comp.Chunks.Chunks() {
		name := AssetName(template, ch)
		ch.Files = []string{name}
		files[ch.ID.String()] = name
	}

	for ch := range comp.Chunks.Chunks() {
		in := domain.ChunkRenderInput{ChunkID: ch.ID.String()}
		rt := primaryRuntime(ch)
		for _, id := range ch.Modules {
			res, _ := results.Get(id, rt)
			in.Modules = append(in.Modules, domain.RenderedModule{ID: comp.ModuleIDs[id], Code: res.Code})
		}
		if ch.HostsRuntime {
			in.Runtime = ch.RuntimeRequirements
			in.ChunkFiles = files
		}
		if ch.Kind == domain.ChunkEntry {
			c.entryInput(comp, ch, &in)
		}

		content, err := c.gen.RenderChunk(ctx, in)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrCodeGeneration.Error()), "chunk", in.ChunkID)
		}
		comp.Assets = append(comp.Assets, domain.Asset{
			Filename: ch.Files[0],
			Content:  content,
			ChunkID:  in.ChunkID,
			Hash:     ch.Hash,
		})
	}
	slices.SortFunc(comp.Assets, func(a, b domain.Asset) int {
		return strings.Compare(a.Filename, b.Filename)
	})
	return nil
}

// entryInput lists the entry module an entry chunk starts and the chunks of
// its entrypoint that must be loaded first. An entry chunk reused by a named
// cache group only starts its own entrypoint.
func (c *Compiler) entryInput(comp *Compilation, ch *domain.Chunk, in *domain.ChunkRenderInput) {
	for _, gk := range ch.Groups {
		g, ok := comp.Chunks.Group(gk)
		if !ok || g.Kind != domain.GroupEntrypoint || g.Name != ch.Name || g.Origin == domain.MissingModule {
			continue
		}
		in.EntryModules = append(in.EntryModules, comp.ModuleIDs[g.Origin])
		for _, ukey := range g.Chunks {
			if ukey == ch.Ukey {
				continue
			}
			if other, ok := comp.Chunks.Chunk(ukey); ok {
				in.EntryDependencies = append(in.EntryDependencies, other.ID.String())
			}
		}
	}
}

// diagnostics lists entry failures in declaration order, then module errors
// and missing requests ordered by module identity, then warnings.
func diagnostics(
	graph *domain.ModuleGraph,
	pending []*domain.PendingEntrypoint,
	records map[string]entryRecord,
	warnings []domain.Diagnostic,
) []domain.Diagnostic {
	var out []domain.Diagnostic
	for _, pe := range pending {
		if err := records[pe.Name].result.Err; err != nil {
			out = append(out, domain.Diagnostic{
				Kind:     domain.ResolutionError,
				Severity: domain.SeverityError,
				Request:  pe.Request,
				Err:      err,
			})
		}
	}

	modules := slices.SortedFunc(graph.Modules(), func(a, b *domain.Module) int {
		return a.Identity.Compare(b.Identity)
	})
	for _, m := range modules {
		for _, err := range m.Errors {
			out = append(out, domain.Diagnostic{
				Kind:     domain.BuildError,
				Severity: domain.SeverityError,
				Module:   m.Identity,
				Err:      err,
			})
		}
		for _, e := range graph.Edges(m.ID) {
			if !e.Missing() {
				continue
			}
			err := e.Err
			if err == nil {
				err = domain.ErrResolution
			}
			out = append(out, domain.Diagnostic{
				Kind:     domain.ResolutionError,
				Severity: domain.SeverityError,
				Module:   m.Identity,
				Request:  e.Request,
				Err:      err,
			})
		}
	}
	return append(out, warnings...)
}
