// Package codegen generates the code of every module placed in a chunk, once
// per runtime it executes in, through the code generation cache.
package codegen

import (
	"context"
	"maps"
	"runtime"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/pack/internal/engine/cache"
	"go.trai.ch/pack/internal/engine/chunkgraph"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Input describes one code generation pass.
type Input struct {
	Graph     *domain.ModuleGraph
	Chunks    *domain.ChunkGraph
	ModuleIDs map[domain.ModuleID]string
	Session   *cache.Session
	// Parallelism bounds the concurrent Generate calls.
	Parallelism int
	// OptionsDigest covers the options affecting generated code.
	OptionsDigest string
}

type key struct {
	module  domain.ModuleID
	runtime string
}

// Results holds the generated code per module and runtime.
type Results struct {
	byKey map[key]domain.CodegenResult
}

// Get returns the code of a module for a runtime.
func (r *Results) Get(id domain.ModuleID, runtime string) (domain.CodegenResult, bool) {
	res, ok := r.byKey[key{module: id, runtime: runtime}]
	return res, ok
}

// Len returns the number of generated module/runtime pairs.
func (r *Results) Len() int {
	return len(r.byKey)
}

// Requirements returns the union of runtime helpers the modules of c need.
func (r *Results) Requirements(c *domain.Chunk) []string {
	set := make(map[string]bool)
	for _, id := range c.Modules {
		for _, rt := range chunkgraph.SplitRuntime(c.Runtime) {
			res, ok := r.Get(id, rt)
			if !ok {
				continue
			}
			for _, req := range res.RuntimeRequirements {
				set[req] = true
			}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// Generator runs code generation passes.
type Generator struct {
	gen    ports.CodeGenerator
	hasher ports.Hasher
}

// New creates a new Generator.
func New(gen ports.CodeGenerator, hasher ports.Hasher) *Generator {
	return &Generator{gen: gen, hasher: hasher}
}

// Run generates every module of every chunk. A generator failure aborts the pass.
func (g *Generator) Run(ctx context.Context, in Input) (*Results, error) {
	asyncChunks := make(map[domain.ModuleID][]string)
	for grp := range in.Chunks.Groups() {
		if grp.Kind != domain.GroupAsync {
			continue
		}
		var ids []string
		for _, ukey := range grp.Chunks {
			if c, ok := in.Chunks.Chunk(ukey); ok {
				ids = append(ids, c.ID.String())
			}
		}
		asyncChunks[grp.Origin] = ids
	}

	jobs := make(map[key]bool)
	for c := range in.Chunks.Chunks() {
		for _, id := range c.Modules {
			for _, rt := range chunkgraph.SplitRuntime(c.Runtime) {
				jobs[key{module: id, runtime: rt}] = true
			}
		}
	}
	ordered := slices.SortedFunc(maps.Keys(jobs), func(a, b key) int {
		if a.module != b.module {
			return int(a.module) - int(b.module)
		}
		return strings.Compare(a.runtime, b.runtime)
	})

	parallelism := in.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	var mu sync.Mutex
	results := &Results{byKey: make(map[key]domain.CodegenResult, len(ordered))}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)
	for _, k := range ordered {
		m, ok := in.Graph.Module(k.module)
		if !ok {
			continue
		}
		input := g.input(in, m, k.runtime, asyncChunks)
		eg.Go(func() error {
			res, err := g.generate(ctx, in.Session, input, in.OptionsDigest)
			if err != nil {
				return err
			}
			mu.Lock()
			results.byKey[k] = res
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (g *Generator) input(
	in Input,
	m *domain.Module,
	rt string,
	asyncChunks map[domain.ModuleID][]string,
) domain.CodegenInput {
	edges := make(map[string]domain.DependencyEdge)
	for _, e := range in.Graph.Edges(m.ID) {
		edges[domain.DependencyRequest{Request: e.Request, Type: e.Type}.Key()] = e
	}

	var requests []domain.ResolvedRequest
	for _, req := range m.Requests() {
		rr := domain.ResolvedRequest{Request: req}
		if e, ok := edges[req.Key()]; ok && !e.Missing() {
			rr.ModuleID = in.ModuleIDs[e.To]
			if e.Kind() == domain.KindAsync {
				rr.ChunkIDs = asyncChunks[e.To]
			}
		}
		requests = append(requests, rr)
	}

	errs := make([]string, 0, len(m.Errors))
	for _, err := range m.Errors {
		errs = append(errs, err.Error())
	}

	return domain.CodegenInput{
		Identity: m.Identity,
		ModuleID: in.ModuleIDs[m.ID],
		State:    m.State,
		Build:    m.Build,
		Requests: requests,
		Runtime:  rt,
		Errors:   errs,
	}
}

func (g *Generator) generate(
	ctx context.Context,
	session *cache.Session,
	in domain.CodegenInput,
	optionsDigest string,
) (domain.CodegenResult, error) {
	fp := g.fingerprint(in, optionsDigest)
	if res, ok := cache.Load[domain.CodegenResult](ctx, session, domain.CacheCodeGeneration, fp); ok {
		return res, nil
	}

	res, err := g.gen.Generate(ctx, in)
	if err != nil {
		return domain.CodegenResult{}, zerr.With(zerr.Wrap(err, domain.ErrCodeGeneration.Error()), "module", in.Identity.String())
	}
	cache.Save(session, domain.CacheCodeGeneration, fp, res)
	return res, nil
}

// fingerprint covers everything the generated code depends on: the module,
// its build output, the runtime and the ids its requests resolved to.
func (g *Generator) fingerprint(in domain.CodegenInput, optionsDigest string) domain.Fingerprint {
	digest := ""
	if in.Build != nil {
		digest = in.Build.Digest
	}
	parts := []string{
		"codegen",
		in.Identity.String(),
		in.ModuleID,
		in.State.String(),
		digest,
		in.Runtime,
		optionsDigest,
	}
	for _, r := range in.Requests {
		parts = append(parts, r.Request.Key()+"="+r.ModuleID+"@"+strings.Join(r.ChunkIDs, ","))
	}
	parts = append(parts, in.Errors...)
	return domain.Fingerprint(g.hasher.Fingerprint(parts...))
}
