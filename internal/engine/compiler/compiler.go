// Package compiler runs compilation passes over a long-lived module graph and
// result cache. A Compiler outlives its passes; each pass produces a read-only
// Compilation.
package compiler

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/pack/internal/engine/cache"
	"go.trai.ch/pack/internal/engine/chunkgraph"
	"go.trai.ch/pack/internal/engine/codegen"
	"go.trai.ch/pack/internal/engine/hashing"
	"go.trai.ch/pack/internal/engine/hooks"
	"go.trai.ch/pack/internal/engine/incremental"
	"go.trai.ch/pack/internal/engine/scheduler"
)

// spanBuildModuleGraph names the span around the scheduler pass.
const spanBuildModuleGraph = "build module graph"

type entryRecord struct {
	request string
	context string
	result  scheduler.EntryResult
}

// pass is the bookkeeping of one in-flight run.
type pass struct {
	seq         uint64
	token       string
	cancel      context.CancelFunc
	incremental bool
	changed     []string
	removed     []string
	prev        *domain.ModuleGraph
	prevEntries map[string]entryRecord
}

// Compiler owns the module graph and cache shared by successive passes.
type Compiler struct {
	opts    domain.CompilerOptions
	sched   *scheduler.Scheduler
	codegen *codegen.Generator
	gen     ports.CodeGenerator
	hasher  ports.Hasher
	cache   *cache.Cache
	tracer  ports.Tracer
	logger  ports.Logger

	hooks           *hooks.Hooks
	thisCompilation *hooks.Slot[*Compilation]

	resolveDigest string
	buildDigest   string
	codegenDigest string

	mu      sync.Mutex
	seq     uint64
	current *pass
	graph   *domain.ModuleGraph
	entries map[string]entryRecord
	// changed and removed accumulate until a pass commits.
	changed []string
	removed []string
}

// New creates a Compiler for the given options. The compiler takes ownership
// of the cache and closes it in Close.
func New(
	opts domain.CompilerOptions,
	sched *scheduler.Scheduler,
	gen ports.CodeGenerator,
	hasher ports.Hasher,
	c *cache.Cache,
	tracer ports.Tracer,
	logger ports.Logger,
) *Compiler {
	parts := []string{"resolve"}
	parts = append(parts, opts.Resolve.Extensions...)
	for _, a := range opts.Resolve.Alias {
		parts = append(parts, a.Name+"="+a.Target)
	}

	return &Compiler{
		opts:            opts,
		sched:           sched,
		codegen:         codegen.New(gen, hasher),
		gen:             gen,
		hasher:          hasher,
		cache:           c,
		tracer:          tracer,
		logger:          logger,
		hooks:           hooks.New(),
		thisCompilation: hooks.NewSlot[*Compilation]("thisCompilation"),
		resolveDigest:   hasher.Fingerprint(parts...),
		buildDigest:     hasher.Fingerprint("build", opts.Mode),
		codegenDigest:   hasher.Fingerprint("codegen", opts.Mode),
	}
}

// Hooks returns the extension points invoked by every pass.
func (c *Compiler) Hooks() *hooks.Hooks {
	return c.hooks
}

// ThisCompilation is called with every new Compilation before its module
// graph is built. Callbacks may enqueue additional entries.
func (c *Compiler) ThisCompilation() *hooks.Slot[*Compilation] {
	return c.thisCompilation
}

// Options returns the options the compiler was created with.
func (c *Compiler) Options() domain.CompilerOptions {
	return c.opts
}

// Build runs a full pass from a fresh module graph, superseding any pass in flight.
func (c *Compiler) Build(ctx context.Context) (*Compilation, error) {
	return c.run(ctx, nil, nil, false)
}

// Rebuild runs a pass for the given changed and removed paths, superseding
// any pass in flight. In incremental mode only the affected part of the
// previous module graph is processed again.
func (c *Compiler) Rebuild(ctx context.Context, changed, removed []string) (*Compilation, error) {
	return c.run(ctx, changed, removed, c.opts.Incremental)
}

// RebuildAsync runs Rebuild in the background and reports its outcome to done.
func (c *Compiler) RebuildAsync(
	ctx context.Context,
	changed, removed []string,
	done func(*Compilation, error),
) {
	go func() {
		done(c.Rebuild(ctx, changed, removed))
	}()
}

// Close aborts the pass in flight and closes the cache.
func (c *Compiler) Close() error {
	c.mu.Lock()
	if c.current != nil {
		c.current.cancel()
		c.current = nil
	}
	c.mu.Unlock()
	return c.cache.Close()
}

func (c *Compiler) run(ctx context.Context, changed, removed []string, reuse bool) (*Compilation, error) {
	ctx, p := c.begin(ctx, changed, removed, reuse)
	defer p.cancel()

	comp, err := c.compile(ctx, p)
	if err != nil {
		c.release(p)
		if ctx.Err() != nil && !errors.Is(err, domain.ErrCompilationAborted) {
			err = errors.Join(domain.ErrCompilationAborted, ctx.Err())
		}
		return nil, err
	}
	return comp, nil
}

// begin cancels the pass in flight and starts a new one carrying its change sets.
func (c *Compiler) begin(ctx context.Context, changed, removed []string, reuse bool) (context.Context, *pass) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.cancel()
	}
	c.changed = append(c.changed, changed...)
	c.removed = append(c.removed, removed...)
	c.seq++

	ctx, cancel := context.WithCancel(ctx)
	p := &pass{
		seq:         c.seq,
		token:       strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(c.seq, 10),
		cancel:      cancel,
		incremental: reuse,
		changed:     slices.Clone(c.changed),
		removed:     slices.Clone(c.removed),
		prev:        c.graph,
		prevEntries: maps.Clone(c.entries),
	}
	c.current = p
	return ctx, p
}

func (c *Compiler) release(p *pass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == p {
		c.current = nil
	}
}

// finish publishes the pass as the new baseline and commits its cache writes.
// A superseded or cancelled pass publishes nothing.
func (c *Compiler) finish(
	ctx context.Context,
	p *pass,
	session *cache.Session,
	graph *domain.ModuleGraph,
	entries map[string]entryRecord,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != p || ctx.Err() != nil {
		return errors.Join(domain.ErrCompilationAborted, context.Canceled)
	}
	if err := session.Commit(ctx); err != nil {
		c.logger.Warn("cache commit failed: " + err.Error())
	}
	c.graph = graph
	c.entries = entries
	c.changed = nil
	c.removed = nil
	c.current = nil
	return nil
}

//nolint:cyclop,funlen // The pass is a linear pipeline.
func (c *Compiler) compile(ctx context.Context, p *pass) (comp *Compilation, err error) {
	comp = newCompilation(c.opts)
	for _, e := range c.opts.Entries {
		if _, err := comp.EnqueueEntry(e.Name, e.Request, c.opts.Context); err != nil {
			return nil, err
		}
	}
	if err := c.thisCompilation.Call(ctx, comp); err != nil {
		return nil, err
	}
	pending := comp.seal()
	if len(pending) == 0 {
		return nil, domain.ErrNoEntries
	}
	defer func() {
		if err != nil {
			for _, pe := range pending {
				pe.Resolve(nil, err)
			}
		}
	}()

	session := c.cache.Begin(p.token)
	defer session.Discard()

	graph, seeds, plan, records := c.prepare(ctx, p, pending)
	comp.Incremental = p.incremental && p.prev != nil

	res, err := c.buildModuleGraph(ctx, scheduler.Input{
		Graph:         graph,
		Session:       session,
		Hooks:         c.hooks,
		Entries:       seeds,
		Rebuild:       plan.Rebuild,
		Refactorize:   plan.Refactorize,
		Parallelism:   c.opts.Parallelism,
		ResolveDigest: c.resolveDigest,
		BuildDigest:   c.buildDigest,
	})
	if err != nil {
		return nil, err
	}
	comp.Timings.Merge(res.Timings)
	comp.Built = res.Built
	for _, pe := range pending {
		if r, ok := res.Entries[pe.Name]; ok {
			records[pe.Name] = entryRecord{request: pe.Request, context: pe.Context, result: r}
		}
	}

	chunkEntries := make([]chunkgraph.Entry, 0, len(pending))
	var roots []domain.ModuleID
	for _, pe := range pending {
		id := records[pe.Name].result.Module
		chunkEntries = append(chunkEntries, chunkgraph.Entry{Name: pe.Name, Module: id})
		if id != domain.MissingModule {
			roots = append(roots, id)
		}
	}
	incremental.Collect(graph, roots)

	if err := graph.Validate(); err != nil {
		return nil, domain.Diagnostic{Kind: domain.GraphError, Severity: domain.SeverityError, Err: err}
	}
	comp.Graph = graph

	var warnings []domain.Diagnostic
	err = c.phase(ctx, comp, domain.PhaseCreateChunks, func(ctx context.Context) error {
		comp.Chunks, warnings = chunkgraph.Build(graph, chunkEntries, chunkgraph.Options{
			SplitChunks:  c.opts.SplitChunks,
			RuntimeChunk: c.opts.RuntimeChunk,
		})
		return c.hooks.AfterChunks.Call(ctx, comp.Chunks)
	})
	if err != nil {
		return nil, err
	}

	_ = c.phase(ctx, comp, domain.PhaseModuleIDs, func(context.Context) error {
		comp.ModuleIDs = hashing.ModuleIDs(graph, c.opts.Context)
		return nil
	})
	_ = c.phase(ctx, comp, domain.PhaseChunkIDs, func(context.Context) error {
		hashing.AssignChunkIDs(comp.Chunks, graph, c.opts.Context)
		return nil
	})

	var results *codegen.Results
	err = c.phase(ctx, comp, domain.PhaseCodeGeneration, func(ctx context.Context) error {
		var err error
		results, err = c.codegen.Run(ctx, codegen.Input{
			Graph:         graph,
			Chunks:        comp.Chunks,
			ModuleIDs:     comp.ModuleIDs,
			Session:       session,
			Parallelism:   c.opts.Parallelism,
			OptionsDigest: c.codegenDigest,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	_ = c.phase(ctx, comp, domain.PhaseRuntimeRequirements, func(context.Context) error {
		chunkgraph.PropagateRuntimeRequirements(comp.Chunks, results.Requirements)
		return nil
	})

	err = c.phase(ctx, comp, domain.PhaseHashing, func(ctx context.Context) error {
		hashChunks(comp, results)
		return c.hooks.AfterHash.Call(ctx, comp.Chunks)
	})
	if err != nil {
		return nil, err
	}

	if err := c.render(ctx, comp, results); err != nil {
		return nil, err
	}

	comp.Diagnostics = diagnostics(graph, pending, records, warnings)
	comp.Cache, _ = session.Counters()

	if err := c.finish(ctx, p, session, graph, records); err != nil {
		return nil, err
	}

	for _, pe := range pending {
		g, _ := comp.Chunks.Entrypoint(pe.Name)
		pe.Resolve(g, records[pe.Name].result.Err)
	}
	comp.Duration = time.Since(comp.StartTime)
	return comp, nil
}

// prepare derives the graph to process and the work to seed it with. In
// incremental mode the previous graph is cloned and only the affected region
// is scheduled; otherwise the pass starts from an empty graph and the plan
// only serves cache invalidation.
func (c *Compiler) prepare(
	ctx context.Context,
	p *pass,
	pending []*domain.PendingEntrypoint,
) (*domain.ModuleGraph, []scheduler.Entry, incremental.Plan, map[string]entryRecord) {
	graph := domain.NewModuleGraph()
	var plan incremental.Plan
	if p.prev != nil {
		prevResults := make(map[string]scheduler.EntryResult, len(p.prevEntries))
		for name, r := range p.prevEntries {
			prevResults[name] = r.result
		}
		scratch := p.prev.Clone()
		plan = incremental.Apply(scratch, incremental.Update{
			Changed: p.changed,
			Removed: p.removed,
			Entries: prevResults,
		})
		if p.incremental {
			graph = scratch
		}
	}
	if err := c.cache.InvalidatePaths(ctx, plan.Invalidate); err != nil {
		c.logger.Warn("cache invalidation failed: " + err.Error())
	}

	records := make(map[string]entryRecord, len(pending))
	if !p.incremental || p.prev == nil {
		seeds := make([]scheduler.Entry, 0, len(pending))
		for _, pe := range pending {
			seeds = append(seeds, scheduler.Entry{Name: pe.Name, Request: pe.Request, Context: pe.Context})
		}
		return graph, seeds, incremental.Plan{}, records
	}

	reresolve := make(map[string]bool, len(plan.Entries))
	for _, name := range plan.Entries {
		reresolve[name] = true
	}
	var seeds []scheduler.Entry
	for _, pe := range pending {
		prev, ok := p.prevEntries[pe.Name]
		if ok && !reresolve[pe.Name] && prev.request == pe.Request && prev.context == pe.Context {
			if _, alive := graph.Module(prev.result.Module); alive || prev.result.Module == domain.MissingModule {
				records[pe.Name] = prev
				continue
			}
		}
		seeds = append(seeds, scheduler.Entry{Name: pe.Name, Request: pe.Request, Context: pe.Context})
	}
	return graph, seeds, plan, records
}

func (c *Compiler) buildModuleGraph(ctx context.Context, in scheduler.Input) (*scheduler.Result, error) {
	ctx, span := c.tracer.Start(ctx, spanBuildModuleGraph, ports.WithPhase())
	defer span.End()

	res, err := c.sched.Run(ctx, in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("modules", in.Graph.Len())
	span.SetAttribute("built", len(res.Built))
	return res, nil
}

// phase runs fn inside a span and records its duration under name.
func (c *Compiler) phase(ctx context.Context, comp *Compilation, name string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, name, ports.WithPhase())
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	comp.Timings.Add(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
	}
	return err
}
