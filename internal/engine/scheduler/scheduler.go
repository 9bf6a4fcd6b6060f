// Package scheduler drives the construction of the module graph to closure.
package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/pack/internal/engine/cache"
	"go.trai.ch/pack/internal/engine/hooks"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// Scheduler builds module graphs. A single Scheduler is shared by every run
// of a compiler; in-flight resolutions are shared between overlapping runs.
type Scheduler struct {
	resolver  ports.Resolver
	reader    ports.SourceReader
	loader    ports.Loader
	hasher    ports.Hasher
	telemetry ports.Telemetry

	flight singleflight.Group
}

// NewScheduler creates a new Scheduler with the given dependencies.
func NewScheduler(
	resolver ports.Resolver,
	reader ports.SourceReader,
	loader ports.Loader,
	hasher ports.Hasher,
	telemetry ports.Telemetry,
) *Scheduler {
	return &Scheduler{
		resolver:  resolver,
		reader:    reader,
		loader:    loader,
		hasher:    hasher,
		telemetry: telemetry,
	}
}

// Entry is an entrypoint request to resolve in this pass.
type Entry struct {
	Name    string
	Request string
	Context string
}

// EntryResult is the resolved root module of an entry.
type EntryResult struct {
	// Module is MissingModule when the entry request failed to resolve.
	Module domain.ModuleID
	Err    error
}

// Refactorize asks for a request issued by an existing module to be resolved again.
type Refactorize struct {
	From    domain.ModuleID
	Request domain.DependencyRequest
}

// Input describes one pass over the module graph.
type Input struct {
	// Graph is mutated in place. Callers pass a private copy.
	Graph   *domain.ModuleGraph
	Session *cache.Session
	Hooks   *hooks.Hooks
	Entries []Entry
	// Rebuild lists existing modules whose source must be built again.
	Rebuild []domain.ModuleID
	// Refactorize lists existing requests to resolve again.
	Refactorize []Refactorize
	Parallelism int
	// ResolveDigest covers the options affecting resolution.
	ResolveDigest string
	// BuildDigest covers the options affecting module builds.
	BuildDigest string
}

// Result is the outcome of a pass that reached the finish-modules barrier.
type Result struct {
	Entries map[string]EntryResult
	// Built lists, sorted, the modules that went through the build task.
	Built   []domain.ModuleID
	Timings domain.Timings
}

// Run processes the pass until the graph is closed.
// Module failures are recorded on the modules; only hook failures and
// cancellation abort the pass.
func (s *Scheduler) Run(ctx context.Context, in Input) (*Result, error) {
	if in.Hooks == nil {
		in.Hooks = hooks.New()
	}
	parallelism := in.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	state := &runState{
		s:           s,
		ctx:         ctx,
		in:          in,
		graph:       in.Graph,
		parallelism: parallelism,
		resultsCh:   make(chan result, parallelism),
		waiters:     make(map[domain.Fingerprint][]origin),
		resolved:    make(map[domain.Fingerprint]result),
		deps:        make(map[domain.ModuleID]*pendingDeps),
		queued:      make(map[domain.ModuleID]bool),
		entries:     make(map[string]EntryResult, len(in.Entries)),
		timings:     domain.Timings{},
	}
	state.seed()

	if err := state.runExecutionLoop(); err != nil {
		return nil, err
	}

	start := time.Now()
	err := in.Hooks.FinishModules.Call(ctx, state.graph)
	state.timings.Add(domain.PhaseFinishModules, time.Since(start))
	if err != nil {
		return nil, err
	}

	slices.Sort(state.built)
	return &Result{
		Entries: state.entries,
		Built:   state.built,
		Timings: state.timings,
	}, nil
}

type taskKind uint8

const (
	taskFactorize taskKind = iota
	taskBuild
)

type job struct {
	kind       taskKind
	fp         domain.Fingerprint
	request    string
	contextDir string
	module     domain.ModuleID
	identity   domain.Identifier
}

type result struct {
	kind     taskKind
	fp       domain.Fingerprint
	identity domain.Identifier
	module   domain.ModuleID
	build    *domain.BuildResult
	cached   bool
	err      error
	dur      time.Duration
}

// origin is a continuation waiting for a factorize result.
type origin struct {
	// entry is set for entrypoint requests.
	entry string
	from  domain.ModuleID
	// slot indexes the pending dependencies of from; -1 for a refactorized request.
	slot int
	req  domain.DependencyRequest
}

type pendingDeps struct {
	edges     []domain.DependencyEdge
	remaining int
}

type runState struct {
	s           *Scheduler
	ctx         context.Context
	in          Input
	graph       *domain.ModuleGraph
	parallelism int

	ready     []job
	active    int
	resultsCh chan result
	fatal     error

	waiters  map[domain.Fingerprint][]origin
	resolved map[domain.Fingerprint]result
	deps     map[domain.ModuleID]*pendingDeps
	queued   map[domain.ModuleID]bool

	entries map[string]EntryResult
	built   []domain.ModuleID
	timings domain.Timings
}

func (state *runState) seed() {
	rebuild := make(map[domain.ModuleID]bool, len(state.in.Rebuild))
	for _, id := range state.in.Rebuild {
		if _, ok := state.graph.Module(id); ok {
			rebuild[id] = true
			state.enqueueBuild(id)
		}
	}

	seen := make(map[domain.ModuleID]map[string]bool)
	for _, r := range state.in.Refactorize {
		m, ok := state.graph.Module(r.From)
		if !ok || rebuild[r.From] {
			continue
		}
		if seen[r.From] == nil {
			seen[r.From] = make(map[string]bool)
		}
		if seen[r.From][r.Request.Key()] {
			continue
		}
		seen[r.From][r.Request.Key()] = true
		state.enqueueFactorize(origin{from: r.From, slot: -1, req: r.Request}, filepath.Dir(m.Identity.String()))
	}

	for _, e := range state.in.Entries {
		req := domain.DependencyRequest{Request: e.Request, Type: domain.DepEntry}
		state.enqueueFactorize(origin{entry: e.Name, from: domain.MissingModule, slot: -1, req: req}, e.Context)
	}
}

func (state *runState) runExecutionLoop() error {
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
			// Outstanding tasks are abandoned; their sends fit the buffer.
			return errors.Join(domain.ErrCompilationAborted, state.ctx.Err())
		}
	}

	return state.fatal
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *runState) schedule() {
	if state.fatal != nil {
		state.ready = nil
		return
	}
	for len(state.ready) > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		j := state.ready[0]
		state.ready = state.ready[1:]
		state.active++

		go state.execute(j)
	}
}

func (state *runState) execute(j job) {
	var res result
	switch j.kind {
	case taskFactorize:
		res = state.factorize(j)
	case taskBuild:
		res = state.build(j)
	}
	state.resultsCh <- res
}

func (state *runState) handleResult(res result) {
	state.active--

	switch res.kind {
	case taskFactorize:
		state.timings.Add(domain.PhaseFactorize, res.dur)
		state.resolved[res.fp] = res
		waiters := state.waiters[res.fp]
		delete(state.waiters, res.fp)
		for _, o := range waiters {
			state.add(o, res)
		}
	case taskBuild:
		state.timings.Add(domain.PhaseBuild, res.dur)
		state.finishBuild(res)
	}
}

func (state *runState) enqueueFactorize(o origin, contextDir string) {
	fp := domain.Fingerprint(state.s.hasher.Fingerprint(
		domain.CacheFactorize.String(), contextDir, o.req.Request, state.in.ResolveDigest,
	))

	if res, ok := state.resolved[fp]; ok {
		state.add(o, res)
		return
	}
	if waiters, ok := state.waiters[fp]; ok {
		state.waiters[fp] = append(waiters, o)
		return
	}
	state.waiters[fp] = []origin{o}
	state.ready = append(state.ready, job{
		kind:       taskFactorize,
		fp:         fp,
		request:    o.req.Request,
		contextDir: contextDir,
	})
}

func (state *runState) enqueueBuild(id domain.ModuleID) {
	if state.queued[id] {
		return
	}
	m, ok := state.graph.Module(id)
	if !ok {
		return
	}
	state.queued[id] = true
	m.State = domain.StateBuilding
	state.ready = append(state.ready, job{kind: taskBuild, module: id, identity: m.Identity})
}

// add registers the resolved module and hands the edge to whoever asked for it.
func (state *runState) add(o origin, res result) {
	start := time.Now()

	target := domain.MissingModule
	var edgeErr error
	if res.err != nil {
		edgeErr = zerr.With(res.err, "request", o.req.Request)
	} else {
		id, created := state.graph.AddModule(res.identity)
		target = id
		if created {
			m, _ := state.graph.Module(id)
			m.Profile.Resolving = res.dur
			state.hook(state.in.Hooks.ModuleAdded.Call(state.ctx, m.Clone()))
			state.enqueueBuild(id)
		}
	}
	state.timings.Add(domain.PhaseModuleAdd, time.Since(start))

	if o.entry != "" {
		state.entries[o.entry] = EntryResult{Module: target, Err: edgeErr}
		return
	}

	edge := domain.DependencyEdge{
		From:    o.from,
		To:      target,
		Request: o.req.Request,
		Type:    o.req.Type,
		Err:     edgeErr,
	}
	if o.slot < 0 {
		state.replaceEdge(edge)
		return
	}
	state.fillSlot(o.from, o.slot, edge)
}

func (state *runState) finishBuild(res result) {
	m, ok := state.graph.Module(res.module)
	if !ok {
		return
	}
	state.built = append(state.built, m.ID)
	m.Profile.Building = res.dur
	m.Profile.Integration = 0

	if res.err != nil {
		m.State = domain.StateFailed
		m.Build = nil
		m.BuildCached = false
		m.Errors = []error{res.err}
		state.hook(state.graph.ReplaceEdges(m.ID, nil))
		return
	}

	m.State = domain.StateBuilt
	m.Build = res.build
	m.BuildCached = res.cached
	m.Errors = nil
	state.processDependencies(m)
}

// processDependencies diffs the requests of a freshly built module against its
// previous edges. Kept requests reuse their edge, new ones are factorized.
func (state *runState) processDependencies(m *domain.Module) {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		state.timings.Add(domain.PhaseProcessDependencies, d)
		m.Profile.Integration += d
	}()

	reqs := DedupeRequests(m.Requests())
	previous := make(map[string]domain.DependencyEdge)
	for _, e := range state.graph.Edges(m.ID) {
		if !e.Missing() {
			previous[edgeKey(e)] = e
		}
	}

	pd := &pendingDeps{edges: make([]domain.DependencyEdge, len(reqs))}
	var todo []int
	for i, r := range reqs {
		if e, ok := previous[r.Key()]; ok {
			e.Type = r.Type
			pd.edges[i] = e
			continue
		}
		todo = append(todo, i)
	}

	state.deps[m.ID] = pd
	pd.remaining = len(todo)
	if pd.remaining == 0 {
		state.completeDependencies(m.ID)
		return
	}

	dir := filepath.Dir(m.Identity.String())
	for _, i := range todo {
		state.enqueueFactorize(origin{from: m.ID, slot: i, req: reqs[i]}, dir)
	}
}

func (state *runState) fillSlot(from domain.ModuleID, slot int, edge domain.DependencyEdge) {
	pd, ok := state.deps[from]
	if !ok {
		return
	}
	pd.edges[slot] = edge
	pd.remaining--
	if pd.remaining == 0 {
		state.completeDependencies(from)
	}
}

func (state *runState) completeDependencies(id domain.ModuleID) {
	pd := state.deps[id]
	delete(state.deps, id)

	if err := state.graph.ReplaceEdges(id, pd.edges); err != nil {
		state.hook(err)
		return
	}
	m, _ := state.graph.Module(id)
	state.hook(state.in.Hooks.DependenciesProcessed.Call(state.ctx, hooks.ModuleDependencies{
		Module: m.Clone(),
		Edges:  slices.Clone(pd.edges),
	}))
}

// replaceEdge swaps the target of a refactorized request, keeping edges in request order.
func (state *runState) replaceEdge(edge domain.DependencyEdge) {
	m, ok := state.graph.Module(edge.From)
	if !ok {
		return
	}

	key := edgeKey(edge)
	edges := state.graph.Edges(edge.From)
	replaced := false
	for i := range edges {
		if edgeKey(edges[i]) == key {
			edges[i] = edge
			replaced = true
		}
	}
	if !replaced {
		edges = append(edges, edge)
	}
	SortEdges(m.Requests(), edges)

	state.hook(state.graph.ReplaceEdges(edge.From, edges))
}

func (state *runState) hook(err error) {
	if err != nil && state.fatal == nil {
		state.fatal = err
	}
}

func (state *runState) factorize(j job) (res result) {
	start := time.Now()
	res = result{kind: taskFactorize, fp: j.fp}
	defer func() { res.dur = time.Since(start) }()

	if v, ok := state.in.Session.Get(state.ctx, domain.CacheFactorize, j.fp); ok {
		res.identity = domain.NewIdentifier(string(v))
		res.cached = true
		return res
	}

	// The shared call outlives a superseded run so the next run can join it.
	ch := state.s.flight.DoChan(string(j.fp), func() (any, error) {
		return state.s.resolver.Resolve(context.WithoutCancel(state.ctx), j.request, j.contextDir)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			res.err = r.Err
			return res
		}
		res.identity = r.Val.(domain.Identifier)
	case <-state.ctx.Done():
		res.err = state.ctx.Err()
		return res
	}

	state.in.Session.Put(
		domain.CacheFactorize, j.fp, []byte(res.identity.String()),
		j.contextDir, res.identity.String(),
	)
	return res
}

func (state *runState) build(j job) result {
	start := time.Now()
	res := result{kind: taskBuild, module: j.module}

	_, vertex := state.s.telemetry.Record(state.ctx, j.identity.String())
	res.build, res.cached, res.err = state.buildModule(j.identity)
	if res.cached {
		vertex.Cached()
	}
	vertex.Complete(res.err)

	res.dur = time.Since(start)
	return res
}

func (state *runState) buildModule(identity domain.Identifier) (*domain.BuildResult, bool, error) {
	source, err := state.s.reader.Read(state.ctx, identity)
	if err != nil {
		return nil, false, err
	}

	digest := state.s.hasher.Digest(source)
	fp := domain.Fingerprint(state.s.hasher.Fingerprint(
		domain.CacheBuild.String(), identity.String(), digest, state.in.BuildDigest,
	))
	if cached, ok := cache.Load[domain.BuildResult](state.ctx, state.in.Session, domain.CacheBuild, fp); ok {
		return &cached, true, nil
	}

	built, err := state.s.loader.Build(state.ctx, identity, source)
	if err != nil {
		return nil, false, err
	}
	built.Digest = digest
	cache.Save(state.in.Session, domain.CacheBuild, fp, *built)
	return built, false, nil
}
