package compiler

import (
	"slices"
	"sync"
	"time"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/zerr"
)

// Compilation is the outcome of one build or rebuild pass. Once returned it
// is read-only.
type Compilation struct {
	Options domain.CompilerOptions
	// Hash combines the hashes of every chunk.
	Hash   string
	Graph  *domain.ModuleGraph
	Chunks *domain.ChunkGraph
	// ModuleIDs are the rendered deterministic ids per module.
	ModuleIDs   map[domain.ModuleID]string
	Assets      []domain.Asset
	Diagnostics []domain.Diagnostic
	Timings     domain.Timings
	// Built lists the modules that went through the build task in this pass.
	Built []domain.ModuleID
	// Incremental is set when the pass reused the previous module graph.
	Incremental bool
	StartTime   time.Time
	Duration    time.Duration

	// Cache holds the hit counters per cache kind, nil when the cache is disabled.
	Cache map[domain.CacheKind]domain.CacheCounter

	mu          sync.Mutex
	sealed      bool
	entrypoints []*domain.PendingEntrypoint
}

func newCompilation(opts domain.CompilerOptions) *Compilation {
	return &Compilation{
		Options:   opts,
		Timings:   domain.Timings{},
		StartTime: time.Now(),
	}
}

// EnqueueEntry adds an entrypoint to the compilation and returns its pending
// handle. The handle resolves to the entry's chunk group once chunks are
// assembled. Entries can only be added before the module graph build starts.
func (c *Compilation) EnqueueEntry(name, request, contextDir string) (*domain.PendingEntrypoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return nil, zerr.With(domain.ErrEntriesSealed, "entry", name)
	}
	for _, p := range c.entrypoints {
		if p.Name == name {
			return nil, zerr.With(domain.ErrDuplicateEntry, "entry", name)
		}
	}
	p, err := domain.NewPendingEntrypoint(name, request, contextDir)
	if err != nil {
		return nil, err
	}
	c.entrypoints = append(c.entrypoints, p)
	return p, nil
}

func (c *Compilation) seal() []*domain.PendingEntrypoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	return slices.Clone(c.entrypoints)
}

// Entrypoints returns the entry handles in declaration order.
func (c *Compilation) Entrypoints() []*domain.PendingEntrypoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.entrypoints)
}

// Counters returns the cache hit counters of the pass. ok is false when the
// cache was disabled.
func (c *Compilation) Counters() (map[domain.CacheKind]domain.CacheCounter, bool) {
	return c.Cache, c.Cache != nil
}

// Errors returns the error diagnostics.
func (c *Compilation) Errors() []domain.Diagnostic {
	return c.filter(domain.SeverityError)
}

// Warnings returns the warning diagnostics.
func (c *Compilation) Warnings() []domain.Diagnostic {
	return c.filter(domain.SeverityWarning)
}

func (c *Compilation) filter(sev domain.Severity) []domain.Diagnostic {
	var out []domain.Diagnostic
	for _, d := range c.Diagnostics {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// Err joins the error diagnostics, nil when the pass had none.
func (c *Compilation) Err() error {
	return domain.JoinDiagnostics(c.Errors())
}

// Manifest describes the assets of the compilation. Integrity is left to the emitter.
func (c *Compilation) Manifest() domain.Manifest {
	m := domain.Manifest{
		Hash:        c.Hash,
		Assets:      make([]domain.ManifestEntry, 0, len(c.Assets)),
		Entrypoints: make(map[string][]string),
	}
	for _, a := range c.Assets {
		m.Assets = append(m.Assets, domain.ManifestEntry{
			Filename: a.Filename,
			ChunkID:  a.ChunkID,
			Size:     len(a.Content),
		})
	}
	if c.Chunks == nil {
		return m
	}
	for _, g := range c.Chunks.Entrypoints() {
		files := []string{}
		for _, ukey := range g.Chunks {
			if ch, ok := c.Chunks.Chunk(ukey); ok {
				files = append(files, ch.Files...)
			}
		}
		m.Entrypoints[g.Name] = files
	}
	return m
}
