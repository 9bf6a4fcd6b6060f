// Package stats is the read-only query surface over a finished compilation.
// It never drives the pipeline; it only renders what a Compilation recorded.
package stats

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/engine/compiler"
	"go.trai.ch/pack/internal/engine/hashing"
)

// Options selects the sections of the report. The zero value selects nothing.
type Options struct {
	Hash        bool
	Assets      bool
	Entrypoints bool
	Chunks      bool
	Modules     bool
	// IDs adds module and chunk ids to module and chunk lines.
	IDs bool
	// Reasons lists the requests pointing at every module.
	Reasons bool
	// Profile adds the build profile of every module.
	Profile bool
	Errors  bool
	// Logging adds phase timings and cache counters.
	Logging bool
	// ModulesSpace caps the number of module lines, one being reserved
	// for the "+ n modules" line. Zero means unlimited.
	ModulesSpace int
}

// Normal is the default report of a build.
func Normal() Options {
	return Options{
		Hash:        true,
		Assets:      true,
		Entrypoints: true,
		Modules:     true,
		Errors:      true,
	}
}

// Verbose reports everything.
func Verbose() Options {
	return Options{
		Hash:        true,
		Assets:      true,
		Entrypoints: true,
		Chunks:      true,
		Modules:     true,
		IDs:         true,
		Reasons:     true,
		Profile:     true,
		Errors:      true,
		Logging:     true,
	}
}

// AssetJSON describes an emitted asset.
type AssetJSON struct {
	Name   string   `json:"name"`
	Size   int      `json:"size"`
	Chunks []string `json:"chunks"`
	// ChunkNames lists the names of the named chunks of the asset.
	ChunkNames []string `json:"chunkNames"`
}

// EntrypointJSON maps an entrypoint to its chunks. Chunks not assigned an
// id yet are null.
type EntrypointJSON struct {
	Name       string            `json:"name"`
	Chunks     []domain.ChunkRef `json:"chunks"`
	Assets     []string          `json:"assets"`
	AssetsSize int               `json:"assetsSize"`
}

// ChunkJSON describes a chunk.
type ChunkJSON struct {
	ID      domain.ChunkRef `json:"id"`
	Names   []string        `json:"names"`
	Files   []string        `json:"files"`
	Size    int             `json:"size"`
	Hash    string          `json:"hash"`
	Entry   bool            `json:"entry"`
	Initial bool            `json:"initial"`
	Runtime []string        `json:"runtime"`
	// Modules are the ids of the member modules.
	Modules []string `json:"modules"`
}

// ReasonJSON is one incoming request of a module.
type ReasonJSON struct {
	Type     string `json:"type"`
	Module   string `json:"module,omitempty"`
	ModuleID string `json:"moduleId,omitempty"`
	Request  string `json:"userRequest"`
}

// ProfileJSON is the build profile of a module in milliseconds.
type ProfileJSON struct {
	Total       int64 `json:"total"`
	Resolving   int64 `json:"resolving"`
	Integration int64 `json:"integration"`
	Building    int64 `json:"building"`
}

// ModuleJSON describes a module.
type ModuleJSON struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Size    int          `json:"size"`
	Chunks  []string     `json:"chunks"`
	Built   bool         `json:"built"`
	Cached  bool         `json:"cached"`
	Failed  bool         `json:"failed"`
	Reasons []ReasonJSON `json:"reasons"`
	Profile *ProfileJSON `json:"profile,omitempty"`
}

// DiagnosticJSON is an error or warning.
type DiagnosticJSON struct {
	Kind     string `json:"kind"`
	Module   string `json:"moduleName,omitempty"`
	Request  string `json:"request,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// TimingJSON is the duration of one phase in milliseconds.
type TimingJSON struct {
	Phase    string `json:"phase"`
	Duration int64  `json:"duration"`
}

// JSON is the machine readable report. Sections not selected are omitted.
type JSON struct {
	Hash            string                         `json:"hash,omitempty"`
	Assets          []AssetJSON                    `json:"assets,omitempty"`
	Entrypoints     map[string]EntrypointJSON      `json:"entrypoints,omitempty"`
	Chunks          []ChunkJSON                    `json:"chunks,omitempty"`
	Modules         []ModuleJSON                   `json:"modules,omitempty"`
	FilteredModules int                            `json:"filteredModules,omitempty"`
	Errors          []DiagnosticJSON               `json:"errors,omitempty"`
	ErrorsCount     *int                           `json:"errorsCount,omitempty"`
	Warnings        []DiagnosticJSON               `json:"warnings,omitempty"`
	WarningsCount   *int                           `json:"warningsCount,omitempty"`
	Timings         []TimingJSON                   `json:"timings,omitempty"`
	Cache           map[string]domain.CacheCounter `json:"cache,omitempty"`
}

// Stats reports on one compilation.
type Stats struct {
	comp *compiler.Compilation
}

// New creates a report over comp.
func New(comp *compiler.Compilation) *Stats {
	return &Stats{comp: comp}
}

// Hash returns the compilation hash.
func (s *Stats) Hash() string {
	return s.comp.Hash
}

// HasErrors reports whether the compilation recorded error diagnostics.
func (s *Stats) HasErrors() bool {
	return len(s.comp.Errors()) > 0
}

// ToJSON builds the machine readable report.
func (s *Stats) ToJSON(opts Options) JSON {
	var out JSON
	if opts.Hash {
		out.Hash = s.comp.Hash
	}
	if opts.Assets {
		out.Assets = s.assets()
	}
	if opts.Entrypoints && s.comp.Chunks != nil {
		sizes := s.assetSizes()
		out.Entrypoints = Entrypoints(s.comp.Chunks)
		for name, e := range out.Entrypoints {
			for _, a := range e.Assets {
				e.AssetsSize += sizes[a]
			}
			out.Entrypoints[name] = e
		}
	}
	if opts.Chunks {
		out.Chunks = s.chunks()
	}
	if opts.Modules {
		out.Modules = s.modules(opts.Profile)
		if opts.ModulesSpace > 0 && len(out.Modules) > opts.ModulesSpace {
			keep := max(opts.ModulesSpace-1, 0)
			out.FilteredModules = len(out.Modules) - keep
			out.Modules = out.Modules[:keep]
		}
	}
	if opts.Errors {
		out.Errors = s.diagnostics(s.comp.Errors())
		out.Warnings = s.diagnostics(s.comp.Warnings())
		errs, warns := len(out.Errors), len(out.Warnings)
		out.ErrorsCount, out.WarningsCount = &errs, &warns
	}
	if opts.Logging {
		out.Timings = s.timings()
		if counters, ok := s.comp.Counters(); ok {
			out.Cache = make(map[string]domain.CacheCounter, len(counters))
			for kind, c := range counters {
				out.Cache[kind.String()] = c
			}
		}
	}
	return out
}

// Entrypoints maps every entrypoint of cg to its chunks and files. It can be
// called at any point after chunk assembly; chunks without an id yet are
// reported as null.
func Entrypoints(cg *domain.ChunkGraph) map[string]EntrypointJSON {
	out := make(map[string]EntrypointJSON)
	for _, g := range cg.Entrypoints() {
		e := EntrypointJSON{
			Name:   g.Name,
			Chunks: cg.EntrypointChunks(g.Name),
			Assets: []string{},
		}
		for _, ukey := range g.Chunks {
			c, ok := cg.Chunk(ukey)
			if !ok {
				continue
			}
			e.Assets = append(e.Assets, c.Files...)
		}
		out[g.Name] = e
	}
	return out
}

func (s *Stats) assetSizes() map[string]int {
	sizes := make(map[string]int, len(s.comp.Assets))
	for _, a := range s.comp.Assets {
		sizes[a.Filename] = len(a.Content)
	}
	return sizes
}

func (s *Stats) assets() []AssetJSON {
	byChunk := make(map[string]*domain.Chunk)
	if s.comp.Chunks != nil {
		for c := range s.comp.Chunks.Chunks() {
			byChunk[c.ID.String()] = c
		}
	}
	out := make([]AssetJSON, 0, len(s.comp.Assets))
	for _, a := range s.comp.Assets {
		aj := AssetJSON{Name: a.Filename, Size: len(a.Content), Chunks: []string{a.ChunkID}, ChunkNames: []string{}}
		if c, ok := byChunk[a.ChunkID]; ok && c.Name != "" {
			aj.ChunkNames = append(aj.ChunkNames, c.Name)
		}
		out = append(out, aj)
	}
	return out
}

func (s *Stats) chunks() []ChunkJSON {
	if s.comp.Chunks == nil {
		return nil
	}
	var out []ChunkJSON
	for c := range s.comp.Chunks.Chunks() {
		cj := ChunkJSON{
			ID:      c.ID,
			Names:   []string{},
			Files:   slices.Clone(c.Files),
			Size:    c.Size,
			Hash:    c.Hash,
			Entry:   c.Kind == domain.ChunkEntry || c.Kind == domain.ChunkRuntime,
			Initial: s.comp.Chunks.IsInitial(c.Ukey),
			Runtime: splitRuntime(c.Runtime),
			Modules: []string{},
		}
		if c.Name != "" {
			cj.Names = append(cj.Names, c.Name)
		}
		for _, id := range c.Modules {
			cj.Modules = append(cj.Modules, s.comp.ModuleIDs[id])
		}
		out = append(out, cj)
	}
	slices.SortFunc(out, func(a, b ChunkJSON) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

func splitRuntime(rt string) []string {
	if rt == "" {
		return []string{}
	}
	return strings.Split(rt, "|")
}

func (s *Stats) name(id domain.Identifier) string {
	return hashing.RelativeIdentity(s.comp.Options.Context, id)
}

func (s *Stats) modules(profile bool) []ModuleJSON {
	if s.comp.Graph == nil {
		return nil
	}
	built := make(map[domain.ModuleID]bool, len(s.comp.Built))
	for _, id := range s.comp.Built {
		built[id] = true
	}

	var out []ModuleJSON
	for m := range s.comp.Graph.Modules() {
		mj := ModuleJSON{
			ID:      s.comp.ModuleIDs[m.ID],
			Name:    s.name(m.Identity),
			Size:    m.Size(),
			Chunks:  []string{},
			Built:   built[m.ID],
			Cached:  !built[m.ID] || m.BuildCached,
			Failed:  m.State == domain.StateFailed,
			Reasons: s.reasons(m),
		}
		if s.comp.Chunks != nil {
			for _, ukey := range s.comp.Chunks.ChunksOfModule(m.ID) {
				if c, ok := s.comp.Chunks.Chunk(ukey); ok {
					mj.Chunks = append(mj.Chunks, c.ID.String())
				}
			}
			slices.Sort(mj.Chunks)
		}
		if profile {
			mj.Profile = &ProfileJSON{
				Resolving:   m.Profile.Resolving.Milliseconds(),
				Integration: m.Profile.Integration.Milliseconds(),
				Building:    m.Profile.Building.Milliseconds(),
				Total:       m.Profile.Total().Milliseconds(),
			}
		}
		out = append(out, mj)
	}
	slices.SortFunc(out, func(a, b ModuleJSON) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// reasons lists the requests pointing at m, entry requests first.
func (s *Stats) reasons(m *domain.Module) []ReasonJSON {
	out := []ReasonJSON{}
	for _, pe := range s.comp.Entrypoints() {
		if g, ok := pe.ChunkGroup(); ok && g.Origin == m.ID {
			out = append(out, ReasonJSON{Type: domain.DepEntry.String(), Request: pe.Request})
		}
	}
	var incoming []ReasonJSON
	for _, e := range s.comp.Graph.IncomingEdges(m.ID) {
		from, ok := s.comp.Graph.Module(e.From)
		if !ok {
			continue
		}
		incoming = append(incoming, ReasonJSON{
			Type:     e.Type.String(),
			Module:   s.name(from.Identity),
			ModuleID: s.comp.ModuleIDs[e.From],
			Request:  e.Request,
		})
	}
	slices.SortFunc(incoming, func(a, b ReasonJSON) int {
		return cmp.Or(strings.Compare(a.Module, b.Module), strings.Compare(a.Request, b.Request))
	})
	return append(out, incoming...)
}

func (s *Stats) diagnostics(diags []domain.Diagnostic) []DiagnosticJSON {
	out := make([]DiagnosticJSON, 0, len(diags))
	for _, d := range diags {
		dj := DiagnosticJSON{
			Kind:     d.Kind.String(),
			Request:  d.Request,
			Severity: "error",
		}
		if d.Severity == domain.SeverityWarning {
			dj.Severity = "warning"
		}
		if !d.Module.IsZero() {
			dj.Module = s.name(d.Module)
		}
		if d.Err != nil {
			dj.Message = d.Err.Error()
		}
		out = append(out, dj)
	}
	return out
}

// timings lists the recorded phases in pipeline order.
func (s *Stats) timings() []TimingJSON {
	var out []TimingJSON
	known := make(map[string]bool, len(domain.Phases))
	for _, phase := range domain.Phases {
		known[phase] = true
		if d, ok := s.comp.Timings[phase]; ok {
			out = append(out, TimingJSON{Phase: phase, Duration: d.Milliseconds()})
		}
	}
	for _, phase := range slices.Sorted(maps.Keys(s.comp.Timings)) {
		if !known[phase] {
			out = append(out, TimingJSON{Phase: phase, Duration: s.comp.Timings[phase].Milliseconds()})
		}
	}
	return out
}
