package domain

import "regexp"

// RuntimeChunkStrategy selects where the bootstrap runtime lives.
type RuntimeChunkStrategy string

const (
	// RuntimeChunkNone embeds the runtime in every entry chunk.
	RuntimeChunkNone RuntimeChunkStrategy = ""
	// RuntimeChunkSingle emits one runtime chunk shared by all entrypoints.
	RuntimeChunkSingle RuntimeChunkStrategy = "single"
	// RuntimeChunkMultiple emits one runtime chunk per entrypoint.
	RuntimeChunkMultiple RuntimeChunkStrategy = "multiple"
)

// ChunksFilter selects which chunks a cache group considers.
type ChunksFilter string

const (
	// ChunksAll considers every chunk.
	ChunksAll ChunksFilter = "all"
	// ChunksInitial considers chunks loaded by entrypoints.
	ChunksInitial ChunksFilter = "initial"
	// ChunksAsync considers chunks loaded on demand.
	ChunksAsync ChunksFilter = "async"
)

// CacheType selects the cache store backend.
type CacheType string

const (
	// CacheMemory keeps entries for the lifetime of the process.
	CacheMemory CacheType = "memory"
	// CacheFilesystem persists entries on disk.
	CacheFilesystem CacheType = "filesystem"
)

// EntryOptions declares one named entrypoint.
type EntryOptions struct {
	Name    string
	Request string
}

// ResolveOptions configures request resolution.
type ResolveOptions struct {
	Extensions []string
	// Alias maps a request prefix to a replacement, in declaration order.
	Alias []AliasOptions
}

// AliasOptions is one alias rule.
type AliasOptions struct {
	Name   string
	Target string
}

// CacheOptions configures the result caches.
type CacheOptions struct {
	Enabled bool
	Type    CacheType
	// Directory is where the filesystem cache lives, relative to the context.
	Directory string
}

// CacheGroup is one split chunks rule.
type CacheGroup struct {
	// Key is the declared name of the group in configuration.
	Key string
	// Name, when set, forces every selected module into one chunk with this name.
	Name      string
	Test      *regexp.Regexp
	Priority  int
	MinChunks int
	MinSize   int
	MaxSize   int
	Chunks    ChunksFilter
}

// SplitChunksOptions configures the splitting pass.
type SplitChunksOptions struct {
	Enabled   bool
	MinSize   int
	MaxSize   int
	MinChunks int
	Chunks    ChunksFilter
	// CacheGroups are in declaration order.
	CacheGroups []CacheGroup
}

// OutputOptions configures emitted assets.
type OutputOptions struct {
	Path     string
	Filename string
}

// CompilerOptions is the full configuration of a compiler instance.
type CompilerOptions struct {
	// Context is the absolute directory requests of entries are resolved from.
	Context      string
	Mode         string
	Entries      []EntryOptions
	Cache        CacheOptions
	Incremental  bool
	Parallelism  int
	Profile      bool
	Resolve      ResolveOptions
	SplitChunks  SplitChunksOptions
	RuntimeChunk RuntimeChunkStrategy
	Output       OutputOptions
}

// DefaultExtensions are tried in order when a request has no extension.
var DefaultExtensions = []string{".js", ".mjs", ".cjs", ".jsx", ".json"}

// DefaultOutputFilename is the asset name template used when none is configured.
const DefaultOutputFilename = "[name].[contenthash].js"

// DefaultCompilerOptions returns options for a development build of the given context.
func DefaultCompilerOptions(contextDir string) CompilerOptions {
	return CompilerOptions{
		Context:     contextDir,
		Mode:        "development",
		Cache:       CacheOptions{Enabled: true, Type: CacheMemory},
		Incremental: true,
		Resolve:     ResolveOptions{Extensions: DefaultExtensions},
		Output:      OutputOptions{Path: "dist", Filename: DefaultOutputFilename},
	}
}

// DefaultCacheGroups mirrors the conventional vendor/default split rules.
func DefaultCacheGroups() []CacheGroup {
	return []CacheGroup{
		{
			Key:       "defaultVendors",
			Test:      regexp.MustCompile(`[\\/]node_modules[\\/]`),
			Priority:  -10,
			MinChunks: 1,
		},
		{
			Key:       "default",
			Priority:  -20,
			MinChunks: 2,
		},
	}
}
