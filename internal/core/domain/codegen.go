package domain

// Runtime requirement names. They are the helpers a module or chunk needs
// from the bootstrap runtime.
const (
	RuntimeRequire            = "__pack_require__"
	RuntimeModule             = "module"
	RuntimeMakeNamespace      = "__pack_require__.r"
	RuntimeDefineGetters      = "__pack_require__.d"
	RuntimeEnsureChunk        = "__pack_require__.e"
	RuntimeModuleCache        = "__pack_require__.c"
	RuntimeOnChunksLoaded     = "__pack_require__.O"
	RuntimeRequireResolveWeak = "__pack_require__.w"
)

// ResolvedRequest maps a request of a module to the id of its target module.
type ResolvedRequest struct {
	Request DependencyRequest `json:"request"`
	// ModuleID is the rendered id of the target, empty when the request is missing.
	ModuleID string `json:"moduleId"`
	// ChunkIDs lists the chunks to load first for async requests.
	ChunkIDs []string `json:"chunkIds,omitempty"`
}

// CodegenInput is everything the code generator needs for one module.
type CodegenInput struct {
	Identity Identifier
	ModuleID string
	State    BuildState
	Build    *BuildResult
	Requests []ResolvedRequest
	// Runtime is the runtime spec the code is generated for.
	Runtime string
	// Errors are rendered into the output of failed modules.
	Errors []string
}

// CodegenResult is the generated code of a module for one runtime.
// It is the value stored in the code generation cache.
type CodegenResult struct {
	Code                []byte   `json:"code"`
	Hash                string   `json:"hash"`
	RuntimeRequirements []string `json:"runtimeRequirements"`
}

// RenderedModule is a module body placed into a chunk.
type RenderedModule struct {
	ID   string
	Code []byte
}

// ChunkRenderInput is everything needed to render one chunk to an asset.
type ChunkRenderInput struct {
	ChunkID string
	Modules []RenderedModule
	// Runtime is non-empty when the chunk hosts the bootstrap runtime.
	Runtime []string
	// EntryModules are executed after the chunk loaded, in order.
	EntryModules []string
	// EntryDependencies are the chunk ids that must be loaded before the
	// entry modules run.
	EntryDependencies []string
	// ChunkFiles maps chunk ids to their file names for the chunk loader.
	ChunkFiles map[string]string
}

// Asset is an emitted output file.
type Asset struct {
	Filename string
	Content  []byte
	ChunkID  string
	Hash     string
}

// ManifestEntry records one emitted asset.
type ManifestEntry struct {
	Filename  string `json:"filename"`
	ChunkID   string `json:"chunkId"`
	Integrity string `json:"integrity"`
	Size      int    `json:"size"`
}

// Manifest describes the assets of the last emitted compilation.
type Manifest struct {
	Hash        string              `json:"hash"`
	Assets      []ManifestEntry     `json:"assets"`
	Entrypoints map[string][]string `json:"entrypoints"`
}
