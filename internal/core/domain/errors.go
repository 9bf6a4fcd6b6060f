package domain

import "go.trai.ch/zerr"

var (
	// ErrResolution is returned when a module request cannot be mapped to an identity.
	ErrResolution = zerr.New("module not found")

	// ErrModuleBuild is returned when a module fails to parse or transform.
	ErrModuleBuild = zerr.New("module build failed")

	// ErrSourceRead is returned when the source of a module cannot be read.
	ErrSourceRead = zerr.New("failed to read module source")

	// ErrGraphInvariant is returned when the module graph violates an internal invariant.
	ErrGraphInvariant = zerr.New("module graph invariant violated")

	// ErrSplitConstraintUnsatisfiable is reported when chunk splitting cannot honor the configured size bounds.
	ErrSplitConstraintUnsatisfiable = zerr.New("split chunks size constraint cannot be satisfied")

	// ErrEmptyRequest is returned when an entry is declared with an empty request.
	ErrEmptyRequest = zerr.New("entry request must not be empty")

	// ErrDuplicateEntry is returned when two entries share the same name.
	ErrDuplicateEntry = zerr.New("duplicate entry name")

	// ErrEntriesSealed is returned when an entry is enqueued after the module graph build started.
	ErrEntriesSealed = zerr.New("entries can only be added before the module graph is built")

	// ErrNoEntries is returned when a compilation has no entries to build.
	ErrNoEntries = zerr.New("no entries configured")

	// ErrHookFailed is returned when a registered hook callback returns an error.
	ErrHookFailed = zerr.New("hook failed")

	// ErrCompilationAborted is returned when a compilation run is cancelled or superseded.
	ErrCompilationAborted = zerr.New("compilation aborted")

	// ErrCodeGeneration is returned when a module or chunk cannot be rendered.
	ErrCodeGeneration = zerr.New("code generation failed")

	// ErrCompilationFailed is returned by the CLI when a compilation finished with module errors.
	ErrCompilationFailed = zerr.New("compilation finished with errors")

	// ErrCacheEncode is returned when a cache value cannot be encoded.
	ErrCacheEncode = zerr.New("failed to encode cache entry")

	// ErrCacheDecode is returned when a cache value cannot be decoded.
	ErrCacheDecode = zerr.New("failed to decode cache entry")

	// ErrCacheStoreOpen is returned when the persistent cache store cannot be opened.
	ErrCacheStoreOpen = zerr.New("failed to open cache store")

	// ErrCacheStoreRead is returned when the cache store cannot be read.
	ErrCacheStoreRead = zerr.New("failed to read cache store")

	// ErrCacheStoreWrite is returned when the cache store cannot be written.
	ErrCacheStoreWrite = zerr.New("failed to write cache store")

	// ErrConfigNotFound is returned when no pack.yaml can be found.
	ErrConfigNotFound = zerr.New("could not find pack.yaml")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidRuntimeChunk is returned when the runtime chunk strategy is unknown.
	ErrInvalidRuntimeChunk = zerr.New("invalid runtimeChunk, expected '', 'single' or 'multiple'")

	// ErrInvalidCacheType is returned when the cache type is unknown.
	ErrInvalidCacheType = zerr.New("invalid cache type, expected 'memory' or 'filesystem'")

	// ErrInvalidCacheGroup is returned when a split chunks cache group is malformed.
	ErrInvalidCacheGroup = zerr.New("invalid cache group")

	// ErrInvalidChunksFilter is returned when a cache group chunks filter is unknown.
	ErrInvalidChunksFilter = zerr.New("invalid chunks filter, expected 'all', 'initial' or 'async'")

	// ErrAssetWriteFailed is returned when an output asset cannot be written.
	ErrAssetWriteFailed = zerr.New("failed to write asset")

	// ErrManifestReadFailed is returned when the asset manifest cannot be read.
	ErrManifestReadFailed = zerr.New("failed to read asset manifest")

	// ErrManifestWriteFailed is returned when the asset manifest cannot be written.
	ErrManifestWriteFailed = zerr.New("failed to write asset manifest")

	// ErrWatcherFailed is returned when the file watcher cannot be started.
	ErrWatcherFailed = zerr.New("failed to start file watcher")
)
