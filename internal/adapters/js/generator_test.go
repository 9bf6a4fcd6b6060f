package js_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/adapters/fs"
	"go.trai.ch/pack/internal/adapters/js"
	"go.trai.ch/pack/internal/core/domain"
)

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	hasher := fs.NewHasher()
	gen := js.NewGenerator(hasher)

	in := domain.CodegenInput{
		Identity: domain.NewIdentifier("/p/a.js"),
		ModuleID: "1",
		State:    domain.StateBuilt,
		Build: &domain.BuildResult{
			Code: []byte("const a = __PACK_DEP_0__;\n__PACK_DEP_1__.then(() => {});\n__PACK_DEP_2__;\n__PACK_DEP_3__;"),
		},
		Requests: []domain.ResolvedRequest{
			{Request: domain.DependencyRequest{Request: "./a", Type: domain.DepCjsRequire}, ModuleID: "1"},
			{Request: domain.DependencyRequest{Request: "./b", Type: domain.DepDynamicImport}, ModuleID: "2", ChunkIDs: []string{"7"}},
			{Request: domain.DependencyRequest{Request: "./c", Type: domain.DepRequireResolve}, ModuleID: "3"},
			{Request: domain.DependencyRequest{Request: "./missing", Type: domain.DepCjsRequire}},
		},
	}

	res, err := gen.Generate(context.Background(), in)
	require.NoError(t, err)

	want := "var exports = __pack_exports__;\n" +
		"const a = __pack_require__(\"1\");\n" +
		"__pack_require__.e([\"7\"]).then(__pack_require__.bind(__pack_require__, \"2\")).then(() => {});\n" +
		"__pack_require__.w(\"3\");\n" +
		"/* \"./missing\" */ (() => { throw new Error(\"Cannot find module './missing'\"); })();"
	assert.Equal(t, want, string(res.Code))
	assert.Equal(t, hasher.Digest([]byte(want)), res.Hash)
	assert.Equal(t, []string{
		domain.RuntimeRequire,
		domain.RuntimeEnsureChunk,
		domain.RuntimeRequireResolveWeak,
		domain.RuntimeModule,
	}, res.RuntimeRequirements)
}

func TestGenerator_Generate_ESM(t *testing.T) {
	t.Parallel()

	res, err := js.NewGenerator(fs.NewHasher()).Generate(context.Background(), domain.CodegenInput{
		Identity: domain.NewIdentifier("/p/a.js"),
		State:    domain.StateBuilt,
		Build:    &domain.BuildResult{Code: []byte("__pack_require__.r(__pack_exports__);"), ESM: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "__pack_require__.r(__pack_exports__);", string(res.Code))
	assert.Equal(t, []string{
		domain.RuntimeRequire,
		domain.RuntimeDefineGetters,
		domain.RuntimeMakeNamespace,
	}, res.RuntimeRequirements)
}

func TestGenerator_Generate_MissingDynamicImport(t *testing.T) {
	t.Parallel()

	res, err := js.NewGenerator(fs.NewHasher()).Generate(context.Background(), domain.CodegenInput{
		State: domain.StateBuilt,
		Build: &domain.BuildResult{Code: []byte("__PACK_DEP_0__;"), ESM: true},
		Requests: []domain.ResolvedRequest{
			{Request: domain.DependencyRequest{Request: "./gone", Type: domain.DepDynamicImport}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "/* \"./gone\" */ Promise.reject(new Error(\"Cannot find module './gone'\"));", string(res.Code))
}

func TestGenerator_Generate_FailedModule(t *testing.T) {
	t.Parallel()

	res, err := js.NewGenerator(fs.NewHasher()).Generate(context.Background(), domain.CodegenInput{
		Identity: domain.NewIdentifier("/p/a.js"),
		State:    domain.StateFailed,
		Errors:   []string{"boom"},
	})
	require.NoError(t, err)
	assert.Equal(t, `throw new Error("Module build failed: /p/a.js\nboom");`, string(res.Code))
	assert.Equal(t, []string{domain.RuntimeRequire}, res.RuntimeRequirements)
}

func TestGenerator_Generate_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := js.NewGenerator(fs.NewHasher()).Generate(ctx, domain.CodegenInput{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_RenderChunk_Registry(t *testing.T) {
	t.Parallel()

	out, err := js.NewGenerator(fs.NewHasher()).RenderChunk(context.Background(), domain.ChunkRenderInput{
		ChunkID: "7",
		Modules: []domain.RenderedModule{{ID: "3", Code: []byte("x();")}},
	})
	require.NoError(t, err)

	want := "(globalThis[\"packChunk\"] = globalThis[\"packChunk\"] || []).push([[\"7\"], {\n" +
		"\"3\": (module, __pack_exports__, __pack_require__) => {\nx();\n},\n" +
		"}]);\n"
	assert.Equal(t, want, string(out))
}

func TestGenerator_RenderChunk_Host(t *testing.T) {
	t.Parallel()

	out, err := js.NewGenerator(fs.NewHasher()).RenderChunk(context.Background(), domain.ChunkRenderInput{
		ChunkID:      "main",
		Modules:      []domain.RenderedModule{{ID: "585", Code: []byte("run();")}},
		Runtime:      []string{domain.RuntimeRequire, domain.RuntimeEnsureChunk},
		EntryModules: []string{"585"},
		ChunkFiles:   map[string]string{"main": "main.js", "7": "7.js"},
	})
	require.NoError(t, err)

	code := string(out)
	assert.True(t, strings.HasPrefix(code, "(() => {\nconst __pack_modules__ = {\n\"585\": "))
	assert.Contains(t, code, `const __pack_chunk_files__ = {"7":"7.js","main":"main.js"};`)
	assert.Contains(t, code, `const __pack_installed_chunks__ = { "main": 0 };`)
	assert.Contains(t, code, "__pack_require__.e = ")
	assert.NotContains(t, code, "__pack_require__.w = ")
	assert.NotContains(t, code, "__pack_require__.O = ")
	assert.True(t, strings.HasSuffix(code, "__pack_require__(\"585\");\n})();\n"))
}

func TestGenerator_RenderChunk_EntryDependencies(t *testing.T) {
	t.Parallel()

	gen := js.NewGenerator(fs.NewHasher())
	host, err := gen.RenderChunk(context.Background(), domain.ChunkRenderInput{
		ChunkID:           "main",
		Runtime:           []string{domain.RuntimeRequire, domain.RuntimeOnChunksLoaded},
		EntryModules:      []string{"585"},
		EntryDependencies: []string{"vendors"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(host), "__pack_require__.O = ")
	assert.True(t, strings.HasSuffix(string(host),
		"__pack_require__.O([\"vendors\"], () => {\n  __pack_require__(\"585\");\n});\n})();\n"))

	chunk, err := gen.RenderChunk(context.Background(), domain.ChunkRenderInput{
		ChunkID:      "other",
		EntryModules: []string{"1"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(chunk), "}, (__pack_require__) => {\n  __pack_require__(\"1\");\n}]);\n"))
}

func TestLoaderAndGenerator(t *testing.T) {
	t.Parallel()

	res := build(t, "/p/index.js", "import a from \"./a\";\nexport const b = require(\"./b\") + a;\n")
	reqs := make([]domain.ResolvedRequest, 0, len(res.Requests))
	for i, r := range res.Requests {
		reqs = append(reqs, domain.ResolvedRequest{Request: r, ModuleID: string(rune('1' + i))})
	}

	out, err := js.NewGenerator(fs.NewHasher()).Generate(context.Background(), domain.CodegenInput{
		State:    domain.StateBuilt,
		Build:    res,
		Requests: reqs,
	})
	require.NoError(t, err)

	code := string(out.Code)
	assert.NotContains(t, code, "__PACK_DEP_")
	assert.Contains(t, code, `const __pack_import_0__ = __pack_require__("1");`)
	assert.Contains(t, code, `const b = __pack_require__("2") + a;`)
}
