package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/adapters/config"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func createFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), domain.FilePerm))
}

func newLoader(t *testing.T) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()
	return config.NewLoader(mockLogger)
}

func TestLoader_Load_Full(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createFile(t, root, domain.ConfigFileName, `
context: ./src
mode: production
entry:
  main: ./index.js
  admin: ./admin.js
  about: ./about.js
cache:
  type: filesystem
incremental: false
parallelism: 4
profile: true
resolve:
  extensions: ["js", ".json"]
  alias:
    "@shared": ./shared
    react: preact
optimization:
  runtimeChunk: single
  splitChunks:
    minSize: 100
    maxSize: 1000
    chunks: all
    cacheGroups:
      vendor:
        test: "[\\/]node_modules[\\/]"
        name: vendor
        priority: 10
      common:
        minChunks: 2
        chunks: initial
output:
  path: build
  filename: "[name].js"
`)

	opts, err := newLoader(t).Load(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "src"), opts.Context)
	assert.Equal(t, "production", opts.Mode)
	assert.Equal(t, []domain.EntryOptions{
		{Name: "main", Request: "./index.js"},
		{Name: "admin", Request: "./admin.js"},
		{Name: "about", Request: "./about.js"},
	}, opts.Entries)
	assert.Equal(t, domain.CacheOptions{Enabled: true, Type: domain.CacheFilesystem}, opts.Cache)
	assert.False(t, opts.Incremental)
	assert.Equal(t, 4, opts.Parallelism)
	assert.True(t, opts.Profile)
	assert.Equal(t, []string{".js", ".json"}, opts.Resolve.Extensions)
	assert.Equal(t, []domain.AliasOptions{
		{Name: "@shared", Target: filepath.Join(root, "shared")},
		{Name: "react", Target: "preact"},
	}, opts.Resolve.Alias)
	assert.Equal(t, domain.RuntimeChunkSingle, opts.RuntimeChunk)
	assert.Equal(t, domain.OutputOptions{Path: "build", Filename: "[name].js"}, opts.Output)

	split := opts.SplitChunks
	assert.True(t, split.Enabled)
	assert.Equal(t, 100, split.MinSize)
	assert.Equal(t, 1000, split.MaxSize)
	assert.Equal(t, 1, split.MinChunks)
	assert.Equal(t, domain.ChunksAll, split.Chunks)
	require.Len(t, split.CacheGroups, 2)
	assert.Equal(t, "vendor", split.CacheGroups[0].Key)
	assert.Equal(t, "vendor", split.CacheGroups[0].Name)
	assert.Equal(t, 10, split.CacheGroups[0].Priority)
	assert.Equal(t, domain.ChunksAll, split.CacheGroups[0].Chunks)
	assert.True(t, split.CacheGroups[0].Test.MatchString("/p/node_modules/x.js"))
	assert.Equal(t, "common", split.CacheGroups[1].Key)
	assert.Nil(t, split.CacheGroups[1].Test)
	assert.Equal(t, domain.ChunksInitial, split.CacheGroups[1].Chunks)
}

func TestLoader_Load_Defaults(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createFile(t, root, domain.ConfigFileName, "entry: ./index.js\n")

	opts, err := newLoader(t).Load(root)
	require.NoError(t, err)

	want := domain.DefaultCompilerOptions(root)
	want.Entries = []domain.EntryOptions{{Name: config.DefaultEntryName, Request: "./index.js"}}
	assert.Equal(t, &want, opts)
}

func TestLoader_Load_SplitChunksDefaults(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createFile(t, root, domain.ConfigFileName, `
entry:
  main: ./a.js
optimization:
  splitChunks: {}
`)

	opts, err := newLoader(t).Load(root)
	require.NoError(t, err)

	assert.True(t, opts.SplitChunks.Enabled)
	assert.Equal(t, domain.ChunksAsync, opts.SplitChunks.Chunks)
	require.Len(t, opts.SplitChunks.CacheGroups, 2)
	assert.Equal(t, "defaultVendors", opts.SplitChunks.CacheGroups[0].Key)
	assert.Equal(t, "default", opts.SplitChunks.CacheGroups[1].Key)
}

func TestLoader_Load_Discovery(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createFile(t, root, domain.ConfigFileName, "entry:\n  main: ./a.js\n")
	nested := filepath.Join(root, "src", "lib")
	require.NoError(t, os.MkdirAll(nested, domain.DirPerm))

	opts, err := newLoader(t).Load(nested)
	require.NoError(t, err)
	assert.Equal(t, root, opts.Context)
}

func TestLoader_Load_NotFound(t *testing.T) {
	t.Parallel()

	_, err := newLoader(t).Load(t.TempDir())
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrConfigNotFound.Error())
}

func TestLoader_Load_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "malformed yaml",
			content: "entry: [",
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name:    "no entries",
			content: "mode: development\n",
			wantErr: domain.ErrNoEntries,
		},
		{
			name:    "empty entry mapping",
			content: "entry: {}\n",
			wantErr: domain.ErrNoEntries,
		},
		{
			name:    "empty entry request",
			content: "entry:\n  main: \"\"\n",
			wantErr: domain.ErrEmptyRequest,
		},
		{
			name:    "unknown runtime chunk",
			content: "entry: ./a.js\noptimization:\n  runtimeChunk: shared\n",
			wantErr: domain.ErrInvalidRuntimeChunk,
		},
		{
			name:    "unknown cache type",
			content: "entry: ./a.js\ncache:\n  type: redis\n",
			wantErr: domain.ErrInvalidCacheType,
		},
		{
			name:    "invalid cache group test",
			content: "entry: ./a.js\noptimization:\n  splitChunks:\n    cacheGroups:\n      bad:\n        test: \"(\"\n",
			wantErr: domain.ErrInvalidCacheGroup,
		},
		{
			name:    "unknown chunks filter",
			content: "entry: ./a.js\noptimization:\n  splitChunks:\n    chunks: some\n",
			wantErr: domain.ErrInvalidChunksFilter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			createFile(t, root, domain.ConfigFileName, tt.content)

			_, err := newLoader(t).Load(root)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr.Error())
		})
	}
}

func TestLoader_Load_WarnsOnUnknownMode(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(`unknown mode "staging" in pack.yaml`).Times(1)

	root := t.TempDir()
	createFile(t, root, domain.ConfigFileName, "mode: staging\nentry: ./a.js\n")

	opts, err := config.NewLoader(mockLogger).Load(root)
	require.NoError(t, err)
	assert.Equal(t, "staging", opts.Mode)
}
