package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/adapters/fs"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/engine/hashing"
)

func TestReader_Read(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.js": "export default 1"})
	r := fs.NewReader()

	data, err := r.Read(context.Background(), domain.NewIdentifier(filepath.Join(root, "a.js")))
	require.NoError(t, err)
	assert.Equal(t, "export default 1", string(data))

	_, err = r.Read(context.Background(), domain.NewIdentifier(filepath.Join(root, "gone.js")))
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrSourceRead.Error())
}

func TestHasher(t *testing.T) {
	t.Parallel()

	h := fs.NewHasher()

	assert.Len(t, h.Digest([]byte("a")), 16)
	assert.Equal(t, h.Digest([]byte("a")), h.Digest([]byte("a")))
	assert.NotEqual(t, h.Digest([]byte("a")), h.Digest([]byte("b")))

	assert.NotEqual(t, h.Fingerprint("ab", "c"), h.Fingerprint("a", "bc"))
	assert.Equal(t, hashing.Sum("x", "y"), h.Fingerprint("x", "y"))
}

func TestWalker_WalkDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/a.js":                "",
		"src/lib/b.js":            "",
		".git/config":             "",
		"node_modules/x/index.js": "",
		"dist/main.js":            "",
	})
	skip := func(path string) bool { return path == filepath.Join(root, "dist") }

	var dirs []string
	for dir := range fs.NewWalker().WalkDirs(root, skip) {
		rel, err := filepath.Rel(root, dir)
		require.NoError(t, err)
		dirs = append(dirs, filepath.ToSlash(rel))
	}
	slices.Sort(dirs)
	assert.Equal(t, []string{".", "src", "src/lib"}, dirs)

	var files []string
	for file := range fs.NewWalker().WalkFiles(root, skip) {
		rel, err := filepath.Rel(root, file)
		require.NoError(t, err)
		files = append(files, filepath.ToSlash(rel))
	}
	slices.Sort(files)
	assert.Equal(t, []string{"src/a.js", "src/lib/b.js"}, files)
}

func TestWalker_StopsEarly(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b", "c"), domain.DirPerm))

	count := 0
	for range fs.NewWalker().WalkDirs(root, nil) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}
