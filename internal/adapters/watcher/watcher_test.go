package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/adapters/fs"
	"go.trai.ch/pack/internal/adapters/watcher"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	file := filepath.Join(root, "a.js")
	require.NoError(t, os.WriteFile(file, []byte("1"), 0o600))
	dir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
	gone := filepath.Join(root, "gone.js")

	changed, removed := watcher.Classify([]string{file, dir, gone})
	assert.Equal(t, []string{file}, changed)
	assert.Equal(t, []string{gone}, removed)
}

func TestWatcher_ReportsWrites(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, domain.DirPerm))

	w, err := watcher.NewWatcher(fs.NewWalker(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	dist := filepath.Join(root, "dist")
	require.NoError(t, w.Start(ctx, root, func(path string) bool { return path == dist }))

	target := filepath.Join(src, "index.js")
	require.NoError(t, os.WriteFile(target, []byte("export default 1"), 0o600))

	events := make(chan ports.WatchEvent, 16)
	go func() {
		for ev := range w.Events() {
			events <- ev
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			assert.NotEqual(t, dist, ev.Path)
			if ev.Path == target {
				return
			}
		case <-deadline:
			t.Fatal("no event for written file")
		}
	}
}
