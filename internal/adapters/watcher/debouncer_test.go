package watcher_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/adapters/watcher"
)

func TestDebouncer_Add_SinglePath(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls [][]string

		d := watcher.NewDebouncer(100*time.Millisecond, func(paths []string) {
			calls = append(calls, paths)
		})

		d.Add("/project/src/index.js")

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		require.Len(t, calls, 1)
		assert.Equal(t, []string{"/project/src/index.js"}, calls[0])
	})
}

func TestDebouncer_Add_CoalescesAndSorts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls [][]string

		d := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
			calls = append(calls, paths)
		})

		d.Add("/project/src/c.js")
		d.Add("/project/src/a.js")
		d.Add("/project/src/c.js")
		d.Add("/project/src/b.js")

		time.Sleep(2 * watcher.DefaultDebounceWindow)
		synctest.Wait()

		require.Len(t, calls, 1)
		assert.Equal(t, []string{"/project/src/a.js", "/project/src/b.js", "/project/src/c.js"}, calls[0])
	})
}

func TestDebouncer_Add_ResetsWindow(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls int

		d := watcher.NewDebouncer(100*time.Millisecond, func([]string) {
			calls++
		})

		d.Add("/a.js")
		time.Sleep(80 * time.Millisecond)
		d.Add("/b.js")
		time.Sleep(80 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, 0, calls)

		time.Sleep(50 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, 1, calls)
	})
}

func TestDebouncer_SeparateBatches(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		var calls [][]string

		d := watcher.NewDebouncer(50*time.Millisecond, func(paths []string) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, paths)
		})

		d.Add("/a.js")
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()
		d.Add("/b.js")
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, [][]string{{"/a.js"}, {"/b.js"}}, calls)
	})
}

func TestDebouncer_Flush(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls [][]string

		d := watcher.NewDebouncer(time.Hour, func(paths []string) {
			calls = append(calls, paths)
		})

		d.Add("/a.js")
		d.Add("/b.js")
		d.Flush()

		require.Len(t, calls, 1)
		assert.Equal(t, []string{"/a.js", "/b.js"}, calls[0])

		// Nothing pending, nothing to flush.
		d.Flush()
		time.Sleep(2 * time.Hour)
		synctest.Wait()
		assert.Len(t, calls, 1)
	})
}

func TestDebouncer_NilCallback(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		d := watcher.NewDebouncer(10*time.Millisecond, nil)
		d.Add("/a.js")
		time.Sleep(20 * time.Millisecond)
		synctest.Wait()
		d.Flush()
	})
}
