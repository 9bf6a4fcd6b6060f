package watcher

import (
	"errors"
	"io/fs"
	"os"
)

// Classify splits a batch of paths into files that exist and paths that are
// gone. Directories are dropped; their files report their own events.
func Classify(paths []string) (changed, removed []string) {
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			removed = append(removed, p)
		case err != nil:
			changed = append(changed, p)
		case info.IsDir():
		default:
			changed = append(changed, p)
		}
	}
	return changed, removed
}
