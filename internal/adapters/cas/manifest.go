// Package cas implements content addressed asset emission.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/zerr"
)

// ReadManifest loads the manifest recorded under root.
// It returns nil, nil when no manifest was written yet.
func ReadManifest(root string) (*domain.Manifest, error) {
	filename := filepath.Join(root, domain.DefaultManifestPath())
	//nolint:gosec // Path is constructed from the trusted project root
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrManifestReadFailed.Error())
	}

	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, zerr.Wrap(err, domain.ErrManifestReadFailed.Error())
	}
	return &m, nil
}

// WriteManifest records the manifest under root.
func WriteManifest(root string, m domain.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrManifestWriteFailed.Error())
	}

	filename := filepath.Join(root, domain.DefaultManifestPath())
	if err := os.MkdirAll(filepath.Dir(filename), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrManifestWriteFailed.Error())
	}

	//nolint:gosec // Path is constructed from the trusted project root
	if err := os.WriteFile(filename, data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, domain.ErrManifestWriteFailed.Error())
	}
	return nil
}
