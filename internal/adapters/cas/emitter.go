package cas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.AssetEmitter = (*Emitter)(nil)

// Emitter writes assets whose content changed since the last recorded
// manifest and removes the files the previous emission left behind.
type Emitter struct{}

// NewEmitter creates a new Emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Integrity returns the sha256 digest of content in subresource integrity form.
func Integrity(content []byte) string {
	sum := sha256.Sum256(content)
	return "sha256-" + hex.EncodeToString(sum[:])
}

// Emit writes assets under outDir and records the manifest under root.
func (e *Emitter) Emit(ctx context.Context, root, outDir string, manifest domain.Manifest, assets []domain.Asset) (int, error) {
	prev, err := ReadManifest(root)
	if err != nil {
		return 0, err
	}
	previous := make(map[string]string)
	if prev != nil {
		for _, a := range prev.Assets {
			previous[a.Filename] = a.Integrity
		}
	}

	integrity := make(map[string]string, len(assets))
	written := 0
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		sum := Integrity(a.Content)
		integrity[a.Filename] = sum

		path := filepath.Join(outDir, filepath.FromSlash(a.Filename))
		if previous[a.Filename] == sum && exists(path) {
			continue
		}
		if err := writeAsset(path, a.Content); err != nil {
			return written, zerr.With(err, "asset", a.Filename)
		}
		written++
	}

	for name := range previous {
		if _, ok := integrity[name]; ok {
			continue
		}
		err := os.Remove(filepath.Join(outDir, filepath.FromSlash(name)))
		if err != nil && !os.IsNotExist(err) {
			return written, zerr.With(zerr.Wrap(err, domain.ErrAssetWriteFailed.Error()), "asset", name)
		}
	}

	manifest.Assets = slices.Clone(manifest.Assets)
	for i := range manifest.Assets {
		manifest.Assets[i].Integrity = integrity[manifest.Assets[i].Filename]
	}
	return written, WriteManifest(root, manifest)
}

func writeAsset(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrAssetWriteFailed.Error())
	}
	//nolint:gosec // Path is constructed from the configured output directory
	if err := os.WriteFile(path, content, domain.FilePerm); err != nil {
		return zerr.Wrap(err, domain.ErrAssetWriteFailed.Error())
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
