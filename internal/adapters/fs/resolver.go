package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Resolver = (*Resolver)(nil)

// packageManifest is the part of package.json the resolver reads.
type packageManifest struct {
	Module string `json:"module"`
	Main   string `json:"main"`
}

// Resolver maps requests to absolute file paths the way Node-style bundlers
// do: relative and absolute paths are tried as files, then with every
// extension, then as directories. Bare requests are looked up in the
// node_modules directories of every parent of the issuing directory.
type Resolver struct {
	extensions []string
	alias      []domain.AliasOptions
}

// NewResolver creates a new Resolver. Alias targets must be absolute paths
// or bare requests.
func NewResolver(opts domain.ResolveOptions) *Resolver {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = domain.DefaultExtensions
	}
	return &Resolver{
		extensions: slices.Clone(exts),
		alias:      slices.Clone(opts.Alias),
	}
}

// Resolve returns the identity of the module request points to.
func (r *Resolver) Resolve(ctx context.Context, request, contextDir string) (domain.Identifier, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identifier{}, err
	}

	req := r.applyAlias(request)
	if isPath(req) {
		base := req
		if !filepath.IsAbs(base) {
			base = filepath.Join(contextDir, base)
		}
		if p, ok := r.resolvePath(base); ok {
			return domain.NewIdentifier(p), nil
		}
		return domain.Identifier{}, notFound(request, contextDir)
	}

	for dir := filepath.Clean(contextDir); ; {
		if p, ok := r.resolvePath(filepath.Join(dir, "node_modules", req)); ok {
			return domain.NewIdentifier(p), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return domain.Identifier{}, notFound(request, contextDir)
}

// applyAlias rewrites the first alias whose name is the request or a path
// prefix of it.
func (r *Resolver) applyAlias(request string) string {
	for _, a := range r.alias {
		if request == a.Name {
			return a.Target
		}
		if rest, ok := strings.CutPrefix(request, a.Name+"/"); ok {
			return a.Target + "/" + rest
		}
	}
	return request
}

func isPath(req string) bool {
	return filepath.IsAbs(req) ||
		req == "." || req == ".." ||
		strings.HasPrefix(req, "./") || strings.HasPrefix(req, "../")
}

// resolvePath tries base as a file, as a file with each extension, and as a
// directory with a package.json entry field or an index file.
func (r *Resolver) resolvePath(base string) (string, bool) {
	if p, ok := r.resolveFile(base); ok {
		return p, true
	}
	if !isDir(base) {
		return "", false
	}
	if entry := readManifestEntry(filepath.Join(base, "package.json")); entry != "" {
		if p, ok := r.resolveFile(filepath.Join(base, entry)); ok {
			return p, true
		}
		if p, ok := r.resolveFile(filepath.Join(base, entry, "index")); ok {
			return p, true
		}
	}
	return r.resolveFile(filepath.Join(base, "index"))
}

func (r *Resolver) resolveFile(base string) (string, bool) {
	if isFile(base) {
		return filepath.Clean(base), true
	}
	for _, ext := range r.extensions {
		if isFile(base + ext) {
			return filepath.Clean(base + ext), true
		}
	}
	return "", false
}

func readManifestEntry(path string) string {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from resolved directories
	if err != nil {
		return ""
	}
	var m packageManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	if m.Module != "" {
		return m.Module
	}
	return m.Main
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func notFound(request, contextDir string) error {
	return zerr.With(zerr.With(domain.ErrResolution, "request", request), "context", contextDir)
}
