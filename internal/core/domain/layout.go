package domain

import "path/filepath"

const (
	// PackDirName is the name of the internal workspace directory.
	PackDirName = ".pack"

	// CacheDirName is the name of the persistent cache directory.
	CacheDirName = "cache"

	// ManifestFileName is the name of the emitted asset manifest.
	ManifestFileName = "manifest.json"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "pack.yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultCachePath returns the default path for the persistent cache.
// It joins .pack and cache.
func DefaultCachePath() string {
	return filepath.Join(PackDirName, CacheDirName)
}

// DefaultManifestPath returns the default path for the asset manifest.
// It joins .pack and manifest.json.
func DefaultManifestPath() string {
	return filepath.Join(PackDirName, ManifestFileName)
}
