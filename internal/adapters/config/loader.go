// Package config provides the pack.yaml configuration loader.
package config

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// DefaultEntryName names the entry of a config with a single entry request.
const DefaultEntryName = "main"

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load finds pack.yaml from cwd upwards and returns the compiler options.
func (l *Loader) Load(cwd string) (*domain.CompilerOptions, error) {
	configPath, err := findConfiguration(cwd)
	if err != nil {
		return nil, err
	}

	var packfile Packfile
	if err := readAndUnmarshalYAML(configPath, &packfile); err != nil {
		return nil, err
	}

	opts, err := l.build(filepath.Dir(configPath), &packfile)
	if err != nil {
		return nil, zerr.With(err, "config", configPath)
	}
	return opts, nil
}

func findConfiguration(cwd string) (string, error) {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}
	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

func (l *Loader) build(configDir string, p *Packfile) (*domain.CompilerOptions, error) {
	contextDir := resolvePath(configDir, p.Context)
	opts := domain.DefaultCompilerOptions(contextDir)

	if p.Mode != "" {
		if p.Mode != "development" && p.Mode != "production" && l.Logger != nil {
			l.Logger.Warn(fmt.Sprintf("unknown mode %q in %s", p.Mode, domain.ConfigFileName))
		}
		opts.Mode = p.Mode
	}

	entries, err := decodeEntries(&p.Entry)
	if err != nil {
		return nil, err
	}
	opts.Entries = entries

	if p.Cache != nil {
		if p.Cache.Enabled != nil {
			opts.Cache.Enabled = *p.Cache.Enabled
		}
		switch t := domain.CacheType(cmp.Or(p.Cache.Type, string(domain.CacheMemory))); t {
		case domain.CacheMemory, domain.CacheFilesystem:
			opts.Cache.Type = t
		default:
			return nil, zerr.With(domain.ErrInvalidCacheType, "type", p.Cache.Type)
		}
		opts.Cache.Directory = p.Cache.Directory
	}

	if p.Incremental != nil {
		opts.Incremental = *p.Incremental
	}
	opts.Parallelism = p.Parallelism
	opts.Profile = p.Profile

	if len(p.Resolve.Extensions) > 0 {
		opts.Resolve.Extensions = normalizeExtensions(p.Resolve.Extensions)
	}
	alias, err := decodeAlias(configDir, &p.Resolve.Alias)
	if err != nil {
		return nil, err
	}
	opts.Resolve.Alias = alias

	switch rc := domain.RuntimeChunkStrategy(p.Optimization.RuntimeChunk); rc {
	case domain.RuntimeChunkNone, domain.RuntimeChunkSingle, domain.RuntimeChunkMultiple:
		opts.RuntimeChunk = rc
	default:
		return nil, zerr.With(domain.ErrInvalidRuntimeChunk, "runtimeChunk", p.Optimization.RuntimeChunk)
	}

	if sc := p.Optimization.SplitChunks; sc != nil {
		split, err := decodeSplitChunks(sc)
		if err != nil {
			return nil, err
		}
		opts.SplitChunks = split
	}

	if p.Output.Path != "" {
		opts.Output.Path = p.Output.Path
	}
	if p.Output.Filename != "" {
		opts.Output.Filename = p.Output.Filename
	}
	return &opts, nil
}

// decodeEntries reads the entry mapping in declaration order.
func decodeEntries(node *yaml.Node) ([]domain.EntryOptions, error) {
	switch node.Kind {
	case 0:
		return nil, domain.ErrNoEntries
	case yaml.ScalarNode:
		if strings.TrimSpace(node.Value) == "" {
			return nil, zerr.With(domain.ErrEmptyRequest, "entry", DefaultEntryName)
		}
		return []domain.EntryOptions{{Name: DefaultEntryName, Request: node.Value}}, nil
	case yaml.MappingNode:
	default:
		return nil, zerr.With(domain.ErrConfigParseFailed, "field", "entry")
	}

	entries := make([]domain.EntryOptions, 0, len(node.Content)/2)
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var request string
		if err := node.Content[i+1].Decode(&request); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "entry", name)
		}
		if strings.TrimSpace(request) == "" {
			return nil, zerr.With(domain.ErrEmptyRequest, "entry", name)
		}
		if seen[name] {
			return nil, zerr.With(domain.ErrDuplicateEntry, "entry", name)
		}
		seen[name] = true
		entries = append(entries, domain.EntryOptions{Name: name, Request: request})
	}
	if len(entries) == 0 {
		return nil, domain.ErrNoEntries
	}
	return entries, nil
}

// decodeAlias reads the alias mapping in declaration order. Relative path
// targets are made absolute against the config directory.
func decodeAlias(configDir string, node *yaml.Node) ([]domain.AliasOptions, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, zerr.With(domain.ErrConfigParseFailed, "field", "resolve.alias")
	}

	alias := make([]domain.AliasOptions, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var target string
		if err := node.Content[i+1].Decode(&target); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "alias", name)
		}
		if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") || target == "." {
			target = filepath.Join(configDir, target)
		}
		alias = append(alias, domain.AliasOptions{Name: name, Target: target})
	}
	return alias, nil
}

func decodeSplitChunks(dto *SplitChunksDTO) (domain.SplitChunksOptions, error) {
	chunks, err := chunksFilter(dto.Chunks, domain.ChunksAsync)
	if err != nil {
		return domain.SplitChunksOptions{}, err
	}
	opts := domain.SplitChunksOptions{
		Enabled:   true,
		MinSize:   dto.MinSize,
		MaxSize:   dto.MaxSize,
		MinChunks: max(dto.MinChunks, 1),
		Chunks:    chunks,
	}

	node := &dto.CacheGroups
	if node.Kind == 0 {
		opts.CacheGroups = domain.DefaultCacheGroups()
		return opts, nil
	}
	if node.Kind != yaml.MappingNode {
		return opts, zerr.With(domain.ErrInvalidCacheGroup, "field", "cacheGroups")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var g CacheGroupDTO
		if err := node.Content[i+1].Decode(&g); err != nil {
			return opts, zerr.With(zerr.Wrap(err, domain.ErrInvalidCacheGroup.Error()), "cacheGroup", key)
		}
		group, err := decodeCacheGroup(key, &g, opts.Chunks)
		if err != nil {
			return opts, err
		}
		opts.CacheGroups = append(opts.CacheGroups, group)
	}
	return opts, nil
}

func decodeCacheGroup(key string, dto *CacheGroupDTO, inherited domain.ChunksFilter) (domain.CacheGroup, error) {
	group := domain.CacheGroup{
		Key:       key,
		Name:      dto.Name,
		Priority:  dto.Priority,
		MinChunks: dto.MinChunks,
		MinSize:   dto.MinSize,
		MaxSize:   dto.MaxSize,
	}
	if dto.Test != "" {
		re, err := regexp.Compile(dto.Test)
		if err != nil {
			err = zerr.With(zerr.Wrap(err, domain.ErrInvalidCacheGroup.Error()), "cacheGroup", key)
			return group, zerr.With(err, "test", dto.Test)
		}
		group.Test = re
	}
	chunks, err := chunksFilter(dto.Chunks, inherited)
	if err != nil {
		return group, zerr.With(err, "cacheGroup", key)
	}
	group.Chunks = chunks
	return group, nil
}

func chunksFilter(value string, fallback domain.ChunksFilter) (domain.ChunksFilter, error) {
	switch f := domain.ChunksFilter(value); f {
	case "":
		return fallback, nil
	case domain.ChunksAll, domain.ChunksInitial, domain.ChunksAsync:
		return f, nil
	default:
		return "", zerr.With(domain.ErrInvalidChunksFilter, "chunks", value)
	}
}

// normalizeExtensions ensures every extension starts with a dot.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// resolvePath resolves configured relative to the config directory.
func resolvePath(configDir, configured string) string {
	if configured == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(configured) {
		return filepath.Clean(configured)
	}
	return filepath.Clean(filepath.Join(configDir, configured))
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is found by walking up from the working directory
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error())
	}

	return nil
}
