package config

import "gopkg.in/yaml.v3"

// Packfile represents the structure of the pack.yaml configuration file.
// Sections whose declaration order matters are kept as yaml.Node.
type Packfile struct {
	Context      string          `yaml:"context"`
	Mode         string          `yaml:"mode"`
	Entry        yaml.Node       `yaml:"entry"`
	Cache        *CacheDTO       `yaml:"cache"`
	Incremental  *bool           `yaml:"incremental"`
	Parallelism  int             `yaml:"parallelism"`
	Profile      bool            `yaml:"profile"`
	Resolve      ResolveDTO      `yaml:"resolve"`
	Optimization OptimizationDTO `yaml:"optimization"`
	Output       OutputDTO       `yaml:"output"`
}

// CacheDTO configures the result caches.
type CacheDTO struct {
	Type      string `yaml:"type"`
	Enabled   *bool  `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// ResolveDTO configures request resolution.
type ResolveDTO struct {
	Extensions []string  `yaml:"extensions"`
	Alias      yaml.Node `yaml:"alias"`
}

// OptimizationDTO configures chunk optimization.
type OptimizationDTO struct {
	RuntimeChunk string          `yaml:"runtimeChunk"`
	SplitChunks  *SplitChunksDTO `yaml:"splitChunks"`
}

// SplitChunksDTO configures the splitting pass.
type SplitChunksDTO struct {
	MinSize     int       `yaml:"minSize"`
	MaxSize     int       `yaml:"maxSize"`
	MinChunks   int       `yaml:"minChunks"`
	Chunks      string    `yaml:"chunks"`
	CacheGroups yaml.Node `yaml:"cacheGroups"`
}

// CacheGroupDTO is one split chunks rule.
type CacheGroupDTO struct {
	Test      string `yaml:"test"`
	Name      string `yaml:"name"`
	Priority  int    `yaml:"priority"`
	MinChunks int    `yaml:"minChunks"`
	MinSize   int    `yaml:"minSize"`
	MaxSize   int    `yaml:"maxSize"`
	Chunks    string `yaml:"chunks"`
}

// OutputDTO configures emitted assets.
type OutputDTO struct {
	Path     string `yaml:"path"`
	Filename string `yaml:"filename"`
}
