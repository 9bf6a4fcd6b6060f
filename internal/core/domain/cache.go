package domain

import "fmt"

// CacheKind selects one of the three independent result caches.
type CacheKind uint8

const (
	// CacheFactorize caches request resolution results.
	CacheFactorize CacheKind = iota
	// CacheBuild caches loader build results.
	CacheBuild
	// CacheCodeGeneration caches generated module code.
	CacheCodeGeneration
)

// CacheKinds lists every cache kind in reporting order.
var CacheKinds = []CacheKind{CacheFactorize, CacheBuild, CacheCodeGeneration}

// String returns the short name used in cache keys and metric labels.
func (k CacheKind) String() string {
	switch k {
	case CacheFactorize:
		return "factorize"
	case CacheBuild:
		return "build"
	case CacheCodeGeneration:
		return "codegen"
	default:
		return "unknown"
	}
}

// Label returns the name shown in stats output.
func (k CacheKind) Label() string {
	switch k {
	case CacheFactorize:
		return "module factorize cache"
	case CacheBuild:
		return "module build cache"
	case CacheCodeGeneration:
		return "module code generation cache"
	default:
		return "unknown cache"
	}
}

// Fingerprint is the composite cache key of identity, content digest and option digest.
type Fingerprint string

// CacheEntry is a stored result with the token of the run that produced it.
type CacheEntry struct {
	Kind        CacheKind   `json:"kind"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Value       []byte      `json:"value"`
	// Token identifies the committed run that wrote the entry.
	Token string `json:"token"`
	// Paths are the file paths the entry depends on beyond its fingerprint.
	Paths []string `json:"paths,omitempty"`
}

// CacheCounter counts lookups and hits of one cache kind during a run.
type CacheCounter struct {
	Hits  int `json:"hits"`
	Total int `json:"total"`
}

// Rate returns the hit rate in [0,1]. A counter without lookups reports 1.
func (c CacheCounter) Rate() float64 {
	if c.Total == 0 {
		return 1
	}
	return float64(c.Hits) / float64(c.Total)
}

// String renders the counter as "100.0% (4/4)".
func (c CacheCounter) String() string {
	return fmt.Sprintf("%.1f%% (%d/%d)", c.Rate()*100, c.Hits, c.Total)
}
