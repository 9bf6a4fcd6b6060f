// Package hashing assigns deterministic module ids, chunk ids and content hashes.
// Every function depends only on the content of the graphs it is given, never
// on the order work completed in.
package hashing

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/pack/internal/core/domain"
)

const (
	// minDigits is the smallest number of decimal digits an id may use.
	minDigits = 3
	// maxFill is the share of the id space used before another digit is added.
	maxFill = 0.8
	// ShortHashLength is the length of the hash used in file names.
	ShortHashLength = 8
)

// Sum returns the hex xxhash of the parts. Parts are separated so that
// ("ab", "c") and ("a", "bc") differ.
func Sum(parts ...string) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(strconv.Itoa(len(p)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(p)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Short returns the prefix of a hash used in file names.
func Short(hash string) string {
	if len(hash) <= ShortHashLength {
		return hash
	}
	return hash[:ShortHashLength]
}

// RelativeIdentity renders an identity relative to the context directory,
// with forward slashes, as "./src/a.js".
func RelativeIdentity(contextDir string, id domain.Identifier) string {
	s := id.String()
	if contextDir != "" && filepath.IsAbs(s) {
		if rel, err := filepath.Rel(contextDir, s); err == nil {
			s = rel
			if !strings.HasPrefix(s, "..") {
				s = "./" + s
			}
		}
	}
	return filepath.ToSlash(s)
}

// ModuleIDs assigns a numeric id to every live module.
func ModuleIDs(graph *domain.ModuleGraph, contextDir string) map[domain.ModuleID]string {
	names := make(map[domain.ModuleID]string, graph.Len())
	for m := range graph.Modules() {
		names[m.ID] = RelativeIdentity(contextDir, m.Identity)
	}
	return deterministicIDs(names)
}

// AssignChunkIDs resolves the id of every chunk. Named chunks use their name;
// unnamed chunks get a numeric id derived from their member identities.
func AssignChunkIDs(cg *domain.ChunkGraph, graph *domain.ModuleGraph, contextDir string) {
	keys := make(map[domain.ChunkUkey]string)
	for c := range cg.Chunks() {
		if c.Name != "" {
			c.ID = domain.ResolvedChunkRef(c.Name)
			continue
		}
		members := make([]string, 0, len(c.Modules))
		for _, id := range c.Modules {
			if m, ok := graph.Module(id); ok {
				members = append(members, RelativeIdentity(contextDir, m.Identity))
			}
		}
		slices.Sort(members)
		if len(members) == 0 {
			for _, gk := range c.Groups {
				if g, ok := cg.Group(gk); ok {
					if m, ok := graph.Module(g.Origin); ok {
						members = append(members, "group:"+RelativeIdentity(contextDir, m.Identity))
					}
				}
			}
		}
		keys[c.Ukey] = strings.Join(members, "\n")
	}

	seen := make(map[string]int, len(keys))
	for _, key := range keys {
		seen[key]++
	}
	for ukey, key := range keys {
		if seen[key] > 1 {
			keys[ukey] = key + "\x00" + strconv.FormatUint(uint64(ukey), 10)
		}
	}

	for ukey, id := range deterministicIDs(keys) {
		c, _ := cg.Chunk(ukey)
		c.ID = domain.ResolvedChunkRef(id)
	}
}

// deterministicIDs maps each key to a number below 10^d, d growing from
// minDigits until the keys fill at most maxFill of the space. Keys are
// processed in sorted order and collisions probe with a salted hash.
func deterministicIDs[K comparable](names map[K]string) map[K]string {
	type item struct {
		key  K
		name string
	}
	items := make([]item, 0, len(names))
	for k, n := range names {
		items = append(items, item{key: k, name: n})
	}
	slices.SortFunc(items, func(a, b item) int { return strings.Compare(a.name, b.name) })

	space := uint64(1)
	for range minDigits {
		space *= 10
	}
	for float64(len(items)) > float64(space)*maxFill {
		space *= 10
	}

	used := make(map[uint64]bool, len(items))
	ids := make(map[K]string, len(items))
	for _, it := range items {
		for salt := 0; ; salt++ {
			input := it.name
			if salt > 0 {
				input += strconv.Itoa(salt)
			}
			n := xxhash.Sum64String(input) % space
			if !used[n] {
				used[n] = true
				ids[it.key] = strconv.FormatUint(n, 10)
				break
			}
		}
	}
	return ids
}

// ModuleHash is the contribution of one module to a chunk hash.
type ModuleHash struct {
	ID   string
	Hash string
}

// ChunkHash hashes a frozen chunk from its structural metadata and the code
// generation hashes of its modules, in chunk order.
func ChunkHash(c *domain.Chunk, modules []ModuleHash) string {
	id, _ := c.ID.ID()
	parts := []string{"chunk", id, c.Name, c.Runtime}
	parts = append(parts, c.RuntimeRequirements...)
	for _, m := range modules {
		parts = append(parts, m.ID, m.Hash)
	}
	return Sum(parts...)
}

// CompilationHash combines the hashes of every chunk in id order.
func CompilationHash(cg *domain.ChunkGraph) string {
	var hashes []string
	for c := range cg.Chunks() {
		hashes = append(hashes, c.ID.String()+"="+c.Hash)
	}
	slices.Sort(hashes)
	return Sum(hashes...)
}
