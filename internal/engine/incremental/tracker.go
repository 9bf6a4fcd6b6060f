// Package incremental computes the part of a module graph that has to be
// processed again after a set of files changed or disappeared.
package incremental

import (
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/engine/scheduler"
)

// Update describes the file system changes since the previous pass.
type Update struct {
	Changed []string
	Removed []string
	// Entries are the resolved entries of the previous pass.
	Entries map[string]scheduler.EntryResult
}

// Plan is the work an incremental pass hands to the scheduler.
type Plan struct {
	// Rebuild lists changed modules whose source is built again.
	Rebuild []domain.ModuleID
	// Refactorize lists requests resolved again: requests pointing at changed
	// or removed modules, and requests that previously failed to resolve
	// when a new file appeared.
	Refactorize []scheduler.Refactorize
	// Entries lists entry names to resolve again, sorted.
	Entries []string
	// Invalidate lists paths whose dependent cache entries are dropped.
	Invalidate []string
	// Pruned lists the identities of removed modules.
	Pruned []domain.Identifier
}

// Empty reports whether the plan schedules no work.
func (p Plan) Empty() bool {
	return len(p.Rebuild) == 0 && len(p.Refactorize) == 0 && len(p.Entries) == 0
}

// Apply maps the update onto graph, pruning removed modules in place, and
// returns the resulting plan. Paths unknown to the graph only matter when
// they may satisfy a request that failed before. Failed resolutions are never
// cached, so such paths invalidate nothing.
func Apply(graph *domain.ModuleGraph, u Update) Plan {
	var plan Plan
	entries := make(map[string]bool)
	invalidate := make(map[string]bool)
	rebuild := make(map[domain.ModuleID]bool)

	refactorize := func(edges []domain.DependencyEdge) {
		for _, e := range edges {
			plan.Refactorize = append(plan.Refactorize, scheduler.Refactorize{
				From:    e.From,
				Request: domain.DependencyRequest{Request: e.Request, Type: e.Type},
			})
		}
	}
	entriesOf := func(id domain.ModuleID) {
		for name, res := range u.Entries {
			if res.Module == id {
				entries[name] = true
			}
		}
	}

	created := false
	for _, p := range clean(u.Changed) {
		id, ok := graph.Lookup(domain.NewIdentifier(p))
		if !ok {
			created = true
			continue
		}
		rebuild[id] = true
		refactorize(graph.IncomingEdges(id))
		entriesOf(id)
	}

	for _, p := range clean(u.Removed) {
		invalidate[p] = true
		invalidate[filepath.Dir(p)] = true
		for _, id := range modulesUnder(graph, p) {
			m, _ := graph.Module(id)
			plan.Pruned = append(plan.Pruned, m.Identity)
			delete(rebuild, id)
			refactorize(graph.RemoveModule(id))
			entriesOf(id)
		}
	}

	if created {
		for m := range graph.Modules() {
			var missing []domain.DependencyEdge
			for _, e := range graph.Edges(m.ID) {
				if e.Missing() {
					missing = append(missing, e)
				}
			}
			refactorize(missing)
		}
		for name, res := range u.Entries {
			if res.Err != nil || res.Module == domain.MissingModule {
				entries[name] = true
			}
		}
	}

	for id := range rebuild {
		plan.Rebuild = append(plan.Rebuild, id)
	}
	slices.Sort(plan.Rebuild)
	seen := make(map[scheduler.Refactorize]bool, len(plan.Refactorize))
	plan.Refactorize = slices.DeleteFunc(plan.Refactorize, func(r scheduler.Refactorize) bool {
		if _, live := graph.Module(r.From); !live || seen[r] {
			return true
		}
		seen[r] = true
		return false
	})
	for name := range entries {
		plan.Entries = append(plan.Entries, name)
	}
	slices.Sort(plan.Entries)
	for p := range invalidate {
		plan.Invalidate = append(plan.Invalidate, p)
	}
	slices.Sort(plan.Invalidate)
	return plan
}

// Collect removes modules no longer reachable from roots and returns their identities.
func Collect(graph *domain.ModuleGraph, roots []domain.ModuleID) []domain.Identifier {
	live := graph.Reachable(roots)

	var dead []domain.ModuleID
	for m := range graph.Modules() {
		if !live[m.ID] {
			dead = append(dead, m.ID)
		}
	}

	removed := make([]domain.Identifier, 0, len(dead))
	for _, id := range dead {
		m, _ := graph.Module(id)
		removed = append(removed, m.Identity)
		graph.RemoveModule(id)
	}
	return removed
}

func modulesUnder(graph *domain.ModuleGraph, p string) []domain.ModuleID {
	var ids []domain.ModuleID
	if id, ok := graph.Lookup(domain.NewIdentifier(p)); ok {
		ids = append(ids, id)
	}
	prefix := p + string(filepath.Separator)
	for m := range graph.Modules() {
		if strings.HasPrefix(m.Identity.String(), prefix) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func clean(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		out = append(out, filepath.Clean(p))
	}
	slices.Sort(out)
	return slices.Compact(out)
}
