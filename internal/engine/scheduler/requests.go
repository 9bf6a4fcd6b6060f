package scheduler

import (
	"slices"

	"go.trai.ch/pack/internal/core/domain"
)

// DedupeRequests drops requests whose specifier and kind repeat an earlier one.
func DedupeRequests(reqs []domain.DependencyRequest) []domain.DependencyRequest {
	seen := make(map[string]bool, len(reqs))
	out := make([]domain.DependencyRequest, 0, len(reqs))
	for _, r := range reqs {
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		out = append(out, r)
	}
	return out
}

// SortEdges orders edges by the position of their request in reqs.
// Edges without a matching request keep their relative order at the end.
func SortEdges(reqs []domain.DependencyRequest, edges []domain.DependencyEdge) {
	pos := make(map[string]int, len(reqs))
	for i, r := range DedupeRequests(reqs) {
		pos[r.Key()] = i
	}
	rank := func(e domain.DependencyEdge) int {
		if p, ok := pos[edgeKey(e)]; ok {
			return p
		}
		return len(pos)
	}
	slices.SortStableFunc(edges, func(a, b domain.DependencyEdge) int {
		return rank(a) - rank(b)
	})
}

func edgeKey(e domain.DependencyEdge) string {
	return domain.DependencyRequest{Request: e.Request, Type: e.Type}.Key()
}
