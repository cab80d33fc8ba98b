// Package nav implements the N/L/T navigation and text-assembly
// operators of spec.md §4.4, built directly on the precomputed warps
// in internal/store.
package nav

import (
	"sort"

	"github.com/contextfabric/fabric/internal/warp"
)

// levelSource is the minimal view N needs from internal/store.Store.
type levelSource interface {
	NodeCount() int
	Levels() []warp.LevelRange
	Rank(n int32) (int32, bool)
	Order(i int) (int32, bool)
}

// N is the canonical-order walk operator.
type N struct {
	store levelSource
}

// NewN constructs the walk operator over a store.
func NewN(store levelSource) *N { return &N{store: store} }

// Walk yields every node in canonical order, or nodes of just the
// given types if typeIDs is non-empty. With a type filter, walk
// restricts to nodes whose type is in the given set by clipping to the
// type's contiguous [min_node, max_node] range in levels and merging
// by rank, per spec.md §4.4 — it never scans the whole corpus.
func (n *N) Walk(typeIDs []int32) []int32 {
	if len(typeIDs) == 0 {
		out := make([]int32, n.store.NodeCount())
		for i := 0; i < n.store.NodeCount(); i++ {
			v, _ := n.store.Order(i)
			out[i] = v
		}
		return out
	}

	wanted := make(map[int32]bool, len(typeIDs))
	for _, t := range typeIDs {
		wanted[t] = true
	}

	var ranges []warp.LevelRange
	for _, lvl := range n.store.Levels() {
		if wanted[lvl.TypeID] {
			ranges = append(ranges, lvl)
		}
	}
	if len(ranges) == 0 {
		return nil
	}

	// Each level range runs from its type's first to its last node in
	// canonical-rank order (levels.bin is built by sorting nodes by type
	// then by rank), so collecting [min_node..max_node] per matched range
	// gathers the candidates, and one sort by rank merges them into the
	// walk.
	var candidates []int32
	for _, r := range ranges {
		for node := r.MinNode; node <= r.MaxNode; node++ {
			candidates = append(candidates, node)
		}
	}

	out := make([]int32, len(candidates))
	copy(out, candidates)
	sortByRank(out, n.store)
	return out
}

// sortByRank reorders nodes by their canonical rank.
func sortByRank(nodes []int32, store levelSource) {
	rankOf := make(map[int32]int32, len(nodes))
	for _, node := range nodes {
		r, _ := store.Rank(node)
		rankOf[node] = r
	}
	sort.Slice(nodes, func(i, j int) bool {
		return rankOf[nodes[i]] < rankOf[nodes[j]]
	})
}
