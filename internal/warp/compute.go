package warp

import "sort"

// Input bundles the two raw arrays (otype, oslots) and the corpus-wide
// constants precomputation needs. Node ids are 1-based throughout, as in
// spec.md §3; every slice here is indexed by node-1.
type Input struct {
	// OType maps node (1-based) to type id, indexed by node-1.
	OType []int32
	// OSlots holds the slot list for each non-slot node. Row i
	// corresponds to node SlotCount+1+i.
	OSlots *CSR
	// SlotCount is S: nodes [1, S] are slots.
	SlotCount int
	// NodeCount is N: total node count.
	NodeCount int
	// LevelOrder maps a type id to its rank in the level order (smaller
	// rank embeds more; ties broken by this value per spec.md §3).
	LevelOrder map[int32]int
}

// LevelRange is the precomputed contiguous node range for one type,
// after sorting nodes by type then by canonical rank.
type LevelRange struct {
	TypeID  int32
	MinNode int32
	MaxNode int32
	Count   int32
}

// Output holds every precomputed warp.
type Output struct {
	FirstSlot []int32 // indexed by node-1
	LastSlot  []int32 // indexed by node-1
	Order     []int32 // order[i] = the node at canonical position i (0-based)
	Rank      []int32 // indexed by node-1; rank[node-1] = 1-based canonical position
	Levels    []LevelRange
	LevUp     *CSR // indexed by node-1
	LevDown   *CSR // indexed by node-1
}

// slotsOf returns the sorted slot list for node n (1-based).
func slotsOf(in *Input, n int32) []int32 {
	if int(n) <= in.SlotCount {
		return []int32{n}
	}
	return in.OSlots.Row(int(n) - in.SlotCount - 1)
}

// Compute derives every warp in spec.md §4.3 from otype and oslots.
func Compute(in *Input) *Output {
	n := in.NodeCount
	out := &Output{
		FirstSlot: make([]int32, n),
		LastSlot:  make([]int32, n),
	}

	for i := 0; i < n; i++ {
		node := int32(i + 1)
		slots := slotsOf(in, node)
		if len(slots) == 0 {
			continue
		}
		out.FirstSlot[i] = slots[0]
		out.LastSlot[i] = slots[len(slots)-1]
	}

	out.Order, out.Rank = computeOrder(in, out)
	out.Levels = computeLevels(in, out)
	out.LevUp, out.LevDown = computeEmbedding(in, out)
	return out
}

// computeOrder performs a stable sort of [1..N] by the canonical key:
// (first slot, -span, level order of type, node id).
func computeOrder(in *Input, out *Output) (order, rank []int32) {
	n := in.NodeCount
	nodes := make([]int32, n)
	for i := range nodes {
		nodes[i] = int32(i + 1)
	}

	span := func(node int32) int32 {
		return out.LastSlot[node-1] - out.FirstSlot[node-1] + 1
	}
	levelRank := func(node int32) int {
		return in.LevelOrder[in.OType[node-1]]
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if out.FirstSlot[a-1] != out.FirstSlot[b-1] {
			return out.FirstSlot[a-1] < out.FirstSlot[b-1]
		}
		if span(a) != span(b) {
			return span(a) > span(b) // larger span first (i.e. -span ascending)
		}
		if lr := levelRank(a) - levelRank(b); lr != 0 {
			return lr < 0
		}
		return a < b
	})

	order = nodes
	rank = make([]int32, n)
	for pos, node := range order {
		rank[node-1] = int32(pos + 1)
	}
	return order, rank
}

// computeLevels groups nodes by type after sorting by (type, rank),
// yielding one contiguous [min,max] range per type.
func computeLevels(in *Input, out *Output) []LevelRange {
	byType := make(map[int32][]int32)
	for i := 0; i < in.NodeCount; i++ {
		node := int32(i + 1)
		t := in.OType[i]
		byType[t] = append(byType[t], node)
	}

	types := make([]int32, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return in.LevelOrder[types[i]] < in.LevelOrder[types[j]]
	})

	levels := make([]LevelRange, 0, len(types))
	for _, t := range types {
		nodes := byType[t]
		sort.Slice(nodes, func(i, j int) bool {
			return out.Rank[nodes[i]-1] < out.Rank[nodes[j]-1]
		})
		levels = append(levels, LevelRange{
			TypeID:  t,
			MinNode: nodes[0],
			MaxNode: nodes[len(nodes)-1],
			Count:   int32(len(nodes)),
		})
	}
	return levels
}

// computeEmbedding derives levUp/levDown from slot-set inclusion.
// Candidate supersets are first filtered by interval containment on
// (first_slot,last_slot), then confirmed by full slot-set inclusion to
// correctly handle non-contiguous containers, per spec.md §4.3.
func computeEmbedding(in *Input, out *Output) (levUp, levDown *CSR) {
	n := in.NodeCount
	nonSlotStart := in.SlotCount + 1

	// Precompute slot sets once.
	slotSets := make([][]int32, n)
	for i := 0; i < n; i++ {
		slotSets[i] = slotsOf(in, int32(i+1))
	}

	upRows := make([][]int32, n)
	downRows := make([][]int32, n)

	for i := 0; i < n; i++ {
		node := int32(i + 1)
		nSlots := slotSets[i]
		if len(nSlots) == 0 {
			continue
		}
		first, last := out.FirstSlot[i], out.LastSlot[i]

		var supersets []int32
		for m := nonSlotStart; m <= n; m++ {
			if int32(m) == node {
				continue
			}
			mi := m - 1
			if out.FirstSlot[mi] > first || out.LastSlot[mi] < last {
				continue
			}
			if isSubset(nSlots, slotSets[mi]) {
				supersets = append(supersets, int32(m))
			}
		}

		sort.Slice(supersets, func(a, b int) bool {
			sa, sb := supersets[a], supersets[b]
			spanA := out.LastSlot[sa-1] - out.FirstSlot[sa-1]
			spanB := out.LastSlot[sb-1] - out.FirstSlot[sb-1]
			if spanA != spanB {
				return spanA > spanB
			}
			return out.Rank[sa-1] < out.Rank[sb-1]
		})

		upRows[i] = supersets
		for _, m := range supersets {
			downRows[m-1] = append(downRows[m-1], node)
		}
	}

	for i := 0; i < n; i++ {
		sort.Slice(downRows[i], func(a, b int) bool {
			return out.Rank[downRows[i][a]-1] < out.Rank[downRows[i][b]-1]
		})
	}

	upB, downB := NewBuilder(), NewBuilder()
	for i := 0; i < n; i++ {
		upB.AddRow(upRows[i])
		downB.AddRow(downRows[i])
	}
	return upB.Build(), downB.Build()
}

// isSubset reports whether every element of a (sorted, duplicate-free)
// appears in b (sorted, duplicate-free).
func isSubset(a, b []int32) bool {
	j := 0
	for _, v := range a {
		for j < len(b) && b[j] < v {
			j++
		}
		if j >= len(b) || b[j] != v {
			return false
		}
	}
	return true
}
