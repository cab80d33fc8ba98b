package spin

import "sort"

// ReturnKind selects the shape of Results, matching spec.md §4.5's
// return_type options.
type ReturnKind int

const (
	ReturnResults ReturnKind = iota
	ReturnCount
	ReturnStatistics
	ReturnPassages
)

// Statistics summarizes a tuple set per atom position: how many
// distinct nodes were bound at that position across all tuples.
type Statistics struct {
	AtomCounts []int // len(plan.Atoms); distinct node count per position
	TupleCount int
}

// Passage is a contiguous span of text a single matched tuple covers,
// identified by its bounding slot range; rendering the actual text is
// left to internal/nav.T, which Results callers already hold.
type Passage struct {
	First int32
	Last  int32
	Tuple Tuple
}

// Results renders tuples per kind. Results come back in SortedTuples
// order and passages in the order given; count/statistics ignore
// ordering.
func Results(kind ReturnKind, plan *Plan, tuples []Tuple, firstSlot func(n int32) (int32, bool), lastSlot func(n int32) (int32, bool)) any {
	switch kind {
	case ReturnCount:
		return len(tuples)
	case ReturnStatistics:
		return statistics(plan, tuples)
	case ReturnPassages:
		return passages(tuples, firstSlot, lastSlot)
	default:
		return SortedTuples(tuples)
	}
}

// SortedTuples orders tuples lexicographically by node id (first atom's
// binding, then the second's, and so on), a deterministic presentation
// order independent of whatever
// order the join happened to produce them in (spec.md §8's
// plan-order-independence invariant applies to the result *set*; this
// gives callers a canonical order for the result *list*).
func SortedTuples(tuples []Tuple) []Tuple {
	out := make([]Tuple, len(tuples))
	copy(out, tuples)
	sort.Slice(out, func(i, j int) bool {
		for k := range out[i] {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

func statistics(plan *Plan, tuples []Tuple) Statistics {
	st := Statistics{AtomCounts: make([]int, len(plan.Atoms)), TupleCount: len(tuples)}
	seen := make([]map[int32]bool, len(plan.Atoms))
	for i := range seen {
		seen[i] = map[int32]bool{}
	}
	for _, t := range tuples {
		for i, v := range t {
			if v != 0 {
				seen[i][v] = true
			}
		}
	}
	for i, s := range seen {
		st.AtomCounts[i] = len(s)
	}
	return st
}

func passages(tuples []Tuple, firstSlot func(n int32) (int32, bool), lastSlot func(n int32) (int32, bool)) []Passage {
	out := make([]Passage, 0, len(tuples))
	for _, t := range tuples {
		var first, last int32
		haveFirst := false
		for _, n := range t {
			if n == 0 {
				continue
			}
			fs, ok1 := firstSlot(n)
			ls, ok2 := lastSlot(n)
			if !ok1 || !ok2 {
				continue
			}
			if !haveFirst || fs < first {
				first = fs
				haveFirst = true
			}
			if ls > last {
				last = ls
			}
		}
		if haveFirst {
			out = append(out, Passage{First: first, Last: last, Tuple: t})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].First < out[j].First })
	return out
}
