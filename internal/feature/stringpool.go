package feature

// AbsentIndex is the sentinel pool-index value meaning "no value" for
// a string feature, analogous to AbsentInt.
const AbsentIndex = int32(-1)

// pool is the minimal view StringFeature needs from internal/store's
// StringPool.
type pool interface {
	Value(i int32) (string, bool)
	Index(value string) (int32, bool)
	Len() int
}

// StringFeature is a dense per-node int32 index array into an interned
// string pool, implementing the get/filter_* contract of spec.md §4.2
// for string-valued features.
type StringFeature struct {
	name string
	data intArray
	pool pool
}

// NewStringFeature wraps a raw index array plus its pool as a node
// string feature.
func NewStringFeature(name string, data intArray, p pool) *StringFeature {
	return &StringFeature{name: name, data: data, pool: p}
}

func (f *StringFeature) Name() string { return f.name }

func (f *StringFeature) String() string {
	return "StringFeature(" + f.name + ")"
}

// V returns the interned string value at node n, or ("", false) if
// absent or out of range.
func (f *StringFeature) V(n int32) (string, bool) {
	idx, ok := f.data.Get(int(n) - 1)
	if !ok || idx == AbsentIndex {
		return "", false
	}
	return f.pool.Value(idx)
}

// S returns the interned pool index for a string value, used by
// callers that want to resolve a value once and reuse the index across
// many filter calls (e.g. the SPIN executor materializing an atom's
// predicate).
func (f *StringFeature) S(value string) (int32, bool) {
	return f.pool.Index(value)
}

// EstimateSelectivity resolves value against the pool; an unknown
// value has selectivity 0 ("never matches", per spec.md §4.2), not an
// error.
func (f *StringFeature) EstimateSelectivity(value string) float64 {
	idx, ok := f.pool.Index(value)
	if !ok {
		return 0
	}
	total := f.data.Len()
	if total == 0 {
		return 0
	}
	matches := 0
	for _, v := range f.data.Slice() {
		if v == idx {
			matches++
		}
	}
	return float64(matches) / float64(total)
}

// FreqList returns every (value, count) pair with at least one
// occurrence, used by Api.F[name].FreqList().
func (f *StringFeature) FreqList() map[string]int {
	counts := make(map[int32]int)
	for _, v := range f.data.Slice() {
		if v == AbsentIndex {
			continue
		}
		counts[v]++
	}
	out := make(map[string]int, len(counts))
	for idx, c := range counts {
		if v, ok := f.pool.Value(idx); ok {
			out[v] = c
		}
	}
	return out
}

// FilterEq returns the subset of nodes whose value equals v exactly.
// An unknown value resolves to an empty result, never an error.
func (f *StringFeature) FilterEq(nodes []int32, v string) []int32 {
	idx, ok := f.pool.Index(v)
	if !ok {
		return nil
	}
	return f.filterByIndex(nodes, func(got int32, present bool) bool {
		return present && got == idx
	})
}

// FilterIn returns the subset of nodes whose value matches any of vs.
func (f *StringFeature) FilterIn(nodes []int32, vs []string) []int32 {
	set := make(map[int32]struct{}, len(vs))
	for _, v := range vs {
		if idx, ok := f.pool.Index(v); ok {
			set[idx] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return f.filterByIndex(nodes, func(got int32, present bool) bool {
		if !present {
			return false
		}
		_, ok := set[got]
		return ok
	})
}

// FilterNe returns the subset of nodes with a present value not equal
// to v.
func (f *StringFeature) FilterNe(nodes []int32, v string) []int32 {
	idx, ok := f.pool.Index(v)
	if !ok {
		// Every present value is "not v" when v isn't even in the pool.
		return f.FilterPresent(nodes)
	}
	return f.filterByIndex(nodes, func(got int32, present bool) bool {
		return present && got != idx
	})
}

// FilterPresent returns the subset of nodes with any value.
func (f *StringFeature) FilterPresent(nodes []int32) []int32 {
	return f.filterByIndex(nodes, func(_ int32, present bool) bool { return present })
}

// FilterAbsent returns the subset of nodes with no value.
func (f *StringFeature) FilterAbsent(nodes []int32) []int32 {
	return f.filterByIndex(nodes, func(_ int32, present bool) bool { return !present })
}

func (f *StringFeature) filterByIndex(nodes []int32, pred func(int32, bool) bool) []int32 {
	out := make([]int32, 0, len(nodes))
	for _, n := range nodes {
		v, ok := f.data.Get(int(n) - 1)
		present := ok && v != AbsentIndex
		if pred(v, present) {
			out = append(out, n)
		}
	}
	return out
}
