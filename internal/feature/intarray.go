package feature

import "math"

// AbsentInt is the sentinel dense-array value meaning "no value" for
// an int feature, per spec.md §4.1 ("a sentinel (e.g. INT32_MIN)").
const AbsentInt = int32(math.MinInt32)

// intArray is the minimal view feature needs from internal/store's
// Int32Array, kept narrow so this package doesn't import store
// directly (store imports warp; feature stays a leaf alongside it).
type intArray interface {
	Get(i int) (int32, bool)
	Len() int
	Slice() []int32
}

// IntFeature is a dense per-node int32 array with a sentinel for
// absence, implementing the get/filter_* contract of spec.md §4.2.
type IntFeature struct {
	name string
	data intArray
}

// NewIntFeature wraps a raw dense array as a node int feature.
func NewIntFeature(name string, data intArray) *IntFeature {
	return &IntFeature{name: name, data: data}
}

func (f *IntFeature) Name() string { return f.name }

func (f *IntFeature) String() string {
	return "IntFeature(" + f.name + ")"
}

// V returns the value at node n (1-based), or (0, false) if n is
// out of [1, N] or the stored cell holds the sentinel. Bounds-safe per
// spec.md §7: out-of-range node ids are treated as absent, never a
// panic or error.
func (f *IntFeature) V(n int32) (int32, bool) {
	v, ok := f.data.Get(int(n) - 1)
	if !ok || v == AbsentInt {
		return 0, false
	}
	return v, true
}

// EstimateSelectivity returns count(v)/|nodes with data|, computed by
// a single linear scan on every call. The planner
// (internal/spin/plan.go) calls it for each equality or alternative
// predicate whenever it builds a plan; no histogram is kept between
// calls.
func (f *IntFeature) EstimateSelectivity(value string) float64 {
	target, err := parseIntValue(value)
	if err != nil {
		return 0
	}
	return f.estimateSelectivityInt(target)
}

func (f *IntFeature) estimateSelectivityInt(target int32) float64 {
	total := f.data.Len()
	if total == 0 {
		return 0
	}
	matches := 0
	for _, v := range f.data.Slice() {
		if v == target {
			matches++
		}
	}
	return float64(matches) / float64(total)
}

// FilterEq returns the subset of nodes whose value equals v exactly.
func (f *IntFeature) FilterEq(nodes []int32, v int32) []int32 {
	return f.filterBy(nodes, func(got int32, present bool) bool {
		return present && got == v
	})
}

// FilterIn returns the subset of nodes whose value matches any of vs.
func (f *IntFeature) FilterIn(nodes []int32, vs []int32) []int32 {
	set := make(map[int32]struct{}, len(vs))
	for _, v := range vs {
		set[v] = struct{}{}
	}
	return f.filterBy(nodes, func(got int32, present bool) bool {
		if !present {
			return false
		}
		_, ok := set[got]
		return ok
	})
}

// FilterNe returns the subset of nodes with a present value not equal
// to v. Absent nodes do not match (absence is a distinct state from
// "not v", per spec.md §3).
func (f *IntFeature) FilterNe(nodes []int32, v int32) []int32 {
	return f.filterBy(nodes, func(got int32, present bool) bool {
		return present && got != v
	})
}

// FilterPresent returns the subset of nodes with any value.
func (f *IntFeature) FilterPresent(nodes []int32) []int32 {
	return f.filterBy(nodes, func(_ int32, present bool) bool { return present })
}

// FilterAbsent returns the subset of nodes with no value.
func (f *IntFeature) FilterAbsent(nodes []int32) []int32 {
	return f.filterBy(nodes, func(_ int32, present bool) bool { return !present })
}

// filterBy applies pred over a dense index of the backing array once,
// per spec.md §4.2's "index the backing array once" requirement.
// Out-of-range node ids are dropped silently, matching the bulk-filter
// bounds contract.
func (f *IntFeature) filterBy(nodes []int32, pred func(int32, bool) bool) []int32 {
	out := make([]int32, 0, len(nodes))
	for _, n := range nodes {
		v, ok := f.data.Get(int(n) - 1)
		present := ok && v != AbsentInt
		if pred(v, present) {
			out = append(out, n)
		}
	}
	return out
}
