// Package spin implements the SPIN query planner and executor of
// spec.md §4.5: parsing is handled by internal/spin/template; this
// package estimates cardinality, chooses a spin order, and executes
// the joined plan against the store's navigation and feature handles.
package spin

import (
	"strconv"

	"github.com/contextfabric/fabric/internal/feature"
)

// FeatureHandle unifies IntFeature and StringFeature behind one
// string-valued predicate surface, so the planner and executor can
// treat every atom predicate uniformly regardless of value kind.
type FeatureHandle interface {
	Name() string
	EstimateSelectivity(value string) float64
	FilterEq(nodes []int32, value string) []int32
	FilterIn(nodes []int32, values []string) []int32
	FilterNe(nodes []int32, value string) []int32
	FilterPresent(nodes []int32) []int32
	FilterAbsent(nodes []int32) []int32
	// Value returns node n's value rendered as a string, for predicates
	// (regex) that need the raw value rather than a bulk filter.
	Value(n int32) (string, bool)
}

// intFeatureHandle adapts *feature.IntFeature's int32-valued bulk
// filters to FeatureHandle's string-valued ones.
type intFeatureHandle struct{ f *feature.IntFeature }

// NewIntFeatureHandle wraps an int feature for use by the planner.
func NewIntFeatureHandle(f *feature.IntFeature) FeatureHandle { return intFeatureHandle{f} }

func (h intFeatureHandle) Name() string { return h.f.Name() }
func (h intFeatureHandle) EstimateSelectivity(v string) float64 {
	return h.f.EstimateSelectivity(v)
}
func (h intFeatureHandle) FilterEq(nodes []int32, v string) []int32 {
	iv, ok := parseInt(v)
	if !ok {
		return nil
	}
	return h.f.FilterEq(nodes, iv)
}
func (h intFeatureHandle) FilterIn(nodes []int32, vs []string) []int32 {
	var ivs []int32
	for _, v := range vs {
		if iv, ok := parseInt(v); ok {
			ivs = append(ivs, iv)
		}
	}
	return h.f.FilterIn(nodes, ivs)
}
func (h intFeatureHandle) FilterNe(nodes []int32, v string) []int32 {
	iv, ok := parseInt(v)
	if !ok {
		return h.f.FilterPresent(nodes)
	}
	return h.f.FilterNe(nodes, iv)
}
func (h intFeatureHandle) FilterPresent(nodes []int32) []int32 { return h.f.FilterPresent(nodes) }
func (h intFeatureHandle) FilterAbsent(nodes []int32) []int32  { return h.f.FilterAbsent(nodes) }
func (h intFeatureHandle) Value(n int32) (string, bool) {
	v, ok := h.f.V(n)
	if !ok {
		return "", false
	}
	return strconv.Itoa(int(v)), true
}

// stringFeatureHandle adapts *feature.StringFeature directly; its
// bulk filters are already string-valued.
type stringFeatureHandle struct{ f *feature.StringFeature }

// NewStringFeatureHandle wraps a string feature for use by the planner.
func NewStringFeatureHandle(f *feature.StringFeature) FeatureHandle { return stringFeatureHandle{f} }

func (h stringFeatureHandle) Name() string { return h.f.Name() }
func (h stringFeatureHandle) EstimateSelectivity(v string) float64 {
	return h.f.EstimateSelectivity(v)
}
func (h stringFeatureHandle) FilterEq(nodes []int32, v string) []int32  { return h.f.FilterEq(nodes, v) }
func (h stringFeatureHandle) FilterIn(nodes []int32, vs []string) []int32 {
	return h.f.FilterIn(nodes, vs)
}
func (h stringFeatureHandle) FilterNe(nodes []int32, v string) []int32 { return h.f.FilterNe(nodes, v) }
func (h stringFeatureHandle) FilterPresent(nodes []int32) []int32     { return h.f.FilterPresent(nodes) }
func (h stringFeatureHandle) FilterAbsent(nodes []int32) []int32      { return h.f.FilterAbsent(nodes) }
func (h stringFeatureHandle) Value(n int32) (string, bool)            { return h.f.V(n) }

func parseInt(s string) (int32, bool) {
	var n int32
	var neg bool
	i := 0
	if len(s) == 0 {
		return 0, false
	}
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(s) {
		return 0, false
	}
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int32(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

// Catalog is everything the planner and executor need from the loaded
// store besides feature handles: type ids, per-type node counts, and
// structural accessors.
type Catalog struct {
	TypeID      func(name string) (int32, bool)
	TypeCount   func(typeID int32) int32
	Feature     func(name string) (FeatureHandle, bool)
	WalkType    func(typeID int32) []int32
	LevUp       func(n int32) []int32
	LevDown     func(n int32) []int32
	FirstSlot   func(n int32) (int32, bool)
	LastSlot    func(n int32) (int32, bool)
	Rank        func(n int32) (int32, bool)
	Prev        func(n int32) (int32, bool) // same-type canonical predecessor
	Next        func(n int32) (int32, bool) // same-type canonical successor
}
