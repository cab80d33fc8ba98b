package fabric

import (
	"github.com/contextfabric/fabric/internal/feature"
	"github.com/contextfabric/fabric/internal/nav"
	"github.com/contextfabric/fabric/internal/spin"
)

// FeatureAccessor unifies int and string node features behind one
// surface for Api.F, generalizing DESIGN NOTES §9's "typed dictionary
// name -> feature_handle" into a single interface rather than a tagged
// variant, since Go interfaces already give us the open dispatch the
// source's duck typing provided.
type FeatureAccessor interface {
	Name() string
	// Kind reports "int" or "string".
	Kind() string
	// V returns node n's value (int32 or string) and whether it is
	// present; out-of-range nodes are bounds-safe absent per spec.md §7.
	V(n Node) (any, bool)
	// S resolves a string value to its interned pool index; only
	// meaningful for string features (ok is always false for an int
	// feature).
	S(value string) (int32, bool)
	FreqList() map[string]int
	FilterEq(nodes []Node, value string) []Node
	FilterIn(nodes []Node, values []string) []Node
	FilterNe(nodes []Node, value string) []Node
	FilterPresent(nodes []Node) []Node
	FilterAbsent(nodes []Node) []Node

	// handle adapts this accessor to the planner's narrower
	// FeatureHandle surface, used when building a spin.Catalog.
	handle() spin.FeatureHandle
}

type intFeatureAccessor struct{ f *feature.IntFeature }

func (a intFeatureAccessor) Name() string { return a.f.Name() }
func (a intFeatureAccessor) Kind() string { return "int" }
func (a intFeatureAccessor) V(n Node) (any, bool) {
	v, ok := a.f.V(n)
	return v, ok
}
func (a intFeatureAccessor) S(string) (int32, bool) { return 0, false }

// FreqList is a string-pool operation per spec.md §6
// (Api.F[name].freqList()); int features have no bounded value domain
// to enumerate ahead of time, so an int accessor reports empty rather
// than scanning an unbounded key space.
func (a intFeatureAccessor) FreqList() map[string]int { return map[string]int{} }
func (a intFeatureAccessor) FilterEq(nodes []Node, v string) []Node {
	return a.handle().FilterEq(nodes, v)
}
func (a intFeatureAccessor) FilterIn(nodes []Node, vs []string) []Node {
	return a.handle().FilterIn(nodes, vs)
}
func (a intFeatureAccessor) FilterNe(nodes []Node, v string) []Node {
	return a.handle().FilterNe(nodes, v)
}
func (a intFeatureAccessor) FilterPresent(nodes []Node) []Node { return a.handle().FilterPresent(nodes) }
func (a intFeatureAccessor) FilterAbsent(nodes []Node) []Node  { return a.handle().FilterAbsent(nodes) }
func (a intFeatureAccessor) handle() spin.FeatureHandle        { return spin.NewIntFeatureHandle(a.f) }

type stringFeatureAccessor struct{ f *feature.StringFeature }

func (a stringFeatureAccessor) Name() string { return a.f.Name() }
func (a stringFeatureAccessor) Kind() string { return "string" }
func (a stringFeatureAccessor) V(n Node) (any, bool) {
	v, ok := a.f.V(n)
	return v, ok
}
func (a stringFeatureAccessor) S(value string) (int32, bool) { return a.f.S(value) }
func (a stringFeatureAccessor) FreqList() map[string]int     { return a.f.FreqList() }
func (a stringFeatureAccessor) FilterEq(nodes []Node, v string) []Node {
	return a.f.FilterEq(nodes, v)
}
func (a stringFeatureAccessor) FilterIn(nodes []Node, vs []string) []Node {
	return a.f.FilterIn(nodes, vs)
}
func (a stringFeatureAccessor) FilterNe(nodes []Node, v string) []Node {
	return a.f.FilterNe(nodes, v)
}
func (a stringFeatureAccessor) FilterPresent(nodes []Node) []Node { return a.f.FilterPresent(nodes) }
func (a stringFeatureAccessor) FilterAbsent(nodes []Node) []Node  { return a.f.FilterAbsent(nodes) }
func (a stringFeatureAccessor) handle() spin.FeatureHandle {
	return spin.NewStringFeatureHandle(a.f)
}

// EdgeAccessor exposes one edge feature's directional views, per
// spec.md §6's Api.E[name].f/t/b(node).
type EdgeAccessor struct{ f *feature.EdgeFeature }

// F returns the destinations of edges originating at n.
func (a *EdgeAccessor) F(n Node) []Node { return a.f.EdgesFrom(n) }

// T returns the sources of edges terminating at n.
func (a *EdgeAccessor) T(n Node) []Node { return a.f.EdgesTo(n) }

// B returns the union of both directions, deduplicated.
func (a *EdgeAccessor) B(n Node) []Node {
	seen := make(map[Node]bool)
	var out []Node
	for _, x := range a.f.EdgesFrom(n) {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	for _, x := range a.f.EdgesTo(n) {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

// Get returns the edge value between source and dest, if any.
func (a *EdgeAccessor) Get(source, dest Node) (int32, bool) { return a.f.Get(source, dest) }

// FeatureSet is the typed dictionary DESIGN NOTES §9 calls for,
// realized literally as a Go map so Api.F[name] reads exactly like
// spec.md §6's Api.F[name].v(node).
type FeatureSet map[string]FeatureAccessor

// EdgeSet is FeatureSet's edge-feature counterpart, Api.E[name].
type EdgeSet map[string]*EdgeAccessor

// Api is the loaded façade spec.md §6 describes: stateless operator
// objects (N/F/E/L/T/S) holding a reference back to the Fabric, not
// namespaces, per DESIGN NOTES §9.
type Api struct {
	N *nav.N
	L *nav.L
	T *nav.T
	F FeatureSet
	E EdgeSet
	S *Search

	fab *Fabric
}
