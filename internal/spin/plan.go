package spin

import (
	"github.com/contextfabric/fabric/internal/spin/template"
)

// Node is one planned atom: its position in the flattened template (an
// index into Plan.Atoms), the bound type, and the estimated number of
// nodes it will match before any relation join narrows it further.
type Node struct {
	Atom      *template.Atom
	Parent    int // index into Plan.Atoms, or -1 for a root
	ParentRel template.RelOp
	TypeID    int32
	EstCard   int64

	// PrevSibling and SiblingRel hold a second, independent join
	// constraint for non-first children: indentation alone makes every
	// child a descendant of its parent (carried by Parent/ParentRel,
	// always RelContainment for these), but siblings after the first
	// are additionally ordered relative to the sibling right before
	// them, by SiblingRel (RelPrecedes by default, or an explicit
	// operator). PrevSibling is -1 when no such constraint applies.
	PrevSibling int
	SiblingRel  template.RelOp

	Quantifiers []QuantPlan
}

// QuantPlan is one quantifier attached to a Node: Sub is a self-
// contained plan for the quantifier's body, whose root atoms (Parent
// == -1) are bound not freely but by their ParentRel against the
// owning atom's binding, evaluated at execution time.
type QuantPlan struct {
	Kind template.QuantKind
	Sub  *Plan
}

// Plan is a flattened, spin-ordered view of a Template: Atoms holds
// every atom in template order (same indexing nav/exec use to refer
// back to predicates and quantifiers); Order lists indices into Atoms
// in the sequence the executor should bind them, chosen to clip the
// search space by joining each new atom to one already bound whenever
// possible (spec.md §4.5 steps 2-3).
type Plan struct {
	Atoms []*Node
	Order []int
}

// Build flattens tmpl and chooses a spin order. It is grounded on the
// teacher's QueryBuilder.optimizeFilters/getSearchLimit pattern in
// libravdb/query.go: estimate selectivity per constraint, then order
// work from most to least selective, except here the search space is
// a graph join rather than a flat filter list, so "most selective
// neighbor of what's already bound" takes priority over global
// cardinality once something is bound.
func Build(tmpl *template.Template, cat *Catalog) (*Plan, error) {
	p := &Plan{}
	if err := flattenInto(p, tmpl.Roots, -1, cat); err != nil {
		return nil, err
	}
	p.Order = chooseSpinOrder(p.Atoms)
	return p, nil
}

// flattenInto appends roots (and their descendants) to target, each
// anchored to parent for join purposes. Each atom's quantifiers become
// their own nested Plan via the same flattening, rooted externally at
// that atom rather than folded into target's join graph, so /without/
// and "-" can be evaluated as an anti-join instead of an inner join
// (an inner join can only ever require a match, never forbid one).
func flattenInto(target *Plan, roots []*template.Atom, parent int, cat *Catalog) error {
	var flattenAtom func(a *template.Atom, parent int, rel template.RelOp) (int, error)
	flattenAtom = func(a *template.Atom, parent int, rel template.RelOp) (int, error) {
		typeID, _ := cat.TypeID(a.TypeName)
		n := &Node{Atom: a, Parent: parent, ParentRel: rel, TypeID: typeID, PrevSibling: -1}
		n.EstCard = estimateCardinality(cat, n)
		idx := len(target.Atoms)
		target.Atoms = append(target.Atoms, n)
		// Every child is anchored to this atom as its parent (indentation
		// always means containment, regardless of any sibling operator).
		// A non-first child additionally carries its SiblingRel against
		// the sibling directly before it, as a second join constraint
		// applied once both are bound (see joinAtoms' sibling pass).
		prevSibling := -1
		for i, c := range a.Children {
			parentRel := c.SiblingRel // first child: containment, or an explicit override
			if i > 0 {
				parentRel = template.RelContainment // still nested, regardless of sibling op
			}
			childIdx, err := flattenAtom(c, idx, parentRel)
			if err != nil {
				return 0, err
			}
			if i > 0 {
				target.Atoms[childIdx].PrevSibling = prevSibling
				target.Atoms[childIdx].SiblingRel = c.SiblingRel
			}
			prevSibling = childIdx
		}
		for _, q := range a.Quantifiers {
			sub := &Plan{}
			rel := template.RelContainment
			if len(q.Body) > 0 && q.Body[0].SiblingRel != "" {
				rel = q.Body[0].SiblingRel
			}
			bodyRoots := make([]*template.Atom, len(q.Body))
			copy(bodyRoots, q.Body)
			if len(bodyRoots) > 0 {
				bodyRoots[0] = cloneWithRel(bodyRoots[0], rel)
			}
			if err := flattenInto(sub, bodyRoots, -1, cat); err != nil {
				return 0, err
			}
			sub.Order = chooseSpinOrder(sub.Atoms)
			n.Quantifiers = append(n.Quantifiers, QuantPlan{Kind: q.Kind, Sub: sub})
		}
		return idx, nil
	}
	prevRoot := -1
	for i, r := range roots {
		par := parent
		if i > 0 {
			par = prevRoot
		}
		idx, err := flattenAtom(r, par, r.SiblingRel)
		if err != nil {
			return err
		}
		prevRoot = idx
	}
	return nil
}

// cloneWithRel returns a shallow copy of a with SiblingRel overridden,
// used to default a quantifier body's first atom to containment
// relative to the owning atom when the template left it implicit.
func cloneWithRel(a *template.Atom, rel template.RelOp) *template.Atom {
	cp := *a
	if cp.SiblingRel == "" {
		cp.SiblingRel = rel
	}
	return &cp
}

// estimateCardinality combines the type's population with the
// selectivity of each bound predicate, matching the teacher's
// selectivity-estimate idiom in query.go (narrower predicates pushed
// earlier). Absent a catalog feature for a predicate, it is ignored
// for estimation (the executor still applies it).
func estimateCardinality(cat *Catalog, n *Node) int64 {
	total := int64(cat.TypeCount(n.TypeID))
	if total <= 0 {
		total = 1
	}
	est := float64(total)
	for _, pred := range n.Atom.Predicates {
		fh, ok := cat.Feature(pred.Feature)
		if !ok {
			continue
		}
		switch pred.Op {
		case template.OpEq:
			est *= fh.EstimateSelectivity(first(pred.Values))
		case template.OpIn:
			var sum float64
			for _, v := range pred.Values {
				sum += fh.EstimateSelectivity(v)
			}
			est *= sum
		case template.OpNe, template.OpPresent:
			est *= 0.9
		case template.OpAbsent:
			est *= 0.1
		case template.OpRegex:
			est *= 0.3
		}
	}
	if est < 1 {
		est = 1
	}
	return int64(est)
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// chooseSpinOrder picks a greedy join order: at each step, bind the
// cheapest-estimated atom whose dependencies (its Parent and, for a
// non-first sibling, its PrevSibling) are already bound, since joinAtoms
// only ever restricts a new atom by an already-bound one, never the
// reverse. Only an atom with no dependency (Parent == -1) is ready from
// the start; flattenInto gives that to the first top-level atom alone
// (each later root is anchored to the root before it, and every child
// to its parent). This is a heuristic approximation of "true"
// join-order optimization, which would need joint histograms over
// every relation; single-feature selectivity plus readiness is what
// the teacher's flat filter planner (optimizeFilters in query.go)
// gives us to build on.
func chooseSpinOrder(atoms []*Node) []int {
	n := len(atoms)
	order := make([]int, 0, n)
	bound := make([]bool, n)

	ready := func(i int) bool {
		a := atoms[i]
		if a.Parent >= 0 && !bound[a.Parent] {
			return false
		}
		if a.PrevSibling >= 0 && !bound[a.PrevSibling] {
			return false
		}
		return true
	}

	for len(order) < n {
		best := -1
		bestCard := int64(-1)
		for i := range atoms {
			if bound[i] || !ready(i) {
				continue
			}
			if best == -1 || atoms[i].EstCard < bestCard {
				best = i
				bestCard = atoms[i].EstCard
			}
		}
		if best == -1 {
			// Every remaining atom depends on something not yet bound:
			// can't happen for a tree built by flattenInto (every Parent/
			// PrevSibling index is strictly smaller than its dependent's),
			// but guard against an unexpected cycle rather than loop forever.
			break
		}
		order = append(order, best)
		bound[best] = true
	}

	return order
}
