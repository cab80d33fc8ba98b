package spin

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/contextfabric/fabric/internal/spin/template"
)

// candidateBatch is the number of partial tuples processed between
// context cancellation checks, matching spec.md §4.5's "check at
// batch boundaries of at least 1024 candidates" cancellation contract.
const candidateBatch = 1024

// Tuple is one matched binding: Tuple[i] is the node id bound to
// Plan.Atoms[i], or 0 for an atom that has no binding in this tuple
// (quantifier bodies that don't themselves carry to the result).
type Tuple []int32

// Execute runs plan against cat, returning every distinct tuple in
// template order, deduplicated. It builds partial tuples one spin-order
// atom at a time: each new atom's base candidates (type + predicates)
// are computed once, then narrowed by its relation to its parent's
// binding in each partial tuple so far (a join can only shrink a
// candidate set, per spec.md §4.5 step 3). Quantifiers are evaluated
// as an existence/negation test against the owning atom's binding and
// do not themselves appear in the returned tuple.
func Execute(ctx context.Context, plan *Plan, cat *Catalog) ([]Tuple, error) {
	checked := 0
	tuples, err := joinAtoms(ctx, cat, plan.Atoms, plan.Order, false, 0, &checked)
	if err != nil {
		return nil, err
	}

	filtered, err := applyQuantifiers(ctx, cat, plan, tuples, &checked)
	if err != nil {
		return nil, err
	}
	return dedup(filtered), nil
}

// joinAtoms builds every distinct binding of atoms in spin order
// starting from one empty partial tuple, optionally restricting every
// Parent == -1 root's candidates by its relation to an external bound
// node (used when atoms is a quantifier body evaluated against its
// owning atom's binding rather than at the top level).
func joinAtoms(ctx context.Context, cat *Catalog, atoms []*Node, order []int, hasExternal bool, extBound int32, checked *int) ([]Tuple, error) {
	n := len(atoms)
	partials := []Tuple{make(Tuple, n)}

	for _, idx := range order {
		node := atoms[idx]
		base := baseCandidates(cat, node)

		var next []Tuple
		for _, t := range partials {
			*checked++
			if *checked%candidateBatch == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			allowed := base
			if node.Parent >= 0 && t[node.Parent] != 0 {
				allowed = restrictByRelation(cat, t[node.Parent], node.ParentRel, base)
			} else if node.Parent == -1 && hasExternal {
				allowed = restrictByRelation(cat, extBound, node.ParentRel, base)
			}
			for _, c := range allowed {
				nt := make(Tuple, n)
				copy(nt, t)
				nt[idx] = c
				next = append(next, nt)
			}
		}
		partials = next
		if len(partials) == 0 {
			break
		}
	}
	return filterSiblingConstraints(cat, atoms, partials), nil
}

// filterSiblingConstraints enforces the second join edge a non-first
// child carries (see Node.PrevSibling): its SiblingRel must hold
// between its own binding and the sibling right before it, independent
// of the containment edge to their shared parent that already drove
// the join.
func filterSiblingConstraints(cat *Catalog, atoms []*Node, tuples []Tuple) []Tuple {
	hasConstraint := false
	for _, a := range atoms {
		if a.PrevSibling >= 0 {
			hasConstraint = true
			break
		}
	}
	if !hasConstraint {
		return tuples
	}
	var out []Tuple
	for _, t := range tuples {
		ok := true
		for idx, a := range atoms {
			if a.PrevSibling < 0 {
				continue
			}
			prevBound, selfBound := t[a.PrevSibling], t[idx]
			if prevBound == 0 || selfBound == 0 {
				continue
			}
			allowed := restrictByRelation(cat, prevBound, a.SiblingRel, []int32{selfBound})
			if len(allowed) == 0 {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, t)
		}
	}
	return out
}

// applyQuantifiers drops any tuple whose owning atom fails one of its
// quantifier constraints: /where/, /have/, /with/, and /or/ require at
// least one binding of the quantifier's body against the owning atom;
// /without/ and "-" require zero. Every atom in the flattened plan may
// carry quantifiers, so this walks plan.Atoms directly rather than
// just the roots.
func applyQuantifiers(ctx context.Context, cat *Catalog, plan *Plan, tuples []Tuple, checked *int) ([]Tuple, error) {
	var out []Tuple
	for _, t := range tuples {
		ok := true
		for idx, node := range plan.Atoms {
			bound := t[idx]
			if bound == 0 || len(node.Quantifiers) == 0 {
				continue
			}
			for _, q := range node.Quantifiers {
				matches, err := joinAtoms(ctx, cat, q.Sub.Atoms, q.Sub.Order, true, bound, checked)
				if err != nil {
					return nil, err
				}
				exists := len(matches) > 0
				switch q.Kind {
				case template.QuantWithout, template.QuantNot:
					if exists {
						ok = false
					}
				default: // where, have, with, or
					if !exists {
						ok = false
					}
				}
				if !ok {
					break
				}
			}
			if !ok {
				break
			}
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// baseCandidates evaluates an atom's type constraint and predicates,
// independent of any relation binding.
func baseCandidates(cat *Catalog, node *Node) []int32 {
	nodes := cat.WalkType(node.TypeID)
	for _, pred := range node.Atom.Predicates {
		if len(nodes) == 0 {
			break
		}
		fh, ok := cat.Feature(pred.Feature)
		if !ok {
			return nil
		}
		switch pred.Op {
		case template.OpEq:
			nodes = fh.FilterEq(nodes, first(pred.Values))
		case template.OpIn:
			nodes = fh.FilterIn(nodes, pred.Values)
		case template.OpNe:
			nodes = fh.FilterNe(nodes, first(pred.Values))
		case template.OpPresent:
			nodes = fh.FilterPresent(nodes)
		case template.OpAbsent:
			nodes = fh.FilterAbsent(nodes)
		case template.OpRegex:
			nodes = filterRegex(nodes, fh, first(pred.Values))
		}
	}
	return nodes
}

func filterRegex(nodes []int32, fh FeatureHandle, pattern string) []int32 {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	var out []int32
	for _, n := range nodes {
		v, ok := fh.Value(n)
		if ok && re.MatchString(v) {
			out = append(out, n)
		}
	}
	return out
}

// restrictByRelation narrows candidates to those standing in rel to
// bound, per the relation table of spec.md §4.5. Every asymmetric
// relation here reads "bound REL self" (the Text-Fabric-style
// convention this grammar follows: an explicit operator prefixes the
// second/later atom and describes the already-bound one's relation to
// it, and containment-by-indentation describes the parent's relation
// to the child the same way) — so e.g. RelImmBefore ("bound is
// immediately before self") resolves to self == Next(bound), not
// Prev(bound).
func restrictByRelation(cat *Catalog, bound int32, rel template.RelOp, candidates []int32) []int32 {
	switch rel {
	case template.RelContainment, template.RelEmbeds:
		// bound embeds/contains self: self is a descendant of bound.
		return intersectSet(candidates, transitiveDown(cat, bound))
	case template.RelEmbeddedIn:
		// bound is embedded in self: self is an ancestor of bound.
		return intersectSet(candidates, transitiveUp(cat, bound))
	case template.RelPrecedes:
		r, ok := cat.Rank(bound)
		if !ok {
			return nil
		}
		return filterFunc(candidates, func(c int32) bool {
			cr, ok := cat.Rank(c)
			return ok && cr > r
		})
	case template.RelFollows:
		r, ok := cat.Rank(bound)
		if !ok {
			return nil
		}
		return filterFunc(candidates, func(c int32) bool {
			cr, ok := cat.Rank(c)
			return ok && cr < r
		})
	case template.RelImmBefore:
		nx, ok := cat.Next(bound)
		if !ok {
			return nil
		}
		return filterFunc(candidates, func(c int32) bool { return c == nx })
	case template.RelImmAfter:
		p, ok := cat.Prev(bound)
		if !ok {
			return nil
		}
		return filterFunc(candidates, func(c int32) bool { return c == p })
	case template.RelEntirelyBefore:
		lb, ok := cat.LastSlot(bound)
		if !ok {
			return nil
		}
		return filterFunc(candidates, func(c int32) bool {
			first, ok := cat.FirstSlot(c)
			return ok && first > lb
		})
	case template.RelEntirelyAfter:
		fb, ok := cat.FirstSlot(bound)
		if !ok {
			return nil
		}
		return filterFunc(candidates, func(c int32) bool {
			last, ok := cat.LastSlot(c)
			return ok && last < fb
		})
	case template.RelShareFirst:
		fb, ok := cat.FirstSlot(bound)
		if !ok {
			return nil
		}
		return filterFunc(candidates, func(c int32) bool {
			f, ok := cat.FirstSlot(c)
			return ok && f == fb
		})
	case template.RelShareLast:
		lb, ok := cat.LastSlot(bound)
		if !ok {
			return nil
		}
		return filterFunc(candidates, func(c int32) bool {
			l, ok := cat.LastSlot(c)
			return ok && l == lb
		})
	case template.RelCoExtensive, template.RelSameSlotSet:
		fb, ok1 := cat.FirstSlot(bound)
		lb, ok2 := cat.LastSlot(bound)
		if !ok1 || !ok2 {
			return nil
		}
		return filterFunc(candidates, func(c int32) bool {
			f, ok1 := cat.FirstSlot(c)
			l, ok2 := cat.LastSlot(c)
			return ok1 && ok2 && f == fb && l == lb
		})
	default:
		return candidates
	}
}

func filterFunc(nodes []int32, pred func(int32) bool) []int32 {
	var out []int32
	for _, n := range nodes {
		if pred(n) {
			out = append(out, n)
		}
	}
	return out
}

func intersectSet(nodes []int32, set map[int32]bool) []int32 {
	var out []int32
	for _, n := range nodes {
		if set[n] {
			out = append(out, n)
		}
	}
	return out
}

// transitiveDown returns every node embedded in root at any depth, by
// repeated application of the one-level LevDown relation.
func transitiveDown(cat *Catalog, root int32) map[int32]bool {
	visited := map[int32]bool{}
	queue := []int32{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, d := range cat.LevDown(n) {
			if !visited[d] {
				visited[d] = true
				queue = append(queue, d)
			}
		}
	}
	return visited
}

// transitiveUp returns every node embedding root at any depth, by
// repeated application of the one-level LevUp relation.
func transitiveUp(cat *Catalog, root int32) map[int32]bool {
	visited := map[int32]bool{}
	queue := []int32{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, u := range cat.LevUp(n) {
			if !visited[u] {
				visited[u] = true
				queue = append(queue, u)
			}
		}
	}
	return visited
}

func dedup(tuples []Tuple) []Tuple {
	seen := make(map[string]bool, len(tuples))
	out := make([]Tuple, 0, len(tuples))
	var sb strings.Builder
	for _, t := range tuples {
		sb.Reset()
		for _, v := range t {
			sb.WriteString(strconv.Itoa(int(v)))
			sb.WriteByte(',')
		}
		key := sb.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
