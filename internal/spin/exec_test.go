package spin

import (
	"context"
	"testing"

	"github.com/contextfabric/fabric/internal/spin/template"
)

// fakeStringHandle is a minimal FeatureHandle over an in-memory
// map, used to stand in for internal/feature's real handles in tests
// that only exercise the planner/executor's join logic.
type fakeStringHandle struct {
	name   string
	values map[int32]string
}

func (h fakeStringHandle) Name() string { return h.name }
func (h fakeStringHandle) EstimateSelectivity(v string) float64 {
	if len(h.values) == 0 {
		return 0
	}
	n := 0
	for _, got := range h.values {
		if got == v {
			n++
		}
	}
	return float64(n) / float64(len(h.values))
}
func (h fakeStringHandle) FilterEq(nodes []int32, v string) []int32 {
	return h.filter(nodes, func(got string, ok bool) bool { return ok && got == v })
}
func (h fakeStringHandle) FilterIn(nodes []int32, vs []string) []int32 {
	set := map[string]bool{}
	for _, v := range vs {
		set[v] = true
	}
	return h.filter(nodes, func(got string, ok bool) bool { return ok && set[got] })
}
func (h fakeStringHandle) FilterNe(nodes []int32, v string) []int32 {
	return h.filter(nodes, func(got string, ok bool) bool { return ok && got != v })
}
func (h fakeStringHandle) FilterPresent(nodes []int32) []int32 {
	return h.filter(nodes, func(_ string, ok bool) bool { return ok })
}
func (h fakeStringHandle) FilterAbsent(nodes []int32) []int32 {
	return h.filter(nodes, func(_ string, ok bool) bool { return !ok })
}
func (h fakeStringHandle) Value(n int32) (string, bool) {
	v, ok := h.values[n]
	return v, ok
}
func (h fakeStringHandle) filter(nodes []int32, pred func(string, bool) bool) []int32 {
	var out []int32
	for _, n := range nodes {
		v, ok := h.values[n]
		if pred(v, ok) {
			out = append(out, n)
		}
	}
	return out
}

// buildFixtureCatalog constructs a 7-node fixture: a clause (node 7)
// containing two phrases (5: Pred over words 1-2, 6: Subj over words
// 3-4), each phrase containing two words with a "lex" feature a..d.
func buildFixtureCatalog() *Catalog {
	typeIDs := map[string]int32{"clause": 1, "phrase": 2, "word": 3}
	typeNodes := map[int32][]int32{1: {7}, 2: {5, 6}, 3: {1, 2, 3, 4}}
	typeCounts := map[int32]int32{1: 1, 2: 2, 3: 4}
	levDown := map[int32][]int32{7: {5, 6}, 5: {1, 2}, 6: {3, 4}}
	levUp := map[int32][]int32{1: {5}, 2: {5}, 3: {6}, 4: {6}, 5: {7}, 6: {7}}
	firstSlot := map[int32]int32{1: 1, 2: 2, 3: 3, 4: 4, 5: 1, 6: 3, 7: 1}
	lastSlot := map[int32]int32{1: 1, 2: 2, 3: 3, 4: 4, 5: 2, 6: 4, 7: 4}
	rank := map[int32]int32{7: 1, 5: 2, 1: 3, 2: 4, 6: 5, 3: 6, 4: 7}
	prev := map[int32]int32{6: 5, 2: 1, 3: 2, 4: 3}
	next := map[int32]int32{5: 6, 1: 2, 2: 3, 3: 4}

	lex := fakeStringHandle{name: "lex", values: map[int32]string{1: "a", 2: "b", 3: "c", 4: "d"}}
	function := fakeStringHandle{name: "function", values: map[int32]string{5: "Pred", 6: "Subj"}}
	features := map[string]FeatureHandle{"lex": lex, "function": function}

	return &Catalog{
		TypeID:    func(name string) (int32, bool) { id, ok := typeIDs[name]; return id, ok },
		TypeCount: func(t int32) int32 { return typeCounts[t] },
		Feature:   func(name string) (FeatureHandle, bool) { f, ok := features[name]; return f, ok },
		WalkType:  func(t int32) []int32 { return typeNodes[t] },
		LevUp:     func(n int32) []int32 { return levUp[n] },
		LevDown:   func(n int32) []int32 { return levDown[n] },
		FirstSlot: func(n int32) (int32, bool) { v, ok := firstSlot[n]; return v, ok },
		LastSlot:  func(n int32) (int32, bool) { v, ok := lastSlot[n]; return v, ok },
		Rank:      func(n int32) (int32, bool) { v, ok := rank[n]; return v, ok },
		Prev:      func(n int32) (int32, bool) { v, ok := prev[n]; return v, ok },
		Next:      func(n int32) (int32, bool) { v, ok := next[n]; return v, ok },
	}
}

func mustPlan(t *testing.T, src string, cat *Catalog) *Plan {
	t.Helper()
	tmpl, err := template.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	plan, err := Build(tmpl, cat)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return plan
}

func TestExecute_SinglePredicate(t *testing.T) {
	cat := buildFixtureCatalog()
	plan := mustPlan(t, "word lex=b", cat)
	tuples, err := Execute(context.Background(), plan, cat)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(tuples) != 1 || tuples[0][0] != 2 {
		t.Fatalf("expected [{2}], got %v", tuples)
	}
}

func TestExecute_ContainmentJoin(t *testing.T) {
	cat := buildFixtureCatalog()
	src := "clause\n" +
		"  phrase function=Subj\n"
	plan := mustPlan(t, src, cat)
	tuples, err := Execute(context.Background(), plan, cat)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(tuples) != 1 {
		t.Fatalf("expected 1 tuple, got %d: %v", len(tuples), tuples)
	}
	if tuples[0][0] != 7 || tuples[0][1] != 6 {
		t.Errorf("expected clause=7, phrase=6, got %v", tuples[0])
	}
}

func TestExecute_DeepContainment(t *testing.T) {
	cat := buildFixtureCatalog()
	src := "clause\n" +
		"  word lex=c\n"
	plan := mustPlan(t, src, cat)
	tuples, err := Execute(context.Background(), plan, cat)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(tuples) != 1 || tuples[0][1] != 3 {
		t.Fatalf("expected clause/word(3) via transitive containment, got %v", tuples)
	}
}

func TestExecute_ImmediatePrecedence(t *testing.T) {
	cat := buildFixtureCatalog()
	src := "word lex=a\n" +
		"<: word lex=b\n"
	plan := mustPlan(t, src, cat)
	tuples, err := Execute(context.Background(), plan, cat)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(tuples) != 1 || tuples[0][0] != 1 || tuples[0][1] != 2 {
		t.Fatalf("expected word1 immediately before word2, got %v", tuples)
	}
}

func TestExecute_QuantifierWithout(t *testing.T) {
	cat := buildFixtureCatalog()
	src := "phrase\n" +
		"  /without/\n" +
		"    word lex=d\n"
	plan := mustPlan(t, src, cat)
	tuples, err := Execute(context.Background(), plan, cat)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(tuples) != 1 || tuples[0][0] != 5 {
		t.Fatalf("expected only phrase 5 (no lex=d word), got %v", tuples)
	}
}

func TestExecute_QuantifierWhere(t *testing.T) {
	cat := buildFixtureCatalog()
	src := "phrase\n" +
		"  /where/\n" +
		"    word lex=d\n"
	plan := mustPlan(t, src, cat)
	tuples, err := Execute(context.Background(), plan, cat)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(tuples) != 1 || tuples[0][0] != 6 {
		t.Fatalf("expected only phrase 6 (has lex=d word), got %v", tuples)
	}
}

func TestExecute_Cancellation(t *testing.T) {
	cat := buildFixtureCatalog()
	plan := mustPlan(t, "word", cat)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// With candidateBatch == 1024 and only 4 candidates here, the
	// cancellation never lands mid-run; this test instead exercises
	// that an already-cancelled context doesn't panic and behaves
	// deterministically (checked at quantifier-less, 4-candidate scale
	// the batch boundary simply never triggers).
	if _, err := Execute(ctx, plan, cat); err != nil && err != context.Canceled {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_Idempotent confirms running the same plan twice (spec.md
// §8's idempotence invariant) returns the same tuples.
func TestExecute_Idempotent(t *testing.T) {
	cat := buildFixtureCatalog()
	src := "clause\n" +
		"  phrase function=Pred\n" +
		"  phrase function=Subj\n"
	plan := mustPlan(t, src, cat)

	t1, err := Execute(context.Background(), plan, cat)
	if err != nil {
		t.Fatalf("Execute (first run): %v", err)
	}
	t2, err := Execute(context.Background(), plan, cat)
	if err != nil {
		t.Fatalf("Execute (second run): %v", err)
	}
	if len(t1) != len(t2) {
		t.Fatalf("result sizes differ across runs: %d vs %d", len(t1), len(t2))
	}
	for i := range t1 {
		for j := range t1[i] {
			if t1[i][j] != t2[i][j] {
				t.Errorf("tuple %d differs across runs: %v vs %v", i, t1[i], t2[i])
			}
		}
	}
}

// TestChooseSpinOrder_RespectsDependencies confirms every atom's
// Parent and PrevSibling dependency appears earlier in Order than the
// atom itself, the precondition joinAtoms relies on.
func TestChooseSpinOrder_RespectsDependencies(t *testing.T) {
	cat := buildFixtureCatalog()
	src := "clause\n" +
		"  phrase function=Pred\n" +
		"  phrase function=Subj\n"
	plan := mustPlan(t, src, cat)

	position := make(map[int]int, len(plan.Order))
	for pos, idx := range plan.Order {
		position[idx] = pos
	}
	for idx, a := range plan.Atoms {
		if a.Parent >= 0 && position[a.Parent] >= position[idx] {
			t.Errorf("atom %d bound before its parent %d", idx, a.Parent)
		}
		if a.PrevSibling >= 0 && position[a.PrevSibling] >= position[idx] {
			t.Errorf("atom %d bound before its previous sibling %d", idx, a.PrevSibling)
		}
	}
}

func TestResults_CountAndStatistics(t *testing.T) {
	cat := buildFixtureCatalog()
	plan := mustPlan(t, "word", cat)
	tuples, err := Execute(context.Background(), plan, cat)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := Results(ReturnCount, plan, tuples, nil, nil); got != 4 {
		t.Errorf("expected count 4, got %v", got)
	}
	stats := Results(ReturnStatistics, plan, tuples, nil, nil).(Statistics)
	if stats.TupleCount != 4 || stats.AtomCounts[0] != 4 {
		t.Errorf("unexpected statistics: %+v", stats)
	}
}
