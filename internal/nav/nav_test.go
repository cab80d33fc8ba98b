package nav

import (
	"reflect"
	"testing"

	"github.com/contextfabric/fabric/internal/warp"
)

// fixtureStore wraps a warp.Output + otype into the narrow interfaces
// nav needs, mirroring the 9-node BHSA-shaped fixture used throughout
// internal/warp and internal/store tests.
type fixtureStore struct {
	otype []int32
	out   *warp.Output
}

func newFixtureStore() *fixtureStore {
	otype := []int32{0, 0, 0, 0, 0, 0, 1, 1, 2}
	oslotsB := warp.NewBuilder()
	oslotsB.AddRow([]int32{1, 2, 3})
	oslotsB.AddRow([]int32{4, 5, 6})
	oslotsB.AddRow([]int32{1, 2, 3, 4, 5, 6})

	in := &warp.Input{
		OType:      otype,
		OSlots:     oslotsB.Build(),
		SlotCount:  6,
		NodeCount:  9,
		LevelOrder: map[int32]int{2: 0, 1: 1, 0: 2},
	}
	return &fixtureStore{otype: otype, out: warp.Compute(in)}
}

func (s *fixtureStore) NodeCount() int              { return 9 }
func (s *fixtureStore) Levels() []warp.LevelRange   { return s.out.Levels }
func (s *fixtureStore) Rank(n int32) (int32, bool) {
	if n < 1 || int(n) > 9 {
		return 0, false
	}
	return s.out.Rank[n-1], true
}
func (s *fixtureStore) Order(i int) (int32, bool) {
	if i < 0 || i >= len(s.out.Order) {
		return 0, false
	}
	return s.out.Order[i], true
}
func (s *fixtureStore) OType(n int32) (int32, bool) {
	if n < 1 || int(n) > 9 {
		return 0, false
	}
	return s.otype[n-1], true
}
func (s *fixtureStore) LevUp(n int32) []int32   { return s.out.LevUp.Row(int(n) - 1) }
func (s *fixtureStore) LevDown(n int32) []int32 { return s.out.LevDown.Row(int(n) - 1) }
func (s *fixtureStore) Slots(n int32) []int32 {
	if int(n) <= 6 {
		return []int32{n}
	}
	switch n {
	case 7:
		return []int32{1, 2, 3}
	case 8:
		return []int32{4, 5, 6}
	case 9:
		return []int32{1, 2, 3, 4, 5, 6}
	}
	return nil
}
func (s *fixtureStore) FirstSlot(n int32) (int32, bool) {
	if n < 1 || int(n) > 9 {
		return 0, false
	}
	return s.out.FirstSlot[n-1], true
}

func TestWalk_NoFilter(t *testing.T) {
	n := NewN(newFixtureStore())
	order := n.Walk(nil)
	if len(order) != 9 {
		t.Fatalf("expected 9 nodes, got %d", len(order))
	}
	if order[0] != 9 {
		t.Errorf("expected node 9 (clause) first, got %d", order[0])
	}
}

func TestWalk_TypeFilter(t *testing.T) {
	n := NewN(newFixtureStore())
	words := n.Walk([]int32{0})
	if len(words) != 6 {
		t.Fatalf("expected 6 words, got %d", len(words))
	}
	want := []int32{1, 2, 3, 4, 5, 6}
	if !reflect.DeepEqual(words, want) {
		t.Errorf("expected %v, got %v", want, words)
	}
}

func TestL_UD(t *testing.T) {
	l := NewL(newFixtureStore())
	up := l.U(1, nil)
	if len(up) != 2 {
		t.Fatalf("expected 2 embedders of word 1, got %d: %v", len(up), up)
	}

	phraseType := int32(1)
	upPhrase := l.U(1, &phraseType)
	if !reflect.DeepEqual(upPhrase, []int32{7}) {
		t.Errorf("expected only phrase 7, got %v", upPhrase)
	}

	down := l.D(9, nil)
	if len(down) != 8 {
		t.Errorf("expected 8 descendants of clause 9, got %d", len(down))
	}
}

func TestL_PN(t *testing.T) {
	l := NewL(newFixtureStore())
	next, ok := l.N(1)
	if !ok || next != 2 {
		t.Errorf("N(1) = %d, %v; want 2, true", next, ok)
	}
	prev, ok := l.P(2)
	if !ok || prev != 1 {
		t.Errorf("P(2) = %d, %v; want 1, true", prev, ok)
	}
	if _, ok := l.P(1); ok {
		t.Error("P(1) should have no predecessor of the same type")
	}
	if _, ok := l.N(6); ok {
		t.Error("N(6) should have no successor of the same type")
	}
}

// fakeFeatureLookup backs T.Text tests with a tiny in-memory per-slot
// string feature table.
type fakeFeatureLookup struct {
	values map[string]map[int32]string
}

func (f *fakeFeatureLookup) StringValue(name string, slot int32) (string, bool) {
	m, ok := f.values[name]
	if !ok {
		return "", false
	}
	v, ok := m[slot]
	return v, ok
}

type fakeSectionResolver struct{}

func (fakeSectionResolver) SectionRef(slot int32) []string {
	return []string{"Genesis", "1", "1"}
}

func TestT_Text(t *testing.T) {
	lookup := &fakeFeatureLookup{values: map[string]map[int32]string{
		"g_word_utf8": {1: "In", 2: " the", 3: " beginning"},
		"trailer_utf8": {1: "", 2: "", 3: " "},
	}}
	store := newFixtureStore()
	formats := map[string]*Format{
		"text-orig-full": ParseFormat("{g_word_utf8}{trailer_utf8}"),
	}
	tOp := NewT(store, lookup, fakeSectionResolver{}, formats, "text-orig-full")

	got, err := tOp.Text(7, "") // phrase 7 spans slots 1-3
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	want := "In the beginning "
	if got != want {
		t.Errorf("Text(7) = %q, want %q", got, want)
	}
}

func TestT_UnknownFormat(t *testing.T) {
	tOp := NewT(newFixtureStore(), &fakeFeatureLookup{}, fakeSectionResolver{}, map[string]*Format{}, "")
	if _, err := tOp.Text(1, "nope"); err == nil {
		t.Error("expected UnknownFormat-style error")
	}
}

func TestT_SectionRef(t *testing.T) {
	tOp := NewT(newFixtureStore(), &fakeFeatureLookup{}, fakeSectionResolver{}, map[string]*Format{}, "")
	got := tOp.SectionRef(1)
	want := []string{"Genesis", "1", "1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SectionRef(1) = %v, want %v", got, want)
	}
}

func TestParseFormat_Alternatives(t *testing.T) {
	f := ParseFormat("{lex/voc_lex}-suffix")
	lookup := &fakeFeatureLookup{values: map[string]map[int32]string{
		"voc_lex": {1: "fallback"},
	}}
	got := f.render(lookup, 1)
	if got != "fallback-suffix" {
		t.Errorf("expected fallback to voc_lex, got %q", got)
	}
}
