package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/contextfabric/fabric/internal/warp"
)

// buildFixtureCompiled mirrors the 9-node fixture in internal/warp's
// tests: 6 word slots, 2 phrases, 1 clause, plus one int node feature
// and one string node feature so both feature kinds round-trip.
func buildFixtureCompiled() *Compiled {
	otype := []int32{0, 0, 0, 0, 0, 0, 1, 1, 2}
	oslotsB := warp.NewBuilder()
	oslotsB.AddRow([]int32{1, 2, 3})
	oslotsB.AddRow([]int32{4, 5, 6})
	oslotsB.AddRow([]int32{1, 2, 3, 4, 5, 6})
	oslots := oslotsB.Build()

	in := &warp.Input{
		OType:      otype,
		OSlots:     oslots,
		SlotCount:  6,
		NodeCount:  9,
		LevelOrder: map[int32]int{2: 0, 1: 1, 0: 2},
	}
	out := warp.Compute(in)

	meta := &Meta{
		FormatVersion: FormatVersion,
		NodeCount:     9,
		SlotCount:     6,
		Types: []TypeInfo{
			{ID: 0, Name: "word", LevelOrder: 2, SlotType: true},
			{ID: 1, Name: "phrase", LevelOrder: 1},
			{ID: 2, Name: "clause", LevelOrder: 0},
		},
		Features: []FeatureInfo{
			{Name: "number", Kind: FeatureNode, ValueType: ValueInt, Path: "features/number.bin"},
			{Name: "lex", Kind: FeatureNode, ValueType: ValueStr, Path: "features/lex.bin"},
		},
		TextFormats:   []TextFormat{{Name: "text-orig-full", Template: "{lex}"}},
		DefaultFormat: "text-orig-full",
	}

	return &Compiled{
		Meta:   meta,
		OType:  otype,
		OSlots: oslots,
		Warps:  out,
		NodeFeatures: map[string][]int32{
			"number": {1, 2, 3, 4, 5, 6, 0, 0, 0},
			"lex":    {0, 1, 2, 0, 1, 2, -1, -1, -1},
		},
		StringPools: map[string][]string{
			"lex": {"bar", "baz", "foo"},
		},
	}
}

func TestWriteThenOpen_RoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "store_test")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	versionDir := filepath.Join(tmpDir, "v1")
	compiled := buildFixtureCompiled()
	if err := Write(versionDir, compiled); err != nil {
		t.Fatalf("Write: %v", err)
	}

	s, err := Open(tmpDir, "1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.NodeCount() != 9 {
		t.Errorf("expected node count 9, got %d", s.NodeCount())
	}
	if s.SlotCount() != 6 {
		t.Errorf("expected slot count 6, got %d", s.SlotCount())
	}

	for n := int32(1); n <= 6; n++ {
		fs, ok := s.FirstSlot(n)
		if !ok || fs != n {
			t.Errorf("node %d: expected first_slot=%d, got %d (ok=%v)", n, n, fs, ok)
		}
	}

	up := s.LevUp(1)
	if len(up) != 2 || up[0] != 9 || up[1] != 7 {
		t.Errorf("expected levUp(1)=[9,7], got %v", up)
	}

	arr, ok := s.IntFeature("number")
	if !ok {
		t.Fatal("expected number feature to be present")
	}
	if v, _ := arr.Get(0); v != 1 {
		t.Errorf("expected number(word 1)=1, got %d", v)
	}

	pool, ok := s.StringPoolFor("lex")
	if !ok {
		t.Fatal("expected lex string pool to be present")
	}
	lexArr, _ := s.IntFeature("lex")
	idx, _ := lexArr.Get(0)
	val, ok := pool.Value(idx)
	if !ok || val != "bar" {
		t.Errorf("expected lex(word 1)=bar, got %q (ok=%v)", val, ok)
	}

	if gotIdx, ok := pool.Index("bar"); !ok || gotIdx != idx {
		t.Errorf("expected pool.Index(bar)=%d, got %d (ok=%v)", idx, gotIdx, ok)
	}
	if _, ok := pool.Index("nonexistent"); ok {
		t.Error("expected unknown pool value to resolve to not-found, not an error")
	}
}

func TestOpen_LatestVersionSelected(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "store_test_versions")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	compiled := buildFixtureCompiled()
	if err := Write(filepath.Join(tmpDir, "v1"), compiled); err != nil {
		t.Fatalf("write v1: %v", err)
	}
	if err := Write(filepath.Join(tmpDir, "v2"), compiled); err != nil {
		t.Fatalf("write v2: %v", err)
	}

	s, err := Open(tmpDir, "")
	if err != nil {
		t.Fatalf("Open with no version: %v", err)
	}
	defer s.Close()

	if s.path != filepath.Join(tmpDir, "v2") {
		t.Errorf("expected latest version v2 selected, got %s", s.path)
	}
}

func TestOpen_MissingFeatureFails(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "store_test_missing")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	compiled := buildFixtureCompiled()
	delete(compiled.NodeFeatures, "lex")
	delete(compiled.StringPools, "lex")
	versionDir := filepath.Join(tmpDir, "v1")
	if err := Write(versionDir, compiled); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Open(tmpDir, "1"); err == nil {
		t.Error("expected MissingFeature-style error when catalog references an unwritten feature")
	}
}
