// Package store implements the Context-Fabric binary backing store
// (CFM): the read-only v{N}/ directory of mmap'd arrays described by
// meta.json, plus the compiler-side writer that produces one.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/contextfabric/fabric/internal/mmap"
	"github.com/contextfabric/fabric/internal/warp"
)

// Sentinel errors for the loader's four failure modes
// (spec.md §4.1). Callers (the fabric package) map these to the
// public ErrorKind enum via errors.Is.
var (
	ErrCorruptStore    = errors.New("store: corrupt store")
	ErrVersionMismatch = errors.New("store: version mismatch")
	ErrArrayOutOfRange = errors.New("store: array index out of declared bounds")
	ErrMissingFeature  = errors.New("store: feature catalog references a missing file")
)

// Store is one opened, read-only corpus version directory. Every array
// file is mapped and then decoded into a heap slice at Open, so derived
// slices do not borrow from the mapped regions; Store owns the regions
// and closes them together.
type Store struct {
	mgr  *mmap.Manager
	meta *Meta
	path string

	otype   *Int32Array
	oslots  *warp.CSR
	order   *Int32Array
	rank    *Int32Array
	levUp   *warp.CSR
	levDown *warp.CSR
	first   *Int32Array
	last    *Int32Array
	levels  []warp.LevelRange

	features map[string]*Int32Array // node int features and string-index features
	pools    map[string]*StringPool
	edges    map[string]*warp.CSR
	edgeVals map[string]*Int32Array
}

// Meta exposes the loaded descriptor.
func (s *Store) Meta() *Meta { return s.meta }

// NodeCount returns N.
func (s *Store) NodeCount() int { return int(s.meta.NodeCount) }

// SlotCount returns S.
func (s *Store) SlotCount() int { return int(s.meta.SlotCount) }

// OType returns the type id of node n (1-based), or (0, false) if n is
// out of range.
func (s *Store) OType(n int32) (int32, bool) {
	return s.otype.Get(int(n) - 1)
}

// Slots returns the sorted slot list of node n.
func (s *Store) Slots(n int32) []int32 {
	if int(n) <= s.SlotCount() {
		if n < 1 || int(n) > s.NodeCount() {
			return nil
		}
		return []int32{n}
	}
	return s.oslots.Row(int(n) - s.SlotCount() - 1)
}

// FirstSlot/LastSlot return the boundary warp for node n.
func (s *Store) FirstSlot(n int32) (int32, bool) { return s.first.Get(int(n) - 1) }
func (s *Store) LastSlot(n int32) (int32, bool)  { return s.last.Get(int(n) - 1) }

// Rank returns the canonical rank (1-based position) of node n.
func (s *Store) Rank(n int32) (int32, bool) { return s.rank.Get(int(n) - 1) }

// Order returns the node at canonical position i (0-based).
func (s *Store) Order(i int) (int32, bool) { return s.order.Get(i) }

// Levels returns the precomputed per-type contiguous ranges.
func (s *Store) Levels() []warp.LevelRange { return s.levels }

// LevUp/LevDown return the embedding CSR rows for node n.
func (s *Store) LevUp(n int32) []int32   { return s.levUp.Row(int(n) - 1) }
func (s *Store) LevDown(n int32) []int32 { return s.levDown.Row(int(n) - 1) }

// IntFeature returns the raw dense array for a feature (int or
// string-index encoded); callers interpret the sentinel/pool
// themselves via the feature package.
func (s *Store) IntFeature(name string) (*Int32Array, bool) {
	a, ok := s.features[name]
	return a, ok
}

// StringPoolFor returns the interned pool for a string feature.
func (s *Store) StringPoolFor(name string) (*StringPool, bool) {
	p, ok := s.pools[name]
	return p, ok
}

// Edge returns the CSR and, if present, the parallel values array for
// an edge feature.
func (s *Store) Edge(name string) (*warp.CSR, *Int32Array, bool) {
	csr, ok := s.edges[name]
	if !ok {
		return nil, nil, false
	}
	return csr, s.edgeVals[name], true
}

// Close releases every mapped region.
func (s *Store) Close() error {
	return s.mgr.Close()
}

// Open implements the loader contract of spec.md §4.1:
// open(path, version?) → Fabric. version == "" selects the highest
// numbered v{N} directory present.
func Open(corpusPath string, version string) (*Store, error) {
	versionDir, err := resolveVersionDir(corpusPath, version)
	if err != nil {
		return nil, err
	}

	meta, err := loadMeta(versionDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	mgr := mmap.NewManager()
	s := &Store{
		mgr:      mgr,
		meta:     meta,
		path:     versionDir,
		features: make(map[string]*Int32Array),
		pools:    make(map[string]*StringPool),
		edges:    make(map[string]*warp.CSR),
		edgeVals: make(map[string]*Int32Array),
	}

	warpDir := filepath.Join(versionDir, "warp")

	if s.otype, err = openInt32Array(mgr, "otype", filepath.Join(warpDir, "otype.bin")); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: otype: %v", ErrCorruptStore, err)
	}
	if int(meta.NodeCount) != s.otype.Len() {
		mgr.Close()
		return nil, fmt.Errorf("%w: otype declares %d elements, meta says node_count=%d", ErrCorruptStore, s.otype.Len(), meta.NodeCount)
	}

	if s.oslots, err = openCSR(mgr, "oslots", filepath.Join(warpDir, "oslots.csr.offsets"), filepath.Join(warpDir, "oslots.csr.values")); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: oslots: %v", ErrCorruptStore, err)
	}
	if err := validateCSR(s.oslots, int(meta.SlotCount)); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: oslots: %v", ErrArrayOutOfRange, err)
	}

	if s.order, err = openInt32Array(mgr, "order", filepath.Join(warpDir, "order.bin")); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: order: %v", ErrCorruptStore, err)
	}
	if s.rank, err = openInt32Array(mgr, "rank", filepath.Join(warpDir, "rank.bin")); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: rank: %v", ErrCorruptStore, err)
	}
	if s.first, err = openInt32Array(mgr, "first_slot", filepath.Join(warpDir, "boundary.first.bin")); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: boundary: %v", ErrCorruptStore, err)
	}
	if s.last, err = openInt32Array(mgr, "last_slot", filepath.Join(warpDir, "boundary.last.bin")); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: boundary: %v", ErrCorruptStore, err)
	}
	if s.levUp, err = openCSR(mgr, "levUp", filepath.Join(warpDir, "levUp.csr.offsets"), filepath.Join(warpDir, "levUp.csr.values")); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: levUp: %v", ErrCorruptStore, err)
	}
	if s.levDown, err = openCSR(mgr, "levDown", filepath.Join(warpDir, "levDown.csr.offsets"), filepath.Join(warpDir, "levDown.csr.values")); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: levDown: %v", ErrCorruptStore, err)
	}
	if err := validateCSR(s.levUp, int(meta.NodeCount)); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: levUp: %v", ErrArrayOutOfRange, err)
	}
	if err := validateCSR(s.levDown, int(meta.NodeCount)); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: levDown: %v", ErrArrayOutOfRange, err)
	}

	if s.levels, err = loadLevels(mgr, filepath.Join(warpDir, "levels.bin")); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("%w: levels: %v", ErrCorruptStore, err)
	}

	for _, f := range meta.Features {
		if f.Kind != FeatureNode {
			continue
		}
		full := filepath.Join(versionDir, f.Path)
		if _, statErr := os.Stat(full); statErr != nil {
			mgr.Close()
			return nil, fmt.Errorf("%w: feature %q: %v", ErrMissingFeature, f.Name, statErr)
		}
		arr, err := openInt32Array(mgr, "feature."+f.Name, full)
		if err != nil {
			mgr.Close()
			return nil, fmt.Errorf("%w: feature %q: %v", ErrCorruptStore, f.Name, err)
		}
		s.features[f.Name] = arr
		if f.ValueType == ValueStr {
			pool, err := loadStringPool(full + ".json")
			if err != nil {
				mgr.Close()
				return nil, fmt.Errorf("%w: feature %q pool: %v", ErrMissingFeature, f.Name, err)
			}
			s.pools[f.Name] = pool
		}
	}

	for _, f := range meta.Features {
		if f.Kind != FeatureEdge {
			continue
		}
		offsetsPath := filepath.Join(versionDir, f.Path+".offsets")
		valuesPath := filepath.Join(versionDir, f.Path+".values")
		if _, statErr := os.Stat(offsetsPath); statErr != nil {
			mgr.Close()
			return nil, fmt.Errorf("%w: edge %q: %v", ErrMissingFeature, f.Name, statErr)
		}
		csr, err := openCSR(mgr, "edge."+f.Name, offsetsPath, valuesPath)
		if err != nil {
			mgr.Close()
			return nil, fmt.Errorf("%w: edge %q: %v", ErrCorruptStore, f.Name, err)
		}
		if err := validateCSR(csr, int(meta.NodeCount)); err != nil {
			mgr.Close()
			return nil, fmt.Errorf("%w: edge %q: %v", ErrArrayOutOfRange, f.Name, err)
		}
		s.edges[f.Name] = csr
		if f.HasValues {
			valArr, err := openInt32Array(mgr, "edgeval."+f.Name, valuesPath+".val")
			if err != nil {
				mgr.Close()
				return nil, fmt.Errorf("%w: edge %q values: %v", ErrCorruptStore, f.Name, err)
			}
			s.edgeVals[f.Name] = valArr
		}
	}

	return s, nil
}

// validateCSR checks that every value in a CSR falls within
// [1, maxNode], implementing the ArrayOutOfRange failure mode.
func validateCSR(c *warp.CSR, maxNode int) error {
	for _, v := range c.Values {
		if v < 1 || int(v) > maxNode {
			return fmt.Errorf("value %d out of range [1,%d]", v, maxNode)
		}
	}
	for i := 1; i < len(c.Offsets); i++ {
		if c.Offsets[i] < c.Offsets[i-1] {
			return fmt.Errorf("non-monotonic offsets at row %d", i)
		}
	}
	return nil
}

func loadLevels(mgr *mmap.Manager, path string) ([]warp.LevelRange, error) {
	arr, err := openInt32Array(mgr, "levels", path)
	if err != nil {
		return nil, err
	}
	if arr.Len()%4 != 0 {
		return nil, fmt.Errorf("levels.bin length %d not a multiple of 4", arr.Len())
	}
	n := arr.Len() / 4
	out := make([]warp.LevelRange, n)
	vals := arr.Slice()
	for i := 0; i < n; i++ {
		out[i] = warp.LevelRange{
			TypeID:  vals[i*4],
			MinNode: vals[i*4+1],
			MaxNode: vals[i*4+2],
			Count:   vals[i*4+3],
		}
	}
	return out, nil
}

// resolveVersionDir finds v{N}/ under corpusPath. An empty version
// string selects the highest N present.
func resolveVersionDir(corpusPath, version string) (string, error) {
	if version != "" {
		dir := filepath.Join(corpusPath, "v"+version)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return "", fmt.Errorf("%w: version directory %q not found", ErrVersionMismatch, dir)
		}
		return dir, nil
	}

	entries, err := os.ReadDir(corpusPath)
	if err != nil {
		return "", fmt.Errorf("%w: read corpus dir: %v", ErrCorruptStore, err)
	}

	var versions []int
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "v") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), "v")); err == nil {
			versions = append(versions, n)
		}
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("%w: no v{N} directory found under %q", ErrCorruptStore, corpusPath)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))
	return filepath.Join(corpusPath, "v"+strconv.Itoa(versions[0])), nil
}
