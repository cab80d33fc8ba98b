package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// StringPool is the interned string table backing one string feature
// (or the corpus-wide pool, per meta.json's string-pool descriptors).
// Values are interned at compile time; the reverse value→index lookup
// used by bulk filters is hash-bucketed with xxhash the same way
// compactindexsized buckets its entries, since the pool can hold
// millions of distinct lexical forms in a large corpus.
type StringPool struct {
	values  []string       // index -> value, sorted unique per spec.md §4.2
	reverse map[uint64][]int32 // hash(value) -> candidate indices (collision-chained)
}

// poolFile is the on-disk JSON shape of a *.str.json pool descriptor.
type poolFile struct {
	Values []string `json:"values"`
}

func loadStringPool(path string) (*StringPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read string pool: %w", err)
	}
	var pf poolFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("store: parse string pool: %w", err)
	}
	if !sort.StringsAreSorted(pf.Values) {
		return nil, fmt.Errorf("store: string pool %q is not sorted", path)
	}
	return newStringPool(pf.Values), nil
}

func newStringPool(values []string) *StringPool {
	p := &StringPool{
		values:  values,
		reverse: make(map[uint64][]int32, len(values)),
	}
	for i, v := range values {
		h := hashString(v)
		p.reverse[h] = append(p.reverse[h], int32(i))
	}
	return p
}

func hashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Value returns the interned string at index i, or ("", false) if i is
// out of range.
func (p *StringPool) Value(i int32) (string, bool) {
	if p == nil || i < 0 || int(i) >= len(p.values) {
		return "", false
	}
	return p.values[i], true
}

// Index resolves a string value to its pool index. An unknown value
// returns (0, false): per spec.md §4.2, "unknown values in a filter
// resolve to never-matches, not an error" — callers treat a false
// return as an empty match set, never as a load failure.
func (p *StringPool) Index(value string) (int32, bool) {
	if p == nil {
		return 0, false
	}
	for _, idx := range p.reverse[hashString(value)] {
		if p.values[idx] == value {
			return idx, true
		}
	}
	return 0, false
}

// Len returns the number of interned values.
func (p *StringPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}
