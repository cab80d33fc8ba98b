// Package warp computes and holds the precomputed structural indices
// derived from otype and oslots: canonical order, per-type level ranges,
// the two embedding relations (levUp/levDown), and slot boundaries.
package warp

// CSR is the single arena-encoded compressed-sparse-row representation
// used for every relation in the store: oslots, levUp, levDown, and any
// edge feature. Offsets has len(rows)+1 entries; Values is the flat,
// contiguous pool that every row's slice indexes into. This is the
// "indices into a contiguous pool" shape mandated for levUp/levDown —
// it is never materialized as a pointer graph.
type CSR struct {
	Offsets []int32
	Values  []int32
}

// NewCSR builds a CSR from already-computed offsets/values slices.
func NewCSR(offsets, values []int32) *CSR {
	return &CSR{Offsets: offsets, Values: values}
}

// Row returns the values belonging to logical row i (0-based). Returns
// nil for an out-of-range row rather than panicking, matching the
// bounds-safe scalar access contract used throughout the store.
func (c *CSR) Row(i int) []int32 {
	if c == nil || i < 0 || i+1 >= len(c.Offsets) {
		return nil
	}
	start, end := c.Offsets[i], c.Offsets[i+1]
	return c.Values[start:end]
}

// RowStart returns the flat-values offset at which row i begins,
// letting callers with a parallel values array (e.g. edge feature
// values) locate the slice for row i without re-deriving it from Row.
func (c *CSR) RowStart(i int) int32 {
	if c == nil || i < 0 || i >= len(c.Offsets) {
		return 0
	}
	return c.Offsets[i]
}

// Rows returns the number of logical rows encoded.
func (c *CSR) Rows() int {
	if c == nil || len(c.Offsets) == 0 {
		return 0
	}
	return len(c.Offsets) - 1
}

// Builder accumulates rows of variable length and emits a CSR once done.
// Used both by the compiler's precomputation pass and by tests building
// small corpora in memory.
type Builder struct {
	offsets []int32
	values  []int32
}

// NewBuilder creates an empty CSR builder with row 0 implicitly starting
// at offset 0.
func NewBuilder() *Builder {
	return &Builder{offsets: []int32{0}}
}

// AddRow appends one row's values and closes it off with a new offset.
func (b *Builder) AddRow(values []int32) {
	b.values = append(b.values, values...)
	b.offsets = append(b.offsets, int32(len(b.values)))
}

// Build finalizes the CSR.
func (b *Builder) Build() *CSR {
	return &CSR{Offsets: b.offsets, Values: b.values}
}
