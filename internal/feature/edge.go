package feature

import "sync"

// csr is the minimal view EdgeFeature needs from internal/warp.CSR.
type csr interface {
	Row(i int) []int32
	Rows() int
	RowStart(i int) int32
}

// EdgeFeature wraps a source→destination CSR (edges_from) and
// lazily materializes its inverse (edges_to) on first use, published
// once behind sync.Once — the same lazy-single-initializer idiom the
// teacher uses for collection/feature materialization
// (libravdb/database.go's GetCollection caches on first load).
type EdgeFeature struct {
	name   string
	from   csr
	values intArray // parallel values array, nil if the edge carries no value

	toOnce sync.Once
	to     [][]int32 // built lazily: to[dest-1] = sources pointing at dest
}

// NewEdgeFeature wraps an edge CSR (and optional values array) as a
// named edge feature.
func NewEdgeFeature(name string, from csr, values intArray) *EdgeFeature {
	return &EdgeFeature{name: name, from: from, values: values}
}

func (f *EdgeFeature) Name() string { return f.name }

func (f *EdgeFeature) String() string {
	return "EdgeFeature(" + f.name + ")"
}

// EstimateSelectivity is not meaningful for edge features in the same
// sense as node features (there is no single "value space" to compare
// against without a bound value); it returns 1.0, deferring selectivity
// to the node-feature and structural estimators the planner combines
// it with.
func (f *EdgeFeature) EstimateSelectivity(_ string) float64 { return 1.0 }

// EdgesFrom returns the destinations of edges originating at n.
func (f *EdgeFeature) EdgesFrom(n int32) []int32 {
	return f.from.Row(int(n) - 1)
}

// EdgesTo returns the sources of edges terminating at n, building the
// inverse index on first call.
func (f *EdgeFeature) EdgesTo(n int32) []int32 {
	f.toOnce.Do(f.buildInverse)
	idx := int(n) - 1
	if idx < 0 || idx >= len(f.to) {
		return nil
	}
	return f.to[idx]
}

func (f *EdgeFeature) buildInverse() {
	rows := f.from.Rows()
	f.to = make([][]int32, rows)
	for src := 0; src < rows; src++ {
		for _, dst := range f.from.Row(src) {
			di := int(dst) - 1
			if di < 0 || di >= rows {
				continue
			}
			f.to[di] = append(f.to[di], int32(src+1))
		}
	}
}

// Get returns the edge value between source and dest if the feature
// carries values and the edge exists, else (0, false).
func (f *EdgeFeature) Get(source, dest int32) (int32, bool) {
	if f.values == nil {
		return 0, false
	}
	destinations := f.from.Row(int(source) - 1)
	rowStart := int(f.from.RowStart(int(source) - 1))
	for i, d := range destinations {
		if d == dest {
			return f.values.Get(rowStart + i)
		}
	}
	return 0, false
}
