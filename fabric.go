// Package fabric is the public façade of Context-Fabric: a read-only
// storage and SPIN query engine for annotated text corpora modeled as
// typed hierarchical graphs (spec.md §1-§3). Open loads a compiled
// corpus version directory; Load returns an Api grouping the N/F/E/L/
// T/S operators of spec.md §6 over it.
package fabric

import (
	"fmt"
	"sync"

	"github.com/contextfabric/fabric/internal/cache"
	"github.com/contextfabric/fabric/internal/feature"
	"github.com/contextfabric/fabric/internal/nav"
	"github.com/contextfabric/fabric/internal/obs"
	"github.com/contextfabric/fabric/internal/spin"
	"github.com/contextfabric/fabric/internal/store"
)

// Fabric is one opened, read-only corpus version. All post-load state
// is immutable except the lazily-published feature handle caches
// (spec.md §5's "shared-everything read-only parallelism"); Fabric is
// safe for concurrent use by multiple goroutines once Open returns.
type Fabric struct {
	store      *store.Store
	cfg        *Config
	metrics    *metricsAdapter
	cache      *cache.Cache
	corpusPath string
	meta       *store.Meta

	typeIDByName map[string]int32
	typeCounts   map[int32]int32

	navN *nav.N
	navL *nav.L
	navT *nav.T

	featureMu    sync.Mutex
	intFeatures  map[string]*feature.IntFeature
	strFeatures  map[string]*feature.StringFeature
	edgeFeatures map[string]*feature.EdgeFeature

	mu     sync.RWMutex
	closed bool
}

// processMetrics is registered once per process and shared by every
// Fabric opened with metrics enabled, since obs.NewMetrics panics on a
// second registration.
var (
	metricsOnce    sync.Once
	processMetrics *obs.Metrics
)

// Open implements the loader contract of spec.md §4.1/§6:
// open(path, version?) → Fabric, generalizing the teacher's
// New(opts ...Option) (*Database, error) constructor idiom: seed
// defaults from the environment, apply Options, open the storage
// engine, then initialize observability and the result cache.
func Open(path string, opts ...Option) (*Fabric, error) {
	cfg := defaultConfig()
	applyEnv(cfg)
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("fabric: failed to apply option: %w", err)
		}
	}

	st, err := store.Open(path, "")
	if err != nil {
		return nil, fromStoreErr(path, err)
	}

	var metrics *obs.Metrics
	if cfg.MetricsEnabled {
		metricsOnce.Do(func() { processMetrics = obs.NewMetrics() })
		metrics = processMetrics
		metrics.NodesLoaded.Set(float64(st.NodeCount()))
	}

	f := &Fabric{
		store:        st,
		cfg:          cfg,
		metrics:      &metricsAdapter{m: metrics},
		cache:        cache.New(cfg.ResultCacheCapacity, cfg.ResultCacheTTL),
		corpusPath:   path,
		meta:         st.Meta(),
		intFeatures:  make(map[string]*feature.IntFeature),
		strFeatures:  make(map[string]*feature.StringFeature),
		edgeFeatures: make(map[string]*feature.EdgeFeature),
	}

	f.typeIDByName = make(map[string]int32, len(f.meta.Types))
	for _, t := range f.meta.Types {
		f.typeIDByName[t.Name] = t.ID
	}
	f.typeCounts = make(map[int32]int32, len(f.meta.Types))
	for _, lvl := range st.Levels() {
		f.typeCounts[lvl.TypeID] += lvl.Count
	}

	f.navN = nav.NewN(st)
	f.navL = nav.NewL(st)
	f.navT = nav.NewT(st, &textLookup{f}, &sectionLookup{f}, buildFormats(f.meta), f.meta.DefaultFormat)

	obs.L().Infow("fabric: corpus opened", "path", path, "nodes", st.NodeCount(), "slots", st.SlotCount())

	if cfg.EmbeddingCache {
		// The store has already decoded every array file, levUp/levDown
		// included, into heap memory at open, so there is no separate
		// copy step here; the request is only logged (see DESIGN.md).
		obs.L().Infow("fabric: embedding preload requested", "path", path)
	}

	return f, nil
}

// Close releases every mapped region. Close is idempotent.
func (f *Fabric) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.store.Close()
}

// Load validates feature_spec and returns an Api over this Fabric
// (spec.md §6). spec may be empty, AllFeatures, or an explicit list of
// feature names; any name not in the catalog fails with
// UnknownFeature before the Api is returned. Whatever spec lists, Load
// builds Api.F/Api.E over the entire catalog and constructs the handle
// of every catalog feature before it returns; no handle is deferred to
// first access (see DESIGN.md's Open Question resolution).
func (f *Fabric) Load(spec ...string) (*Api, error) {
	f.mu.RLock()
	closed := f.closed
	f.mu.RUnlock()
	if closed {
		return nil, ErrFabricClosed
	}

	if !(len(spec) == 1 && spec[0] == AllFeatures) {
		for _, name := range spec {
			if _, ok := featureInfo(f.meta, name); !ok {
				return nil, &Error{Kind: UnknownFeature, Message: fmt.Sprintf("unknown feature %q", name), Name: name}
			}
		}
	}

	fset := make(FeatureSet)
	eset := make(EdgeSet)
	for _, info := range f.meta.Features {
		switch info.Kind {
		case store.FeatureNode:
			acc, err := f.featureAccessor(info.Name)
			if err != nil {
				return nil, err
			}
			fset[info.Name] = acc
		case store.FeatureEdge:
			acc, err := f.edgeAccessor(info.Name)
			if err != nil {
				return nil, err
			}
			eset[info.Name] = acc
		}
	}

	return &Api{
		N:   f.navN,
		L:   f.navL,
		T:   f.navT,
		F:   fset,
		E:   eset,
		S:   &Search{fab: f},
		fab: f,
	}, nil
}

// featureAccessor returns the lazily-published accessor for a node
// feature, creating it on first request behind featureMu — the same
// publish-once idiom the teacher uses for collection materialization
// (libravdb/database.go's GetCollection caches into db.collections on
// first load).
func (f *Fabric) featureAccessor(name string) (FeatureAccessor, error) {
	info, ok := featureInfo(f.meta, name)
	if !ok {
		return nil, unknownName("feature", name)
	}
	if info.Kind != store.FeatureNode {
		return nil, unknownName("feature", name)
	}

	f.featureMu.Lock()
	defer f.featureMu.Unlock()

	switch info.ValueType {
	case store.ValueInt:
		if existing, ok := f.intFeatures[name]; ok {
			return intFeatureAccessor{existing}, nil
		}
		arr, ok := f.store.IntFeature(name)
		if !ok {
			return nil, newError(MissingFeature, fmt.Sprintf("feature %q has no backing array", name), nil)
		}
		ft := feature.NewIntFeature(name, arr)
		f.intFeatures[name] = ft
		return intFeatureAccessor{ft}, nil
	case store.ValueStr:
		if existing, ok := f.strFeatures[name]; ok {
			return stringFeatureAccessor{existing}, nil
		}
		arr, ok := f.store.IntFeature(name)
		if !ok {
			return nil, newError(MissingFeature, fmt.Sprintf("feature %q has no backing array", name), nil)
		}
		pool, ok := f.store.StringPoolFor(name)
		if !ok {
			return nil, newError(MissingFeature, fmt.Sprintf("feature %q has no string pool", name), nil)
		}
		ft := feature.NewStringFeature(name, arr, pool)
		f.strFeatures[name] = ft
		return stringFeatureAccessor{ft}, nil
	default:
		return nil, newError(CorruptStore, fmt.Sprintf("feature %q declares unknown value type %q", name, info.ValueType), nil)
	}
}

func (f *Fabric) edgeAccessor(name string) (*EdgeAccessor, error) {
	f.featureMu.Lock()
	defer f.featureMu.Unlock()

	if existing, ok := f.edgeFeatures[name]; ok {
		return &EdgeAccessor{existing}, nil
	}
	csr, vals, ok := f.store.Edge(name)
	if !ok {
		return nil, unknownName("feature", name)
	}
	ft := feature.NewEdgeFeature(name, csr, vals)
	f.edgeFeatures[name] = ft
	return &EdgeAccessor{ft}, nil
}

// catalog adapts this Fabric into the planner/executor's narrow
// Catalog surface (internal/spin/catalog.go), so the SPIN engine never
// needs to know about mmap'd stores or feature backends directly.
func (f *Fabric) catalog() (*spin.Catalog, error) {
	return &spin.Catalog{
		TypeID:    func(name string) (int32, bool) { id, ok := f.typeIDByName[name]; return id, ok },
		TypeCount: func(t int32) int32 { return f.typeCounts[t] },
		Feature: func(name string) (spin.FeatureHandle, bool) {
			acc, err := f.featureAccessor(name)
			if err != nil {
				return nil, false
			}
			return acc.handle(), true
		},
		WalkType:  func(t int32) []int32 { return f.navN.Walk([]int32{t}) },
		LevUp:     f.store.LevUp,
		LevDown:   f.store.LevDown,
		FirstSlot: f.store.FirstSlot,
		LastSlot:  f.store.LastSlot,
		Rank:      f.store.Rank,
		Prev:      f.navL.P,
		Next:      f.navL.N,
	}, nil
}

func (f *Fabric) firstSlotFn() func(int32) (int32, bool) { return f.store.FirstSlot }
func (f *Fabric) lastSlotFn() func(int32) (int32, bool)  { return f.store.LastSlot }

// buildFormats parses every declared text format once at Open.
func buildFormats(meta *store.Meta) map[string]*nav.Format {
	out := make(map[string]*nav.Format, len(meta.TextFormats))
	for _, tf := range meta.TextFormats {
		out[tf.Name] = nav.ParseFormat(tf.Template)
	}
	return out
}

// textLookup adapts Fabric's lazy feature accessors to nav.T's
// featureLookup, resolving a per-slot field reference to its string
// rendering (int features render via decimal formatting).
type textLookup struct{ fab *Fabric }

func (l *textLookup) StringValue(featureName string, slot int32) (string, bool) {
	acc, err := l.fab.featureAccessor(featureName)
	if err != nil {
		return "", false
	}
	v, ok := acc.V(slot)
	if !ok {
		return "", false
	}
	return toStringValue(v), true
}

// sectionLookup adapts Fabric to nav.T's sectionResolver: each
// declared section type (meta.Sections, e.g. book/chapter/verse) is
// resolved by walking up from slot to the nearest ancestor of that
// type and reading a same-named feature's value off it — the
// convention Text-Fabric-shaped corpora use (a "book" node carries a
// "book" feature with the book's name, a "chapter" node carries a
// "chapter" feature with its number, and so on). This is a supplied
// resolution for spec.md's silence on how section labels are derived;
// see DESIGN.md.
type sectionLookup struct{ fab *Fabric }

func (l *sectionLookup) SectionRef(slot int32) []string {
	out := make([]string, 0, len(l.fab.meta.Sections))
	for _, sectionType := range l.fab.meta.Sections {
		typeID, ok := l.fab.typeIDByName[sectionType]
		if !ok {
			out = append(out, "")
			continue
		}
		node := l.ancestorOfType(slot, typeID)
		if node == 0 {
			out = append(out, "")
			continue
		}
		acc, err := l.fab.featureAccessor(sectionType)
		if err != nil {
			out = append(out, "")
			continue
		}
		v, ok := acc.V(node)
		if !ok {
			out = append(out, "")
			continue
		}
		out = append(out, toStringValue(v))
	}
	return out
}

// ancestorOfType finds the node embedding slot whose type is typeID,
// by breadth-first closure over the one-level LevUp relation (the
// same transitive pattern internal/spin/exec.go's transitiveUp uses
// for "]]" containment, here stopping at the first match).
func (l *sectionLookup) ancestorOfType(n int32, typeID int32) int32 {
	if t, ok := l.fab.storeOType(n); ok && t == typeID {
		return n
	}
	visited := map[int32]bool{n: true}
	queue := []int32{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, up := range l.fab.store.LevUp(cur) {
			if visited[up] {
				continue
			}
			visited[up] = true
			if t, ok := l.fab.storeOType(up); ok && t == typeID {
				return up
			}
			queue = append(queue, up)
		}
	}
	return 0
}

func (f *Fabric) storeOType(n int32) (int32, bool) { return f.store.OType(n) }

// featureInfo looks up one catalog entry by name.
func featureInfo(m *store.Meta, name string) (store.FeatureInfo, bool) {
	for _, f := range m.Features {
		if f.Name == name {
			return f, true
		}
	}
	return store.FeatureInfo{}, false
}
