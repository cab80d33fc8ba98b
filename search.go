package fabric

import (
	"context"

	"github.com/contextfabric/fabric/internal/cache"
	"github.com/contextfabric/fabric/internal/obs"
	"github.com/contextfabric/fabric/internal/spin"
	"github.com/contextfabric/fabric/internal/spin/template"
)

// Search is the S operator of spec.md §6:
// Api.S.search(template, return_type, aggregate_features?, limit?,
// cursor?) → Result. It shares one parsed+planned template across
// every return_type variant (spec.md §4.5's "share the same plan").
type Search struct {
	fab *Fabric
}

// Search parses, plans, and executes opts.Template, shaping the
// result per opts.Return.
func (s *Search) Search(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	ret, err := parseReturnType(string(opts.Return))
	if err != nil {
		return nil, newError(TemplateParseError, err.Error(), err)
	}

	ctx, cancel := s.fab.withBudget(ctx)
	defer cancel()

	key := cache.Key(s.fab.corpusPath, opts.Template)
	if ret == ReturnResults || ret == ReturnPassages {
		if h, ok := s.fab.cache.Get(key); ok {
			s.fab.metrics.incCacheHit()
			return s.shapeFromHandle(h, ret, opts)
		}
		s.fab.metrics.incCacheMiss()
	}

	tmpl, err := template.Parse(opts.Template)
	if err != nil {
		return nil, fromParseError(err)
	}

	cat, err := s.fab.catalog()
	if err != nil {
		return nil, err
	}
	if err := validateNames(tmpl, cat); err != nil {
		return nil, err
	}

	plan, err := spin.Build(tmpl, cat)
	if err != nil {
		return nil, newError(CorruptStore, "failed to plan template", err)
	}

	tuples, err := spin.Execute(ctx, plan, cat)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(Cancelled, "query cancelled", err)
		}
		return nil, newError(IoError, "query execution failed", err)
	}
	tuples = spin.SortedTuples(tuples)

	if ret == ReturnResults || ret == ReturnPassages {
		h := s.fab.cache.Put(key, int32TuplesOf(tuples))
		return s.shapeFromHandle(h, ret, opts)
	}

	return s.shape(plan, tuples, ret, opts)
}

// SearchContinue pages through a previously cached result set
// (spec.md §4.6's cursor contract).
func (s *Search) SearchContinue(cursor string, offset, limit int) (*SearchResult, error) {
	h, ok := s.fab.cache.Get(cursor)
	if !ok {
		return nil, newError(UnknownName, "cursor expired or unknown", nil)
	}
	page := h.Cursor(offset, limit)
	tuples := tuplesOfInt32(page.Slice)
	return &SearchResult{
		Return:  ReturnResults,
		Results: tuples,
		Cursor:  cursor,
		HasMore: page.HasMore,
	}, nil
}

func (s *Search) shapeFromHandle(h *cache.Handle, ret ReturnType, opts SearchOptions) (*SearchResult, error) {
	tuples := tuplesOfInt32(h.Tuples)
	limit := opts.Limit
	hasMore := false
	if limit > 0 && limit < len(tuples) {
		tuples = tuples[:limit]
		hasMore = true
	}
	res := &SearchResult{Return: ret, Cursor: h.ID, HasMore: hasMore}
	switch ret {
	case ReturnPassages:
		res.Passages = spin.Results(ret.toKind(), nil, tuples, s.fab.firstSlotFn(), s.fab.lastSlotFn()).([]spin.Passage)
	default:
		res.Results = tuples
	}
	return res, nil
}

func (s *Search) shape(plan *spin.Plan, tuples []spin.Tuple, ret ReturnType, opts SearchOptions) (*SearchResult, error) {
	res := &SearchResult{Return: ret}
	switch ret {
	case ReturnCount:
		res.Count = spin.Results(ret.toKind(), plan, tuples, nil, nil).(int)
	case ReturnStatistics:
		stats := spin.Results(ret.toKind(), plan, tuples, nil, nil).(spin.Statistics)
		res.Statistics = Statistics{Statistics: stats, FeatureHistograms: s.fab.aggregateHistograms(plan, tuples, opts.AggregateFeatures)}
	default:
		res.Results = tuples
	}
	return res, nil
}

// validateNames walks tmpl and fails with UnknownName before planning
// if any atom names a type or feature the catalog doesn't know, per
// spec.md §4.5's failure mode.
func validateNames(tmpl *template.Template, cat *spin.Catalog) error {
	var firstErr error
	tmpl.Walk(func(a *template.Atom) {
		if firstErr != nil {
			return
		}
		if a.TypeName != "." {
			if _, ok := cat.TypeID(a.TypeName); !ok {
				firstErr = unknownName("type", a.TypeName)
				return
			}
		}
		for _, p := range a.Predicates {
			if _, ok := cat.Feature(p.Feature); !ok {
				firstErr = unknownName("feature", p.Feature)
				return
			}
		}
	})
	return firstErr
}

func int32TuplesOf(ts []spin.Tuple) [][]int32 {
	out := make([][]int32, len(ts))
	for i, t := range ts {
		out[i] = []int32(t)
	}
	return out
}

func tuplesOfInt32(ts [][]int32) []spin.Tuple {
	out := make([]spin.Tuple, len(ts))
	for i, t := range ts {
		out[i] = spin.Tuple(t)
	}
	return out
}

// aggregateHistograms builds a value->count histogram per requested
// feature, over every distinct node bound to any atom across tuples,
// implementing ReturnStatistics's aggregate_features parameter
// (spec.md §8 scenario 4).
func (f *Fabric) aggregateHistograms(plan *spin.Plan, tuples []spin.Tuple, features []string) map[string]map[string]int {
	if len(features) == 0 {
		return nil
	}
	out := make(map[string]map[string]int, len(features))
	for _, name := range features {
		acc, err := f.featureAccessor(name)
		if err != nil {
			continue
		}
		hist := make(map[string]int)
		for _, t := range tuples {
			for _, n := range t {
				if n == 0 {
					continue
				}
				if v, ok := acc.V(n); ok {
					hist[toStringValue(v)]++
				}
			}
		}
		out[name] = hist
	}
	_ = plan
	return out
}

func toStringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int32:
		return intToStr(x)
	default:
		return ""
	}
}

func intToStr(v int32) string {
	neg := v < 0
	if neg {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (f *Fabric) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.cfg.CancelBudget <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, f.cfg.CancelBudget)
}

func (m *metricsAdapter) incCacheHit() {
	if m != nil && m.m != nil {
		m.m.CacheHits.Inc()
	}
}
func (m *metricsAdapter) incCacheMiss() {
	if m != nil && m.m != nil {
		m.m.CacheMisses.Inc()
	}
}

// metricsAdapter wraps *obs.Metrics so Fabric can hold a nil-safe
// reference when metrics are disabled (Config.MetricsEnabled=false).
type metricsAdapter struct{ m *obs.Metrics }
