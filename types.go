package fabric

import (
	"fmt"

	"github.com/contextfabric/fabric/internal/spin"
)

// Node is a corpus node id, 1-based per spec.md §3. Slot nodes occupy
// [1, S]; non-slot nodes occupy (S, N].
type Node = int32

// AllFeatures is the feature_spec sentinel meaning "load every
// declared feature" in Fabric.Load (spec.md §6).
const AllFeatures = "all"

// ReturnType selects the shape of a Search result, matching spec.md
// §4.5/§4.6's return_type variants.
type ReturnType string

const (
	ReturnResults    ReturnType = "results"
	ReturnCount      ReturnType = "count"
	ReturnStatistics ReturnType = "statistics"
	ReturnPassages   ReturnType = "passages"
)

func (r ReturnType) toKind() spin.ReturnKind {
	switch r {
	case ReturnCount:
		return spin.ReturnCount
	case ReturnStatistics:
		return spin.ReturnStatistics
	case ReturnPassages:
		return spin.ReturnPassages
	default:
		return spin.ReturnResults
	}
}

// SearchOptions parameterizes Api.S.Search, mirroring spec.md §6's
// Api.S.search(template, return_type, aggregate_features?, limit?,
// cursor?).
type SearchOptions struct {
	Template string
	Return   ReturnType

	// AggregateFeatures names the features ReturnStatistics histograms
	// over, in addition to the per-atom distinct-binding counts every
	// Statistics result already carries.
	AggregateFeatures []string

	// Limit caps the number of tuples materialized into Results/
	// Passages; zero means unlimited. Count/Statistics ignore it.
	Limit int
}

// Tuple is one matched binding, one node id per atom in template
// order (0 for an atom with no binding in this tuple).
type Tuple = spin.Tuple

// Passage is a contiguous span of text one matched tuple covers.
type Passage = spin.Passage

// Statistics summarizes a matched tuple set, optionally enriched with
// per-feature value histograms over AggregateFeatures.
type Statistics struct {
	spin.Statistics
	FeatureHistograms map[string]map[string]int
}

// SearchResult is the polymorphic result of Api.S.Search: exactly one
// of the fields below is populated, selected by the Return kind that
// produced it.
type SearchResult struct {
	Return ReturnType

	Results    []Tuple
	Count      int
	Statistics Statistics
	Passages   []Passage

	// Cursor, when non-empty, identifies a cached handle for
	// Api.S.SearchContinue to page through (spec.md §4.6).
	Cursor  string
	HasMore bool
}

func (r ReturnType) String() string { return string(r) }

// parseReturnType validates a caller-supplied return type string.
func parseReturnType(s string) (ReturnType, error) {
	switch ReturnType(s) {
	case ReturnResults, ReturnCount, ReturnStatistics, ReturnPassages, "":
		if s == "" {
			return ReturnResults, nil
		}
		return ReturnType(s), nil
	default:
		return "", fmt.Errorf("fabric: unknown return type %q", s)
	}
}
