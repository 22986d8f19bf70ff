package pagination

import (
	"github.com/probemetrics/eventquery-client/pkg/query"
)

// buildPageSpec derives the specification for one page from the pinned input
// specification. The input is never mutated; every page gets its own copy.
//
// Page 1 (boundary == nil) carries the caller's filters, breakdowns, and
// calculations unchanged, ordered by the sort key, capped at the per-page
// ceiling, with time-series output suppressed. Suppression is what unlocks
// the higher per-page row ceiling.
//
// Page N carries a continuation predicate derived from the previous page's
// boundary value:
//
//   - For a calculation key, a post-aggregation filter with an inclusive
//     comparator (<= descending, >= ascending). Inclusive because boundary
//     ties must be revisited and left to the deduplicator; an exclusive
//     comparator would silently drop tied rows.
//   - For a breakdown key, a pre-aggregation filter with a strict comparator
//     (< descending, > ascending). Breakdown values are distinct per row, so
//     the boundary row itself never needs to reappear.
func buildPageSpec(base *query.Spec, key SortKey, boundary any) *query.Spec {
	page := base.Clone()
	page.Orders = []query.Order{key.order()}
	page.Limit = MaxPageRows
	page.DisableSeries = true

	if boundary == nil {
		return page
	}

	if key.IsCalculation() {
		op := query.FilterLte
		if key.Order == query.Ascending {
			op = query.FilterGte
		}
		page.Havings = append(page.Havings, query.Having{
			CalculateOp: key.Calc.Op,
			Column:      key.Calc.Column,
			Op:          op,
			Value:       boundary,
		})
		return page
	}

	op := query.FilterLt
	if key.Order == query.Ascending {
		op = query.FilterGt
	}
	page.Filters = append(page.Filters, query.Filter{
		Column: key.Column,
		Op:     op,
		Value:  boundary,
	})
	return page
}
