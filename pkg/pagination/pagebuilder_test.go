package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probemetrics/eventquery-client/pkg/query"
)

func builderSpec() *query.Spec {
	return &query.Spec{
		StartTime:    1699990000,
		EndTime:      1700000000,
		Calculations: []query.Calculation{{Op: query.CalcCount}},
		Filters:      []query.Filter{{Column: "service", Op: query.FilterEq, Value: "api"}},
		Breakdowns:   []string{"endpoint"},
	}
}

func TestBuildPageSpec_FirstPage(t *testing.T) {
	base := builderSpec()
	key := SortKey{Calc: &query.Calculation{Op: query.CalcCount}, Order: query.Descending}

	page := buildPageSpec(base, key, nil)

	assert.Equal(t, MaxPageRows, page.Limit)
	assert.True(t, page.DisableSeries, "series must be suppressed to unlock the higher row ceiling")
	require.Len(t, page.Orders, 1)
	assert.Equal(t, query.CalcCount, page.Orders[0].Op)
	assert.Equal(t, query.Descending, page.Orders[0].Order)
	assert.Empty(t, page.Havings, "first page carries no continuation predicate")
	assert.Equal(t, base.Filters, page.Filters)
	assert.Equal(t, base.Breakdowns, page.Breakdowns)
}

func TestBuildPageSpec_CalculationBoundary(t *testing.T) {
	tests := []struct {
		name       string
		order      query.SortOrder
		expectedOp query.FilterOp
	}{
		{"descending uses inclusive lte", query.Descending, query.FilterLte},
		{"ascending uses inclusive gte", query.Ascending, query.FilterGte},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := builderSpec()
			key := SortKey{Calc: &query.Calculation{Op: query.CalcCount}, Order: tt.order}

			page := buildPageSpec(base, key, float64(37))

			require.Len(t, page.Havings, 1)
			having := page.Havings[0]
			assert.Equal(t, query.CalcCount, having.CalculateOp)
			assert.Equal(t, tt.expectedOp, having.Op)
			assert.Equal(t, float64(37), having.Value)
			assert.Len(t, page.Filters, 1, "calculation boundary must not add pre-aggregation filters")
		})
	}
}

func TestBuildPageSpec_BreakdownBoundary(t *testing.T) {
	tests := []struct {
		name       string
		order      query.SortOrder
		expectedOp query.FilterOp
	}{
		{"descending uses strict lt", query.Descending, query.FilterLt},
		{"ascending uses strict gt", query.Ascending, query.FilterGt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := builderSpec()
			key := SortKey{Column: "endpoint", Order: tt.order}

			page := buildPageSpec(base, key, "/users")

			require.Len(t, page.Filters, 2)
			cont := page.Filters[1]
			assert.Equal(t, "endpoint", cont.Column)
			assert.Equal(t, tt.expectedOp, cont.Op)
			assert.Equal(t, "/users", cont.Value)
			assert.Empty(t, page.Havings, "breakdown boundary must not add having clauses")
		})
	}
}

func TestBuildPageSpec_NeverMutatesBase(t *testing.T) {
	base := builderSpec()
	key := SortKey{Calc: &query.Calculation{Op: query.CalcCount}, Order: query.Descending}

	_ = buildPageSpec(base, key, float64(37))
	_ = buildPageSpec(base, key, float64(12))

	assert.Empty(t, base.Orders)
	assert.Empty(t, base.Havings)
	assert.Zero(t, base.Limit)
	assert.False(t, base.DisableSeries)
	assert.Len(t, base.Filters, 1)
}
