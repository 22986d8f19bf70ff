// Package query defines the query-specification data model shared by the
// client and the pagination engine, along with the time window normalizer.
package query

import (
	"fmt"
	"time"
)

// CalcOp is an aggregation operator applied by a calculation.
type CalcOp string

// Aggregation operators supported by the query service.
const (
	CalcCount         CalcOp = "COUNT"
	CalcSum           CalcOp = "SUM"
	CalcAvg           CalcOp = "AVG"
	CalcMin           CalcOp = "MIN"
	CalcMax           CalcOp = "MAX"
	CalcP50           CalcOp = "P50"
	CalcP90           CalcOp = "P90"
	CalcP95           CalcOp = "P95"
	CalcP99           CalcOp = "P99"
	CalcCountDistinct CalcOp = "COUNT_DISTINCT"
	CalcHeatmap       CalcOp = "HEATMAP"
)

// FilterOp is a comparison operator used by filters and having-clauses.
type FilterOp string

// Filter operators supported by the query service.
const (
	FilterEq             FilterOp = "="
	FilterNotEq          FilterOp = "!="
	FilterGt             FilterOp = ">"
	FilterGte            FilterOp = ">="
	FilterLt             FilterOp = "<"
	FilterLte            FilterOp = "<="
	FilterStartsWith     FilterOp = "starts-with"
	FilterNotStartsWith  FilterOp = "does-not-start-with"
	FilterExists         FilterOp = "exists"
	FilterNotExists      FilterOp = "does-not-exist"
	FilterContains       FilterOp = "contains"
	FilterNotContains    FilterOp = "does-not-contain"
	FilterIn             FilterOp = "in"
	FilterNotIn          FilterOp = "not-in"
)

// SortOrder is a result ordering direction.
type SortOrder string

const (
	// Ascending orders results smallest value first.
	Ascending SortOrder = "ascending"

	// Descending orders results largest value first.
	Descending SortOrder = "descending"
)

// FilterCombination selects how multiple filters are combined.
type FilterCombination string

const (
	// CombineAnd requires all filters to match.
	CombineAnd FilterCombination = "AND"

	// CombineOr requires any filter to match.
	CombineOr FilterCombination = "OR"
)

// DefaultTimeRange is the window, in seconds, the service assumes when a
// specification carries neither a relative range nor absolute bounds.
const DefaultTimeRange = 7200

// Calculation is one aggregation in a query specification.
// Column must be empty for COUNT and set for every other operator.
type Calculation struct {
	Op     CalcOp `json:"op"`
	Column string `json:"column,omitempty"`
}

// Key returns the result-field name the service uses for this calculation,
// e.g. "COUNT" or "AVG(duration_ms)".
func (c Calculation) Key() string {
	if c.Column == "" {
		return string(c.Op)
	}
	return fmt.Sprintf("%s(%s)", c.Op, c.Column)
}

// Filter is a pre-aggregation constraint on raw event columns.
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  any      `json:"value,omitempty"`
}

// Having is a post-aggregation constraint on a calculation result.
type Having struct {
	CalculateOp CalcOp   `json:"calculate_op"`
	Column      string   `json:"column,omitempty"`
	Op          FilterOp `json:"op"`
	Value       any      `json:"value"`
}

// Order directs result ordering by a calculation or a breakdown column.
// Op is empty when ordering by a raw breakdown column.
type Order struct {
	Op     CalcOp    `json:"op,omitempty"`
	Column string    `json:"column,omitempty"`
	Order  SortOrder `json:"order"`
}

// Row is one aggregated result line: result-field name to value.
// Values are numeric, string, or nil as decoded from the service's JSON.
type Row = map[string]any

// Spec is an immutable description of one query against a dataset.
//
// The time window is either relative (TimeRange seconds ending now) or
// absolute (StartTime/EndTime, unix seconds). The pagination engine always
// pins specs to absolute windows before paging; see PinTimeRange.
type Spec struct {
	// TimeRange is a relative window in seconds ending at submission time.
	// Ignored when StartTime and EndTime are set.
	TimeRange int `json:"time_range,omitempty"`

	// StartTime and EndTime bound the window absolutely, in unix seconds.
	StartTime int64 `json:"start_time,omitempty"`
	EndTime   int64 `json:"end_time,omitempty"`

	Calculations      []Calculation     `json:"calculations"`
	Filters           []Filter          `json:"filters,omitempty"`
	FilterCombination FilterCombination `json:"filter_combination,omitempty"`
	Breakdowns        []string          `json:"breakdowns,omitempty"`
	Havings           []Having          `json:"havings,omitempty"`
	Orders            []Order           `json:"orders,omitempty"`
	Limit             int               `json:"limit,omitempty"`

	// DisableSeries suppresses time-series output when the query is
	// executed, which raises the per-query row ceiling. It is part of the
	// result-creation request, not the persisted query resource.
	DisableSeries bool `json:"-"`
}

// Clone returns a deep copy. Mutating the copy never affects the original,
// which is what lets the page builder derive per-page specs without touching
// the caller's specification.
func (s *Spec) Clone() *Spec {
	c := *s
	if s.Calculations != nil {
		c.Calculations = append([]Calculation(nil), s.Calculations...)
	}
	if s.Filters != nil {
		c.Filters = append([]Filter(nil), s.Filters...)
	}
	if s.Breakdowns != nil {
		c.Breakdowns = append([]string(nil), s.Breakdowns...)
	}
	if s.Havings != nil {
		c.Havings = append([]Having(nil), s.Havings...)
	}
	if s.Orders != nil {
		c.Orders = append([]Order(nil), s.Orders...)
	}
	return &c
}

// Validate performs basic shape checks before submission.
func (s *Spec) Validate() error {
	if len(s.Calculations) == 0 {
		return fmt.Errorf("spec requires at least one calculation")
	}
	for _, c := range s.Calculations {
		if c.Op == "" {
			return fmt.Errorf("calculation missing op")
		}
		if c.Op != CalcCount && c.Column == "" {
			return fmt.Errorf("calculation %s requires a column", c.Op)
		}
		if c.Op == CalcCount && c.Column != "" {
			return fmt.Errorf("COUNT takes no column (got %q)", c.Column)
		}
	}
	for _, f := range s.Filters {
		if f.Column == "" || f.Op == "" {
			return fmt.Errorf("filter requires column and op")
		}
	}
	if s.TimeRange < 0 {
		return fmt.Errorf("time_range must be >= 0 (got %d)", s.TimeRange)
	}
	if s.StartTime != 0 && s.EndTime != 0 && s.EndTime < s.StartTime {
		return fmt.Errorf("end_time %d before start_time %d", s.EndTime, s.StartTime)
	}
	return nil
}

// HasAbsoluteWindow reports whether the spec's time window is already pinned
// to absolute start/end instants.
func (s *Spec) HasAbsoluteWindow() bool {
	return s.StartTime != 0 && s.EndTime != 0
}

// PinTimeRange rewrites a relative time window into an absolute start/end
// pair computed from now, returning a new spec. A spec whose window is
// already absolute is returned unchanged, so the operation is idempotent.
//
// Pagination issues pages seconds to minutes apart; without pinning, each
// page's window would drift with wall-clock time and rows could appear or
// vanish between pages.
func PinTimeRange(s *Spec, now time.Time) *Spec {
	if s.HasAbsoluteWindow() {
		return s
	}
	c := s.Clone()
	rangeSecs := c.TimeRange
	if rangeSecs == 0 {
		rangeSecs = DefaultTimeRange
	}
	end := now.Unix()
	c.StartTime = end - int64(rangeSecs)
	c.EndTime = end
	c.TimeRange = 0
	return c
}
