package pagination

import (
	"fmt"

	"github.com/probemetrics/eventquery-client/pkg/query"
)

// SortKey identifies the single field the continuation algorithm orders
// results by and pages on. It is either a calculation result or a breakdown
// column, resolved once before paging begins and immutable for the call.
type SortKey struct {
	// Calc is set when paging on a calculation result.
	Calc *query.Calculation

	// Column is set when paging on a breakdown column.
	Column string

	// Order is the paging direction, fixed for the whole call.
	Order query.SortOrder
}

// IsCalculation reports whether the key pages on a calculation result.
func (k SortKey) IsCalculation() bool {
	return k.Calc != nil
}

// FieldName returns the result-field name the key reads from each row.
func (k SortKey) FieldName() string {
	if k.Calc != nil {
		return k.Calc.Key()
	}
	return k.Column
}

// order returns the engine-owned ordering directive for page specs.
func (k SortKey) order() query.Order {
	if k.Calc != nil {
		return query.Order{Op: k.Calc.Op, Column: k.Calc.Column, Order: k.Order}
	}
	return query.Order{Column: k.Column, Order: k.Order}
}

// resolveSortKey chooses and validates the continuation sort key for a call.
// The default key is the specification's first calculation; Options.SortField
// selects a breakdown column instead. Exactly one resolvable key must exist,
// and the input specification must not carry its own ordering: the engine is
// solely responsible for ordering once pagination starts.
func resolveSortKey(spec *query.Spec, opts Options) (SortKey, error) {
	if len(spec.Orders) > 0 {
		return SortKey{}, fmt.Errorf("%w (got %d ordering directives)", ErrOrderingConflict, len(spec.Orders))
	}

	if opts.SortField != "" {
		for _, b := range spec.Breakdowns {
			if b == opts.SortField {
				return SortKey{Column: b, Order: opts.SortOrder}, nil
			}
		}
		return SortKey{}, fmt.Errorf("%w: %q", ErrUnknownSortField, opts.SortField)
	}

	if len(spec.Calculations) == 0 {
		return SortKey{}, ErrNoSortKey
	}

	calc := spec.Calculations[0]
	return SortKey{Calc: &calc, Order: opts.SortOrder}, nil
}
