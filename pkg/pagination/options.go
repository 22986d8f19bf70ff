package pagination

import (
	"errors"
	"time"

	"github.com/probemetrics/eventquery-client/pkg/query"
)

// Per-page row ceilings imposed by the query service.
const (
	// MaxPageRows is the row ceiling when time-series output is suppressed.
	// The engine always suppresses series to page at this ceiling.
	MaxPageRows = 10000

	// MaxPageRowsWithSeries is the reduced ceiling when time-series data is
	// included in the execution.
	MaxPageRowsWithSeries = 1000
)

// Defaults applied by Options.withDefaults.
const (
	DefaultMaxResults        = 100000
	DefaultMaxPages          = 30
	DefaultPageRetries       = 2
	DefaultPollInterval      = 1 * time.Second
	DefaultPerPageTimeout    = 90 * time.Second
	DefaultMinSubmitInterval = 6 * time.Second
)

// DuplicateRatioLimit is the stopping threshold for the tie-tail heuristic:
// when more than this share of a page's rows were already seen, the
// remaining data is an indistinguishable tail of ties and further pages
// cannot make progress.
const DuplicateRatioLimit = 0.5

// Configuration errors, raised before any page is submitted.
var (
	// ErrOrderingConflict is returned when the input specification carries
	// its own ordering. The engine owns ordering once pagination starts;
	// a caller-supplied order would corrupt continuation.
	ErrOrderingConflict = errors.New("pagination: input spec must not carry an ordering")

	// ErrNoSortKey is returned when no calculation or breakdown column can
	// drive continuation.
	ErrNoSortKey = errors.New("pagination: no resolvable sort key")

	// ErrUnknownSortField is returned when Options.SortField names a column
	// that is not among the spec's breakdowns.
	ErrUnknownSortField = errors.New("pagination: sort field is not a breakdown column")

	// ErrInvalidMaxResults is returned when MaxResults is not positive.
	ErrInvalidMaxResults = errors.New("pagination: max results must be > 0")
)

// ErrBoundaryUnordered is returned when the sort-key value of a page's last
// row is missing or null, leaving no boundary to continue from.
var ErrBoundaryUnordered = errors.New("pagination: page boundary value is missing or null")

// Options configures one pagination call.
type Options struct {
	// SortField pages by the named breakdown column instead of the
	// default, which is the specification's first calculation.
	SortField string

	// SortOrder fixes the paging direction for the whole call.
	// Defaults to descending (largest values first).
	SortOrder query.SortOrder

	// MaxResults caps the number of unique rows returned (default 100000).
	MaxResults int

	// MaxPages is the safety valve on page fetches (default 30).
	MaxPages int

	// PageRetries bounds transient-error retries per page (default 2;
	// a negative value disables page retries).
	PageRetries int

	// PollInterval is the wait between polls of a pending page (default 1s).
	PollInterval time.Duration

	// PerPageTimeout bounds one page's submit-and-poll cycle (default 90s).
	PerPageTimeout time.Duration

	// OverallTimeout, when positive, is a call-level deadline checked
	// between pages. A page in flight is allowed to finish, but no new
	// page is started past the deadline.
	OverallTimeout time.Duration

	// MinSubmitInterval is the minimum spacing between successive page
	// submissions (default 6s, the service's published throughput ceiling
	// for this query pattern; a negative value disables pacing).
	MinSubmitInterval time.Duration

	// OnPage, if set, is invoked after each merged page with the 1-based
	// page number and the cumulative unique row count. Observability only;
	// it must not influence control flow.
	OnPage func(page int, cumulativeRows int)

	// OnPageQuery, if set, is invoked with the handle of every query
	// execution the engine creates. The engine never deletes the query
	// resources it creates; callers that want cleanup hook in here.
	OnPageQuery func(h Handle)
}

// withDefaults returns a copy with zero values replaced by defaults.
func (o Options) withDefaults() Options {
	if o.SortOrder == "" {
		o.SortOrder = query.Descending
	}
	if o.MaxResults == 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.PageRetries < 0 {
		o.PageRetries = 0
	} else if o.PageRetries == 0 {
		o.PageRetries = DefaultPageRetries
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.PerPageTimeout <= 0 {
		o.PerPageTimeout = DefaultPerPageTimeout
	}
	if o.MinSubmitInterval == 0 {
		o.MinSubmitInterval = DefaultMinSubmitInterval
	}
	return o
}

// validate rejects configurations that cannot produce a correct pagination.
func (o Options) validate() error {
	if o.MaxResults < 0 {
		return ErrInvalidMaxResults
	}
	if o.SortOrder != query.Ascending && o.SortOrder != query.Descending {
		return errors.New("pagination: sort order must be ascending or descending")
	}
	return nil
}
