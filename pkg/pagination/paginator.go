package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/probemetrics/eventquery-client/pkg/logging"
	"github.com/probemetrics/eventquery-client/pkg/query"
)

// Prometheus metrics for pagination operations.
var (
	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventquery_pagination_pages_total",
		Help: "Total pages fetched across pagination calls",
	})

	rowsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventquery_pagination_rows_fetched_total",
		Help: "Total rows fetched across pagination calls, before deduplication",
	})

	duplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventquery_pagination_duplicates_total",
		Help: "Total boundary-tie duplicates discarded by the deduplicator",
	})

	stopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventquery_pagination_stops_total",
		Help: "Pagination stop decisions by reason",
	}, []string{"reason"})

	pageDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventquery_pagination_page_duration_seconds",
		Help:    "Duration of one page's submit-and-poll cycle",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// Result is the outcome of one pagination call.
type Result struct {
	// Rows is the accumulated, order-preserving, duplicate-free sequence,
	// capped at Options.MaxResults.
	Rows []query.Row

	// Status reports why pagination stopped.
	Status Status

	// Pages is the number of pages fetched.
	Pages int

	// RowsFetched counts rows returned by the service, before dedup.
	RowsFetched int

	// Duplicates counts boundary-tie rows discarded by the deduplicator.
	Duplicates int
}

// Paginator drives the continuation loop against an Executor. A Paginator is
// stateless between calls; every call owns its own pagination state, pacer,
// and deduplicator, so independent concurrent calls are safe.
type Paginator struct {
	exec   Executor
	logger zerolog.Logger
}

// New creates a paginator driving the given executor.
func New(exec Executor) *Paginator {
	return &Paginator{
		exec:   exec,
		logger: logging.NewLogger("paginator"),
	}
}

// Fetch retrieves the full result set of an aggregated query, issuing as
// many continuation pages as the stopping policy allows.
//
// Configuration errors (conflicting ordering, unresolvable sort key, invalid
// caps) are returned before any page is submitted, with a nil Result. Once
// paging has started, failures return the rows accumulated so far alongside
// the error; partial results are never silently discarded.
func (p *Paginator) Fetch(ctx context.Context, dataset string, spec *query.Spec, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, fmt.Errorf("pagination: nil spec")
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("pagination: invalid spec: %w", err)
	}

	key, err := resolveSortKey(spec, opts)
	if err != nil {
		return nil, err
	}

	// Pin the time window once for the whole operation. Pages issued
	// minutes apart must all see the same window.
	pinned := query.PinTimeRange(spec, time.Now())

	dedup := NewDeduplicator(pinned)
	pacer := NewPacer(opts.MinSubmitInterval)

	var deadline time.Time
	if opts.OverallTimeout > 0 {
		deadline = time.Now().Add(opts.OverallTimeout)
	}

	p.logger.Info().
		Str("dataset", dataset).
		Str("sort_field", key.FieldName()).
		Str("sort_order", string(key.Order)).
		Int("max_results", opts.MaxResults).
		Int("max_pages", opts.MaxPages).
		Msg("Starting paginated fetch")

	start := time.Now()
	result := &Result{}
	var boundary any

	for {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			result.Status = StatusDeadline
			stopsTotal.WithLabelValues(string(StatusDeadline)).Inc()
			p.logger.Warn().
				Str("dataset", dataset).
				Int("pages", result.Pages).
				Int("rows", len(result.Rows)).
				Msg("Overall deadline passed - stopping between pages")
			return result, nil
		}

		pageNum := result.Pages + 1
		pageSpec := buildPageSpec(pinned, key, boundary)

		rows, err := p.fetchPage(ctx, dataset, pageSpec, pageNum, pacer, opts)
		if err != nil {
			result.Status = StatusFailed
			stopsTotal.WithLabelValues(string(StatusFailed)).Inc()
			return result, fmt.Errorf("page %d: %w", pageNum, err)
		}

		result.Pages = pageNum
		result.RowsFetched += len(rows)
		pagesTotal.Inc()
		rowsFetchedTotal.Add(float64(len(rows)))

		// Merge, dropping boundary ties already seen and truncating at
		// the caller's cap.
		dedup.StartPage()
		for _, row := range rows {
			if len(result.Rows) >= opts.MaxResults {
				break
			}
			if dedup.Add(row) {
				result.Rows = append(result.Rows, row)
			}
		}
		pageDuplicates := dedup.PageDuplicates()
		result.Duplicates += pageDuplicates
		duplicatesTotal.Add(float64(pageDuplicates))

		p.logger.Info().
			Str("dataset", dataset).
			Int("page", pageNum).
			Int("rows", len(rows)).
			Int("duplicates", pageDuplicates).
			Int("unique_rows", len(result.Rows)).
			Msg("Page merged")

		if opts.OnPage != nil {
			opts.OnPage(pageNum, len(result.Rows))
		}

		status, stop := evaluateStop(pageOutcome{
			pageRows:   len(rows),
			duplicates: pageDuplicates,
			uniqueRows: len(result.Rows),
			pages:      pageNum,
		}, opts)
		if stop {
			result.Status = status
			stopsTotal.WithLabelValues(string(status)).Inc()
			p.logger.Info().
				Str("dataset", dataset).
				Str("status", string(status)).
				Int("pages", result.Pages).
				Int("rows", len(result.Rows)).
				Int("duplicates", result.Duplicates).
				Dur("duration", time.Since(start)).
				Msg("Pagination complete")
			return result, nil
		}

		boundary = rows[len(rows)-1][key.FieldName()]
		if boundary == nil {
			result.Status = StatusFailed
			stopsTotal.WithLabelValues(string(StatusFailed)).Inc()
			return result, fmt.Errorf("page %d: %w", pageNum, ErrBoundaryUnordered)
		}

		p.logger.Debug().
			Str("dataset", dataset).
			Int("page", pageNum).
			Interface("boundary", boundary).
			Msg("Continuing from page boundary")
	}
}

// fetchPage runs one page to completion, retrying transient failures a
// bounded number of times. Backoff between attempts is the pacer's cadence:
// every attempt, like every submission, waits out the minimum interval.
func (p *Paginator) fetchPage(ctx context.Context, dataset string, spec *query.Spec, pageNum int, pacer *Pacer, opts Options) ([]query.Row, error) {
	attempts := opts.PageRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		rows, err := p.runPage(ctx, dataset, spec, opts)
		pageDurationSeconds.Observe(time.Since(start).Seconds())

		if err == nil {
			if attempt > 1 {
				p.logger.Info().
					Int("page", pageNum).
					Int("attempt", attempt).
					Msg("Page succeeded after retry")
			}
			return rows, nil
		}
		lastErr = err

		if !isTransient(err) {
			p.logger.Error().
				Err(err).
				Str("dataset", dataset).
				Int("page", pageNum).
				Msg("Fatal page error - aborting call")
			return nil, err
		}

		p.logger.Warn().
			Err(err).
			Str("dataset", dataset).
			Int("page", pageNum).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("Transient page error")
	}

	return nil, fmt.Errorf("transient errors exhausted after %d attempts: %w", attempts, lastErr)
}

// runPage submits one page and polls it to completion, bounded by the
// per-page timeout.
func (p *Paginator) runPage(ctx context.Context, dataset string, spec *query.Spec, opts Options) ([]query.Row, error) {
	pageCtx, cancel := context.WithTimeout(ctx, opts.PerPageTimeout)
	defer cancel()

	h, err := p.exec.Submit(pageCtx, dataset, spec)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if opts.OnPageQuery != nil {
		opts.OnPageQuery(h)
	}

	for {
		res, err := p.exec.Poll(pageCtx, h)
		if err != nil {
			return nil, fmt.Errorf("poll: %w", err)
		}
		if res.Complete {
			return res.Rows, nil
		}

		select {
		case <-pageCtx.Done():
			return nil, fmt.Errorf("page poll loop: %w", pageCtx.Err())
		case <-time.After(opts.PollInterval):
		}
	}
}
