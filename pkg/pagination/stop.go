package pagination

// Status reports why a pagination call stopped.
type Status string

const (
	// StatusExhausted means the result set was fully retrieved: a page came
	// back empty or short of the per-page ceiling.
	StatusExhausted Status = "exhausted"

	// StatusMaxResults means the caller's MaxResults cap was reached and
	// the last page's surplus was discarded.
	StatusMaxResults Status = "max_results"

	// StatusMaxPages means the MaxPages safety valve fired; the result is
	// possibly incomplete.
	StatusMaxPages Status = "max_pages"

	// StatusDuplicateTail means more than half of a page's rows had already
	// been seen: the remaining data is an indistinguishable tail of ties
	// that would take unbounded pages to exhaust.
	StatusDuplicateTail Status = "duplicate_tail"

	// StatusDeadline means the call-level deadline passed between pages.
	StatusDeadline Status = "deadline"

	// StatusFailed means a page failed fatally or exhausted its retries;
	// rows accumulated before the failure are still returned.
	StatusFailed Status = "failed"
)

// Complete reports whether the status means every matching row was returned.
func (s Status) Complete() bool {
	return s == StatusExhausted
}

// pageOutcome carries the per-page numbers the stopping policy inspects.
type pageOutcome struct {
	pageRows   int // rows returned by this page, pre-dedup
	duplicates int // rows of this page already seen on earlier pages
	uniqueRows int // accumulated unique rows after merging this page
	pages      int // pages fetched so far, including this one
}

// evaluateStop decides, after each page, whether to continue and why not.
// The rules are checked in a fixed priority order.
func evaluateStop(o pageOutcome, opts Options) (Status, bool) {
	// 1. Empty page: nothing beyond the previous boundary.
	if o.pageRows == 0 {
		return StatusExhausted, true
	}

	// 2. Short page: the service ran out of rows; no further continuation
	// is meaningful.
	if o.pageRows < MaxPageRows {
		return StatusExhausted, true
	}

	// 3. Caller's cap reached.
	if o.uniqueRows >= opts.MaxResults {
		return StatusMaxResults, true
	}

	// 4. Safety valve.
	if o.pages >= opts.MaxPages {
		return StatusMaxPages, true
	}

	// 5. Duplicate-ratio heuristic: a long tail of boundary ties.
	if float64(o.duplicates)/float64(o.pageRows) > DuplicateRatioLimit {
		return StatusDuplicateTail, true
	}

	return "", false
}
