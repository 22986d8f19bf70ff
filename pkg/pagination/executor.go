package pagination

import (
	"context"
	"errors"

	"github.com/probemetrics/eventquery-client/pkg/query"
)

// Handle identifies one submitted query execution on the remote service.
type Handle struct {
	// Dataset is the dataset slug the query ran against.
	Dataset string

	// QueryID is the persisted query resource created for this page.
	QueryID string

	// ResultID is the query execution to poll.
	ResultID string
}

// PollResult is one poll of a submitted query execution.
type PollResult struct {
	// Complete is false while the execution is still pending.
	Complete bool

	// Rows holds the aggregated result lines once Complete is true.
	Rows []query.Row
}

// Executor is the query execution collaborator the engine drives. It submits
// a query specification against the service's query-creation and
// query-result endpoints and polls until results are ready. Transport,
// authentication, and transport-level retry are the executor's concern, not
// the engine's.
//
// Errors returned by an Executor may implement interface{ Transient() bool }
// to distinguish transient failures (rate-limited, timeout, network fault)
// from fatal ones (invalid specification). Errors without the method are
// treated as transient.
type Executor interface {
	// Submit creates and starts one query execution. Each call creates a
	// persisted query resource on the remote service as a side effect.
	Submit(ctx context.Context, dataset string, spec *query.Spec) (Handle, error)

	// Poll reports the current state of a submitted execution.
	Poll(ctx context.Context, h Handle) (*PollResult, error)
}

// transientError is implemented by executor errors that classify themselves.
type transientError interface {
	Transient() bool
}

// isTransient reports whether a page error is worth retrying. Deliberately
// permissive: retries are bounded per page, so misclassifying an unknown
// error as transient costs a few attempts, while misclassifying a timeout as
// fatal would abort the whole call.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te transientError
	if errors.As(err, &te) {
		return te.Transient()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
