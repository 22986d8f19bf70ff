package pagination

import (
	"context"
	"time"
)

// Pacer enforces a minimum interval between successive page submissions.
// It tracks only the instant of the last submission; one instance belongs to
// one pagination call, so independent calls never serialize against each
// other. Cross-call throughput policy, if needed, belongs in the shared
// executor, not here.
type Pacer struct {
	interval time.Duration
	last     time.Time
}

// NewPacer creates a pacer with the given minimum submission interval.
// A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until the minimum interval since the previous submission has
// elapsed, then records the new submission instant. The first call never
// blocks. Returns early with the context error on cancellation.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval > 0 && !p.last.IsZero() {
		delay := p.interval - time.Since(p.last)
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	p.last = time.Now()
	return nil
}
