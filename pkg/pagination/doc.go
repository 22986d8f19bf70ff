// Package pagination implements the large-result continuation engine for
// aggregated queries.
//
// The query service caps any single aggregated query execution at a fixed row
// ceiling and exposes no cursor for aggregated results. To retrieve result
// sets far larger than that ceiling, the engine re-issues a sequence of
// modified queries, each continuing from the previous page's sort-key
// boundary, merges the pages into one ordered, duplicate-free stream, and
// stops on exhaustion, a caller-supplied cap, a page-count safety valve, or a
// duplicate-ratio heuristic that detects a long indistinguishable tail of
// ties.
//
// Example usage:
//
//	p := pagination.New(execClient)
//	result, err := p.Fetch(ctx, "production", spec, pagination.Options{
//		MaxResults: 250000,
//		OnPage: func(page, total int) {
//			log.Printf("page %d, %d rows so far", page, total)
//		},
//	})
//
// The engine:
//   - Pins relative time windows to absolute instants once, before paging
//   - Orders every page by a single resolved sort key and pages on it
//   - Revisits boundary ties with an inclusive predicate, then deduplicates
//   - Pages strictly sequentially; each page depends on the previous boundary
//   - Returns partial results together with the error when a page fails
//
// Each page submission creates a persisted query resource on the remote
// service. The engine never deletes or reuses these; callers that want
// cleanup can observe every created resource via Options.OnPageQuery.
package pagination
