// Package testutil provides testing utilities for the event-query client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/probemetrics/eventquery-client/pkg/query"
)

// MockQueryService is a configurable in-process stand-in for the hosted
// query service, implementing the query-creation and query-result endpoints.
type MockQueryService struct {
	server *httptest.Server

	mu sync.Mutex

	// pages are served in submission order: the Nth execution completes
	// with pages[N].
	pages [][]query.Row

	// pendingPolls is how many polls return complete=false before each
	// execution completes.
	pendingPolls int

	// failures to inject, consumed one per request.
	failStatuses []int

	// rateLimitRemaining, when >= 0, is advertised on every response.
	rateLimitRemaining int

	// Tracking
	QueriesCreated int
	ResultsCreated int
	Polls          int
	Specs          []query.Spec
	DisableSeries  []bool

	pollsByResult map[string]int
}

// NewMockQueryService starts a mock service with no scripted pages.
func NewMockQueryService() *MockQueryService {
	m := &MockQueryService{
		rateLimitRemaining: -1,
		pollsByResult:      make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the mock server URL.
func (m *MockQueryService) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockQueryService) Close() {
	m.server.Close()
}

// AddPage scripts the result rows for the next execution.
func (m *MockQueryService) AddPage(rows []query.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = append(m.pages, rows)
}

// SetPendingPolls makes every execution report pending this many times
// before completing.
func (m *MockQueryService) SetPendingPolls(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingPolls = n
}

// FailNext injects a failure status for each of the next count requests.
func (m *MockQueryService) FailNext(status, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < count; i++ {
		m.failStatuses = append(m.failStatuses, status)
	}
}

// SetRateLimitRemaining advertises a rate limit budget on every response.
func (m *MockQueryService) SetRateLimitRemaining(remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitRemaining = remaining
}

func (m *MockQueryService) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rateLimitRemaining >= 0 {
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", m.rateLimitRemaining))
		w.Header().Set("X-RateLimit-Reset", "60")
	}

	if len(m.failStatuses) > 0 {
		status := m.failStatuses[0]
		m.failStatuses = m.failStatuses[1:]
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":"injected failure %d"}`, status)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case r.Method == http.MethodPost && len(parts) == 3 && parts[1] == "queries":
		m.handleCreateQuery(w, r)
	case r.Method == http.MethodPost && len(parts) == 3 && parts[1] == "query_results":
		m.handleCreateResult(w, r)
	case r.Method == http.MethodGet && len(parts) == 4 && parts[1] == "query_results":
		m.handlePoll(w, parts[3])
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"unknown endpoint"}`)
	}
}

func (m *MockQueryService) handleCreateQuery(w http.ResponseWriter, r *http.Request) {
	var spec query.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"malformed query spec"}`)
		return
	}

	m.QueriesCreated++
	m.Specs = append(m.Specs, spec)

	writeJSON(w, map[string]any{"id": fmt.Sprintf("q-%d", m.QueriesCreated)})
}

func (m *MockQueryService) handleCreateResult(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QueryID       string `json:"query_id"`
		DisableSeries bool   `json:"disable_series"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.QueryID == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"malformed query result request"}`)
		return
	}

	if m.ResultsCreated >= len(m.pages) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"no scripted page for this execution"}`)
		return
	}

	m.ResultsCreated++
	m.DisableSeries = append(m.DisableSeries, body.DisableSeries)

	writeJSON(w, map[string]any{"id": fmt.Sprintf("r-%d", m.ResultsCreated)})
}

func (m *MockQueryService) handlePoll(w http.ResponseWriter, resultID string) {
	m.Polls++

	var index int
	if _, err := fmt.Sscanf(resultID, "r-%d", &index); err != nil || index < 1 || index > len(m.pages) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"unknown query result"}`)
		return
	}

	m.pollsByResult[resultID]++
	if m.pollsByResult[resultID] <= m.pendingPolls {
		writeJSON(w, map[string]any{"id": resultID, "complete": false})
		return
	}

	results := make([]map[string]any, 0, len(m.pages[index-1]))
	for _, row := range m.pages[index-1] {
		results = append(results, map[string]any{"data": row})
	}

	writeJSON(w, map[string]any{
		"id":       resultID,
		"complete": true,
		"data":     map[string]any{"results": results},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(fmt.Sprintf("encode mock response: %v", err))
	}
}
