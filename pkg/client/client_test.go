package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/probemetrics/eventquery-client/internal/testutil"
	"github.com/probemetrics/eventquery-client/pkg/query"
)

func testSpec() *query.Spec {
	return &query.Spec{
		TimeRange:    3600,
		Calculations: []query.Calculation{{Op: query.CalcCount}},
		Breakdowns:   []string{"service"},
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := DefaultConfig("test-key")
	cfg.BaseURL = baseURL
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected an error for missing api key")
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	c, err := New(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.config.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.config.BaseURL, DefaultBaseURL)
	}
	if c.httpClient.Timeout <= 0 {
		t.Error("HTTP timeout should default to a positive value")
	}
	if c.cache != nil {
		t.Error("result cache should stay disabled without Redis")
	}
}

func TestClient_CreateQuery(t *testing.T) {
	mock := testutil.NewMockQueryService()
	defer mock.Close()
	c := newTestClient(t, mock.URL())

	id, err := c.CreateQuery(context.Background(), "prod", testSpec())
	if err != nil {
		t.Fatalf("CreateQuery() error: %v", err)
	}
	if id != "q-1" {
		t.Errorf("query id = %q, want %q", id, "q-1")
	}
	if mock.QueriesCreated != 1 {
		t.Errorf("QueriesCreated = %d, want 1", mock.QueriesCreated)
	}
	if len(mock.Specs) != 1 || len(mock.Specs[0].Calculations) != 1 {
		t.Fatalf("submitted spec not recorded: %+v", mock.Specs)
	}
	if mock.Specs[0].Calculations[0].Op != query.CalcCount {
		t.Errorf("calculation op = %q, want COUNT", mock.Specs[0].Calculations[0].Op)
	}
}

func TestClient_Submit(t *testing.T) {
	mock := testutil.NewMockQueryService()
	defer mock.Close()
	mock.AddPage([]query.Row{{"service": "api", "COUNT": float64(12)}})
	c := newTestClient(t, mock.URL())

	spec := testSpec()
	spec.DisableSeries = true

	h, err := c.Submit(context.Background(), "prod", spec)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if h.Dataset != "prod" || h.QueryID != "q-1" || h.ResultID != "r-1" {
		t.Errorf("unexpected handle: %+v", h)
	}
	if len(mock.DisableSeries) != 1 || !mock.DisableSeries[0] {
		t.Error("series suppression flag not forwarded to the execution request")
	}
}

func TestClient_PollUntilComplete(t *testing.T) {
	mock := testutil.NewMockQueryService()
	defer mock.Close()
	mock.AddPage([]query.Row{
		{"service": "api", "COUNT": float64(12)},
		{"service": "web", "COUNT": float64(7)},
	})
	mock.SetPendingPolls(1)
	c := newTestClient(t, mock.URL())

	h, err := c.Submit(context.Background(), "prod", testSpec())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	res, err := c.Poll(context.Background(), h)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if res.Complete {
		t.Fatal("first poll should report pending")
	}
	if res.Rows != nil {
		t.Error("pending poll should carry no rows")
	}

	res, err = c.Poll(context.Background(), h)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if !res.Complete {
		t.Fatal("second poll should report complete")
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	if res.Rows[0]["service"] != "api" || res.Rows[0]["COUNT"] != float64(12) {
		t.Errorf("unexpected first row: %+v", res.Rows[0])
	}
}

func TestClient_ExecuteQuery(t *testing.T) {
	mock := testutil.NewMockQueryService()
	defer mock.Close()
	mock.AddPage([]query.Row{{"service": "api", "COUNT": float64(3)}})
	mock.SetPendingPolls(2)
	c := newTestClient(t, mock.URL())

	rows, err := c.ExecuteQuery(context.Background(), "prod", testSpec(), 5*time.Millisecond)
	if err != nil {
		t.Fatalf("ExecuteQuery() error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if mock.Polls < 3 {
		t.Errorf("Polls = %d, want at least 3 (two pending, one complete)", mock.Polls)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	mock := testutil.NewMockQueryService()
	defer mock.Close()
	mock.FailNext(422, 1)
	c := newTestClient(t, mock.URL())

	_, err := c.CreateQuery(context.Background(), "prod", testSpec())
	if err == nil {
		t.Fatal("expected an error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an APIError, got: %v", err)
	}
	if apiErr.StatusCode != 422 {
		t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
	}
	if apiErr.ErrorClass != ErrorClassClient {
		t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, ErrorClassClient)
	}
	if apiErr.Message != "injected failure 422" {
		t.Errorf("Message = %q, service body not surfaced", apiErr.Message)
	}
	if apiErr.Transient() {
		t.Error("a 422 must be classified fatal")
	}
	if mock.QueriesCreated != 0 {
		t.Errorf("QueriesCreated = %d, want 0 (no retry of a client error)", mock.QueriesCreated)
	}
}

func TestClient_ServerErrorRetried(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping backoff test in short mode")
	}

	mock := testutil.NewMockQueryService()
	defer mock.Close()
	mock.FailNext(500, 1)
	mock.AddPage([]query.Row{{"service": "api", "COUNT": float64(1)}})
	c := newTestClient(t, mock.URL())

	h, err := c.Submit(context.Background(), "prod", testSpec())
	if err != nil {
		t.Fatalf("Submit() should succeed after retrying the 500: %v", err)
	}
	if h.QueryID != "q-1" || h.ResultID != "r-1" {
		t.Errorf("unexpected handle: %+v", h)
	}
}

func TestClient_RequestHeaders(t *testing.T) {
	var gotKey, gotAgent, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Team-Key")
		gotAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "q-1"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.CreateQuery(context.Background(), "prod", testSpec()); err != nil {
		t.Fatalf("CreateQuery() error: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("X-Team-Key = %q, want %q", gotKey, "test-key")
	}
	if gotAgent != "eventquery-client/1.0" {
		t.Errorf("User-Agent = %q, want %q", gotAgent, "eventquery-client/1.0")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want %q", gotAccept, "application/json")
	}
}

func TestClient_RateLimitHeadersTracked(t *testing.T) {
	mock := testutil.NewMockQueryService()
	defer mock.Close()
	mock.SetRateLimitRemaining(75)
	c := newTestClient(t, mock.URL())

	if _, err := c.CreateQuery(context.Background(), "prod", testSpec()); err != nil {
		t.Fatalf("CreateQuery() error: %v", err)
	}

	state, err := c.rateLimiter.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error: %v", err)
	}
	if state.Remaining != 75 {
		t.Errorf("Remaining = %d, want 75", state.Remaining)
	}
	if !state.IsHealthy {
		t.Error("a budget of 75 is healthy")
	}
}
