// Package client provides the HTTP client for the hosted analytical
// event-query service: it creates persisted query resources, starts query
// executions, and polls results, with rate limiting, retry, and error
// classification. It is the concrete execution collaborator consumed by the
// pagination engine.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/probemetrics/eventquery-client/pkg/cache"
	"github.com/probemetrics/eventquery-client/pkg/logging"
	"github.com/probemetrics/eventquery-client/pkg/pagination"
	"github.com/probemetrics/eventquery-client/pkg/query"
	"github.com/probemetrics/eventquery-client/pkg/ratelimit"
)

// DefaultBaseURL is the production query service endpoint.
const DefaultBaseURL = "https://api.probemetrics.io"

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventquery_requests_total",
		Help: "Total query service requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventquery_request_duration_seconds",
		Help:    "Query service request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventquery_errors_total",
		Help: "Total query service errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the query service (default DefaultBaseURL).
	BaseURL string

	// APIKey authenticates every request (REQUIRED).
	APIKey string

	// UserAgent identifies the integration.
	UserAgent string

	// Redis, when set, enables process-shared rate limit state and the
	// completed-result cache. The client works without it.
	Redis *redis.Client

	// HTTPTimeout bounds a single HTTP exchange.
	HTTPTimeout time.Duration

	// ResultCacheTTL bounds retention of cached completed results.
	ResultCacheTTL time.Duration

	// DisableResultCache turns the result cache off even with Redis set.
	DisableResultCache bool
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		APIKey:         apiKey,
		UserAgent:      "eventquery-client/1.0",
		HTTPTimeout:    30 * time.Second,
		ResultCacheTTL: cache.DefaultTTL,
	}
}

// Client is the query service HTTP client. It implements
// pagination.Executor.
type Client struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
}

// New creates a new query service client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	logger := logging.NewLogger("eventquery-client")

	var resultCache *cache.Manager
	if cfg.Redis != nil && !cfg.DisableResultCache {
		resultCache = cache.NewManager(cfg.Redis, cfg.ResultCacheTTL)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		config:      cfg,
		logger:      logger,
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger),
		cache:       resultCache,
	}, nil
}

// createResponse is the body returned by resource-creation endpoints.
type createResponse struct {
	ID string `json:"id"`
}

// QueryResultResponse is the body returned by the query-result endpoint.
type QueryResultResponse struct {
	ID       string `json:"id"`
	Complete bool   `json:"complete"`
	Data     struct {
		Results []struct {
			Data query.Row `json:"data"`
		} `json:"results"`
	} `json:"data"`
}

// CreateQuery creates a persisted query resource for a dataset and returns
// its id. The service retains these resources; the client never deletes
// them.
func (c *Client) CreateQuery(ctx context.Context, dataset string, spec *query.Spec) (string, error) {
	var resp createResponse
	endpoint := "/1/queries/" + dataset
	if err := c.do(ctx, http.MethodPost, endpoint, spec, &resp); err != nil {
		return "", fmt.Errorf("create query: %w", err)
	}
	return resp.ID, nil
}

// CreateQueryResult starts executing a previously created query and returns
// the execution id to poll. disableSeries suppresses time-series output,
// which raises the service's per-query row ceiling.
func (c *Client) CreateQueryResult(ctx context.Context, dataset, queryID string, disableSeries bool) (string, error) {
	body := map[string]any{
		"query_id":       queryID,
		"disable_series": disableSeries,
	}
	var resp createResponse
	endpoint := "/1/query_results/" + dataset
	if err := c.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return "", fmt.Errorf("create query result: %w", err)
	}
	return resp.ID, nil
}

// GetQueryResult polls a query execution.
func (c *Client) GetQueryResult(ctx context.Context, dataset, resultID string) (*QueryResultResponse, error) {
	var resp QueryResultResponse
	endpoint := "/1/query_results/" + dataset + "/" + resultID
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("get query result: %w", err)
	}
	return &resp, nil
}

// Submit implements pagination.Executor. It creates the query resource and
// starts its execution. Each call persists a new query resource on the
// remote service as a side effect.
func (c *Client) Submit(ctx context.Context, dataset string, spec *query.Spec) (pagination.Handle, error) {
	queryID, err := c.CreateQuery(ctx, dataset, spec)
	if err != nil {
		return pagination.Handle{}, err
	}

	resultID, err := c.CreateQueryResult(ctx, dataset, queryID, spec.DisableSeries)
	if err != nil {
		return pagination.Handle{}, err
	}

	c.logger.Debug().
		Str("dataset", dataset).
		Str("query_id", queryID).
		Str("result_id", resultID).
		Msg("Query submitted")

	return pagination.Handle{
		Dataset:  dataset,
		QueryID:  queryID,
		ResultID: resultID,
	}, nil
}

// Poll implements pagination.Executor.
func (c *Client) Poll(ctx context.Context, h pagination.Handle) (*pagination.PollResult, error) {
	resp, err := c.GetQueryResult(ctx, h.Dataset, h.ResultID)
	if err != nil {
		return nil, err
	}

	result := &pagination.PollResult{Complete: resp.Complete}
	if resp.Complete {
		rows := make([]query.Row, 0, len(resp.Data.Results))
		for _, r := range resp.Data.Results {
			rows = append(rows, r.Data)
		}
		result.Rows = rows
	}
	return result, nil
}

// ExecuteQuery runs one query to completion: submit, then poll at
// pollInterval until the context expires. When the result cache is enabled
// and the spec's window is absolute, completed results are served from and
// stored to the cache by spec fingerprint.
func (c *Client) ExecuteQuery(ctx context.Context, dataset string, spec *query.Spec, pollInterval time.Duration) ([]query.Row, error) {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	var fingerprint string
	if c.cache != nil && spec.HasAbsoluteWindow() {
		fp, err := spec.Fingerprint()
		if err == nil {
			fingerprint = fp
			rows, err := c.cache.Get(ctx, fingerprint)
			if err == nil {
				c.logger.Debug().
					Str("dataset", dataset).
					Str("fingerprint", fingerprint).
					Msg("Result cache hit")
				return rows, nil
			}
			if err != cache.ErrCacheMiss {
				c.logger.Warn().Err(err).Msg("Result cache get failed")
			}
		}
	}

	h, err := c.Submit(ctx, dataset, spec)
	if err != nil {
		return nil, err
	}

	for {
		res, err := c.Poll(ctx, h)
		if err != nil {
			return nil, err
		}
		if res.Complete {
			if fingerprint != "" {
				if err := c.cache.Set(ctx, fingerprint, res.Rows); err != nil {
					c.logger.Warn().Err(err).Msg("Result cache set failed")
				}
			}
			return res.Rows, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("query poll loop: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// do performs one JSON request against the service: rate-limit gate, HTTP
// exchange with retry, rate-limit header tracking, error classification, and
// response decoding.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return &APIError{
			StatusCode: http.StatusTooManyRequests,
			ErrorClass: ErrorClassRateLimit,
			Message:    "request blocked: rate limit critical",
		}
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	return retryWithBackoff(ctx, c.logger, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("X-Team-Key", c.config.APIKey)
		req.Header.Set("Accept", "application/json")
		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        err,
			}
		}
		defer resp.Body.Close()

		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}

		requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			errClass := classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()

			message := resp.Status
			if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && len(data) > 0 {
				var apiBody struct {
					Error string `json:"error"`
				}
				if json.Unmarshal(data, &apiBody) == nil && apiBody.Error != "" {
					message = apiBody.Error
				}
			}

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Query service request error")

			return &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: errClass,
				Message:    message,
			}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	})
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
