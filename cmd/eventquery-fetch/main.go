package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/probemetrics/eventquery-client/pkg/client"
	"github.com/probemetrics/eventquery-client/pkg/logging"
	"github.com/probemetrics/eventquery-client/pkg/pagination"
	"github.com/probemetrics/eventquery-client/pkg/query"
)

func main() {
	// Configuration from flags, falling back to environment
	var (
		apiKey     = flag.String("api-key", os.Getenv("EVENTQUERY_API_KEY"), "API key (or EVENTQUERY_API_KEY)")
		baseURL    = flag.String("base-url", getEnv("EVENTQUERY_BASE_URL", client.DefaultBaseURL), "query service base URL")
		dataset    = flag.String("dataset", "", "dataset slug to query (required)")
		calcOp     = flag.String("calc", "COUNT", "calculation, e.g. COUNT or AVG:duration_ms")
		breakdowns = flag.String("breakdowns", "", "comma-separated breakdown columns")
		timeRange  = flag.Int("time-range", query.DefaultTimeRange, "relative window in seconds")
		sortOrder  = flag.String("sort-order", "descending", "paging direction: ascending or descending")
		maxResults = flag.Int("max-results", 0, "cap on unique rows (0 = library default)")
		maxPages   = flag.Int("max-pages", 0, "cap on page fetches (0 = library default)")
		redisURL   = flag.String("redis-url", os.Getenv("REDIS_URL"), "Redis address for shared rate-limit state (optional)")
		logLevel   = flag.String("log-level", getEnv("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	)
	flag.Parse()

	logging.Setup(logging.Config{Level: logging.LogLevel(*logLevel), Pretty: true})

	if *apiKey == "" {
		log.Fatal("An API key is required: pass -api-key or set EVENTQUERY_API_KEY")
	}
	if *dataset == "" {
		log.Fatal("A dataset is required: pass -dataset")
	}

	calc, err := parseCalculation(*calcOp)
	if err != nil {
		log.Fatalf("Invalid -calc: %v", err)
	}

	cfg := client.DefaultConfig(*apiKey)
	cfg.BaseURL = *baseURL

	if *redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: *redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", *redisURL, err)
		}
		defer redisClient.Close()
		cfg.Redis = redisClient
	}

	c, err := client.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	spec := &query.Spec{
		TimeRange:    *timeRange,
		Calculations: []query.Calculation{calc},
	}
	if *breakdowns != "" {
		spec.Breakdowns = strings.Split(*breakdowns, ",")
	}

	opts := pagination.Options{
		SortOrder:  query.SortOrder(*sortOrder),
		MaxResults: *maxResults,
		MaxPages:   *maxPages,
		OnPage: func(page, cumulative int) {
			fmt.Fprintf(os.Stderr, "page %d fetched, %d rows so far\n", page, cumulative)
		},
	}

	start := time.Now()
	result, err := pagination.New(c).Fetch(context.Background(), *dataset, spec, opts)
	if result != nil {
		writeRows(result.Rows)
	}
	if err != nil {
		log.Fatalf("Paginated fetch failed after %d pages: %v", pages(result), err)
	}

	fmt.Fprintf(os.Stderr, "done: status=%s pages=%d rows=%d duplicates=%d duration=%s\n",
		result.Status, result.Pages, len(result.Rows), result.Duplicates, time.Since(start).Round(time.Millisecond))

	if !result.Status.Complete() {
		os.Exit(2)
	}
}

// parseCalculation understands "COUNT" and "OP:column" forms.
func parseCalculation(s string) (query.Calculation, error) {
	op, column, found := strings.Cut(s, ":")
	calc := query.Calculation{Op: query.CalcOp(strings.ToUpper(op))}
	if found {
		calc.Column = column
	}
	if calc.Op != query.CalcCount && calc.Column == "" {
		return query.Calculation{}, fmt.Errorf("calculation %q needs a column, e.g. %s:duration_ms", op, op)
	}
	return calc, nil
}

func writeRows(rows []query.Row) {
	enc := json.NewEncoder(os.Stdout)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			log.Fatalf("Failed to write row: %v", err)
		}
	}
}

func pages(r *pagination.Result) int {
	if r == nil {
		return 0
	}
	return r.Pages
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
