package cache

import (
	"time"

	"github.com/probemetrics/eventquery-client/pkg/query"
)

const (
	// DefaultTTL bounds how long a completed result is retained.
	DefaultTTL = 10 * time.Minute

	// KeyPrefix namespaces all result cache keys in Redis.
	KeyPrefix = "eq:result:"
)

// Entry is one cached, completed query result.
type Entry struct {
	// Rows are the aggregated result lines as returned by the service.
	Rows []query.Row `json:"rows"`

	// CachedAt is when the result was stored.
	CachedAt time.Time `json:"cached_at"`

	// ExpiresAt is when the entry stops being served.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the entry has passed its expiry.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TTL returns the remaining time to live, or 0 if expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Key returns the Redis key for a specification fingerprint.
func Key(fingerprint string) string {
	return KeyPrefix + fingerprint
}
