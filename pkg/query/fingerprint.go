package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint returns a deterministic identity for the specification:
// the hex SHA-256 of its canonical JSON encoding, plus the series flag.
// Two specs with equal fingerprints describe the same query, so a cached
// result for one is valid for the other, provided the window is absolute.
// Callers should pin the window first; a relative window fingerprints the
// relative seconds value, not the instants it will resolve to.
func (s *Spec) Fingerprint() (string, error) {
	// encoding/json marshals struct fields in declaration order and map
	// keys sorted, so Marshal is already canonical for Spec.
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal spec: %w", err)
	}
	h := sha256.New()
	h.Write(data)
	if s.DisableSeries {
		h.Write([]byte("|disable_series"))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
