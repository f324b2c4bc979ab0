package cache

import (
	"encoding/json"
	"time"
)

// Record is one cached GitHub object. Records are replaced wholesale,
// never modified in place.
type Record struct {
	// ExpiresAt is when the record becomes stale (second precision on disk)
	ExpiresAt time.Time

	// Data is the JSON object or array returned by GitHub
	Data json.RawMessage
}

// IsExpiredAt reports whether the record is stale at now.
// A record expiring exactly at now is stale.
func (r *Record) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsExpired returns true if the record has expired.
func (r *Record) IsExpired() bool {
	return r.IsExpiredAt(time.Now())
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (r *Record) TTL() time.Duration {
	ttl := time.Until(r.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
