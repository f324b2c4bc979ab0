// Package ratelimit tracks the GitHub REST API rate limit and gates outbound
// requests. It monitors the X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers so the bridge stops calling GitHub once the
// unauthenticated quota is spent instead of collecting 403 responses.
package ratelimit

import (
	"time"
)

// RedisKeyState stores the shared rate limit state as JSON.
const RedisKeyState = "ghbridge:rate_limit:state"

// Thresholds for rate limit decisions.
const (
	// RemainingThresholdWarning logs a warning when remaining requests fall below this value.
	RemainingThresholdWarning = 10

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 30
)

// State represents the current GitHub rate limit window.
// With Redis configured this state is shared across all bridge replicas,
// which all consume the same per-IP quota.
type State struct {
	// Limit is the request quota of the window (X-RateLimit-Limit).
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window (X-RateLimit-Remaining).
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets (X-RateLimit-Reset, epoch seconds).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last observed.
	// Zero means no GitHub response has been seen yet.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// Known reports whether the state came from a real response.
func (s *State) Known() bool {
	return !s.LastUpdate.IsZero()
}

// ExhaustedAt returns true if no requests remain and the window has not reset at now.
func (s *State) ExhaustedAt(now time.Time) bool {
	return s.Known() && s.Remaining <= 0 && now.Before(s.ResetAt)
}

// NeedsWarning returns true if the quota is running low but not exhausted.
func (s *State) NeedsWarning() bool {
	return s.Known() && s.Remaining > 0 && s.Remaining < RemainingThresholdWarning
}

// IsHealthy returns true when the quota is comfortably above the warning range.
func (s *State) IsHealthy() bool {
	return !s.Known() || s.Remaining >= RemainingThresholdHealthy
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
