package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// GitHub rate limit response headers.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Prometheus metrics for rate limit tracking.
var (
	githubRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghbridge_github_rate_limit_remaining",
		Help: "Requests remaining in the current GitHub rate limit window",
	})

	githubRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghbridge_rate_limit_blocks_total",
		Help: "Total number of outbound requests blocked because the GitHub quota is exhausted",
	})
)

// Tracker monitors the GitHub rate limit and gates requests.
// Without Redis the state lives in process memory.
type Tracker struct {
	redis  *redis.Client
	local  atomic.Pointer[State]
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a new rate limit tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// GetState returns the current rate limit state.
// Returns an unknown (allowing) state if nothing has been observed yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	if t.redis == nil {
		if s := t.local.Load(); s != nil {
			cp := *s
			return &cp, nil
		}
		return &State{}, nil
	}

	raw, err := t.redis.Get(ctx, RedisKeyState).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			t.logger.Debug().Msg("No rate limit state in Redis, assuming healthy")
			return &State{}, nil
		}
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parse rate limit state: %w", err)
	}
	return &state, nil
}

// UpdateFromHeaders parses GitHub rate limit headers and records the new state.
// Responses without rate limit headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	resetEpoch, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	limit := remain
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	state := &State{
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    time.Unix(resetEpoch, 0),
		LastUpdate: t.now(),
	}

	if t.redis == nil {
		t.local.Store(state)
	} else {
		raw, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshal rate limit state: %w", err)
		}
		// Keep the state a little past the reset so a stale window cannot block forever
		ttl := time.Until(state.ResetAt) + time.Minute
		if ttl < time.Minute {
			ttl = time.Minute
		}
		if err := t.redis.Set(ctx, RedisKeyState, raw, ttl).Err(); err != nil {
			return fmt.Errorf("store rate limit state in redis: %w", err)
		}
	}

	githubRateLimitRemaining.Set(float64(remain))

	switch {
	case state.ExhaustedAt(t.now()):
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("GitHub rate limit exhausted - outbound requests will be blocked")
	case state.NeedsWarning():
		t.logger.Warn().
			Int("remaining", remain).
			Int("limit", limit).
			Time("reset_at", state.ResetAt).
			Msg("GitHub rate limit running low")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Int("limit", limit).
			Time("reset_at", state.ResetAt).
			Msg("GitHub rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether an outbound request may be sent.
// When blocked, the returned duration is the time until the window resets.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, time.Duration, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.ExhaustedAt(t.now()) {
		wait := state.ResetAt.Sub(t.now())
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", wait).
			Msg("GitHub rate limit exhausted - blocking request")
		githubRateLimitBlocksTotal.Inc()
		return false, wait, nil
	}

	return true, 0, nil
}
