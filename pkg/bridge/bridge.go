// Package bridge coordinates cache lookups and GitHub fetches.
//
// A Coordinator answers Resolve(username, action) from the cache store when a
// fresh record exists and otherwise fetches from GitHub, persisting
// successful responses. Upstream errors are passed through with their status
// and are never cached. Cache failures are logged and treated as misses.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/gh-api-bridge/pkg/action"
	"github.com/Sternrassler/gh-api-bridge/pkg/cache"
	"github.com/Sternrassler/gh-api-bridge/pkg/client"
	"github.com/Sternrassler/gh-api-bridge/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves a user resource from GitHub.
// A non-nil error means no response was obtained.
type Fetcher interface {
	Fetch(ctx context.Context, username string, act action.Action) (*client.Response, error)
}

var _ Fetcher = (*client.Client)(nil)

// Config holds coordinator configuration.
type Config struct {
	// Actions is the set of recognized actions
	Actions action.Set

	// Coalesce collapses concurrent misses for the same key into one fetch
	Coalesce bool
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		Actions:  action.DefaultSet(),
		Coalesce: true,
	}
}

// Result is the outcome of a resolve.
type Result struct {
	// Code is the HTTP status to report
	Code int

	// Body is the payload, the upstream error body, or an {"error": ...} descriptor
	Body json.RawMessage

	// Cached reports whether Body came from the cache store
	Cached bool

	// Err is set whenever Code is not 200
	Err *Error
}

// Coordinator is the read-through cache in front of GitHub.
type Coordinator struct {
	store   cache.Store
	fetcher Fetcher
	config  Config
	group   singleflight.Group
	logger  zerolog.Logger
}

// New creates a coordinator.
func New(store cache.Store, fetcher Fetcher, cfg Config) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if len(cfg.Actions.List()) == 0 {
		cfg.Actions = action.DefaultSet()
	}

	return &Coordinator{
		store:   store,
		fetcher: fetcher,
		config:  cfg,
		logger:  logging.NewLogger("bridge"),
	}, nil
}

// Actions returns the recognized action set.
func (c *Coordinator) Actions() action.Set {
	return c.config.Actions
}

// Resolve returns the payload for username and rawAction.
//
// Flow:
//  1. Validate action then username (no I/O on failure)
//  2. Serve a fresh cached record if present
//  3. Otherwise fetch from GitHub and cache a successful response
func (c *Coordinator) Resolve(ctx context.Context, username, rawAction string) *Result {
	startTime := time.Now()

	res := c.resolve(ctx, username, rawAction)

	outcome := outcomeOf(res)
	resolveDuration.WithLabelValues(outcome).Observe(time.Since(startTime).Seconds())
	label := rawAction
	if res.Err != nil && res.Err.Kind == KindValidation {
		// Rejected input must not create label cardinality
		label = "invalid"
	} else if label == "" {
		label = action.Default.String()
	}
	resolvesTotal.WithLabelValues(label, outcome).Inc()

	return res
}

func (c *Coordinator) resolve(ctx context.Context, username, rawAction string) *Result {
	act, err := c.config.Actions.Parse(rawAction)
	if err != nil {
		return failed(validationError(err.Error(), err))
	}

	key := cache.Key{Username: username, Action: act}
	if err := key.Validate(); err != nil {
		return failed(validationError(fmt.Sprintf("Invalid username %q", username), err))
	}

	logger := c.logger.With().Str("key", key.String()).Logger()

	record, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		logger.Debug().Msg("Cache hit")
		return &Result{Code: http.StatusOK, Body: record.Data, Cached: true}
	case errors.Is(err, cache.ErrCacheMiss):
		logger.Debug().Msg("Cache miss")
	default:
		logger.Warn().Err(err).Msg("Cache read failed, treating as miss")
	}

	if !c.config.Coalesce {
		return c.fetch(ctx, key, logger)
	}

	// The flight outlives any single waiter, so it must not inherit one
	// caller's cancellation. The client timeout still bounds it.
	flightCtx := context.WithoutCancel(ctx)
	v, _, shared := c.group.Do(key.String(), func() (any, error) {
		return c.fetch(flightCtx, key, logger), nil
	})
	if shared {
		coalescedTotal.Inc()
	}

	// Each waiter gets its own Result
	res := *v.(*Result)
	return &res
}

// fetch calls GitHub and classifies the outcome.
func (c *Coordinator) fetch(ctx context.Context, key cache.Key, logger zerolog.Logger) *Result {
	resp, err := c.fetcher.Fetch(ctx, key.Username, key.Action)
	if err != nil {
		logger.Warn().Err(err).Msg("GitHub request failed")
		return failed(transportError(err))
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn().Int("status", resp.StatusCode).Msg("GitHub returned an error")
		body := resp.Body
		if body == nil {
			body = json.RawMessage("null")
		}
		return &Result{
			Code: resp.StatusCode,
			Body: body,
			Err:  upstreamError(resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	if !cache.IsStructured(resp.Body) {
		logger.Warn().Msg("GitHub returned an unusable 200 body")
		return failed(upstreamError(http.StatusBadGateway, MessageInvalidUpstream))
	}

	if err := c.store.Put(ctx, key, resp.Body); err != nil {
		logger.Warn().Err(err).Msg("Cache write failed")
	}

	logger.Info().Int("bytes", len(resp.Body)).Msg("Fetched from GitHub")
	return &Result{Code: http.StatusOK, Body: resp.Body}
}

// failed builds a Result carrying an {"error": ...} descriptor.
func failed(e *Error) *Result {
	return &Result{Code: e.Code, Body: ErrorBody(e.Message), Err: e}
}

func outcomeOf(res *Result) string {
	switch {
	case res.Err == nil && res.Cached:
		return OutcomeCacheHit
	case res.Err == nil:
		return OutcomeRemoteOK
	case res.Err.Kind == KindValidation:
		return OutcomeInvalid
	case res.Err.Kind == KindTransport:
		return OutcomeTransportError
	default:
		return OutcomeUpstreamError
	}
}
