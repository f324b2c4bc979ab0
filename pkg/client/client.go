// Package client provides the outbound GitHub users API client with a
// bounded timeout, rate limit gating, and transport error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/gh-api-bridge/pkg/action"
	"github.com/Sternrassler/gh-api-bridge/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Version is the bridge version advertised in the User-Agent.
	Version = "0.1.0"

	// DefaultUserAgent identifies the bridge to GitHub.
	DefaultUserAgent = "GitHub API bridge v" + Version

	// DefaultBaseURL is the public GitHub REST API.
	DefaultBaseURL = "https://api.github.com"

	// DefaultTimeout bounds a single outbound request.
	DefaultTimeout = 10 * time.Second

	// MaxTimeout is the longest timeout New accepts.
	MaxTimeout = 5 * time.Minute

	// DefaultMaxBodyBytes caps the response body read from GitHub.
	DefaultMaxBodyBytes = 10 << 20
)

// Prometheus metrics for GitHub client operations.
var (
	ghRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghbridge_github_requests_total",
		Help: "Total GitHub requests by action and status",
	}, []string{"action", "status"})

	ghRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghbridge_github_request_duration_seconds",
		Help:    "GitHub request duration in seconds by action",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"action"})

	ghErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghbridge_github_errors_total",
		Help: "Total GitHub errors by class",
	}, []string{"class"})
)

// Response is a completed GitHub response.
type Response struct {
	// StatusCode is the HTTP status returned by GitHub
	StatusCode int

	// Body is the response body when it is valid JSON, nil otherwise
	Body json.RawMessage

	// Header holds the response headers
	Header http.Header
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the GitHub REST API
	BaseURL string

	// User-Agent header sent with every request (GitHub rejects requests without one)
	UserAgent string

	// Timeout bounds each outbound request (REQUIRED, at most MaxTimeout)
	Timeout time.Duration

	// MaxBodyBytes caps the body read from GitHub
	MaxBodyBytes int64

	// Retry applies to transport failures only
	Retry RetryConfig

	// Redis shares rate limit state across replicas (optional)
	Redis *redis.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		UserAgent:    DefaultUserAgent,
		Timeout:      DefaultTimeout,
		MaxBodyBytes: DefaultMaxBodyBytes,
		Retry:        DefaultRetryConfig(),
	}
}

// Client is the GitHub users API client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// New creates a new GitHub client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout is required")
	}
	if cfg.Timeout > MaxTimeout {
		return nil, fmt.Errorf("timeout must be <= %s (got %s)", MaxTimeout, cfg.Timeout)
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	logger := log.With().Str("component", "github-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger),
		config:      cfg,
		logger:      logger,
	}, nil
}

// Fetch performs GET /users/{username}[/{action}] and returns the completed
// response, whatever its status. A non-nil error is always a *TransportError:
// no response was obtained.
func (c *Client) Fetch(ctx context.Context, username string, act action.Action) (*Response, error) {
	label := act.String()

	startTime := time.Now()
	defer func() {
		ghRequestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check rate limit
	allowed, wait, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Rate limit check failed, sending request anyway")
	} else if !allowed {
		ghErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		ghRequestsTotal.WithLabelValues(label, "rate_limited").Inc()
		return nil, &TransportError{
			Class: ErrorClassRateLimit,
			Err:   fmt.Errorf("%w, resets in %s", ErrRateLimited, wait.Round(time.Second)),
		}
	}

	endpoint := c.endpoint(username, act)

	// Step 2: Execute with transport retry
	var resp *Response
	err = retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		var reqErr error
		resp, reqErr = c.do(ctx, endpoint, label)
		return reqErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// do sends one request and reads the whole body.
func (c *Client) do(ctx context.Context, endpoint, label string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Class: ErrorClassNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	c.logger.Debug().
		Str("url", endpoint).
		Msg("Executing GitHub request")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(label, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, c.config.MaxBodyBytes))
	if err != nil {
		return nil, c.transportError(label, fmt.Errorf("read response body: %w", err))
	}

	if err := c.rateLimiter.UpdateFromHeaders(ctx, httpResp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	ghRequestsTotal.WithLabelValues(label, strconv.Itoa(httpResp.StatusCode)).Inc()

	if httpResp.StatusCode != http.StatusOK {
		errClass := classifyStatus(httpResp)
		ghErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("url", endpoint).
			Int("status", httpResp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("GitHub request error")
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
	}
	if json.Valid(raw) {
		resp.Body = json.RawMessage(raw)
	}
	return resp, nil
}

func (c *Client) transportError(label string, err error) *TransportError {
	errClass := classifyTransportError(err)
	ghErrorsTotal.WithLabelValues(string(errClass)).Inc()
	ghRequestsTotal.WithLabelValues(label, "transport_error").Inc()
	c.logger.Error().Err(err).Str("error_class", string(errClass)).Msg("GitHub request failed")
	return &TransportError{Class: errClass, Err: err}
}

// endpoint builds the request URL. The username is path-escaped so it can
// never add path segments.
func (c *Client) endpoint(username string, act action.Action) string {
	return c.baseURL + "/users/" + url.PathEscape(username) + act.Path()
}

// RateLimiter returns the rate limit tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

// SetHTTPClient sets a custom HTTP client (for testing).
// The configured timeout is kept when the custom client has none.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client.Timeout == 0 {
		client.Timeout = c.config.Timeout
	}
	c.httpClient = client
}
