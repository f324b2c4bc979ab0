package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/gh-api-bridge/internal/testutil"
	"github.com/Sternrassler/gh-api-bridge/pkg/action"
)

// newTestClient creates a client pointed at baseURL.
func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = 2 * time.Second

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "default config",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "empty user agent",
			mutate:      func(c *Config) { c.UserAgent = "" },
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "zero timeout",
			mutate:      func(c *Config) { c.Timeout = 0 },
			expectError: true,
			errorMsg:    "timeout is required",
		},
		{
			name:        "timeout too long",
			mutate:      func(c *Config) { c.Timeout = MaxTimeout + time.Second },
			expectError: true,
			errorMsg:    "timeout must be <=",
		},
		{
			name:        "relative base url",
			mutate:      func(c *Config) { c.BaseURL = "api.github.com" },
			expectError: true,
			errorMsg:    "invalid base url",
		},
		{
			name:        "zero max body falls back",
			mutate:      func(c *Config) { c.MaxBodyBytes = 0 },
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			c, err := New(cfg)
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Error = %q, want it to contain %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.config.MaxBodyBytes <= 0 {
				t.Errorf("MaxBodyBytes = %d, want > 0", c.config.MaxBodyBytes)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.UserAgent != "GitHub API bridge v"+Version {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.Retry.MaxAttempts != 1 {
		t.Errorf("Retry.MaxAttempts = %d, want 1", cfg.Retry.MaxAttempts)
	}
	if cfg.Redis != nil {
		t.Error("Redis should be nil by default")
	}
}

func TestFetch_RequestShape(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetUserResponse("alice", testutil.NewUserResponse("alice"))
	mock.SetReposResponse("alice", testutil.NewJSONResponse(http.StatusOK, `[{"name":"dotfiles"}]`))

	c := newTestClient(t, mock.URL())

	resp, err := c.Fetch(context.Background(), "alice", action.Default)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if mock.GetPathCount("/users/alice") != 1 {
		t.Errorf("Expected one request to /users/alice, got %d", mock.GetPathCount("/users/alice"))
	}

	header := mock.LastRequestHeader()
	if got := header.Get("User-Agent"); got != "GitHub API bridge v0.1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := header.Get("Accept"); got != "application/vnd.github+json" {
		t.Errorf("Accept = %q", got)
	}

	resp, err = c.Fetch(context.Background(), "alice", action.Repos)
	if err != nil {
		t.Fatalf("Fetch repos failed: %v", err)
	}
	if string(resp.Body) != `[{"name":"dotfiles"}]` {
		t.Errorf("Body = %s", resp.Body)
	}
	if mock.GetPathCount("/users/alice/repos") != 1 {
		t.Errorf("Expected one request to /users/alice/repos, got %d", mock.GetPathCount("/users/alice/repos"))
	}
}

func TestFetch_EscapesUsername(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	if _, err := c.Fetch(context.Background(), "a b?c", action.Default); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotPath != "/users/a%20b%3Fc" {
		t.Errorf("path = %q, want /users/a%%20b%%3Fc", gotPath)
	}
}

func TestFetch_PassesThroughErrorStatus(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	c := newTestClient(t, mock.URL())

	// Unknown user falls through to the mock's 404 handler
	resp, err := c.Fetch(context.Background(), "ghost", action.Default)
	if err != nil {
		t.Fatalf("A 404 is a completed response, got error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("Body is not JSON: %v", err)
	}
	if body["message"] != "Not Found" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestFetch_NonJSONBody(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetUserResponse("alice", testutil.NewServerErrorResponse())

	c := newTestClient(t, mock.URL())

	resp, err := c.Fetch(context.Background(), "alice", action.Default)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", resp.StatusCode)
	}
	if resp.Body != nil {
		t.Errorf("Body = %s, want nil for non-JSON", resp.Body)
	}
}

func TestFetch_Timeout(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	slow := testutil.NewUserResponse("alice")
	slow.Delay = time.Second
	mock.SetUserResponse("alice", slow)

	cfg := DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.Timeout = 50 * time.Millisecond
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.Fetch(context.Background(), "alice", action.Default)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *TransportError, got %v", err)
	}
	if te.Class != ErrorClassTimeout {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassTimeout)
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	c := newTestClient(t, baseURL)

	_, err := c.Fetch(context.Background(), "alice", action.Default)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *TransportError, got %v", err)
	}
	if te.Class != ErrorClassConnection {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassConnection)
	}
}

func TestFetch_RateLimitBlock(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetUserResponse("alice", testutil.NewRateLimitExceededResponse())

	c := newTestClient(t, mock.URL())
	ctx := context.Background()

	// The first call is sent and records remaining=0
	resp, err := c.Fetch(ctx, "alice", action.Default)
	if err != nil {
		t.Fatalf("First Fetch failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", resp.StatusCode)
	}

	// The second call is refused locally
	_, err = c.Fetch(ctx, "alice", action.Default)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *TransportError, got %v", err)
	}
	if te.Class != ErrorClassRateLimit {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassRateLimit)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Expected 1 request to GitHub, got %d", mock.GetRequestCount())
	}
}

func TestFetch_MaxBodyBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"login":"alice","bio":"` + strings.Repeat("x", 1024) + `"}`))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.MaxBodyBytes = 64
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := c.Fetch(context.Background(), "alice", action.Default)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.Body != nil {
		t.Errorf("Truncated body should not be valid JSON, got %s", resp.Body)
	}
}

func TestFetch_RetryOnConnectionError(t *testing.T) {
	var calls atomic.Int32
	failing := &testTransport{
		roundTrip: func(req *http.Request) (*http.Response, error) {
			if calls.Add(1) < 3 {
				return nil, &timeoutError{}
			}
			return http.DefaultTransport.RoundTrip(req)
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"login":"alice"}`))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.Retry = RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.SetHTTPClient(&http.Client{Transport: failing})

	resp, err := c.Fetch(context.Background(), "alice", action.Default)
	if err != nil {
		t.Fatalf("Fetch should succeed after retries: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetch_NoRetryOnHTTPStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"unavailable"}`))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.InitialBackoff = time.Millisecond
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := c.Fetch(context.Background(), "alice", action.Default)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("HTTP responses must not be retried, got %d calls", calls.Load())
	}
}

func TestSetHTTPClient_KeepsTimeout(t *testing.T) {
	c := newTestClient(t, DefaultBaseURL)

	custom := &http.Client{}
	c.SetHTTPClient(custom)

	if custom.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want configured 2s", custom.Timeout)
	}
}

// testTransport is a custom RoundTripper for testing.
type testTransport struct {
	roundTrip func(*http.Request) (*http.Response, error)
}

func (t *testTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.roundTrip(req)
}

// timeoutError satisfies net.Error with Timeout() true.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
