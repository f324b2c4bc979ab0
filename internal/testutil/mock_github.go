// Package testutil provides testing utilities for the GitHub API bridge.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockGitHubResponse defines the behavior for a mock GitHub endpoint response.
type MockGitHubResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockGitHub is a configurable mock GitHub API server for testing.
type MockGitHub struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requestCount      int
	pathCounts        map[string]int
	lastRequestHeader http.Header
}

// NewMockGitHub creates a new mock GitHub server.
func NewMockGitHub() *MockGitHub {
	mock := &MockGitHub{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.EscapedPath()]++
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.EscapedPath()]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockGitHub) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGitHub) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockGitHub) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific escaped path.
func (m *MockGitHub) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockGitHub) SetResponse(path string, resp MockGitHubResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetUserResponse configures /users/{username}.
func (m *MockGitHub) SetUserResponse(username string, resp MockGitHubResponse) {
	m.SetResponse("/users/"+username, resp)
}

// SetReposResponse configures /users/{username}/repos.
func (m *MockGitHub) SetReposResponse(username string, resp MockGitHubResponse) {
	m.SetResponse("/users/"+username+"/repos", resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockGitHub) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetPathCount returns the number of requests made to one escaped path.
func (m *MockGitHub) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockGitHub) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// defaultHandler answers unknown paths the way GitHub does.
func (m *MockGitHub) defaultHandler(w http.ResponseWriter, r *http.Request) {
	for key, value := range rateLimitHeaders(60, 59) {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"message":"Not Found","documentation_url":"https://docs.github.com/rest"}`))
}

func rateLimitHeaders(limit, remaining int) map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(limit),
		"X-RateLimit-Remaining": strconv.Itoa(remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
	}
}

// NewUserResponse creates a 200 OK profile response for username.
func NewUserResponse(username string) MockGitHubResponse {
	return NewJSONResponse(http.StatusOK,
		fmt.Sprintf(`{"login":%q,"id":1,"html_url":"https://github.com/%s","type":"User"}`, username, username))
}

// NewJSONResponse creates a response with GitHub-like headers.
func NewJSONResponse(status int, body string) MockGitHubResponse {
	headers := rateLimitHeaders(60, 59)
	headers["Content-Type"] = "application/json; charset=utf-8"
	return MockGitHubResponse{
		StatusCode: status,
		Body:       body,
		Headers:    headers,
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockGitHubResponse {
	return NewJSONResponse(http.StatusNotFound, `{"message":"Not Found"}`)
}

// NewRateLimitExceededResponse creates the 403 GitHub returns once the quota is spent.
func NewRateLimitExceededResponse() MockGitHubResponse {
	headers := rateLimitHeaders(60, 0)
	headers["Content-Type"] = "application/json; charset=utf-8"
	return MockGitHubResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message":"API rate limit exceeded"}`,
		Headers:    headers,
	}
}

// NewServerErrorResponse creates a 502 Bad Gateway response.
func NewServerErrorResponse() MockGitHubResponse {
	return MockGitHubResponse{
		StatusCode: http.StatusBadGateway,
		Body:       "<html>Bad Gateway</html>",
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}
