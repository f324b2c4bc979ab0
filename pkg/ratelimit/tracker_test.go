package ratelimit

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestTracker() *Tracker {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewTracker(nil, logger)
}

func rateHeaders(limit, remaining string, reset time.Time) http.Header {
	h := http.Header{}
	if limit != "" {
		h.Set(HeaderLimit, limit)
	}
	if remaining != "" {
		h.Set(HeaderRemaining, remaining)
	}
	if !reset.IsZero() {
		h.Set(HeaderReset, strconv.FormatInt(reset.Unix(), 10))
	}
	return h
}

func TestTracker_GetState_Unknown(t *testing.T) {
	tracker := newTestTracker()

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Known() {
		t.Error("state should be unknown before any response")
	}

	allowed, _, err := tracker.ShouldAllowRequest(context.Background())
	if err != nil {
		t.Fatalf("ShouldAllowRequest failed: %v", err)
	}
	if !allowed {
		t.Error("unknown state must allow requests")
	}
}

func TestTracker_UpdateFromHeaders_ValidHeaders(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	tests := []struct {
		name          string
		limit         string
		remaining     string
		wantLimit     int
		wantRemaining int
		wantAllowed   bool
	}{
		{name: "healthy", limit: "60", remaining: "58", wantLimit: 60, wantRemaining: 58, wantAllowed: true},
		{name: "low", limit: "60", remaining: "3", wantLimit: 60, wantRemaining: 3, wantAllowed: true},
		{name: "exhausted", limit: "60", remaining: "0", wantLimit: 60, wantRemaining: 0, wantAllowed: false},
		{name: "limit header missing", limit: "", remaining: "12", wantLimit: 12, wantRemaining: 12, wantAllowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTestTracker()
			ctx := context.Background()

			if err := tracker.UpdateFromHeaders(ctx, rateHeaders(tt.limit, tt.remaining, reset)); err != nil {
				t.Fatalf("UpdateFromHeaders failed: %v", err)
			}

			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState failed: %v", err)
			}
			if state.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", state.Limit, tt.wantLimit)
			}
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
			if !state.ResetAt.Equal(reset) {
				t.Errorf("ResetAt = %v, want %v", state.ResetAt, reset)
			}

			allowed, wait, err := tracker.ShouldAllowRequest(ctx)
			if err != nil {
				t.Fatalf("ShouldAllowRequest failed: %v", err)
			}
			if allowed != tt.wantAllowed {
				t.Errorf("allowed = %v, want %v", allowed, tt.wantAllowed)
			}
			if !allowed && wait <= 0 {
				t.Errorf("blocked request should report a positive wait, got %v", wait)
			}
		})
	}
}

func TestTracker_UpdateFromHeaders_InvalidHeaders(t *testing.T) {
	reset := time.Now().Add(time.Minute)

	tests := []struct {
		name        string
		headers     http.Header
		shouldError bool
	}{
		{
			name:        "no rate limit headers",
			headers:     http.Header{},
			shouldError: false,
		},
		{
			name:        "invalid remaining header",
			headers:     rateHeaders("60", "invalid", reset),
			shouldError: true,
		},
		{
			name: "invalid reset header",
			headers: http.Header{
				HeaderRemaining: []string{"10"},
				HeaderReset:     []string{"soon"},
			},
			shouldError: true,
		},
		{
			name:        "missing reset header",
			headers:     rateHeaders("60", "10", time.Time{}),
			shouldError: true,
		},
		{
			name:        "invalid limit header",
			headers:     rateHeaders("lots", "10", reset),
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTestTracker()
			err := tracker.UpdateFromHeaders(context.Background(), tt.headers)

			if tt.shouldError && err == nil {
				t.Error("Expected error but got nil")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestTracker_WindowReset(t *testing.T) {
	tracker := newTestTracker()
	ctx := context.Background()
	now := time.Now()
	tracker.now = func() time.Time { return now }

	if err := tracker.UpdateFromHeaders(ctx, rateHeaders("60", "0", now.Add(time.Minute))); err != nil {
		t.Fatalf("UpdateFromHeaders failed: %v", err)
	}
	if allowed, _, _ := tracker.ShouldAllowRequest(ctx); allowed {
		t.Fatal("request should be blocked while exhausted")
	}

	tracker.now = func() time.Time { return now.Add(2 * time.Minute) }
	if allowed, _, _ := tracker.ShouldAllowRequest(ctx); !allowed {
		t.Error("request should be allowed after the window resets")
	}
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	tracker := newTestTracker()
	ctx := context.Background()
	reset := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = tracker.UpdateFromHeaders(ctx, rateHeaders("60", strconv.Itoa(i), reset))
			_, _, _ = tracker.ShouldAllowRequest(ctx)
		}(i)
	}
	wg.Wait()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Remaining < 1 || state.Remaining > 20 {
		t.Errorf("Remaining = %d, want a value written by one of the updates", state.Remaining)
	}
}
