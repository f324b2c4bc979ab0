package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/gh-api-bridge/pkg/bridge"
	"github.com/rs/zerolog/log"
)

// Resolver is implemented by bridge.Coordinator.
type Resolver interface {
	Resolve(ctx context.Context, username, action string) *bridge.Result
}

// Config holds warmer configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel resolves.
	// Unauthenticated GitHub allows 60 requests per hour, so keep this small.
	MaxConcurrency int

	// Timeout per target
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// Target is one (username, action) pair to warm.
type Target struct {
	Username string
	Action   string
}

// String returns username.action.
func (t Target) String() string {
	a := t.Action
	if a == "" {
		a = "_"
	}
	return t.Username + "." + a
}

// Targets builds the cross product of usernames and actions.
func Targets(usernames []string, actions ...string) []Target {
	if len(actions) == 0 {
		actions = []string{""}
	}
	out := make([]Target, 0, len(usernames)*len(actions))
	for _, u := range usernames {
		for _, a := range actions {
			out = append(out, Target{Username: u, Action: a})
		}
	}
	return out
}

// Result is the outcome of warming one target.
type Result struct {
	Target Target
	Code   int
	Cached bool
	Err    error
}

// Summary aggregates a warm run.
type Summary struct {
	Results  []Result
	Cached   int
	Fetched  int
	Failed   int
	Duration time.Duration
}

// Warmer resolves targets with a bounded worker pool.
type Warmer struct {
	resolver Resolver
	config   Config
}

// NewWarmer creates a new warmer.
func NewWarmer(resolver Resolver, config Config) *Warmer {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Warmer{
		resolver: resolver,
		config:   config,
	}
}

// Warm resolves every target. Results are returned in target order.
// Failed targets are reported in the summary; the error is non-nil only
// when the context ended before all targets were attempted.
func (w *Warmer) Warm(ctx context.Context, targets []Target) (*Summary, error) {
	start := time.Now()

	log.Info().
		Int("targets", len(targets)).
		Int("workers", w.config.MaxConcurrency).
		Msg("Starting cache warm-up")

	queue := make(chan int, len(targets))
	for i := range targets {
		queue <- i
	}
	close(queue)

	results := make([]Result, len(targets))
	attempted := make([]bool, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < w.config.MaxConcurrency; i++ {
		wg.Add(1)
		go w.worker(ctx, i, targets, queue, results, attempted, &wg)
	}
	wg.Wait()

	summary := &Summary{Results: results, Duration: time.Since(start)}
	skipped := 0
	for i, r := range results {
		switch {
		case !attempted[i]:
			skipped++
		case r.Err != nil:
			summary.Failed++
		case r.Cached:
			summary.Cached++
		default:
			summary.Fetched++
		}
	}

	log.Info().
		Int("cached", summary.Cached).
		Int("fetched", summary.Fetched).
		Int("failed", summary.Failed).
		Int("skipped", skipped).
		Dur("duration", summary.Duration).
		Msg("Cache warm-up complete")

	if skipped > 0 {
		return summary, fmt.Errorf("warm-up interrupted (%d/%d targets skipped): %w", skipped, len(targets), ctx.Err())
	}
	return summary, nil
}

// worker processes target indexes from the queue. Each index is owned by
// exactly one worker, so results can be written without locking.
func (w *Warmer) worker(ctx context.Context, workerID int, targets []Target, queue <-chan int, results []Result, attempted []bool, wg *sync.WaitGroup) {
	defer wg.Done()
	processed := 0

	for i := range queue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		target := targets[i]
		targetCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
		res := w.resolver.Resolve(targetCtx, target.Username, target.Action)
		cancel()

		results[i] = Result{Target: target, Code: res.Code, Cached: res.Cached}
		if res.Err != nil {
			results[i].Err = res.Err
			log.Warn().
				Err(res.Err).
				Int("worker_id", workerID).
				Str("target", target.String()).
				Msg("Warm-up target failed")
		}
		attempted[i] = true
		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Worker completed")
	}
}
