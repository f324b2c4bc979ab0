// Package batch warms the cache for many users in parallel.
//
// A Warmer distributes (username, action) targets across a bounded worker
// pool and resolves each one through the coordinator, so cached records are
// reused and misses are fetched from GitHub and persisted.
//
// Example usage:
//
//	w := batch.NewWarmer(coordinator, batch.DefaultConfig())
//	summary, err := w.Warm(ctx, batch.Targets([]string{"alice", "bob"}, "_", "repos"))
//
// The warmer:
//   - Bounds concurrency (default 4 workers) to stay within the GitHub quota
//   - Applies a per-target timeout
//   - Stops handing out work once the context is cancelled
//   - Reports a per-target result and an aggregate summary
package batch
