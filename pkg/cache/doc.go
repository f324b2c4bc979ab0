// Package cache provides the persisted, compressed cache for GitHub API
// responses.
//
// A record holds one GitHub object together with its absolute expiry. Records
// are serialized to JSON and compressed with raw DEFLATE before they reach a
// storage medium:
//
//	deflate({"expired_at": 1700018000, "data": {...}})
//
// This is the same layout the original PHP bridge wrote to its storage
// directory, so existing cache files stay readable.
//
// # Basic Usage
//
//	store, err := cache.NewFileStore("storage", cache.DefaultTTL)
//	if err != nil {
//		return err
//	}
//
//	key := cache.Key{Username: "torvalds", Action: action.Repos}
//
//	rec, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from GitHub, then store.Put(ctx, key, body)
//	}
//
// # Stores
//
//   - FileStore: one file per key (username.action) under a directory,
//     replaced with write-to-temp then rename.
//   - RedisStore: one key per record with a Redis-side TTL, replaced with a
//     single SET.
//
// Both stores evict lazily: an expired record is deleted by the Get that
// observes it. There is no background sweeper.
//
// # Metrics
//
//   - ghbridge_cache_hits_total{layer}
//   - ghbridge_cache_misses_total{layer}
//   - ghbridge_cache_evictions_total{layer}
//   - ghbridge_cache_written_bytes_total{layer}
//   - ghbridge_cache_errors_total{layer, operation}
package cache
