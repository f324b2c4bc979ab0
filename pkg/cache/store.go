package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultTTL is how long a fetched object stays fresh (5 hours).
const DefaultTTL = 5 * time.Hour

var (
	// ErrCacheMiss indicates the requested key was not found in cache or had expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored record is corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store maps keys to records on a persistent medium.
//
// Get returns ErrCacheMiss when no fresh record exists and evicts expired
// records it encounters. Put replaces any existing record atomically so a
// concurrent Get never observes a partial write. Delete is idempotent.
type Store interface {
	Get(ctx context.Context, key Key) (*Record, error)
	Put(ctx context.Context, key Key, data json.RawMessage) error
	Delete(ctx context.Context, key Key) error
	Ping(ctx context.Context) error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)
