package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces cache records in Redis.
const RedisKeyPrefix = "ghbridge:"

// RedisStore keeps compressed records in Redis. Redis expires keys on its
// own; Get still checks the embedded expiry to guard against clock skew
// between replicas.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisStore creates a Redis-backed store whose records live for ttl.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a record by key.
// Returns ErrCacheMiss if the key doesn't exist or the record is expired.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	data, err := s.redis.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(LayerRedis).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(LayerRedis, "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	rec, err := Decode(data)
	if err != nil {
		CacheErrors.WithLabelValues(LayerRedis, "decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if rec.IsExpiredAt(s.now()) {
		_ = s.Delete(ctx, key)
		CacheEvictions.WithLabelValues(LayerRedis).Inc()
		CacheMisses.WithLabelValues(LayerRedis).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(LayerRedis).Inc()
	return rec, nil
}

// Put stores a fresh record. A single SET replaces the previous value
// atomically and carries the Redis-side TTL.
func (s *RedisStore) Put(ctx context.Context, key Key, data json.RawMessage) error {
	if err := key.Validate(); err != nil {
		return err
	}

	blob, err := Encode(&Record{
		ExpiresAt: s.now().Add(s.ttl),
		Data:      data,
	})
	if err != nil {
		CacheErrors.WithLabelValues(LayerRedis, "put").Inc()
		return err
	}

	if err := s.redis.Set(ctx, redisKey(key), blob, s.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues(LayerRedis, "put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheWrittenBytes.WithLabelValues(LayerRedis).Add(float64(len(blob)))
	return nil
}

// Delete removes a record.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.redis.Del(ctx, redisKey(key)).Err(); err != nil {
		CacheErrors.WithLabelValues(LayerRedis, "delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func redisKey(key Key) string {
	return RedisKeyPrefix + key.String()
}
