package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/gh-api-bridge/internal/config"
	"github.com/Sternrassler/gh-api-bridge/pkg/bridge"
	"github.com/Sternrassler/gh-api-bridge/pkg/cache"
	"github.com/Sternrassler/gh-api-bridge/pkg/client"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds the wired components for one process.
type app struct {
	store       cache.Store
	client      *client.Client
	coordinator *bridge.Coordinator
	redis       *redis.Client
	logger      zerolog.Logger
}

// newApp builds the store, GitHub client, and coordinator from cfg.
func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{logger: logger}
	cc := cfg.ClientConfig()

	switch cfg.CacheBackend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.store = cache.NewRedisStore(a.redis, cfg.TTL())
		cc.Redis = a.redis
		logger.Info().Str("addr", opts.Addr).Msg("Using Redis cache")
	default:
		fs, err := cache.NewFileStore(cfg.StorageDir, cfg.TTL())
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = fs
		logger.Info().Str("dir", fs.Dir()).Msg("Using file cache")
	}

	gh, err := client.New(cc)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create GitHub client: %w", err)
	}
	a.client = gh

	bc := bridge.DefaultConfig()
	bc.Coalesce = cfg.CoalesceRequests
	a.coordinator, err = bridge.New(a.store, gh, bc)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// Close releases the Redis connection, if any.
func (a *app) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
