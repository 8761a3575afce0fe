package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/config"
)

// Store represents a generic cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ErrCacheMiss indicates the key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// OrderKey is the cache key of an order snapshot. Every writer of an order deletes it.
func OrderKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

// GetJSON reads key and decodes it into dst. A nil store is a miss.
func GetJSON(ctx context.Context, store Store, key string, dst any) error {
	if store == nil {
		return ErrCacheMiss
	}
	raw, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key. A nil store does nothing.
func SetJSON(ctx context.Context, store Store, key string, v any, ttl time.Duration) error {
	if store == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Set(ctx, key, raw, ttl)
}

// Module provides the cache store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore initialises the configured cache store (redis or noop).
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Cache.Driver {
	case "noop":
		if logger != nil {
			logger.Info("cache disabled; using noop store")
		}
		return noopStore{}, nil
	case "redis":
		return newRedisStore(lc, cfg.Cache, cfg.Observability.ServiceName, logger)
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

type noopStore struct{}

func (noopStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (noopStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (noopStore) Delete(context.Context, string) error {
	return nil
}

// redisStore namespaces every key with the service name so several services can share a
// redis database.
type redisStore struct {
	client     *goredis.Client
	namespace  string
	defaultTTL time.Duration
}

func newRedisStore(lc fx.Lifecycle, cfg config.Cache, namespace string, logger *zap.Logger) (Store, error) {
	opts := &goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := goredis.NewClient(opts)
	store := &redisStore{client: client, namespace: namespace, defaultTTL: cfg.DefaultTTL}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}
			if logger != nil {
				logger.Info("redis cache connected", zap.String("addr", cfg.Redis.Addr))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if logger != nil {
				logger.Info("closing redis cache")
			}
			return client.Close()
		},
	})

	return store, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}
	res, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *redisStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}
