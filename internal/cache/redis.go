package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const scanBatch = 500

type redisClient struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedis creates a Redis-backed client and verifies the connection.
func NewRedis(cfg Config) (Client, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "cache: redis ping %s failed", addr)
	}

	return &redisClient{client: rdb, prefix: cfg.Prefix, defaultTTL: cfg.DefaultTTL}, nil
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, prefixed(c.prefix, key)).Result()
	if eris.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", eris.Wrap(err, "cache: redis get")
	}
	return val, nil
}

func (c *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return eris.Wrap(c.client.Set(ctx, prefixed(c.prefix, key), value, ttl).Err(), "cache: redis set")
}

func (c *redisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = prefixed(c.prefix, key)
	}
	return eris.Wrap(c.client.Del(ctx, full...).Err(), "cache: redis delete")
}

func (c *redisClient) Flush(ctx context.Context) error {
	if c.prefix == "" {
		return eris.Wrap(c.client.FlushDB(ctx).Err(), "cache: redis flush")
	}

	iter := c.client.Scan(ctx, 0, c.prefix+":*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return eris.Wrap(err, "cache: redis flush")
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return eris.Wrap(err, "cache: redis scan")
	}
	if len(batch) > 0 {
		return eris.Wrap(c.client.Del(ctx, batch...).Err(), "cache: redis flush")
	}
	return nil
}

func (c *redisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisClient) Close() error {
	return c.client.Close()
}
