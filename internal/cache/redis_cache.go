package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"hazelinvoice/backend/internal/domain"
)

type RedisMatrixCache struct {
	client *redis.Client
}

func NewRedisMatrixCache(addr string, password string, db int) *RedisMatrixCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisMatrixCache{client: client}
}

func (c *RedisMatrixCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisMatrixCache) Close() error {
	return c.client.Close()
}

func (c *RedisMatrixCache) Get(ctx context.Context, key string) (*domain.MatrixView, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var view domain.MatrixView
	if err := json.Unmarshal([]byte(val), &view); err != nil {
		return nil, false, err
	}
	return &view, true, nil
}

func (c *RedisMatrixCache) Set(ctx context.Context, key string, value *domain.MatrixView, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisMatrixCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	keys := make([]string, 0, 16)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
