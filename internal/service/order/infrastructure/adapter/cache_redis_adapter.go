package adapter

import (
	"context"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/redis"
	"github.com/pkg/errors"
)

// CacheRedisAdapter 是 port.CacheStore 的 Redis 实现
type CacheRedisAdapter struct {
	redisClient *redis.Client
}

func NewCacheRedisAdapter(redisClient *redis.Client) *CacheRedisAdapter {
	return &CacheRedisAdapter{redisClient: redisClient}
}

func (a *CacheRedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := a.redisClient.GetClient().Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to set cache %s", key)
	}
	return nil
}

func (a *CacheRedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.redisClient.GetClient().Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete cache %s", key)
	}
	return nil
}
