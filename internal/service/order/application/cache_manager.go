// internal/service/order/application/cache_manager.go
package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
)

// CacheManager 是业务代码变更缓存的唯一入口。
// 所有方法都不向调用方返回错误，失败时退化为在清理通道上发送删除。
type CacheManager struct {
	store      port.CacheStore
	publisher  port.CacheMessagePublisher
	maxRetries int
	now        func() time.Time
}

func NewCacheManager(store port.CacheStore, publisher port.CacheMessagePublisher, maxRetries int) *CacheManager {
	if maxRetries <= 0 {
		maxRetries = domain.DefaultCacheMaxRetries
	}
	return &CacheManager{store: store, publisher: publisher, maxRetries: maxRetries, now: time.Now}
}

// UpdateCacheWithMessage 先同步写缓存，再通过更新通道广播同一份值。
// 写缓存或发消息失败都退化为清理。
func (c *CacheManager) UpdateCacheWithMessage(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("cacheKey", key).Msg("failed to marshal cache value")
		c.SendCacheCleanMessage(ctx, key)
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("cacheKey", key).Msg("failed to update cache, falling back to clean")
		c.SendCacheCleanMessage(ctx, key)
		return
	}
	msg := domain.NewCacheUpdate(key, raw, ttl, c.maxRetries, c.now())
	if err := c.publisher.PublishUpdate(ctx, msg); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("cacheKey", key).Msg("failed to publish cache update, falling back to clean")
		c.SendCacheCleanMessage(ctx, key)
	}
}

// DeleteCacheWithMessage 先同步删缓存，再通过更新通道广播删除
func (c *CacheManager) DeleteCacheWithMessage(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("cacheKey", key).Msg("failed to delete cache, falling back to clean")
		c.SendCacheCleanMessage(ctx, key)
		return
	}
	msg := domain.NewCacheDelete(key, c.maxRetries, c.now())
	if err := c.publisher.PublishUpdate(ctx, msg); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("cacheKey", key).Msg("failed to publish cache delete, falling back to clean")
		c.SendCacheCleanMessage(ctx, key)
	}
}

// EvictVoucher 让某张券的详情缓存和库存缓存失效
func (c *CacheManager) EvictVoucher(ctx context.Context, voucherID int64) {
	c.DeleteCacheWithMessage(ctx, domain.VoucherCacheKey(voucherID))
	c.DeleteCacheWithMessage(ctx, domain.SeckillStockCacheKey(voucherID))
}

// SendCacheCleanMessage 在清理通道上发送删除，失败只记录日志
func (c *CacheManager) SendCacheCleanMessage(ctx context.Context, key string) {
	msg := domain.NewCacheDelete(key, c.maxRetries, c.now())
	if err := c.publisher.PublishClean(ctx, msg); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("cacheKey", key).Msg("failed to publish cache clean message")
	}
}

// UpdateCache 直接写缓存
func (c *CacheManager) UpdateCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("cacheKey", key).Msg("failed to marshal cache value")
		c.SendCacheCleanMessage(ctx, key)
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("cacheKey", key).Msg("failed to update cache, falling back to clean")
		c.SendCacheCleanMessage(ctx, key)
	}
}

// DeleteCache 直接删缓存
func (c *CacheManager) DeleteCache(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("cacheKey", key).Msg("failed to delete cache, falling back to clean")
		c.SendCacheCleanMessage(ctx, key)
	}
}
