package port

import (
	"context"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
)

// CacheStore 是被维护的缓存本身
type CacheStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheMessagePublisher 发布缓存变更消息
type CacheMessagePublisher interface {
	PublishUpdate(ctx context.Context, msg *domain.CacheUpdateMessage) error
	PublishClean(ctx context.Context, msg *domain.CacheUpdateMessage) error
	// ScheduleRetry 让消息在 delay 之后重新出现在更新通道上
	ScheduleRetry(ctx context.Context, msg *domain.CacheUpdateMessage, delay time.Duration) error
}
