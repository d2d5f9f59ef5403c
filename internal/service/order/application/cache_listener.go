// internal/service/order/application/cache_listener.go
package application

import (
	"context"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/pkg/metrics"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
	"github.com/pkg/errors"
)

// CacheListener 应用缓存变更消息。两个处理方法都总是确认消息，
// 失败的更新通过延迟主题重试，重试耗尽后转为清理。
type CacheListener struct {
	store     port.CacheStore
	publisher port.CacheMessagePublisher
	metrics   *metrics.Metrics
}

func NewCacheListener(store port.CacheStore, publisher port.CacheMessagePublisher, m *metrics.Metrics) *CacheListener {
	return &CacheListener{store: store, publisher: publisher, metrics: m}
}

// HandleCacheUpdate 处理更新通道上的消息
func (l *CacheListener) HandleCacheUpdate(ctx context.Context, msg *domain.CacheUpdateMessage) {
	err := l.apply(ctx, msg)
	if err == nil {
		l.record("update", msg.Type, "ok")
		return
	}

	log := logger.Ctx(ctx).With().Str("cacheKey", msg.CacheKey).Str("type", string(msg.Type)).
		Int("retryCount", msg.RetryCount).Logger()

	if msg.CanRetry() {
		msg.IncrementRetry()
		delay := msg.RetryDelay()
		serr := l.publisher.ScheduleRetry(ctx, msg, delay)
		if serr == nil {
			log.Warn().Err(err).Dur("delay", delay).Msg("cache mutation failed, retry scheduled")
			l.record("update", msg.Type, "retry")
			return
		}
		log.Error().Err(serr).Msg("failed to schedule cache retry")
	}

	log.Error().Err(err).Msg("cache mutation failed, sending clean message")
	l.record("update", msg.Type, "cleanup")
	clean := domain.NewCacheDelete(msg.CacheKey, msg.MaxRetries, time.Now())
	if perr := l.publisher.PublishClean(ctx, clean); perr != nil {
		log.Error().Err(perr).Msg("failed to publish cache clean message")
	}
}

// HandleCacheClean 处理清理通道上的消息，删除失败只记录日志
func (l *CacheListener) HandleCacheClean(ctx context.Context, msg *domain.CacheUpdateMessage) {
	if err := l.store.Delete(ctx, msg.CacheKey); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("cacheKey", msg.CacheKey).Msg("failed to clean cache")
		l.record("clean", domain.CacheOperationDelete, "fail")
		return
	}
	l.record("clean", domain.CacheOperationDelete, "ok")
}

func (l *CacheListener) apply(ctx context.Context, msg *domain.CacheUpdateMessage) error {
	switch msg.Type {
	case domain.CacheOperationUpdate:
		return l.store.Set(ctx, msg.CacheKey, msg.CacheValue, msg.TTL())
	case domain.CacheOperationDelete:
		return l.store.Delete(ctx, msg.CacheKey)
	default:
		return errors.Errorf("unknown cache operation %q", msg.Type)
	}
}

func (l *CacheListener) record(channel string, kind domain.CacheOperation, result string) {
	if l.metrics != nil {
		l.metrics.CacheMutationTotal.WithLabelValues(channel, string(kind), result).Inc()
	}
}
