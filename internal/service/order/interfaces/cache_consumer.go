package interfaces

import (
	"context"
	"encoding/json"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/pkg/mq"
	"github.com/JackieRio/dianpingPlus/internal/service/order/application"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/segmentio/kafka-go"
)

// NewCacheUpdateConsumer 监听缓存更新主题。监听器自己负责重试，消息总是确认。
func NewCacheUpdateConsumer(topic string, reader mq.MessageReader, listener *application.CacheListener) *mq.Consumer {
	return mq.NewConsumer("cache-update-consumer", topic, reader, func(ctx context.Context, msg kafka.Message) error {
		if m, ok := decodeCacheMessage(ctx, msg); ok {
			listener.HandleCacheUpdate(ctx, m)
		}
		return nil
	}, nil)
}

// NewCacheCleanConsumer 监听缓存清理主题
func NewCacheCleanConsumer(topic string, reader mq.MessageReader, listener *application.CacheListener) *mq.Consumer {
	return mq.NewConsumer("cache-clean-consumer", topic, reader, func(ctx context.Context, msg kafka.Message) error {
		if m, ok := decodeCacheMessage(ctx, msg); ok {
			listener.HandleCacheClean(ctx, m)
		}
		return nil
	}, nil)
}

func decodeCacheMessage(ctx context.Context, msg kafka.Message) (*domain.CacheUpdateMessage, bool) {
	var m domain.CacheUpdateMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil || m.CacheKey == "" {
		logger.Ctx(ctx).Error().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).
			Msg("dropping malformed cache message")
		return nil, false
	}
	return &m, true
}
