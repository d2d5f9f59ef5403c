package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/mq"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// CacheKafkaAdapter 实现了 port.CacheMessagePublisher，
// 重试通过延迟主题投递，由 DelayForwarder 转发回更新主题。
type CacheKafkaAdapter struct {
	updateWriter mq.MessageWriter
	cleanWriter  mq.MessageWriter
	updateTopic  string
	delay        *mq.DelayProducer
}

func NewCacheKafkaAdapter(updateWriter, cleanWriter mq.MessageWriter, updateTopic string, delay *mq.DelayProducer) *CacheKafkaAdapter {
	return &CacheKafkaAdapter{
		updateWriter: updateWriter,
		cleanWriter:  cleanWriter,
		updateTopic:  updateTopic,
		delay:        delay,
	}
}

func (a *CacheKafkaAdapter) PublishUpdate(ctx context.Context, msg *domain.CacheUpdateMessage) error {
	return a.publish(ctx, a.updateWriter, msg)
}

func (a *CacheKafkaAdapter) PublishClean(ctx context.Context, msg *domain.CacheUpdateMessage) error {
	return a.publish(ctx, a.cleanWriter, msg)
}

func (a *CacheKafkaAdapter) ScheduleRetry(ctx context.Context, msg *domain.CacheUpdateMessage, delay time.Duration) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal cache message")
	}
	var headers []kafka.Header
	mq.InjectTraceContext(ctx, &headers)
	return a.delay.Schedule(ctx, delay, a.updateTopic, []byte(msg.CacheKey), value, headers)
}

func (a *CacheKafkaAdapter) publish(ctx context.Context, w mq.MessageWriter, msg *domain.CacheUpdateMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal cache message")
	}
	return mq.ProduceMessage(ctx, w, []byte(msg.CacheKey), value)
}
