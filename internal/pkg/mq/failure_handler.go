// internal/pkg/mq/failure_handler.go
package mq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// RetryPolicy 描述失败消息的重试方式。
type RetryPolicy struct {
	RetryTopic string        // 重试后回到的 topic，一般就是原 topic
	Delay      time.Duration // 经由延迟 topic 的等待时长
	MaxRetries int
	// IsFatal 为 true 的错误不再重试，直接进入死信
	IsFatal func(error) bool
}

// FailureHandler 把处理失败的消息转发到延迟重试或死信 topic。
type FailureHandler struct {
	policy    RetryPolicy
	delay     *DelayProducer
	dltWriter MessageWriter
	dltTopic  string

	// OnDeadLetter 在消息成功写入死信 topic 后回调，用于打点
	OnDeadLetter func(topic string)
}

func NewFailureHandler(policy RetryPolicy, delay *DelayProducer, dltWriter MessageWriter, dltTopic string) *FailureHandler {
	if policy.IsFatal == nil {
		policy.IsFatal = func(error) bool { return false }
	}
	return &FailureHandler{
		policy:    policy,
		delay:     delay,
		dltWriter: dltWriter,
		dltTopic:  dltTopic,
	}
}

// DLTTopic 返回 topic 对应的死信 topic 名。
func DLTTopic(topic string) string {
	return topic + ".DLT"
}

// Handle 实现 FailureSink。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) error {
	retries := RetryCount(msg.Headers)
	log := logger.Ctx(ctx).With().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Int("retry_count", retries).
		Logger()

	if !h.policy.IsFatal(cause) && retries < h.policy.MaxRetries && h.delay != nil {
		headers := withoutHeaders(msg.Headers, HeaderRetryCount)
		headers = append(headers, kafka.Header{Key: HeaderRetryCount, Value: []byte(strconv.Itoa(retries + 1))})
		if err := h.delay.Schedule(ctx, h.policy.Delay, h.policy.RetryTopic, msg.Key, msg.Value, headers); err != nil {
			return errors.Wrap(err, "schedule retry")
		}
		log.Warn().Err(cause).Dur("delay", h.policy.Delay).Msg("message scheduled for retry")
		return nil
	}

	dlt := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(withoutHeaders(msg.Headers,
			HeaderOriginalTopic, HeaderOriginalPartition, HeaderOriginalOffset,
			HeaderExceptionFqcn, HeaderExceptionMessage),
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", errors.Cause(cause)))},
			kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		),
	}
	InjectTraceContext(ctx, &dlt.Headers)
	if err := h.dltWriter.WriteMessages(ctx, dlt); err != nil {
		return errors.Wrap(err, "write dead letter")
	}
	if h.OnDeadLetter != nil {
		h.OnDeadLetter(h.dltTopic)
	}
	log.Error().Err(cause).Bool("critical", h.policy.IsFatal(cause)).Str("dlt", h.dltTopic).Msg("message moved to dead letter topic")
	return nil
}
