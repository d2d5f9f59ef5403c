// internal/service/order/interfaces/dlt_handler.go
package interfaces

import (
	"context"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/pkg/mq"
	"github.com/segmentio/kafka-go"
)

// NewDltConsumer 监听死信队列并记录日志，死信消息记录后直接提交
func NewDltConsumer(topic string, reader mq.MessageReader) *mq.Consumer {
	return mq.NewConsumer("dlt-consumer", topic, reader, func(ctx context.Context, msg kafka.Message) error {
		logDeadLetter(ctx, msg)
		return nil
	}, nil)
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	// 使用结构化日志记录，便于后续分析
	logger.Ctx(ctx).Error().
		Bool("critical", true).
		Str("reason", "dead_letter_message_received").
		Str("original_topic", mq.GetHeader(msg.Headers, mq.HeaderOriginalTopic)).
		Str("original_partition", mq.GetHeader(msg.Headers, mq.HeaderOriginalPartition)).
		Str("original_offset", mq.GetHeader(msg.Headers, mq.HeaderOriginalOffset)).
		Str("exception_fqcn", mq.GetHeader(msg.Headers, mq.HeaderExceptionFqcn)).
		Str("exception_message", mq.GetHeader(msg.Headers, mq.HeaderExceptionMessage)).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
}
