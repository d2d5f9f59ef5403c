// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"sync"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler 处理一条消息，返回的错误交给 FailureSink。
type Handler func(ctx context.Context, msg kafka.Message) error

// FailureSink 接管处理失败的消息（重试或死信）。
// 返回 nil 代表已经移交成功，offset 可以提交。
type FailureSink interface {
	Handle(ctx context.Context, msg kafka.Message, cause error) error
}

// Consumer 是一个手动提交 offset 的通用消费循环。
// offset 只会在消息被处理成功，或者失败后已经成功移交之后才提交。
type Consumer struct {
	name    string
	topic   string
	reader  MessageReader
	handle  Handler
	failure FailureSink
	tracer  trace.Tracer

	retryBackoff time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewConsumer 创建消费者；failure 为 nil 时处理失败只记日志并提交。
func NewConsumer(name, topic string, reader MessageReader, handle Handler, failure FailureSink) *Consumer {
	return &Consumer{
		name:         name,
		topic:        topic,
		reader:       reader,
		handle:       handle,
		failure:      failure,
		tracer:       otel.Tracer("mq.consumer"),
		retryBackoff: time.Second,
	}
}

// SetRetryBackoff 设置读取失败、移交失败时的等待间隔。
func (c *Consumer) SetRetryBackoff(d time.Duration) {
	c.retryBackoff = d
}

// Start 在后台启动消费循环。
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	logger.Ctx(ctx).Info().Str("consumer", c.name).Str("topic", c.topic).Msg("✅ Kafka consumer started.")
	return nil
}

// Stop 取消消费循环，等待当前消息处理结束后关闭 reader。
func (c *Consumer) Stop(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if err := c.reader.Close(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("consumer", c.name).Msg("close reader")
	}
	logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("✅ Kafka consumer stopped.")
}

func (c *Consumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("🛑 Kafka consumer shutting down.")
				return
			}
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("could not fetch message, retrying")
			if !sleepCtx(ctx, c.retryBackoff) {
				return
			}
			continue
		}

		if !c.process(ctx, msg) {
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

// process 返回 false 表示消息未能处理或移交，且 ctx 已取消，不能提交 offset。
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	msgCtx := ExtractTraceContext(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, c.name+".process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		))
	defer span.End()

	procErr := c.handle(msgCtx, msg)
	if procErr == nil {
		return true
	}
	span.RecordError(procErr)
	span.SetStatus(codes.Error, "message processing failed")

	if c.failure == nil {
		logger.Ctx(msgCtx).Error().Err(procErr).Str("consumer", c.name).Int64("offset", msg.Offset).Msg("message processing failed, skipped")
		return true
	}

	// 移交失败时不能提交，否则后续提交会把这条消息一并确认掉
	for {
		herr := c.failure.Handle(msgCtx, msg, procErr)
		if herr == nil {
			return true
		}
		logger.Ctx(msgCtx).Error().Err(herr).AnErr("cause", procErr).Str("consumer", c.name).
			Int64("offset", msg.Offset).Msg("failure hand-off failed, offset held")
		if !sleepCtx(ctx, c.retryBackoff) {
			return false
		}
	}
}
