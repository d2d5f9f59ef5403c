// internal/pkg/mq/delay.go
package mq

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DelayLevel 是一个固定延迟的 topic。
type DelayLevel struct {
	Topic string
	Delay time.Duration
}

// DefaultDelayLevels 对应缓存重试的 1s/5s/10s/30s 阶梯。
var DefaultDelayLevels = []DelayLevel{
	{Topic: "delay_topic_1s", Delay: time.Second},
	{Topic: "delay_topic_5s", Delay: 5 * time.Second},
	{Topic: "delay_topic_10s", Delay: 10 * time.Second},
	{Topic: "delay_topic_30s", Delay: 30 * time.Second},
}

// LevelFor 选出不小于 d 的最小延迟级别，超过最大级别时取最大级别。
func LevelFor(levels []DelayLevel, d time.Duration) DelayLevel {
	sorted := append([]DelayLevel(nil), levels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Delay < sorted[j].Delay })
	for _, l := range sorted {
		if l.Delay >= d {
			return l
		}
	}
	return sorted[len(sorted)-1]
}

// DelayProducer 把消息写入延迟 topic，到期后由 DelayForwarder 投递回 real-topic。
type DelayProducer struct {
	levels    []DelayLevel
	newWriter WriterFactory

	mu      sync.Mutex
	writers map[string]MessageWriter
}

func NewDelayProducer(newWriter WriterFactory, levels []DelayLevel) *DelayProducer {
	if len(levels) == 0 {
		levels = DefaultDelayLevels
	}
	return &DelayProducer{
		levels:    levels,
		newWriter: newWriter,
		writers:   make(map[string]MessageWriter),
	}
}

// Schedule 让消息在至少 delay 之后出现在 realTopic 上。
func (p *DelayProducer) Schedule(ctx context.Context, delay time.Duration, realTopic string, key, value []byte, headers []kafka.Header) error {
	if realTopic == "" {
		return errors.New("delay: real topic is required")
	}
	level := LevelFor(p.levels, delay)

	hs := withoutHeaders(headers, HeaderRealTopic)
	hs = append(hs, kafka.Header{Key: HeaderRealTopic, Value: []byte(realTopic)})
	if err := ProduceMessage(ctx, p.writer(level.Topic), key, value, hs...); err != nil {
		return errors.Wrapf(err, "delay: publish to %s", level.Topic)
	}
	return nil
}

func (p *DelayProducer) writer(topic string) MessageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.writers[topic]
	if !ok {
		w = p.newWriter(topic)
		p.writers[topic] = w
	}
	return w
}

// Close 关闭所有 writer。
func (p *DelayProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "close delay writer %s", topic)
		}
	}
	return firstErr
}

// DelayForwarder 为每个延迟级别运行一个消费循环：
// 等到 msg.Time+delay 之后把消息转发到 real-topic，再提交 offset。
// 等待期间 ctx 取消时不提交，消息在重启后重新投递。
type DelayForwarder struct {
	groupPrefix string
	levels      []DelayLevel
	newReader   ReaderFactory
	newWriter   WriterFactory
	tracer      trace.Tracer
	now         func() time.Time
	backoff     time.Duration

	mu      sync.Mutex
	writers map[string]MessageWriter
	readers []MessageReader

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewDelayForwarder(groupPrefix string, levels []DelayLevel, newReader ReaderFactory, newWriter WriterFactory) *DelayForwarder {
	if len(levels) == 0 {
		levels = DefaultDelayLevels
	}
	return &DelayForwarder{
		groupPrefix: groupPrefix,
		levels:      levels,
		newReader:   newReader,
		newWriter:   newWriter,
		tracer:      otel.Tracer("mq.delay-forwarder"),
		now:         time.Now,
		backoff:     time.Second,
		writers:     make(map[string]MessageWriter),
	}
}

// Start 为每个级别启动一个 goroutine。
func (f *DelayForwarder) Start(ctx context.Context) error {
	ctx, f.cancel = context.WithCancel(ctx)
	for _, level := range f.levels {
		reader := f.newReader(level.Topic, f.groupPrefix+"-"+level.Topic)
		f.readers = append(f.readers, reader)

		f.wg.Add(1)
		go func(level DelayLevel, reader MessageReader) {
			defer f.wg.Done()
			logger.Ctx(ctx).Info().Str("level", level.Topic).Dur("delay", level.Delay).Msg("✅ Delay forwarder started")
			f.run(ctx, level, reader)
		}(level, reader)
	}
	return nil
}

// Stop 取消所有循环并关闭 reader/writer。
func (f *DelayForwarder) Stop(ctx context.Context) {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	for _, r := range f.readers {
		_ = r.Close()
	}
	f.mu.Lock()
	for topic, w := range f.writers {
		if err := w.Close(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("failed to close writer")
		}
	}
	f.mu.Unlock()
	logger.Ctx(ctx).Info().Msg("✅ Delay forwarder stopped")
}

func (f *DelayForwarder) run(ctx context.Context, level DelayLevel, reader MessageReader) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Str("level", level.Topic).Msg("🛑 Shutting down delay forwarder")
				return
			}
			logger.Ctx(ctx).Error().Err(err).Str("level", level.Topic).Msg("could not fetch message, retrying")
			if !sleepCtx(ctx, f.backoff) {
				return
			}
			continue
		}

		// 同一个延迟 topic 内消息按写入时间有序，队头未到期时后续消息也不会到期
		deliveryTime := msg.Time.Add(level.Delay)
		if wait := deliveryTime.Sub(f.now()); wait > 0 {
			if !sleepCtx(ctx, wait) {
				return
			}
		}

		if !f.forward(ctx, level, msg) {
			return
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("level", level.Topic).Msg("failed to commit message after publish")
		}
	}
}

// forward 返回 false 表示 ctx 已取消且消息尚未投递。
func (f *DelayForwarder) forward(parent context.Context, level DelayLevel, msg kafka.Message) bool {
	ctx, span := f.tracer.Start(ExtractTraceContext(parent, msg.Headers), "scheduler.Forward", trace.WithAttributes(
		attribute.String("delay.level", level.Topic),
		attribute.String("msg.Time", msg.Time.Format(time.DateTime)),
	))
	defer span.End()

	realTopic := GetHeader(msg.Headers, HeaderRealTopic)
	if realTopic == "" {
		// 无法投递的消息也要提交，否则会被反复消费
		logger.Ctx(ctx).Error().Str("level", level.Topic).Int64("offset", msg.Offset).Msg("'real-topic' header missing, skipping")
		span.SetStatus(codes.Error, "real-topic header missing")
		return true
	}

	out := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: withoutHeaders(msg.Headers, HeaderRealTopic),
	}
	InjectTraceContext(ctx, &out.Headers)

	for {
		err := f.writer(realTopic).WriteMessages(ctx, out)
		if err == nil {
			span.AddEvent("MessagePublishedAndCommitted", trace.WithAttributes(attribute.String("real.topic", realTopic)))
			logger.Ctx(ctx).Debug().Str("level", level.Topic).Str("real_topic", realTopic).Msg("delayed message forwarded")
			return true
		}
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Str("real_topic", realTopic).Msg("failed to publish to real topic, retrying")
		if !sleepCtx(parent, f.backoff) {
			return false
		}
	}
}

func (f *DelayForwarder) writer(topic string) MessageWriter {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.writers[topic]
	if !ok {
		w = f.newWriter(topic)
		f.writers[topic] = w
	}
	return w
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
