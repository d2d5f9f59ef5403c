// internal/pkg/mq/kafka.go
package mq

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// 消息头约定，重试与死信流程都依赖这些 key。
const (
	HeaderRetryCount = "x-retry-count"
	HeaderRealTopic  = "real-topic"

	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionFqcn     = "x-exception-fqcn"
	HeaderExceptionMessage  = "x-exception-message"
)

// MessageReader 是 *kafka.Reader 中消费者用到的子集。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageWriter 是 *kafka.Writer 中生产者用到的子集。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterFactory 按 topic 创建 writer。
type WriterFactory func(topic string) MessageWriter

// ReaderFactory 按 topic 和消费组创建 reader。
type ReaderFactory func(topic, groupID string) MessageReader

// NewKafkaWriter 创建一个按 key 哈希分区、等待所有副本确认的 writer。
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// NewKafkaReader 创建一个手动提交 offset 的消费组 reader。
// 新消费组从最早的 offset 开始，避免丢掉启动前已入队的消息。
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		StartOffset:    kafka.FirstOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // 同步提交
	})
}

// KafkaWriterFactory 返回绑定了 broker 列表的 WriterFactory。
func KafkaWriterFactory(brokers []string) WriterFactory {
	return func(topic string) MessageWriter {
		return NewKafkaWriter(brokers, topic)
	}
}

// KafkaReaderFactory 返回绑定了 broker 列表的 ReaderFactory。
func KafkaReaderFactory(brokers []string) ReaderFactory {
	return func(topic, groupID string) MessageReader {
		return NewKafkaReader(brokers, topic, groupID)
	}
}

// ProduceMessage 发送一条消息，并把当前的追踪上下文写进消息头。
func ProduceMessage(ctx context.Context, writer MessageWriter, key, value []byte, headers ...kafka.Header) error {
	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
	}
	InjectTraceContext(ctx, &msg.Headers)
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "kafka: write message")
	}
	return nil
}

// KafkaHeaderCarrier 让 kafka 消息头实现 propagation.TextMapCarrier。
type KafkaHeaderCarrier []kafka.Header

func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectTraceContext 把 ctx 中的追踪信息注入到消息头。
func InjectTraceContext(ctx context.Context, headers *[]kafka.Header) {
	carrier := KafkaHeaderCarrier(*headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	*headers = carrier
}

// ExtractTraceContext 从消息头中恢复追踪上下文。
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := KafkaHeaderCarrier(headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier)
}

// GetHeader 读取一个消息头，不存在时返回空字符串。
func GetHeader(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// RetryCount 读取 x-retry-count，缺失或非法时视为 0。
func RetryCount(headers []kafka.Header) int {
	n, err := strconv.Atoi(GetHeader(headers, HeaderRetryCount))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// withoutHeaders 复制消息头并去掉指定的 key。
func withoutHeaders(headers []kafka.Header, keys ...string) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers)+2)
outer:
	for _, h := range headers {
		for _, k := range keys {
			if h.Key == k {
				continue outer
			}
		}
		out = append(out, h)
	}
	return out
}

// EnsureTopics 通过 controller 创建缺失的 topic，已存在的 topic 会被忽略。
func EnsureTopics(ctx context.Context, brokers []string, topics ...kafka.TopicConfig) error {
	if len(brokers) == 0 || len(topics) == 0 {
		return nil
	}
	dialer := &kafka.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return errors.Wrap(err, "kafka: dial broker")
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return errors.Wrap(err, "kafka: find controller")
	}
	ctrlConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return errors.Wrap(err, "kafka: dial controller")
	}
	defer ctrlConn.Close()

	if err := ctrlConn.CreateTopics(topics...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return errors.Wrap(err, "kafka: create topics")
	}
	return nil
}
