// internal/service/order/interfaces/order_creation_handler.go
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/JackieRio/dianpingPlus/internal/pkg/mq"
	"github.com/JackieRio/dianpingPlus/internal/service/order/application"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// OrderConsumerAdapter 是一个驱动适配器，它监听订单主题并驱动订单落库。
// 处理失败的消息交给 FailureHandler 重试或进入死信队列。
type OrderConsumerAdapter struct {
	*mq.Consumer
	materializer *application.OrderMaterializer
}

// NewOrderConsumerAdapter 创建一个新的Kafka消费者适配器。
func NewOrderConsumerAdapter(topic string, reader mq.MessageReader, materializer *application.OrderMaterializer, failureHandler mq.FailureSink) *OrderConsumerAdapter {
	a := &OrderConsumerAdapter{materializer: materializer}
	a.Consumer = mq.NewConsumer("order-consumer", topic, reader, a.processMessage, failureHandler)
	return a
}

// Stop 停止消费后等待进行中的缓存刷新
func (a *OrderConsumerAdapter) Stop(ctx context.Context) {
	a.Consumer.Stop(ctx)
	_ = a.materializer.Wait(ctx)
}

// processMessage 反序列化消息并调用应用服务。
func (a *OrderConsumerAdapter) processMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.SeckillMessage
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(domain.ErrInvalidMessage, err.Error())
	}
	return a.materializer.CreateVoucherOrder(ctx, &event)
}
