package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/JackieRio/dianpingPlus/internal/pkg/mq"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/pkg/errors"
)

// NotificationKafkaAdapter 实现了 port.NotificationProducer 接口。
type NotificationKafkaAdapter struct {
	writer mq.MessageWriter
}

// NewNotificationKafkaAdapter 创建一个新的通知生产者适配器。
func NewNotificationKafkaAdapter(writer mq.MessageWriter) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

// SendOrderCreated 实现了发送订单创建成功通知的逻辑。
func (a *NotificationKafkaAdapter) SendOrderCreated(ctx context.Context, order *domain.VoucherOrder) error {
	userID := strconv.FormatInt(order.UserID, 10)
	event := domain.NotificationEvent{
		UserID:    userID,
		OrderID:   strconv.FormatInt(order.ID, 10),
		VoucherID: strconv.FormatInt(order.VoucherID, 10),
		Message:   fmt.Sprintf("秒杀成功，订单 %d 已创建，请尽快完成支付", order.ID),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification event")
	}

	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(userID), eventBytes)
}
