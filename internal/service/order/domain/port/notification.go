package port

import (
	"context"

	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
)

// NotificationProducer 是消息生产者的出站端口。
type NotificationProducer interface {
	// SendOrderCreated 发送订单创建成功的通知。
	SendOrderCreated(ctx context.Context, order *domain.VoucherOrder) error
}
