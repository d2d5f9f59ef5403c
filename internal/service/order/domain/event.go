// internal/service/order/domain/event.go
package domain

import (
	"fmt"
)

// SeckillMessage 是通过预占后写入订单队列的下单意图，按 OrderID 分区
type SeckillMessage struct {
	UserID    int64 `json:"userId"`
	VoucherID int64 `json:"voucherId"`
	OrderID   int64 `json:"orderId"`
}

// Validate 校验消息是否完整，不完整的消息不可能被成功处理。
func (m *SeckillMessage) Validate() error {
	if m.UserID <= 0 || m.VoucherID <= 0 || m.OrderID <= 0 {
		return fmt.Errorf("%w: userId=%d voucherId=%d orderId=%d", ErrInvalidMessage, m.UserID, m.VoucherID, m.OrderID)
	}
	return nil
}

// NotificationEvent 是订单落库后推送给用户的通知
type NotificationEvent struct {
	UserID    string `json:"userId"`
	OrderID   string `json:"orderId"`
	VoucherID string `json:"voucherId"`
	Message   string `json:"message"`
}
