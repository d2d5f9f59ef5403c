// internal/service/order/domain/order.go
package domain

import (
	"time"
)

// VoucherOrder 是订单聚合的根实体，一个用户对同一张秒杀券最多一笔
type VoucherOrder struct {
	ID         int64
	UserID     int64
	VoucherID  int64
	PayType    int
	Status     Status
	CreateTime time.Time
	UpdateTime time.Time
}

// NewVoucherOrder 根据已通过预占的下单意图创建订单，订单号沿用准入时分配的 ID
func NewVoucherOrder(msg *SeckillMessage, now time.Time) (*VoucherOrder, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &VoucherOrder{
		ID:         msg.OrderID,
		UserID:     msg.UserID,
		VoucherID:  msg.VoucherID,
		PayType:    1,
		Status:     StatusUnpaid,
		CreateTime: now,
		UpdateTime: now,
	}, nil
}
