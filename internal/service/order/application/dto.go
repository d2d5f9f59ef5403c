// internal/service/order/application/dto.go
package application

import (
	"strconv"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
)

// SeckillOrderResponse 是秒杀下单用例的输出数据，订单此时尚未落库
type SeckillOrderResponse struct {
	OrderID string `json:"orderId"`
}

// OrderView 是订单查询的输出数据
type OrderView struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	VoucherID  string    `json:"voucherId"`
	PayType    int       `json:"payType"`
	Status     string    `json:"status"`
	CreateTime time.Time `json:"createTime"`
}

// ToOrderView ID 以字符串输出，避免前端丢失 64 位精度
func ToOrderView(o *domain.VoucherOrder) *OrderView {
	return &OrderView{
		ID:         strconv.FormatInt(o.ID, 10),
		UserID:     strconv.FormatInt(o.UserID, 10),
		VoucherID:  strconv.FormatInt(o.VoucherID, 10),
		PayType:    o.PayType,
		Status:     o.Status.String(),
		CreateTime: o.CreateTime,
	}
}
