// internal/service/order/domain/state.go
package domain

// Status 是代金券订单的状态，取值与 tb_voucher_order.status 一致
type Status int

const (
	StatusUnpaid    Status = iota + 1 // 未支付，秒杀订单落库后的初始状态
	StatusPaid                        // 已支付
	StatusUsed                        // 已核销
	StatusCancelled                   // 已取消
	StatusRefunding                   // 退款中
	StatusRefunded                    // 已退款
)

func (s Status) String() string {
	switch s {
	case StatusUnpaid:
		return "UNPAID"
	case StatusPaid:
		return "PAID"
	case StatusUsed:
		return "USED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRefunding:
		return "REFUNDING"
	case StatusRefunded:
		return "REFUNDED"
	default:
		return "UNKNOWN"
	}
}
