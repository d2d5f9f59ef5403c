// internal/service/order/domain/errors.go
package domain

import "errors"

// 准入阶段的拒绝原因
var (
	ErrOutOfStock        = errors.New("库存不足")
	ErrDuplicateOrder    = errors.New("不能重复下单")
	ErrVoucherNotFound   = errors.New("秒杀券不存在")
	ErrSeckillNotStarted = errors.New("秒杀尚未开始")
	ErrSeckillEnded      = errors.New("秒杀已经结束")
	ErrSystemBusy        = errors.New("系统繁忙，请稍后再试")
)

// 落库阶段
var (
	ErrStockNotEnough = errors.New("durable stock not enough")
	ErrOrderExists    = errors.New("order already exists")
	ErrOrderNotFound  = errors.New("order not found")

	// ErrStockInvariantViolated 表示预占成功但持久库存扣减失败，重试也不会成功
	ErrStockInvariantViolated = errors.New("stock invariant violated: reservation accepted but durable stock exhausted")
	ErrInvalidMessage         = errors.New("invalid order message")
)

// IsFatal 判断错误是否不可重试，不可重试的消息直接进入死信队列
func IsFatal(err error) bool {
	return errors.Is(err, ErrStockInvariantViolated) || errors.Is(err, ErrInvalidMessage)
}
