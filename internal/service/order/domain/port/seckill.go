package port

import (
	"context"
)

// SeckillResult 是秒杀预占结果的枚举
type SeckillResult int

const (
	SeckillResultSuccess SeckillResult = iota + 1
	SeckillResultSoldOut
	SeckillResultAlreadyPurchased
	SeckillResultNotFound
	SeckillResultNotStarted
	SeckillResultEnded
)

func (r SeckillResult) String() string {
	switch r {
	case SeckillResultSuccess:
		return "accepted"
	case SeckillResultSoldOut:
		return "out_of_stock"
	case SeckillResultAlreadyPurchased:
		return "duplicate"
	case SeckillResultNotFound:
		return "not_found"
	case SeckillResultNotStarted:
		return "not_started"
	case SeckillResultEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// SeckillService 是秒杀预占的出站端口。
// 它定义了秒杀相关的业务能力，由基础设施层实现。
type SeckillService interface {
	// AttemptSeckill 原子地完成时间窗口、一人一单、库存三项校验并预占一个名额。
	AttemptSeckill(ctx context.Context, voucherID, userID, orderID int64) (SeckillResult, error)

	// CancelSeckill 是 AttemptSeckill 的补偿操作，只有名额仍属于 orderID 时才归还。
	CancelSeckill(ctx context.Context, voucherID, userID, orderID int64) error
}
