// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByUserAndVoucher(ctx context.Context, userID, voucherID int64) (bool, error)

	// CreateOrderWithStockDeduction 在一个事务里扣减持久库存并插入订单。
	// 库存不足返回 ErrStockNotEnough，订单已存在返回 ErrOrderExists，两种情况都不会留下部分写入。
	CreateOrderWithStockDeduction(ctx context.Context, order *VoucherOrder) error

	FindByID(ctx context.Context, id int64) (*VoucherOrder, error)
}

// OrderProducer 把下单意图写入订单队列
type OrderProducer interface {
	Produce(ctx context.Context, msg *SeckillMessage) error
}
