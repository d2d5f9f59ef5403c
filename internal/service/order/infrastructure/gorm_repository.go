package infrastructure

import (
	"context"

	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const mysqlDuplicateEntry = 1062

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&VoucherOrderModel{}).Where("id = ?", id).Count(&n).Error
	if err != nil {
		return false, errors.Wrapf(err, "count order %d", id)
	}
	return n > 0, nil
}

func (r *GormOrderRepository) ExistsByUserAndVoucher(ctx context.Context, userID, voucherID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&VoucherOrderModel{}).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).Count(&n).Error
	if err != nil {
		return false, errors.Wrapf(err, "count order of user %d voucher %d", userID, voucherID)
	}
	return n > 0, nil
}

// CreateOrderWithStockDeduction 扣减持久库存并插入订单，二者在同一个事务内
func (r *GormOrderRepository) CreateOrderWithStockDeduction(ctx context.Context, order *domain.VoucherOrder) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Table(seckillVoucherTable).
			Where("voucher_id = ? AND stock > 0", order.VoucherID).
			UpdateColumn("stock", gorm.Expr("stock - 1"))
		if res.Error != nil {
			return errors.Wrapf(res.Error, "deduct stock of voucher %d", order.VoucherID)
		}
		if res.RowsAffected == 0 {
			return domain.ErrStockNotEnough
		}

		if err := tx.Create(fromDomainOrder(order)).Error; err != nil {
			if isDuplicateKey(err) {
				return domain.ErrOrderExists
			}
			return errors.Wrapf(err, "insert order %d", order.ID)
		}
		return nil
	})
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*domain.VoucherOrder, error) {
	var m VoucherOrderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "find order %d", id)
	}
	return toDomainOrder(&m), nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
