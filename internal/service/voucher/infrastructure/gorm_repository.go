package infrastructure

import (
	"context"

	"github.com/JackieRio/dianpingPlus/internal/service/voucher/domain"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormVoucherRepository 是 VoucherRepository 的 GORM 实现
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewGormVoucherRepository 创建一个新的 GORM 仓储实例
func NewGormVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

// CreateSeckillVoucher 在同一个事务中写入两张表
func (r *GormVoucherRepository) CreateSeckillVoucher(ctx context.Context, v *domain.Voucher, onCreated func(ctx context.Context, v *domain.Voucher) error) error {
	v.Type = domain.VoucherTypeSeckill
	if v.Status == 0 {
		v.Status = domain.VoucherStatusOnShelf
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vm, _ := FromDomainVoucher(v)
		if err := tx.Create(vm).Error; err != nil {
			return errors.Wrap(err, "insert tb_voucher")
		}
		v.ID = vm.ID

		_, svm := FromDomainVoucher(v)
		if err := tx.Create(svm).Error; err != nil {
			return errors.Wrap(err, "insert tb_seckill_voucher")
		}

		if onCreated != nil {
			return onCreated(ctx, v)
		}
		return nil
	})
}

// FindVoucher 查询优惠券，秒杀券会带上库存和活动时间
func (r *GormVoucherRepository) FindVoucher(ctx context.Context, id int64) (*domain.Voucher, error) {
	var model VoucherModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVoucherNotFound
		}
		return nil, err
	}
	if model.Type != domain.VoucherTypeSeckill {
		return ToDomainVoucher(&model, nil), nil
	}

	var sv SeckillVoucherModel
	if err := r.db.WithContext(ctx).Where("voucher_id = ?", id).First(&sv).Error; err != nil {
		return nil, err
	}
	return ToDomainVoucher(&model, &sv), nil
}

// FindSeckillVoucher 查询秒杀券的持久库存
func (r *GormVoucherRepository) FindSeckillVoucher(ctx context.Context, voucherID int64) (*domain.SeckillVoucher, error) {
	var model SeckillVoucherModel
	if err := r.db.WithContext(ctx).Where("voucher_id = ?", voucherID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVoucherNotFound
		}
		return nil, err
	}
	return ToDomainSeckillVoucher(&model), nil
}
