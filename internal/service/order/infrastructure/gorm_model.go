package infrastructure

import (
	"time"

	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
)

// VoucherOrderModel 对应数据库中的 tb_voucher_order 表。
// (user_id, voucher_id) 唯一索引保证一人一单。
type VoucherOrderModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	UserID     int64     `gorm:"column:user_id;uniqueIndex:uk_user_voucher"`
	VoucherID  int64     `gorm:"column:voucher_id;uniqueIndex:uk_user_voucher"`
	PayType    int       `gorm:"column:pay_type;type:tinyint;default:1"`
	Status     int       `gorm:"column:status;type:tinyint;default:1"`
	CreateTime time.Time `gorm:"column:create_time"`
	UpdateTime time.Time `gorm:"column:update_time"`
}

// TableName 指定 GORM 应该使用的表名
func (VoucherOrderModel) TableName() string {
	return "tb_voucher_order"
}

const seckillVoucherTable = "tb_seckill_voucher"

func fromDomainOrder(o *domain.VoucherOrder) *VoucherOrderModel {
	return &VoucherOrderModel{
		ID:         o.ID,
		UserID:     o.UserID,
		VoucherID:  o.VoucherID,
		PayType:    o.PayType,
		Status:     int(o.Status),
		CreateTime: o.CreateTime,
		UpdateTime: o.UpdateTime,
	}
}

func toDomainOrder(m *VoucherOrderModel) *domain.VoucherOrder {
	return &domain.VoucherOrder{
		ID:         m.ID,
		UserID:     m.UserID,
		VoucherID:  m.VoucherID,
		PayType:    m.PayType,
		Status:     domain.Status(m.Status),
		CreateTime: m.CreateTime,
		UpdateTime: m.UpdateTime,
	}
}
