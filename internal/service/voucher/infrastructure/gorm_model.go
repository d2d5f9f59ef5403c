package infrastructure

import (
	"time"

	"github.com/JackieRio/dianpingPlus/internal/service/voucher/domain"
)

// VoucherModel 对应数据库中的 tb_voucher 表
type VoucherModel struct {
	ID          int64                `gorm:"column:id;primaryKey;autoIncrement"`
	ShopID      int64                `gorm:"column:shop_id;index"`
	Title       string               `gorm:"column:title;size:255"`
	SubTitle    string               `gorm:"column:sub_title;size:255"`
	Rules       string               `gorm:"column:rules;size:1024"`
	PayValue    int64                `gorm:"column:pay_value"`
	ActualValue int64                `gorm:"column:actual_value"`
	Type        domain.VoucherType   `gorm:"column:type;type:tinyint"`
	Status      domain.VoucherStatus `gorm:"column:status;type:tinyint;default:1"`
	CreateTime  time.Time            `gorm:"column:create_time;autoCreateTime"`
	UpdateTime  time.Time            `gorm:"column:update_time;autoUpdateTime"`
}

// TableName 指定 GORM 应该使用的表名
func (VoucherModel) TableName() string {
	return "tb_voucher"
}

// SeckillVoucherModel 对应数据库中的 tb_seckill_voucher 表，与 tb_voucher 一对一
type SeckillVoucherModel struct {
	VoucherID  int64     `gorm:"column:voucher_id;primaryKey;autoIncrement:false"`
	Stock      int       `gorm:"column:stock"`
	BeginTime  time.Time `gorm:"column:begin_time"`
	EndTime    time.Time `gorm:"column:end_time"`
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime"`
	UpdateTime time.Time `gorm:"column:update_time;autoUpdateTime"`
}

// TableName 指定 GORM 应该使用的表名
func (SeckillVoucherModel) TableName() string {
	return "tb_seckill_voucher"
}
