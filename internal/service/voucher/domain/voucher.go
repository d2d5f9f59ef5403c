// internal/service/voucher/domain/voucher.go
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrInvalidVoucher  = errors.New("invalid voucher")
)

// VoucherType 区分普通券和秒杀券
type VoucherType int

const (
	VoucherTypeNormal VoucherType = iota
	VoucherTypeSeckill
)

// VoucherStatus 1 上架，2 下架，3 过期
type VoucherStatus int

const (
	VoucherStatusOnShelf VoucherStatus = iota + 1
	VoucherStatusOffShelf
	VoucherStatusExpired
)

// Voucher 是店铺优惠券，秒杀券额外带有库存和活动时间。
type Voucher struct {
	ID          int64         `json:"id"`
	ShopID      int64         `json:"shopId"`
	Title       string        `json:"title"`
	SubTitle    string        `json:"subTitle"`
	Rules       string        `json:"rules"`
	PayValue    int64         `json:"payValue"`    // 支付金额，单位分
	ActualValue int64         `json:"actualValue"` // 抵扣金额，单位分
	Type        VoucherType   `json:"type"`
	Status      VoucherStatus `json:"status"`

	// 以下字段只对秒杀券有意义，持久化在 tb_seckill_voucher
	Stock     int       `json:"stock,omitempty"`
	BeginTime time.Time `json:"beginTime,omitempty"`
	EndTime   time.Time `json:"endTime,omitempty"`

	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// ValidateSeckill 校验创建秒杀券所需的字段。
func (v *Voucher) ValidateSeckill() error {
	switch {
	case v.ShopID <= 0, v.Title == "":
		return fmt.Errorf("%w: shopId and title are required", ErrInvalidVoucher)
	case v.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidVoucher)
	case v.BeginTime.IsZero(), v.EndTime.IsZero(), !v.BeginTime.Before(v.EndTime):
		return fmt.Errorf("%w: beginTime must be before endTime", ErrInvalidVoucher)
	}
	return nil
}

// SeckillVoucher 是秒杀券的持久库存，tb_seckill_voucher 的一行。
type SeckillVoucher struct {
	VoucherID  int64
	Stock      int
	BeginTime  time.Time
	EndTime    time.Time
	CreateTime time.Time
	UpdateTime time.Time
}

// StockSnapshot 是写入缓存的库存快照，只用于展示，不参与准入判断。
type StockSnapshot struct {
	VoucherID int64     `json:"voucherId"`
	Stock     int       `json:"stock"`
	BeginTime time.Time `json:"beginTime"`
	EndTime   time.Time `json:"endTime"`
}

func (s *SeckillVoucher) Snapshot() StockSnapshot {
	return StockSnapshot{
		VoucherID: s.VoucherID,
		Stock:     s.Stock,
		BeginTime: s.BeginTime,
		EndTime:   s.EndTime,
	}
}

// VoucherRepository 定义了优惠券的持久化接口。
type VoucherRepository interface {
	// CreateSeckillVoucher 在一个事务里写入 tb_voucher 和 tb_seckill_voucher，
	// onCreated 在提交前执行，返回错误时整个事务回滚。
	CreateSeckillVoucher(ctx context.Context, v *Voucher, onCreated func(ctx context.Context, v *Voucher) error) error

	FindVoucher(ctx context.Context, id int64) (*Voucher, error)
	FindSeckillVoucher(ctx context.Context, voucherID int64) (*SeckillVoucher, error)
}
