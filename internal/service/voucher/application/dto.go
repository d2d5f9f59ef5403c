package application

import (
	"time"

	"github.com/JackieRio/dianpingPlus/internal/service/voucher/domain"
)

// AddSeckillVoucherRequest 是新增秒杀券的请求体
type AddSeckillVoucherRequest struct {
	ShopID      int64     `json:"shopId"`
	Title       string    `json:"title"`
	SubTitle    string    `json:"subTitle"`
	Rules       string    `json:"rules"`
	PayValue    int64     `json:"payValue"`
	ActualValue int64     `json:"actualValue"`
	Stock       int       `json:"stock"`
	BeginTime   time.Time `json:"beginTime"`
	EndTime     time.Time `json:"endTime"`
}

func (r *AddSeckillVoucherRequest) ToVoucher() *domain.Voucher {
	return &domain.Voucher{
		ShopID:      r.ShopID,
		Title:       r.Title,
		SubTitle:    r.SubTitle,
		Rules:       r.Rules,
		PayValue:    r.PayValue,
		ActualValue: r.ActualValue,
		Type:        domain.VoucherTypeSeckill,
		Status:      domain.VoucherStatusOnShelf,
		Stock:       r.Stock,
		BeginTime:   r.BeginTime,
		EndTime:     r.EndTime,
	}
}
