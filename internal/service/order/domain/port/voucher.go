package port

import (
	"context"

	voucher "github.com/JackieRio/dianpingPlus/internal/service/voucher/domain"
)

// VoucherReader 读取持久化的优惠券数据，用于落库后刷新缓存
type VoucherReader interface {
	FindVoucher(ctx context.Context, id int64) (*voucher.Voucher, error)
	FindSeckillVoucher(ctx context.Context, voucherID int64) (*voucher.SeckillVoucher, error)
}
