package application

import (
	"context"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/service/voucher/domain"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SeckillStockPreparer 把秒杀库存和活动时间写入预占存储。
type SeckillStockPreparer interface {
	PrepareSeckillVoucher(ctx context.Context, voucherID int64, stock int, begin, end time.Time) error
}

// CacheEvictor 让某张券的派生缓存失效。
type CacheEvictor interface {
	EvictVoucher(ctx context.Context, voucherID int64)
}

// VoucherService 提供优惠券相关的用例
type VoucherService struct {
	repo     domain.VoucherRepository
	preparer SeckillStockPreparer
	evictor  CacheEvictor
	tracer   trace.Tracer
}

func NewVoucherService(repo domain.VoucherRepository, preparer SeckillStockPreparer, tracer trace.Tracer) *VoucherService {
	return &VoucherService{repo: repo, preparer: preparer, tracer: tracer}
}

// WithCacheEvictor 设置券创建后用来清理旧缓存的组件
func (s *VoucherService) WithCacheEvictor(e CacheEvictor) *VoucherService {
	s.evictor = e
	return s
}

// AddSeckillVoucher 写入数据库并初始化预占库存，两者都成功后才返回 id。
// 预占库存初始化失败时数据库事务回滚。
func (s *VoucherService) AddSeckillVoucher(ctx context.Context, req *AddSeckillVoucherRequest) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "service.AddSeckillVoucher")
	defer span.End()

	v := req.ToVoucher()
	if err := v.ValidateSeckill(); err != nil {
		span.RecordError(err)
		return 0, err
	}

	err := s.repo.CreateSeckillVoucher(ctx, v, func(ctx context.Context, v *domain.Voucher) error {
		if err := s.preparer.PrepareSeckillVoucher(ctx, v.ID, v.Stock, v.BeginTime, v.EndTime); err != nil {
			return errors.Wrap(err, "prepare seckill stock")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add seckill voucher")
		return 0, err
	}

	// 同一 id 可能残留上一轮活动的缓存
	if s.evictor != nil {
		s.evictor.EvictVoucher(ctx, v.ID)
	}

	span.SetAttributes(attribute.Int64("voucher.id", v.ID), attribute.Int("voucher.stock", v.Stock))
	logger.Ctx(ctx).Info().Int64("voucher_id", v.ID).Int("stock", v.Stock).
		Time("begin", v.BeginTime).Time("end", v.EndTime).Msg("seckill voucher created")
	return v.ID, nil
}

// FindVoucher 查询优惠券
func (s *VoucherService) FindVoucher(ctx context.Context, id int64) (*domain.Voucher, error) {
	return s.repo.FindVoucher(ctx, id)
}
