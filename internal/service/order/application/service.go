// internal/service/order/application/service.go
package application

import (
	"context"

	"github.com/JackieRio/dianpingPlus/internal/pkg/idgen"
	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/pkg/metrics"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const orderIDNamespace = "order"

// OrderApplicationService 负责秒杀下单的准入：预占名额后把下单意图交给订单队列。
type OrderApplicationService struct {
	ids       idgen.Generator
	seckill   port.SeckillService
	producer  domain.OrderProducer
	orderRepo domain.OrderRepository
	tracer    trace.Tracer
	metrics   *metrics.Metrics
}

func NewOrderApplicationService(ids idgen.Generator, seckill port.SeckillService, producer domain.OrderProducer, orderRepo domain.OrderRepository, tracer trace.Tracer, m *metrics.Metrics) *OrderApplicationService {
	return &OrderApplicationService{
		ids: ids, seckill: seckill, producer: producer,
		orderRepo: orderRepo, tracer: tracer, metrics: m,
	}
}

// SeckillVoucher 是秒杀下单的入口，成功时返回已分配的订单号。
// 拒绝原因以 domain 中的哨兵错误返回，基础设施故障统一为 ErrSystemBusy。
func (s *OrderApplicationService) SeckillVoucher(ctx context.Context, voucherID, userID int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "app.SeckillVoucher", trace.WithAttributes(
		attribute.Int64("voucher.id", voucherID),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	orderID, err := s.ids.NextID(ctx, orderIDNamespace)
	if err != nil {
		s.fail(ctx, span, err, "failed to allocate order id")
		return 0, errors.Wrap(domain.ErrSystemBusy, err.Error())
	}
	span.SetAttributes(attribute.Int64("order.id", orderID))

	result, err := s.seckill.AttemptSeckill(ctx, voucherID, userID, orderID)
	if err != nil {
		s.fail(ctx, span, err, "reservation failed")
		return 0, errors.Wrap(domain.ErrSystemBusy, err.Error())
	}
	s.record(result.String())
	if result != port.SeckillResultSuccess {
		logger.Ctx(ctx).Debug().Int64("voucherId", voucherID).Int64("userId", userID).
			Str("outcome", result.String()).Msg("seckill rejected")
		span.SetAttributes(attribute.String("seckill.outcome", result.String()))
		return 0, rejection(result)
	}

	msg := &domain.SeckillMessage{UserID: userID, VoucherID: voucherID, OrderID: orderID}
	if err := s.producer.Produce(ctx, msg); err != nil {
		s.fail(ctx, span, err, "failed to enqueue order intent, compensating reservation")
		// 请求可能已经被取消，补偿不能跟着取消
		if cerr := s.seckill.CancelSeckill(context.WithoutCancel(ctx), voucherID, userID, orderID); cerr != nil {
			logger.Ctx(ctx).Error().Err(cerr).Bool("critical", true).Int64("orderId", orderID).
				Msg("failed to release reservation after enqueue failure")
		}
		return 0, errors.Wrap(domain.ErrSystemBusy, err.Error())
	}

	span.AddEvent("order intent enqueued")
	logger.Ctx(ctx).Info().Int64("orderId", orderID).Int64("voucherId", voucherID).Int64("userId", userID).
		Msg("seckill accepted")
	return orderID, nil
}

// FindOrder 查询已落库的订单
func (s *OrderApplicationService) FindOrder(ctx context.Context, id int64) (*domain.VoucherOrder, error) {
	ctx, span := s.tracer.Start(ctx, "app.FindOrder")
	defer span.End()
	return s.orderRepo.FindByID(ctx, id)
}

func (s *OrderApplicationService) fail(ctx context.Context, span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.record("error")
	logger.Ctx(ctx).Error().Err(err).Msg(msg)
}

func (s *OrderApplicationService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.ReservationTotal.WithLabelValues(outcome).Inc()
	}
}

func rejection(r port.SeckillResult) error {
	switch r {
	case port.SeckillResultSoldOut:
		return domain.ErrOutOfStock
	case port.SeckillResultAlreadyPurchased:
		return domain.ErrDuplicateOrder
	case port.SeckillResultNotFound:
		return domain.ErrVoucherNotFound
	case port.SeckillResultNotStarted:
		return domain.ErrSeckillNotStarted
	case port.SeckillResultEnded:
		return domain.ErrSeckillEnded
	default:
		return domain.ErrSystemBusy
	}
}
