// internal/service/order/application/materializer.go
package application

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/pkg/metrics"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const orderLockPrefix = "lock:order:"

// MaterializerConfig 是订单落库的参数
type MaterializerConfig struct {
	LockWait          time.Duration
	LockLease         time.Duration
	ProcessingTimeout time.Duration
	StockCacheTTL     time.Duration
	VoucherCacheTTL   time.Duration
	RefreshTimeout    time.Duration
}

func DefaultMaterializerConfig() MaterializerConfig {
	return MaterializerConfig{
		LockWait:          3 * time.Second,
		LockLease:         10 * time.Second,
		ProcessingTimeout: 30 * time.Second,
		StockCacheTTL:     30 * time.Minute,
		VoucherCacheTTL:   60 * time.Minute,
		RefreshTimeout:    5 * time.Second,
	}
}

// OrderMaterializer 消费下单意图，把通过预占的订单写入数据库。
// 同一个意图被投递多少次，最多只产生一笔订单、扣减一次库存。
type OrderMaterializer struct {
	cfg      MaterializerConfig
	repo     domain.OrderRepository
	locker   port.Locker
	vouchers port.VoucherReader
	caches   *CacheManager
	notifier port.NotificationProducer
	tracer   trace.Tracer
	metrics  *metrics.Metrics
	now      func() time.Time

	refreshing sync.WaitGroup
}

func NewOrderMaterializer(cfg MaterializerConfig, repo domain.OrderRepository, locker port.Locker, vouchers port.VoucherReader, caches *CacheManager, notifier port.NotificationProducer, tracer trace.Tracer, m *metrics.Metrics) *OrderMaterializer {
	return &OrderMaterializer{
		cfg: cfg, repo: repo, locker: locker, vouchers: vouchers,
		caches: caches, notifier: notifier, tracer: tracer, metrics: m,
		now: time.Now,
	}
}

// CreateVoucherOrder 处理一条下单意图。返回的错误中，domain.IsFatal 为真的不可重试。
func (m *OrderMaterializer) CreateVoucherOrder(ctx context.Context, msg *domain.SeckillMessage) (err error) {
	ctx, span := m.tracer.Start(ctx, "app.CreateVoucherOrder", trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.Int64("order.id", msg.OrderID),
			attribute.Int64("voucher.id", msg.VoucherID),
			attribute.Int64("user.id", msg.UserID),
		))
	defer span.End()

	start := time.Now()
	result := "error"
	defer func() {
		if m.metrics != nil {
			m.metrics.MaterializeTotal.WithLabelValues(result).Inc()
			m.metrics.MaterializeLatency.WithLabelValues(result).Observe(float64(time.Since(start).Milliseconds()))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
	}()

	if m.cfg.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ProcessingTimeout)
		defer cancel()
	}

	order, err := domain.NewVoucherOrder(msg, m.now())
	if err != nil {
		result = "fatal"
		logger.Ctx(ctx).Error().Err(err).Bool("critical", true).Msg("invalid order intent")
		return err
	}

	created, err := m.persistUnderLock(ctx, order)
	switch {
	case err == nil && created:
		result = "created"
	case err == nil:
		result = "duplicate"
		span.AddEvent("order already materialized")
		return nil
	case domain.IsFatal(err):
		result = "fatal"
		return err
	default:
		return err
	}

	logger.Ctx(ctx).Info().Int64("orderId", order.ID).Int64("voucherId", order.VoucherID).
		Int64("userId", order.UserID).Msg("voucher order materialized")
	span.AddEvent("order persisted")

	m.refreshCachesAsync(ctx, order.VoucherID)
	if m.notifier != nil {
		if nerr := m.notifier.SendOrderCreated(ctx, order); nerr != nil {
			logger.Ctx(ctx).Warn().Err(nerr).Int64("orderId", order.ID).Msg("failed to send order created notification")
		}
	}
	return nil
}

// persistUnderLock 返回 true 表示本次调用真正写入了订单
func (m *OrderMaterializer) persistUnderLock(ctx context.Context, order *domain.VoucherOrder) (bool, error) {
	key := orderLockPrefix + strconv.FormatInt(order.ID, 10)
	lock, err := m.locker.TryLock(ctx, key, m.cfg.LockWait, m.cfg.LockLease)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("lock", key).Msg("failed to acquire order lock")
		return false, err
	}
	defer func() {
		if uerr := lock.Unlock(context.WithoutCancel(ctx)); uerr != nil {
			logger.Ctx(ctx).Warn().Err(uerr).Str("lock", key).Msg("failed to release order lock")
		}
	}()

	exists, err := m.repo.ExistsByID(ctx, order.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	exists, err = m.repo.ExistsByUserAndVoucher(ctx, order.UserID, order.VoucherID)
	if err != nil {
		return false, err
	}
	if exists {
		logger.Ctx(ctx).Warn().Int64("orderId", order.ID).Int64("userId", order.UserID).
			Int64("voucherId", order.VoucherID).Msg("user already holds an order for this voucher")
		return false, nil
	}

	// 租约可能已在等待数据库时过期
	held, err := lock.Held(ctx)
	if err != nil {
		return false, err
	}
	if !held {
		return false, errors.Wrap(port.ErrLockNotHeld, key)
	}

	err = m.repo.CreateOrderWithStockDeduction(ctx, order)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrOrderExists):
		return false, nil
	case errors.Is(err, domain.ErrStockNotEnough):
		logger.Ctx(ctx).Error().Bool("critical", true).Int64("orderId", order.ID).
			Int64("voucherId", order.VoucherID).Msg("reservation accepted but durable stock exhausted")
		return false, errors.Wrapf(domain.ErrStockInvariantViolated, "voucher %d order %d", order.VoucherID, order.ID)
	default:
		return false, err
	}
}

// refreshCachesAsync 在锁外刷新库存和优惠券缓存，脱离消费上下文但可在停机时等待
func (m *OrderMaterializer) refreshCachesAsync(ctx context.Context, voucherID int64) {
	if m.caches == nil || m.vouchers == nil {
		return
	}
	m.refreshing.Add(1)
	go func() {
		defer m.refreshing.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.RefreshTimeout)
		defer cancel()
		m.refreshCaches(rctx, voucherID)
	}()
}

func (m *OrderMaterializer) refreshCaches(ctx context.Context, voucherID int64) {
	stockKey := domain.SeckillStockCacheKey(voucherID)
	voucherKey := domain.VoucherCacheKey(voucherID)

	sv, err := m.vouchers.FindSeckillVoucher(ctx, voucherID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("voucherId", voucherID).Msg("failed to load seckill voucher, cleaning caches")
		m.caches.SendCacheCleanMessage(ctx, stockKey)
		m.caches.SendCacheCleanMessage(ctx, voucherKey)
		return
	}
	m.caches.UpdateCacheWithMessage(ctx, stockKey, sv.Snapshot(), m.cfg.StockCacheTTL)

	v, err := m.vouchers.FindVoucher(ctx, voucherID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("voucherId", voucherID).Msg("failed to load voucher, cleaning caches")
		m.caches.SendCacheCleanMessage(ctx, stockKey)
		m.caches.SendCacheCleanMessage(ctx, voucherKey)
		return
	}
	m.caches.UpdateCacheWithMessage(ctx, voucherKey, v, m.cfg.VoucherCacheTTL)
}

// Wait 等待所有进行中的缓存刷新完成，或 ctx 结束
func (m *OrderMaterializer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.refreshing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
