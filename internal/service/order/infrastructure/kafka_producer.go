package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/pkg/mq"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/pkg/errors"
)

// OrderProducerAdapter 把下单意图写入订单主题，以 orderId 作为分区键
type OrderProducerAdapter struct {
	writer mq.MessageWriter
}

func NewOrderProducerAdapter(writer mq.MessageWriter) *OrderProducerAdapter {
	return &OrderProducerAdapter{writer: writer}
}

func (p *OrderProducerAdapter) Produce(ctx context.Context, msg *domain.SeckillMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal seckill message")
	}

	key := []byte(strconv.FormatInt(msg.OrderID, 10))
	if err := mq.ProduceMessage(ctx, p.writer, key, value); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("orderId", msg.OrderID).Msg("Failed to produce seckill message to Kafka")
		return err
	}
	return nil
}
