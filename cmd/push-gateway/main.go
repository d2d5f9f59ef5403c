package main

import (
	"context"
	"encoding/json"

	"github.com/JackieRio/dianpingPlus/internal/pkg/bootstrap"
	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/pkg/mq"
	"github.com/JackieRio/dianpingPlus/internal/pkg/push"
	"github.com/JackieRio/dianpingPlus/internal/pkg/utils"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const serviceName = "push-gateway"

var nodeID = serviceName + "-" + uuid.New().String()[:8]

// hubRunner 让 Hub 跟随服务启停
type hubRunner struct {
	hub    *push.Hub
	cancel context.CancelFunc
}

func (r *hubRunner) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.hub.Run(ctx)
	return nil
}

func (r *hubRunner) Stop(context.Context) {
	if r.cancel != nil {
		r.cancel()
	}
}

func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8088,
		RegisterHandlers: func(app bootstrap.AppCtx) error {
			hub := push.NewHub(nodeID)
			app.Mux.HandleFunc("/ws", hub.ServeWs)

			// 每个网关节点一个独立的消费组，所有节点都能收到全部通知，只投递给本节点在线的用户
			topic := cfg.Seckill.Topics.Notification
			reader := mq.NewKafkaReader(utils.SplitAndTrim(app.Config.Infra.Kafka.Brokers), topic, nodeID)
			consumer := mq.NewConsumer("notification-consumer", topic, reader, func(ctx context.Context, msg kafka.Message) error {
				var event domain.NotificationEvent
				if err := json.Unmarshal(msg.Value, &event); err != nil {
					logger.Ctx(ctx).Warn().Err(err).Msg("dropping malformed notification")
					return nil
				}
				if hub.Send(event.UserID, msg.Value) {
					logger.Ctx(ctx).Debug().Str("userId", event.UserID).Str("orderId", event.OrderID).Msg("notification pushed")
				}
				return nil
			}, nil)

			// 按逆序停止，Hub 在消费者之后关闭
			app.AddRunner(&hubRunner{hub: hub})
			app.AddRunner(consumer)
			log.Info().Str("node", nodeID).Msg("push gateway assembled")
			return nil
		},
	})
}
