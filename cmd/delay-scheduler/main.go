// cmd/delay-scheduler/main.go
package main

import (
	"github.com/JackieRio/dianpingPlus/internal/pkg/bootstrap"
	"github.com/JackieRio/dianpingPlus/internal/pkg/mq"
	"github.com/JackieRio/dianpingPlus/internal/pkg/utils"
	"github.com/rs/zerolog/log"
)

const serviceName = "delay-scheduler"

// 独立部署的延迟转发器，seckill-service 设置 runDelayForwarder: false 时使用
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port + 1,
		RegisterHandlers: func(app bootstrap.AppCtx) error {
			brokers := utils.SplitAndTrim(app.Config.Infra.Kafka.Brokers)
			forwarder := mq.NewDelayForwarder(serviceName, mq.DefaultDelayLevels,
				mq.KafkaReaderFactory(brokers), mq.KafkaWriterFactory(brokers))
			app.AddRunner(forwarder)
			return nil
		},
	})
}
