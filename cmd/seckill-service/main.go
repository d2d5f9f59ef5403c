// cmd/seckill-service/main.go
package main

import (
	"context"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/bootstrap"
	"github.com/JackieRio/dianpingPlus/internal/pkg/identity"
	"github.com/JackieRio/dianpingPlus/internal/pkg/idgen"
	"github.com/JackieRio/dianpingPlus/internal/pkg/metrics"
	"github.com/JackieRio/dianpingPlus/internal/pkg/mq"
	"github.com/JackieRio/dianpingPlus/internal/pkg/ratelimit"
	"github.com/JackieRio/dianpingPlus/internal/pkg/redis"
	"github.com/JackieRio/dianpingPlus/internal/pkg/utils"
	"github.com/JackieRio/dianpingPlus/internal/service/order/application"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
	"github.com/JackieRio/dianpingPlus/internal/service/order/infrastructure"
	"github.com/JackieRio/dianpingPlus/internal/service/order/infrastructure/adapter"
	"github.com/JackieRio/dianpingPlus/internal/service/order/interfaces"
	voucherApp "github.com/JackieRio/dianpingPlus/internal/service/voucher/application"
	voucherInfra "github.com/JackieRio/dianpingPlus/internal/service/voucher/infrastructure"
	voucherHTTP "github.com/JackieRio/dianpingPlus/internal/service/voucher/interfaces"
	"github.com/JackieRio/dianpingPlus/internal/zookeeper"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const serviceName = "seckill-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      cfg.App.Name,
		Port:             cfg.App.Port,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(app bootstrap.AppCtx) error {
	cfg := app.Config
	sc := cfg.Seckill
	tracer := otel.Tracer(serviceName)
	m := metrics.Default()
	brokers := utils.SplitAndTrim(cfg.Infra.Kafka.Brokers)

	// 1. 初始化核心技术组件
	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		return errors.Wrap(err, "failed to initialize redis client")
	}
	app.OnShutdown(func(context.Context) error { return redisClient.Close() })

	db, err := openMySQL(cfg)
	if err != nil {
		return err
	}

	if cfg.Infra.Kafka.EnsureTopics {
		if err := ensureTopics(brokers, sc); err != nil {
			log.Warn().Err(err).Msg("failed to ensure kafka topics")
		}
	}

	newWriter := mq.KafkaWriterFactory(brokers)
	newReader := mq.KafkaReaderFactory(brokers)
	closeWriter := func(w mq.MessageWriter) {
		app.OnShutdown(func(context.Context) error { return w.Close() })
	}

	orderWriter := newWriter(sc.Topics.Order)
	dltWriter := newWriter(mq.DLTTopic(sc.Topics.Order))
	updateWriter := newWriter(sc.Topics.CacheUpdate)
	cleanWriter := newWriter(sc.Topics.CacheClean)
	notificationWriter := newWriter(sc.Topics.Notification)
	for _, w := range []mq.MessageWriter{orderWriter, dltWriter, updateWriter, cleanWriter, notificationWriter} {
		closeWriter(w)
	}
	delayProducer := mq.NewDelayProducer(newWriter, mq.DefaultDelayLevels)
	app.OnShutdown(func(context.Context) error { return delayProducer.Close() })

	// 2. 出站适配器
	ids, err := newIDGenerator(sc, redisClient)
	if err != nil {
		return err
	}
	seckillAdapter, err := adapter.NewSeckillRedisAdapter(redisClient, sc.ReservationRetention)
	if err != nil {
		return err
	}
	locker, err := newLocker(app, cfg, redisClient, m)
	if err != nil {
		return err
	}
	limiter, err := ratelimit.NewLimiter(redisClient)
	if err != nil {
		return err
	}
	orderRepo := infrastructure.NewGormOrderRepository(db)
	voucherRepo := voucherInfra.NewGormVoucherRepository(db)
	cacheStore := adapter.NewCacheRedisAdapter(redisClient)
	cachePublisher := adapter.NewCacheKafkaAdapter(updateWriter, cleanWriter, sc.Topics.CacheUpdate, delayProducer)

	// 3. 应用服务
	cacheManager := application.NewCacheManager(cacheStore, cachePublisher, sc.Cache.MaxRetries)
	cacheListener := application.NewCacheListener(cacheStore, cachePublisher, m)
	materializer := application.NewOrderMaterializer(application.MaterializerConfig{
		LockWait:          sc.Lock.Wait,
		LockLease:         sc.Lock.Lease,
		ProcessingTimeout: sc.ProcessingTimeout,
		StockCacheTTL:     sc.Cache.StockTTL,
		VoucherCacheTTL:   sc.Cache.VoucherTTL,
		RefreshTimeout:    5 * time.Second,
	}, orderRepo, locker, voucherRepo, cacheManager,
		adapter.NewNotificationKafkaAdapter(notificationWriter), tracer, m)
	orderService := application.NewOrderApplicationService(ids, seckillAdapter,
		infrastructure.NewOrderProducerAdapter(orderWriter), orderRepo, tracer, m)
	voucherService := voucherApp.NewVoucherService(voucherRepo, seckillAdapter, tracer).WithCacheEvictor(cacheManager)

	// 4. 驱动适配器：HTTP
	rule := ratelimit.Rule{
		Name:      "seckill",
		Window:    sc.RateLimit.Window,
		Limit:     sc.RateLimit.Limit,
		Message:   sc.RateLimit.Message,
		Dimension: ratelimit.DimensionUser,
	}
	interfaces.NewOrderHandler(orderService, identity.NewRedisTokenResolver(redisClient), limiter, rule, m).
		RegisterRoutes(app.Mux)
	voucherHTTP.NewVoucherHandler(voucherService).RegisterRoutes(app.Mux)

	// 5. 驱动适配器：Kafka 消费者
	failureHandler := mq.NewFailureHandler(mq.RetryPolicy{
		RetryTopic: sc.Topics.Order,
		Delay:      sc.OrderRetryDelay,
		MaxRetries: sc.OrderMaxRetries,
		IsFatal:    domain.IsFatal,
	}, delayProducer, dltWriter, mq.DLTTopic(sc.Topics.Order))
	failureHandler.OnDeadLetter = func(topic string) { m.DeadLetterTotal.WithLabelValues(topic).Inc() }

	if sc.RunDelayForwarder {
		app.AddRunner(mq.NewDelayForwarder(serviceName, mq.DefaultDelayLevels, newReader, newWriter))
	}
	app.AddRunner(interfaces.NewOrderConsumerAdapter(sc.Topics.Order,
		newReader(sc.Topics.Order, sc.ConsumerGroup), materializer, failureHandler))
	app.AddRunner(interfaces.NewCacheUpdateConsumer(sc.Topics.CacheUpdate,
		newReader(sc.Topics.CacheUpdate, serviceName+"-cache-update"), cacheListener))
	app.AddRunner(interfaces.NewCacheCleanConsumer(sc.Topics.CacheClean,
		newReader(sc.Topics.CacheClean, serviceName+"-cache-clean"), cacheListener))
	app.AddRunner(interfaces.NewDltConsumer(mq.DLTTopic(sc.Topics.Order),
		newReader(mq.DLTTopic(sc.Topics.Order), serviceName+"-dlt")))

	log.Info().Str("lock", sc.Lock.Backend).Str("idGenerator", sc.IDGenerator).Msg("seckill service assembled")
	return nil
}

func openMySQL(cfg *bootstrap.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.Infra.MySQL.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mysql")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.Infra.MySQL.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Infra.MySQL.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func newIDGenerator(sc bootstrap.SeckillConfig, redisClient *redis.Client) (idgen.Generator, error) {
	if sc.IDGenerator == "snowflake" {
		return idgen.NewSnowflakeGenerator(sc.SnowflakeNode)
	}
	return idgen.NewRedisIDWorker(redisClient), nil
}

func newLocker(app bootstrap.AppCtx, cfg *bootstrap.Config, redisClient *redis.Client, m *metrics.Metrics) (port.Locker, error) {
	if cfg.Seckill.Lock.Backend != "zookeeper" {
		return adapter.NewRedisLockAdapter(redisClient, m)
	}
	conn, err := zookeeper.Connect(utils.SplitAndTrim(cfg.Infra.Zookeeper.Servers), cfg.Infra.Zookeeper.SessionTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to zookeeper")
	}
	app.OnShutdown(func(context.Context) error {
		conn.Close()
		return nil
	})
	return adapter.NewZookeeperLockAdapter(conn, m), nil
}

func ensureTopics(brokers []string, sc bootstrap.SeckillConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	names := []string{
		sc.Topics.Order, mq.DLTTopic(sc.Topics.Order),
		sc.Topics.CacheUpdate, sc.Topics.CacheClean, sc.Topics.Notification,
	}
	for _, level := range mq.DefaultDelayLevels {
		names = append(names, level.Topic)
	}
	topics := make([]kafka.TopicConfig, 0, len(names))
	for _, name := range names {
		topics = append(topics, kafka.TopicConfig{Topic: name, NumPartitions: 3, ReplicationFactor: 1})
	}
	return mq.EnsureTopics(ctx, brokers, topics...)
}
