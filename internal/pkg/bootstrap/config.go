// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/pkg/nacos"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config 是服务的全部配置，来源依次为 yaml 文件、环境变量、Nacos 配置中心。
type Config struct {
	App     AppConfig     `yaml:"app"`
	Infra   InfraConfig   `yaml:"infra"`
	Seckill SeckillConfig `yaml:"seckill"`
}

type AppConfig struct {
	Name      string `yaml:"name"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogPretty bool   `yaml:"logPretty"`
}

type InfraConfig struct {
	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
	Redis struct {
		Addrs string `yaml:"addrs"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      string `yaml:"brokers"`
		EnsureTopics bool   `yaml:"ensureTopics"`
	} `yaml:"kafka"`
	MySQL struct {
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"maxOpenConns"`
		MaxIdleConns int    `yaml:"maxIdleConns"`
	} `yaml:"mysql"`
	Zookeeper struct {
		Servers        string        `yaml:"servers"`
		SessionTimeout time.Duration `yaml:"sessionTimeout"`
	} `yaml:"zookeeper"`
	Nacos NacosConfig `yaml:"nacos"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
	DataID      string `yaml:"dataId"`
}

type SeckillConfig struct {
	// IDGenerator 取值 redis 或 snowflake
	IDGenerator   string `yaml:"idGenerator"`
	SnowflakeNode int64  `yaml:"snowflakeNode"`

	Lock struct {
		// Backend 取值 redis 或 zookeeper
		Backend string        `yaml:"backend"`
		Wait    time.Duration `yaml:"wait"`
		Lease   time.Duration `yaml:"lease"`
	} `yaml:"lock"`

	Topics struct {
		Order        string `yaml:"order"`
		CacheUpdate  string `yaml:"cacheUpdate"`
		CacheClean   string `yaml:"cacheClean"`
		Notification string `yaml:"notification"`
	} `yaml:"topics"`

	ConsumerGroup        string        `yaml:"consumerGroup"`
	OrderMaxRetries      int           `yaml:"orderMaxRetries"`
	OrderRetryDelay      time.Duration `yaml:"orderRetryDelay"`
	ProcessingTimeout    time.Duration `yaml:"processingTimeout"`
	ReservationRetention time.Duration `yaml:"reservationRetention"`
	RunDelayForwarder    bool          `yaml:"runDelayForwarder"`

	Cache struct {
		StockTTL   time.Duration `yaml:"stockTTL"`
		VoucherTTL time.Duration `yaml:"voucherTTL"`
		MaxRetries int           `yaml:"maxRetries"`
	} `yaml:"cache"`

	RateLimit struct {
		Window  time.Duration `yaml:"window"`
		Limit   int           `yaml:"limit"`
		Message string        `yaml:"message"`
	} `yaml:"rateLimit"`
}

// DefaultConfig 返回所有字段都有合理默认值的配置。
func DefaultConfig() *Config {
	c := &Config{}
	c.App.Name = "seckill-service"
	c.App.Port = 8081
	c.App.LogLevel = "info"

	c.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	c.Infra.Redis.Addrs = "localhost:6379"
	c.Infra.Kafka.Brokers = "localhost:9092"
	c.Infra.MySQL.DSN = "root:root@tcp(localhost:3306)/hmdp?charset=utf8mb4&parseTime=true&loc=Local"
	c.Infra.MySQL.MaxOpenConns = 50
	c.Infra.MySQL.MaxIdleConns = 10
	c.Infra.Zookeeper.Servers = "localhost:2181"
	c.Infra.Zookeeper.SessionTimeout = 10 * time.Second
	c.Infra.Nacos.ServerAddrs = "localhost:8848"
	c.Infra.Nacos.Group = nacos.DefaultGroup
	c.Infra.Nacos.DataID = "seckill-service.yaml"

	s := &c.Seckill
	s.IDGenerator = "redis"
	s.SnowflakeNode = 1
	s.Lock.Backend = "redis"
	s.Lock.Wait = 3 * time.Second
	s.Lock.Lease = 10 * time.Second
	s.Topics.Order = "seckill_order_topic"
	s.Topics.CacheUpdate = "cache_update_topic"
	s.Topics.CacheClean = "cache_clean_topic"
	s.Topics.Notification = "notifications"
	s.ConsumerGroup = "seckill-order-group"
	s.OrderMaxRetries = 5
	s.OrderRetryDelay = 5 * time.Second
	s.ProcessingTimeout = 30 * time.Second
	s.ReservationRetention = 24 * time.Hour
	s.RunDelayForwarder = true
	s.Cache.StockTTL = 30 * time.Minute
	s.Cache.VoucherTTL = 60 * time.Minute
	s.Cache.MaxRetries = 3
	s.RateLimit.Window = 10 * time.Second
	s.RateLimit.Limit = 10
	s.RateLimit.Message = "秒杀活动太火爆，请稍后再试"
	return c
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回当前生效的配置，Init 之前返回默认配置。
func GetCurrentConfig() *Config {
	if c := currentConfig.Load(); c != nil {
		return c
	}
	return DefaultConfig()
}

func setCurrentConfig(c *Config) {
	currentConfig.Store(c)
}

var nacosConfigClient *nacos.ConfigClient

// Init 加载配置：yaml 文件 -> 环境变量 -> Nacos 配置中心（可选），并初始化日志。
func Init() (*Config, error) {
	cfg, err := LoadFile(getEnv("CONFIG_FILE", "configs/config.yaml"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	logger.Init(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogPretty)

	if cfg.Infra.Nacos.Enabled {
		if err := loadFromNacos(cfg); err != nil {
			// 配置中心不可用时继续使用本地配置
			log.Warn().Err(err).Msg("failed to load config from nacos, using local config")
		}
	}
	setCurrentConfig(cfg)
	return cfg, nil
}

// LoadFile 在默认配置之上合并 yaml 文件，文件不存在时直接返回默认配置。
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config file %s", path)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.App.Name = getEnv("SERVICE_NAME", cfg.App.Name)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	if p, err := strconv.Atoi(getEnv("PORT", "")); err == nil {
		cfg.App.Port = p
	}
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.Kafka.Brokers = getEnv("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.MySQL.DSN = getEnv("MYSQL_DSN", cfg.Infra.MySQL.DSN)
	cfg.Infra.Zookeeper.Servers = getEnv("ZK_SERVERS", cfg.Infra.Zookeeper.Servers)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	if v, err := strconv.ParseBool(getEnv("NACOS_ENABLED", "")); err == nil {
		cfg.Infra.Nacos.Enabled = v
	}
}

// loadFromNacos 用配置中心的内容覆盖本地配置，并监听后续变更。
func loadFromNacos(cfg *Config) error {
	n := cfg.Infra.Nacos
	serverConfigs, err := nacos.ServerConfigs(n.ServerAddrs)
	if err != nil {
		return err
	}
	clientConfig := nacos.ClientConfig(n.Namespace)
	client, err := nacos.NewConfigClient(serverConfigs, &clientConfig)
	if err != nil {
		return err
	}
	nacosConfigClient = client

	content, err := client.Get(n.DataID, n.Group)
	if err != nil {
		return errors.Wrapf(err, "get nacos config %s", n.DataID)
	}
	if content != "" {
		if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
			return errors.Wrapf(err, "parse nacos config %s", n.DataID)
		}
	}

	return client.Listen(n.DataID, n.Group, func(data string) {
		next := *GetCurrentConfig()
		if err := yaml.Unmarshal([]byte(data), &next); err != nil {
			log.Error().Err(err).Str("dataId", n.DataID).Msg("ignoring invalid nacos config update")
			return
		}
		setCurrentConfig(&next)
		log.Info().Str("dataId", n.DataID).Msg("config reloaded from nacos")
	})
}

// getEnv 从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
