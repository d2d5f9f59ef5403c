// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/nacos"
	"github.com/JackieRio/dianpingPlus/internal/pkg/tracing"
	"github.com/JackieRio/dianpingPlus/internal/pkg/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Runner 是随服务启停的后台组件，例如 Kafka 消费者。
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

type lifecycle struct {
	mu      sync.Mutex
	runners []Runner
	closers []func(ctx context.Context) error
}

type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client // 未启用 Nacos 时为 nil
	Config *Config
	lc     *lifecycle
}

// AddRunner 注册一个后台组件，服务启动后 Start，关停时按注册的逆序 Stop。
func (a AppCtx) AddRunner(r Runner) {
	a.lc.mu.Lock()
	defer a.lc.mu.Unlock()
	a.lc.runners = append(a.lc.runners, r)
}

// OnShutdown 注册资源释放函数，在所有 Runner 停止之后按逆序执行。
func (a AppCtx) OnShutdown(fn func(ctx context.Context) error) {
	a.lc.mu.Lock()
	defer a.lc.mu.Unlock()
	a.lc.closers = append(a.lc.closers, fn)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) error // 注册路由、组装依赖
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	if info.Port == 0 {
		info.Port = cfg.App.Port
	}

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. Nacos 服务注册（可选）
	var namingClient *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Enabled {
		serverConfigs, err := nacos.ServerConfigs(cfg.Infra.Nacos.ServerAddrs)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid Nacos server address format")
		}
		clientConfig := nacos.ClientConfig(cfg.Infra.Nacos.Namespace)
		namingClient, err = nacos.NewNacosClientWithConfigs(serverConfigs, &clientConfig, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		if ip, err = utils.GetOutboundIP(); err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
	}

	// 3. 组装依赖、注册路由
	appCtx := AppCtx{Mux: http.NewServeMux(), Nacos: namingClient, Config: cfg, lc: &lifecycle{}}
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			log.Fatal().Err(err).Str("service", info.ServiceName).Msg("failed to set up service")
		}
	}

	// 4. 启动后台组件
	// Start 只负责拉起 goroutine，runCtx 贯穿整个运行期
	runCtx, cancelRun := context.WithCancel(context.Background())
	var g errgroup.Group
	for _, r := range appCtx.lc.runners {
		g.Go(func() error { return r.Start(runCtx) })
	}
	if err := g.Wait(); err != nil {
		cancelRun()
		log.Fatal().Err(err).Msg("failed to start background runners")
	}

	// 5. 启动 HTTP Server
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: appCtx.Mux}
	go func() {
		log.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", server.Addr).Msg("could not listen")
		}
	}()

	if namingClient != nil {
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	// 6. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Str("service", info.ServiceName).Msg("Shutting down service...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// a. 从 Nacos 注销服务，不再接收新流量
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Error().Err(err).Msg("Error deregistering from Nacos")
		}
		namingClient.Close()
	}
	if nacosConfigClient != nil {
		nacosConfigClient.Close()
	}

	// b. 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down http server")
	}

	// c. 停止后台组件 (后进先出)
	cancelRun()
	for i := len(appCtx.lc.runners) - 1; i >= 0; i-- {
		appCtx.lc.runners[i].Stop(ctx)
	}
	for i := len(appCtx.lc.closers) - 1; i >= 0; i-- {
		if err := appCtx.lc.closers[i](ctx); err != nil {
			log.Error().Err(err).Msg("Error releasing resource")
		}
	}

	// d. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	}

	log.Info().Str("service", info.ServiceName).Msg("Service gracefully shut down.")
}
