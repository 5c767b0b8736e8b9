package bootstrap

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdcp/internal/api"
	"github.com/taoyao-code/iot-sdcp/internal/api/middleware"
	"github.com/taoyao-code/iot-sdcp/internal/app"
	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
	"github.com/taoyao-code/iot-sdcp/internal/device"
	"github.com/taoyao-code/iot-sdcp/internal/gateway"
	"github.com/taoyao-code/iot-sdcp/internal/health"
	"github.com/taoyao-code/iot-sdcp/internal/httpserver"
	"github.com/taoyao-code/iot-sdcp/internal/metrics"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/envelope"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcpu"
	redisstorage "github.com/taoyao-code/iot-sdcp/internal/storage/redis"
	"github.com/taoyao-code/iot-sdcp/internal/tcpserver"
)

// App 插座设备进程：SDCP 服务端、可选的 SDCPU 遥测接收与 HTTP 管理面
type App struct {
	cfg    *cfgpkg.Config
	log    *zap.Logger
	Socket *device.Socket
	Slot   *sdcpu.Slot

	ready   *health.Readiness
	httpSrv *httpserver.Server
	httpLn  net.Listener
	tcpSrv  *tcpserver.Server
	recv    *sdcpu.Receiver
	redis   *redisstorage.Client

	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New 创建进程骨架，不占用任何端口
func New(cfg *cfgpkg.Config, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		log:    log,
		Socket: device.NewSocket(cfg.App.DeviceName),
		ready:  health.New(),
	}
}

// Start 按依赖顺序启动各组件，SDCP 服务端最后启动。任一步失败时已启动的组件会被关闭。
func (a *App) Start() (err error) {
	cfg, log := a.cfg, a.log
	log.Info("starting sdcp device", zap.String("device", a.Socket.Name()))
	defer func() {
		if err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = a.Shutdown(ctx)
		}
	}()

	// ========== 阶段1: 基础组件 ==========
	reg, appm := app.NewMetrics()
	healthAgg := app.NewHealthAggregator()
	handler := device.NewSocketHandler(a.Socket, log)

	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel

	// ========== 阶段2: Redis（可选） ==========
	a.redis, err = app.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	var publisher sdcpu.Publisher
	if a.redis != nil {
		publisher = app.NewTelemetryPublisher(a.redis, cfg.Redis)
		app.AddRedisChecker(healthAgg, a.redis)
	}

	// ========== 阶段3: SDCPU 遥测接收（可选） ==========
	if cfg.UDP.Enable {
		a.ready.RequireTelemetry()
		if err = a.startTelemetry(bgCtx, appm, publisher); err != nil {
			log.Error("telemetry receiver start failed", zap.Error(err))
			return err
		}
		app.AddTelemetryChecker(healthAgg, a.Slot, cfg.UDP.StaleAfter)
	}

	// ========== 阶段4: HTTP（可选） ==========
	if cfg.HTTP.Enable {
		a.httpSrv = app.NewHTTPServer(cfg, reg, a.ready, healthAgg, func(r *gin.Engine) {
			api.RegisterStateRoutes(r, api.NewStateHandler(a.Socket, handler, a.Slot, log),
				middleware.NewAuthConfig(cfg.HTTP.APIKeys), log)
		})
		if a.httpLn, err = net.Listen("tcp", cfg.HTTP.Addr); err != nil {
			log.Error("http listen failed", zap.Error(err))
			return err
		}
		a.bg.Add(1)
		go func() {
			defer a.bg.Done()
			if err := a.httpSrv.Serve(a.httpLn); err != nil {
				log.Error("http server error", zap.Error(err))
			}
		}()
		log.Info("http server started", zap.String("addr", a.httpLn.Addr().String()))
	}

	// ========== 阶段5: 最后启动 SDCP 服务端 ==========
	a.tcpSrv = app.NewTCPServer(cfg.TCP, appm, log)
	a.tcpSrv.SetConnHandler(gateway.NewExchangeHandler(handler,
		envelope.Limits{MaxPayload: cfg.TCP.MaxPayload}, appm, log))
	if err = a.tcpSrv.Start(); err != nil {
		log.Error("tcp server start failed", zap.Error(err))
		return err
	}
	a.ready.SetTCPReady(true)
	app.AddTCPChecker(healthAgg, a.tcpSrv)
	log.Info("all services ready, waiting for connections")
	return nil
}

func (a *App) startTelemetry(ctx context.Context, appm *metrics.AppMetrics, publisher sdcpu.Publisher) error {
	conn, err := sdcpu.Listen(a.cfg.UDP.ListenAddr)
	if err != nil {
		return err
	}
	a.Slot = sdcpu.NewSlot()
	opts := []sdcpu.ReceiverOption{
		sdcpu.WithBufferSize(a.cfg.UDP.BufferSize),
		sdcpu.WithLogger(a.log),
		sdcpu.WithDatagramCallback(appm.ObserveDatagram),
	}
	if publisher != nil {
		opts = append(opts, sdcpu.WithPublisher(publisher))
	}
	recv := sdcpu.NewReceiver(conn, a.Slot, opts...)
	a.recv = recv

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		if err := recv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("telemetry receiver stopped", zap.Error(err))
		}
	}()
	a.ready.SetTelemetryReady(true)
	a.log.Info("telemetry receiver started", zap.String("addr", recv.Addr().String()))
	return nil
}

// TCPAddr SDCP 实际监听地址
func (a *App) TCPAddr() net.Addr {
	if a.tcpSrv == nil {
		return nil
	}
	return a.tcpSrv.Addr()
}

// HTTPAddr HTTP 实际监听地址，未启用时为 nil
func (a *App) HTTPAddr() net.Addr {
	if a.httpLn == nil {
		return nil
	}
	return a.httpLn.Addr()
}

// UDPAddr SDCPU 接收地址，未启用时为 nil
func (a *App) UDPAddr() net.Addr {
	if a.recv == nil {
		return nil
	}
	return a.recv.Addr()
}

// Ready 进程是否就绪
func (a *App) Ready() bool { return a.ready.Ready() }

// Shutdown 依次停止 SDCP 服务端、HTTP、后台循环与 Redis
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.ready.SetTCPReady(false)
	if a.tcpSrv != nil {
		if err := a.tcpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.log.Info("tcp server stopped")
	}
	if a.httpSrv != nil {
		if err := a.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.log.Info("http server stopped")
	} else if a.httpLn != nil {
		_ = a.httpLn.Close()
	}
	if a.bgCancel != nil {
		a.bgCancel()
	}
	a.bg.Wait()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return errors.Join(errs...)
}

// Run 启动后阻塞直至 ctx 结束，然后优雅关闭
func Run(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) error {
	a := New(cfg, log)
	if err := a.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	a.log.Info("received shutdown signal, gracefully shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}
