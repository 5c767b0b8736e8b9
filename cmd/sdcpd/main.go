package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdcp/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
	"github.com/taoyao-code/iot-sdcp/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（为空时读取 SDCP_CONFIG 或 ./configs/sdcp.yaml）")
	printConfig := flag.Bool("print-config", false, "打印生效配置后退出")
	flag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *printConfig {
		out, err := cfgpkg.Dump(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dump config: %v\n", err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 运行直至收到信号
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Run(ctx, cfg, logger); err != nil {
		logger.Error("sdcpd exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
