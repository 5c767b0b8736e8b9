package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdcp/internal/app"
	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
	"github.com/taoyao-code/iot-sdcp/internal/logging"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcp"
)

type globalConfig struct {
	configPath string
	target     string
	timeout    time.Duration
	printJSON  bool
	verbose    bool

	cfg    *cfgpkg.Config
	client *sdcp.Client
	logger *zap.Logger
}

// load 读取配置并按命令行参数覆盖，随后创建客户端
func (g *globalConfig) load(cmd *cobra.Command) error {
	cfg, err := cfgpkg.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.target != "" {
		cfg.Client.Target = g.target
	}
	if g.timeout > 0 {
		cfg.Client.IOTimeout = g.timeout
	}
	level := "warn"
	if g.verbose {
		level = "debug"
	}
	g.cfg = cfg
	g.logger = logging.NewConsole(level, cmd.ErrOrStderr())
	g.client = app.NewSDCPClient(cfg.Client, g.logger)
	return nil
}

func (g *globalConfig) request(ctx context.Context, req sdcp.Frame) (sdcp.Frame, error) {
	return g.client.Request(ctx, req, g.cfg.Client.Target)
}

func newRootCmd() *cobra.Command {
	g := &globalConfig{}
	rootCmd := &cobra.Command{
		Use:           "sdcpctl",
		Short:         "SDCP device control client",
		Long:          "Use sdcpctl to query and control SDCP devices and to watch SDCPU telemetry",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&g.target, "target", "t", "", "Device address, overrides client.target")
	rootCmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 0, "Receive timeout, overrides client.ioTimeout")
	rootCmd.PersistentFlags().BoolVar(&g.printJSON, "json", false, "Print results in json")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(getCmd(g))
	rootCmd.AddCommand(setCmd(g))
	rootCmd.AddCommand(infoCmd(g))
	rootCmd.AddCommand(replCmd(g))
	rootCmd.AddCommand(watchCmd(g))
	rootCmd.AddCommand(houseCmd(g))
	rootCmd.AddCommand(configCmd(g))
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
