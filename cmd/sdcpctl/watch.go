package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdcp/internal/app"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcpu"
	redisstorage "github.com/taoyao-code/iot-sdcp/internal/storage/redis"
)

// 没有读数时的占位
const missingValue = "?"

type watchConfig struct {
	listen   string
	useRedis bool
	follow   bool
	interval time.Duration
	count    int
}

func watchCmd(g *globalConfig) *cobra.Command {
	wCfg := &watchConfig{}
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the latest TEMPERATURE once per interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if wCfg.follow {
				if !wCfg.useRedis {
					return errors.New("--follow requires --redis")
				}
				return g.followRedis(ctx, cmd, wCfg.count)
			}
			var (
				read    func(context.Context) string
				cleanup func()
				err     error
			)
			if wCfg.useRedis {
				read, cleanup, err = g.redisReader()
			} else {
				read, cleanup, err = g.listenUDP(ctx, wCfg.listen)
			}
			if err != nil {
				return err
			}
			defer cleanup()
			return watchLoop(ctx, cmd, wCfg, read)
		},
	}
	watchCmd.Flags().StringVarP(&wCfg.listen, "listen", "l", "", "UDP listen address, defaults to udp.listenAddr")
	watchCmd.Flags().BoolVar(&wCfg.useRedis, "redis", false, "Read the latest snapshot from Redis instead of binding UDP")
	watchCmd.Flags().BoolVarP(&wCfg.follow, "follow", "f", false, "With --redis, print every published snapshot instead of polling")
	watchCmd.Flags().DurationVar(&wCfg.interval, "interval", time.Second, "Print interval")
	watchCmd.Flags().IntVarP(&wCfg.count, "count", "n", 0, "Stop after n prints, 0 runs until interrupted")
	return watchCmd
}

func watchLoop(ctx context.Context, cmd *cobra.Command, wCfg *watchConfig, read func(context.Context) string) error {
	if wCfg.interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", wCfg.interval)
	}
	ticker := time.NewTicker(wCfg.interval)
	defer ticker.Stop()
	for printed := 0; wCfg.count == 0 || printed < wCfg.count; printed++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Temperature: %s\n", read(ctx))
	}
	return nil
}

func (g *globalConfig) listenUDP(ctx context.Context, listen string) (func(context.Context) string, func(), error) {
	if listen == "" {
		listen = g.cfg.UDP.ListenAddr
	}
	conn, err := sdcpu.Listen(listen)
	if err != nil {
		return nil, nil, err
	}
	read, cleanup := g.udpReader(ctx, conn)
	return read, cleanup, nil
}

// udpReader 在后台接收遥测，read 返回槽位中的最新温度
func (g *globalConfig) udpReader(ctx context.Context, conn net.PacketConn) (func(context.Context) string, func()) {
	slot := sdcpu.NewSlot()
	recv := sdcpu.NewReceiver(conn, slot,
		sdcpu.WithBufferSize(g.cfg.UDP.BufferSize),
		sdcpu.WithLogger(g.logger))

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := recv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Warn("telemetry receiver stopped", zap.Error(err))
		}
	}()
	g.logger.Debug("watching telemetry", zap.String("addr", recv.Addr().String()))

	read := func(context.Context) string {
		if v, ok := slot.Value(sdcpu.ParamTemperature); ok {
			return v
		}
		return missingValue
	}
	return read, func() { cancel(); <-done }
}

// redisReader 轮询设备进程发布到 Redis 的最新快照
func (g *globalConfig) redisReader() (func(context.Context) string, func(), error) {
	rcfg := g.cfg.Redis
	rcfg.Enabled = true
	client, err := redisstorage.NewClient(rcfg)
	if err != nil {
		return nil, nil, err
	}
	pub := app.NewTelemetryPublisher(client, rcfg)

	read := func(ctx context.Context) string {
		snap, ok, err := pub.Latest(ctx)
		if err != nil {
			g.logger.Warn("read telemetry from redis failed", zap.Error(err))
			return missingValue
		}
		if !ok {
			return missingValue
		}
		if v, ok := snap.Frame.Get(sdcpu.ParamTemperature); ok {
			return v
		}
		return missingValue
	}
	return read, func() { _ = client.Close() }, nil
}

// followRedis 订阅遥测频道，每收到一帧打印一次；count>0 时收满即退出
func (g *globalConfig) followRedis(ctx context.Context, cmd *cobra.Command, count int) error {
	rcfg := g.cfg.Redis
	rcfg.Enabled = true
	client, err := redisstorage.NewClient(rcfg)
	if err != nil {
		return err
	}
	defer client.Close()
	pub := app.NewTelemetryPublisher(client, rcfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	printed := 0
	err = pub.Subscribe(ctx, func(snap sdcpu.Snapshot) {
		v, ok := snap.Frame.Get(sdcpu.ParamTemperature)
		if !ok {
			v = missingValue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Temperature: %s\n", v)
		if printed++; count > 0 && printed >= count {
			cancel()
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
