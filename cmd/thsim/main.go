package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
	"github.com/taoyao-code/iot-sdcp/internal/device"
	"github.com/taoyao-code/iot-sdcp/internal/logging"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcpu"
)

// ramp 模拟持续升温的温度计
type ramp struct {
	therm *device.Thermometer
	step  float64
}

func newRamp(start, step float64) *ramp {
	t := device.NewThermometer("Thermometer simulator")
	t.SetTemperature(start)
	return &ramp{therm: t, step: step}
}

// next 先升温再生成遥测帧
func (r *ramp) next() sdcpu.Frame {
	r.therm.SetTemperature(r.therm.Temperature() + r.step)
	return sdcpu.NewFrame(sdcpu.ParamItem{
		Name:  sdcpu.ParamTemperature,
		Value: strconv.FormatFloat(r.therm.Temperature(), 'f', -1, 64),
	})
}

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	target := flag.String("target", "", "接收端地址，默认 udp.targetAddr")
	local := flag.String("local", "", "本地绑定地址，默认随机端口")
	start := flag.Float64("start", 10.0, "起始温度")
	step := flag.Float64("step", 0.25, "每次发送的升温幅度")
	flag.Parse()

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *target == "" {
		*target = cfg.UDP.TargetAddr
	}
	sender, err := sdcpu.Dial(*local, *target)
	if err != nil {
		logger.Fatal("udp sender init failed", zap.String("target", *target), zap.Error(err))
	}
	defer sender.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := newRamp(*start, *step)
	logger.Info("thermometer simulator started",
		zap.String("target", *target),
		zap.Duration("interval", cfg.UDP.Interval))

	source := func() sdcpu.Frame {
		f := r.next()
		fmt.Printf("\rtemperature %s   ", strconv.FormatFloat(r.therm.Temperature(), 'f', -1, 64))
		return f
	}
	err = sender.Run(ctx, cfg.UDP.Interval, source, func(err error) {
		logger.Warn("send telemetry failed", zap.Error(err))
	})
	fmt.Println()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sender stopped", zap.Error(err))
	}
}
