package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcp"
	"github.com/taoyao-code/iot-sdcp/internal/resilience"
)

// NewSDCPClient 按配置创建客户端；breakerThreshold>0 时启用熔断
func NewSDCPClient(cfg cfgpkg.ClientConfig, logger *zap.Logger) *sdcp.Client {
	opts := []sdcp.ClientOption{
		sdcp.WithDialTimeout(cfg.DialTimeout),
		sdcp.WithIOTimeout(cfg.IOTimeout),
	}
	if cfg.BreakerThreshold > 0 {
		cb := resilience.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerTimeout)
		cb.OnTransition(func(from, to resilience.State) {
			logger.Warn("sdcp client breaker state changed",
				zap.String("target", cfg.Target),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		})
		opts = append(opts, sdcp.WithBreaker(cb))
	}
	return sdcp.NewClient(opts...)
}
