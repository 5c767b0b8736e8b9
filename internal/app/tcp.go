package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
	"github.com/taoyao-code/iot-sdcp/internal/metrics"
	"github.com/taoyao-code/iot-sdcp/internal/tcpserver"
)

// NewTCPServer 根据配置创建 SDCP 服务端并挂接指标回调
func NewTCPServer(cfg cfgpkg.TCPConfig, appm *metrics.AppMetrics, logger *zap.Logger) *tcpserver.Server {
	srv := tcpserver.New(cfg, logger)
	if appm != nil {
		srv.SetMetricsCallbacks(
			func() { appm.TCPAccepted.Inc() },
			func(n int) { appm.TCPBytesReceived.Add(float64(n)) },
		)
	}
	return srv
}
