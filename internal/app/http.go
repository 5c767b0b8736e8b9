package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
	"github.com/taoyao-code/iot-sdcp/internal/health"
	"github.com/taoyao-code/iot-sdcp/internal/httpserver"
	"github.com/taoyao-code/iot-sdcp/internal/metrics"
)

// NewHTTPServer 组装管理面 HTTP 服务。
// 指标端点仅在 metrics.enable 时挂载；/readyz 跟随 ready，/health 系列跟随 agg，routes 为业务路由。
func NewHTTPServer(cfg *cfgpkg.Config, reg *prometheus.Registry, ready *health.Readiness, agg *health.Aggregator, routes ...func(r *gin.Engine)) *httpserver.Server {
	var metricsHandler http.Handler
	if cfg.Metrics.Enable && reg != nil {
		metricsHandler = metrics.Handler(reg)
	}
	var readyFn func() bool
	if ready != nil {
		readyFn = ready.Ready
	}

	srv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, readyFn)
	srv.Register(func(r *gin.Engine) {
		if agg != nil {
			RegisterHealthRoutes(r, agg)
		}
		for _, fn := range routes {
			fn(r)
		}
	})
	return srv
}
