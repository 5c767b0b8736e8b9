package app

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/iot-sdcp/internal/health"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcpu"
	"github.com/taoyao-code/iot-sdcp/internal/tcpserver"
)

// NewHealthAggregator 创建空的健康检查聚合器，各组件就绪后再添加检查器
func NewHealthAggregator() *health.Aggregator {
	return health.NewAggregator()
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// AddTCPChecker 添加TCP检查器到聚合器
func AddTCPChecker(aggregator *health.Aggregator, tcpServer *tcpserver.Server) {
	aggregator.AddChecker(health.NewTCPChecker(tcpServer))
}

// AddTelemetryChecker 添加遥测新鲜度检查器
func AddTelemetryChecker(aggregator *health.Aggregator, slot *sdcpu.Slot, staleAfter time.Duration) {
	aggregator.AddChecker(health.NewTelemetryChecker(slot, staleAfter))
}
