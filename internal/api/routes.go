package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdcp/internal/api/middleware"
)

// RegisterStateRoutes 注册设备状态路由
func RegisterStateRoutes(r *gin.Engine, h *StateHandler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v1 := r.Group("/api/v1")
	if authCfg.Enabled {
		v1.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled")
	}

	v1.GET("/socket", h.GetSocket)
	v1.POST("/socket", h.SetSocket)
	v1.GET("/telemetry", h.GetTelemetry)
}
