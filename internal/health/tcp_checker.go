package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/iot-sdcp/internal/tcpserver"
)

// ConnStats TCPChecker 需要的服务端统计
type ConnStats interface {
	ActiveConnections() int
	MaxConnections() int
	GetLimiterStats() tcpserver.LimiterStats
	GetRateLimiterStats() *tcpserver.RateLimiterStats
}

var _ ConnStats = (*tcpserver.Server)(nil)

// TCPChecker SDCP 服务端连接占用检查
type TCPChecker struct {
	server ConnStats
}

// NewTCPChecker 创建TCP健康检查器
func NewTCPChecker(server ConnStats) *TCPChecker {
	return &TCPChecker{server: server}
}

// Name 返回检查器名称
func (c *TCPChecker) Name() string {
	return "tcp"
}

// Check 连接占用超过 80% 降级，超过 95% 不健康
func (c *TCPChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	activeConns := c.server.ActiveConnections()
	maxConns := c.server.MaxConnections()
	if maxConns <= 0 {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "no limiting enabled",
			Details: map[string]any{"active_connections": activeConns},
			Latency: time.Since(start),
		}
	}

	utilization := float64(activeConns) / float64(maxConns)
	status := StatusHealthy
	message := "ok"
	if utilization > 0.8 {
		status = StatusDegraded
		message = "high connection usage"
	}
	if utilization > 0.95 {
		status = StatusUnhealthy
		message = "connection limit near exhausted"
	}

	details := map[string]any{
		"active_connections": activeConns,
		"max_connections":    maxConns,
		"utilization":        fmt.Sprintf("%.1f%%", utilization*100),
		"rejected_total":     c.server.GetLimiterStats().RejectedTotal,
	}
	if rs := c.server.GetRateLimiterStats(); rs != nil {
		details["rate_rejected_total"] = rs.RejectedTotal
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
