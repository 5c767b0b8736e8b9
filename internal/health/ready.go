package health

import "sync/atomic"

// Readiness 进程级就绪状态：SDCP 监听成功后就绪；
// 启用遥测接收时还要求 UDP 绑定成功。
type Readiness struct {
	tcpReady          atomic.Bool
	telemetryRequired atomic.Bool
	telemetryReady    atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetTCPReady(v bool) { r.tcpReady.Store(v) }

// RequireTelemetry 声明就绪判断需要遥测接收端
func (r *Readiness) RequireTelemetry() { r.telemetryRequired.Store(true) }

func (r *Readiness) SetTelemetryReady(v bool) { r.telemetryReady.Store(v) }

// Ready 总体就绪
func (r *Readiness) Ready() bool {
	if !r.tcpReady.Load() {
		return false
	}
	return !r.telemetryRequired.Load() || r.telemetryReady.Load()
}
