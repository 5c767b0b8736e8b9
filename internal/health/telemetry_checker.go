package health

import (
	"context"
	"time"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcpu"
)

// TelemetryChecker 遥测槽位新鲜度检查。
// 从未收到、超过 staleAfter 未更新或最近一个数据报非法时为降级，不会判为不健康。
type TelemetryChecker struct {
	slot       *sdcpu.Slot
	staleAfter time.Duration
	now        func() time.Time
}

func NewTelemetryChecker(slot *sdcpu.Slot, staleAfter time.Duration) *TelemetryChecker {
	return &TelemetryChecker{slot: slot, staleAfter: staleAfter, now: time.Now}
}

func (c *TelemetryChecker) Name() string { return "telemetry" }

func (c *TelemetryChecker) Check(ctx context.Context) CheckResult {
	start := c.now()
	snap := c.slot.Load()
	age := snap.Age(start)

	details := map[string]any{
		"valid":  snap.Valid,
		"source": snap.Source,
	}
	result := CheckResult{Status: StatusHealthy, Message: "ok", Details: details}

	switch {
	case age < 0:
		result.Status = StatusDegraded
		result.Message = "no telemetry received"
	case !snap.Valid:
		details["age"] = age.String()
		result.Status = StatusDegraded
		result.Message = "last datagram invalid"
	case c.staleAfter > 0 && age > c.staleAfter:
		details["age"] = age.String()
		result.Status = StatusDegraded
		result.Message = "telemetry stale"
	default:
		details["age"] = age.String()
	}
	result.Latency = c.now().Sub(start)
	return result
}
