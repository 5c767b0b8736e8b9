package gateway

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdcp/internal/metrics"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/envelope"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcp"
	"github.com/taoyao-code/iot-sdcp/internal/tcpserver"
)

// NewExchangeHandler 构建 TCP 连接处理器：每个连接读取一个请求帧，
// 交给 handler 处理后写回一个响应帧，然后关闭连接。
// 信封读取失败（I/O、标记、编码、长度）直接关闭连接，不调用 handler；
// 帧解析失败时 handler 以错误参数被调用。appm 与 logger 均可为 nil。
func NewExchangeHandler(
	handler sdcp.Handler,
	limits envelope.Limits,
	appm *metrics.AppMetrics,
	logger *zap.Logger,
) func(*tcpserver.ConnContext) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.MaxPayload == 0 {
		limits = envelope.DefaultLimits()
	}
	return func(cc *tcpserver.ConnContext) {
		log := logger.With(cc.LogFields()...)
		if appm != nil {
			appm.ActiveConns.Inc()
			defer appm.ActiveConns.Dec()
		}

		payload, err := envelope.Read(cc.Reader(), sdcp.Marker, limits)
		if err != nil {
			reason := envelope.Reason(err)
			if appm != nil {
				appm.EnvelopeErrors.WithLabelValues(reason).Inc()
			}
			log.Info("request envelope rejected", zap.String("reason", reason), zap.Error(err))
			return
		}

		req, decodeErr := sdcp.Decode(payload)
		if decodeErr != nil {
			log.Debug("request frame invalid", zap.Error(decodeErr))
		}

		start := time.Now()
		resp := invoke(handler, req, decodeErr, log)
		if appm != nil {
			appm.HandlerDuration.Observe(time.Since(start).Seconds())
		}

		if err := envelope.Write(cc, sdcp.Marker, sdcp.Encode(resp)); err != nil {
			log.Warn("response write failed", zap.Error(err))
			return
		}
		if appm != nil {
			appm.ExchangeTotal.WithLabelValues(commandLabel(resp.Command), resultLabel(resp.Result)).Inc()
		}
		log.Debug("exchange completed",
			zap.String("command", string(req.Command)),
			zap.String("result", string(resp.Result)))
	}
}

// invoke 调用处理器，panic 转换为 NONE/FAILED 响应
func invoke(h sdcp.Handler, req sdcp.Frame, decodeErr error, log *zap.Logger) (resp sdcp.Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic", zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
			resp = sdcp.FailedResponse(sdcp.CommandNONE)
		}
	}()
	return h.Handle(req, decodeErr)
}

// labelOther 未定义的命令与结果共用一个标签值，指标序列数量有界
const labelOther = "OTHER"

func commandLabel(c sdcp.Command) string {
	if c.Known() {
		return string(c)
	}
	return labelOther
}

func resultLabel(r sdcp.Result) string {
	switch r {
	case sdcp.ResultOK, sdcp.ResultFailed:
		return string(r)
	}
	return labelOther
}
