package device

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcp"
)

// NewSocketHandler 将插座状态暴露为 SDCP 参数
func NewSocketHandler(sock *Socket, logger *zap.Logger) sdcp.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return sdcp.HandlerFunc(func(req sdcp.Frame, err error) sdcp.Frame {
		if err != nil {
			logger.Warn("sdcp request rejected", zap.Error(err))
			return sdcp.FailedResponse(sdcp.CommandNONE)
		}

		switch req.Command {
		case sdcp.CommandGETP:
			return getParams(sock, req)
		case sdcp.CommandSETP:
			return setParams(sock, req, logger)
		default:
			// INFO、BEAT 及未识别命令：空参数成功帧
			return sdcp.NewResponse(req.Command, sdcp.ResultOK)
		}
	})
}

func getParams(sock *Socket, req sdcp.Frame) sdcp.Frame {
	out := make([]sdcp.ParamItem, 0, len(req.Parameters))
	for _, p := range req.Parameters {
		v, ok := sock.Get(p.Name)
		if !ok {
			v = ValueUnknown
		}
		out = append(out, sdcp.Param(p.Name, v))
	}
	return sdcp.NewResponse(sdcp.CommandGETP, sdcp.ResultOK, out...)
}

func setParams(sock *Socket, req sdcp.Frame, logger *zap.Logger) sdcp.Frame {
	if err := sock.Apply(req.Parameters); err != nil {
		logger.Info("setp rejected", zap.String("device", sock.Name()), zap.Error(err))
		return sdcp.FailedResponse(sdcp.CommandSETP)
	}
	out := make([]sdcp.ParamItem, len(req.Parameters))
	copy(out, req.Parameters)
	return sdcp.NewResponse(sdcp.CommandSETP, sdcp.ResultOK, out...)
}
