package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdcp/internal/device"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcp"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcpu"
)

// StateHandler 设备状态的只读/控制接口。
// 写操作经由与 SDCP 服务端相同的处理器执行，语义与 SETP 一致。
type StateHandler struct {
	sock    *device.Socket
	handler sdcp.Handler
	slot    *sdcpu.Slot
	logger  *zap.Logger
}

// NewStateHandler slot 为 nil 时遥测接口返回 404
func NewStateHandler(sock *device.Socket, handler sdcp.Handler, slot *sdcpu.Slot, logger *zap.Logger) *StateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateHandler{sock: sock, handler: handler, slot: slot, logger: logger}
}

type socketView struct {
	Name string `json:"name"`
	device.SocketState
	Info string `json:"info"`
}

// SetSocketRequest 未提供的字段保持不变
type SetSocketRequest struct {
	Status           *bool   `json:"status"`
	PowerConsumption *uint32 `json:"power_consumption"`
}

// GetSocket 当前插座状态
func (h *StateHandler) GetSocket(c *gin.Context) {
	c.JSON(http.StatusOK, socketView{
		Name:        h.sock.Name(),
		SocketState: h.sock.Snapshot(),
		Info:        h.sock.Info(),
	})
}

// SetSocket 以 SETP 修改插座状态
func (h *StateHandler) SetSocket(c *gin.Context) {
	var req SetSocketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var params []sdcp.ParamItem
	if req.Status != nil {
		params = append(params, sdcp.Param(sdcp.ParamStatus, strconv.FormatBool(*req.Status)))
	}
	if req.PowerConsumption != nil {
		params = append(params, sdcp.Param(sdcp.ParamPwrcon, strconv.FormatUint(uint64(*req.PowerConsumption), 10)))
	}
	if len(params) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no parameters"})
		return
	}

	resp := h.handler.Handle(sdcp.NewRequest(sdcp.CommandSETP, params...), nil)
	if !resp.OK() {
		h.logger.Info("http setp rejected", zap.String("remote_addr", c.ClientIP()))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "setp failed", "result": resp.Result})
		return
	}
	h.GetSocket(c)
}

// GetTelemetry 最近一帧遥测
func (h *StateHandler) GetTelemetry(c *gin.Context) {
	if h.slot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "telemetry disabled"})
		return
	}
	snap := h.slot.Load()
	body := gin.H{"snapshot": snap}
	if age := snap.Age(time.Now()); age >= 0 {
		body["age_ms"] = age.Milliseconds()
	}
	if v, ok := snap.Frame.Get(sdcpu.ParamTemperature); ok {
		body["temperature"] = v
	}
	c.JSON(http.StatusOK, body)
}
