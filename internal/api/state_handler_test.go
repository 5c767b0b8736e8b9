package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/iot-sdcp/internal/api/middleware"
	"github.com/taoyao-code/iot-sdcp/internal/device"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcpu"
)

func setupRouter(t *testing.T, slot *sdcpu.Slot, keys ...string) (*gin.Engine, *device.Socket) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sock := device.NewSocket("Electric socket #1")
	r := gin.New()
	RegisterStateRoutes(r, NewStateHandler(sock, device.NewSocketHandler(sock, nil), slot, nil),
		middleware.NewAuthConfig(keys), nil)
	return r, sock
}

func do(r *gin.Engine, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSocketRoutes(t *testing.T) {
	r, sock := setupRouter(t, nil)

	t.Run("读取初始状态", func(t *testing.T) {
		rr := do(r, http.MethodGet, "/api/v1/socket", "")
		require.Equal(t, http.StatusOK, rr.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "Electric socket #1", body["name"])
		assert.Equal(t, false, body["status"])
		assert.Equal(t, "Electric socket: Electric socket #1 State: OFF", body["info"])
	})

	t.Run("打开并设置功耗", func(t *testing.T) {
		rr := do(r, http.MethodPost, "/api/v1/socket", `{"status":true,"power_consumption":1500}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, sock.Status())
		assert.Equal(t, uint32(1500), sock.PowerConsumption())
	})

	t.Run("空请求", func(t *testing.T) {
		rr := do(r, http.MethodPost, "/api/v1/socket", `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("非法JSON", func(t *testing.T) {
		rr := do(r, http.MethodPost, "/api/v1/socket", `{"power_consumption":-1}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, uint32(1500), sock.PowerConsumption())
	})

	t.Run("遥测未启用", func(t *testing.T) {
		rr := do(r, http.MethodGet, "/api/v1/telemetry", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestTelemetryRoute(t *testing.T) {
	slot := sdcpu.NewSlot()
	r, _ := setupRouter(t, slot)

	rr := do(r, http.MethodGet, "/api/v1/telemetry", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "temperature\":")

	slot.Store(sdcpu.NewFrame(sdcpu.ParamItem{Name: sdcpu.ParamTemperature, Value: "10.25"}), "127.0.0.1:4000")
	rr = do(r, http.MethodGet, "/api/v1/telemetry", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "10.25", body["temperature"])
	assert.Contains(t, body, "age_ms")
}

func TestAPIKeyAuth(t *testing.T) {
	r, _ := setupRouter(t, nil, "sk_test_0123456789")

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/socket", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/socket", "", "X-API-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/socket", "", "X-API-Key", "sk_test_0123456789").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/socket", "", "Authorization", "Bearer sk_test_0123456789").Code)
}
