package sdcp

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/envelope"
	"github.com/taoyao-code/iot-sdcp/internal/resilience"
)

// serveOnce 在回环地址上接受一个连接，读取一个报文后用 reply 生成回写字节
func serveOnce(t *testing.T, reply func(payload []byte, err error) []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
		payload, err := envelope.Read(conn, Marker, envelope.DefaultLimits())
		if out := reply(payload, err); out != nil {
			_, _ = conn.Write(out)
		}
	}()
	return ln.Addr().String()
}

func TestClient_Request(t *testing.T) {
	var got []byte
	addr := serveOnce(t, func(payload []byte, err error) []byte {
		got = payload
		return envelope.Pack(Marker, []byte("Command=SETP;Result=OK;STATUS=TRUE;"))
	})

	resp, err := NewClient().Request(context.Background(), NewRequest(CommandSETP, Param(ParamStatus, "true")), addr)
	require.NoError(t, err)
	assert.Equal(t, "Command=SETP;Result=OK;STATUS=true;", string(got))
	assert.Equal(t, CommandSETP, resp.Command)
	assert.True(t, resp.OK())
	v, ok := resp.Get(ParamStatus)
	assert.True(t, ok)
	assert.Equal(t, "TRUE", v)
}

func TestClient_ErrorClassification(t *testing.T) {
	req := NewRequest(CommandGETP, Param(ParamPwrcon, ""))

	t.Run("连接失败", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		_, err = NewClient(WithDialTimeout(time.Second)).Request(context.Background(), req, addr)
		var rerr *RequestError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, OpConnect, rerr.Op)
	})

	t.Run("对端关闭导致接收失败", func(t *testing.T) {
		addr := serveOnce(t, func([]byte, error) []byte { return nil })
		_, err := NewClient().Request(context.Background(), req, addr)
		var rerr *RequestError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, OpRecv, rerr.Op)
		assert.NotErrorIs(t, err, ErrInvalidPacket)
	})

	t.Run("标记错误", func(t *testing.T) {
		addr := serveOnce(t, func([]byte, error) []byte {
			return envelope.Pack("SDCP 0.0.2", []byte("Command=GETP;Result=OK;PWRCON=0;"))
		})
		_, err := NewClient().Request(context.Background(), req, addr)
		var rerr *RequestError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, OpRecv, rerr.Op)
		assert.ErrorIs(t, err, ErrInvalidPacket)
	})

	t.Run("空参数响应", func(t *testing.T) {
		addr := serveOnce(t, func([]byte, error) []byte {
			return envelope.Pack(Marker, Encode(FailedResponse(CommandSETP)))
		})
		_, err := NewClient().Request(context.Background(), req, addr)
		var rerr *RequestError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, OpDecode, rerr.Op)
		assert.ErrorIs(t, err, ErrInvalidPacket)
	})

	t.Run("超时", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		go func() {
			conn, err := ln.Accept()
			if err == nil {
				time.Sleep(500 * time.Millisecond)
				_ = conn.Close()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err = NewClient().Request(ctx, req, ln.Addr().String())
		var rerr *RequestError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, OpRecv, rerr.Op)
	})

	t.Run("IOTimeout早于ctx截止时间", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		go func() {
			conn, err := ln.Accept()
			if err == nil {
				time.Sleep(2 * time.Second)
				_ = conn.Close()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		start := time.Now()
		_, err = NewClient(WithIOTimeout(100*time.Millisecond)).Request(ctx, req, ln.Addr().String())
		var rerr *RequestError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, OpRecv, rerr.Op)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestClient_Breaker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cb := resilience.NewCircuitBreaker(2, time.Minute)
	c := NewClient(WithBreaker(cb), WithDialTimeout(time.Second))
	req := NewRequest(CommandGETP, Param(ParamStatus, ""))

	for i := 0; i < 2; i++ {
		_, err := c.Request(context.Background(), req, addr)
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, cb.State())

	_, err = c.Request(context.Background(), req, addr)
	var rerr *RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, OpConnect, rerr.Op)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
}

func TestClient_BreakerIgnoresDecodeErrors(t *testing.T) {
	cb := resilience.NewCircuitBreaker(1, time.Minute)
	c := NewClient(WithBreaker(cb))

	addr := serveOnce(t, func([]byte, error) []byte {
		return envelope.Pack(Marker, Encode(FailedResponse(CommandNONE)))
	})
	_, err := c.Request(context.Background(), NewRequest(CommandINFO, Param("A", "")), addr)
	assert.ErrorIs(t, err, ErrInvalidPacket)
	assert.Equal(t, resilience.StateClosed, cb.State())
}

func TestRequestError_Message(t *testing.T) {
	err := &RequestError{Op: OpSend, Addr: "127.0.0.1:55100", Err: errors.New("broken pipe")}
	assert.Equal(t, "sdcp send 127.0.0.1:55100: broken pipe", err.Error())
}
