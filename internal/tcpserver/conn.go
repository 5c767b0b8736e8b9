package tcpserver

import (
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrConnClosed 连接已关闭
var ErrConnClosed = errors.New("tcpserver: connection closed")

// ConnContext 单个 TCP 连接的上下文：标识、读写与关闭
type ConnContext struct {
	s          *Server
	c          net.Conn
	id         uint64
	exchangeID string
	closed     atomic.Bool
	doneC      chan struct{}
}

func newConnContext(s *Server, c net.Conn) *ConnContext {
	return &ConnContext{
		s:          s,
		c:          c,
		id:         s.nextConnID.Add(1),
		exchangeID: uuid.NewString(),
		doneC:      make(chan struct{}),
	}
}

// ID 返回连接ID（单进程唯一递增）
func (cc *ConnContext) ID() uint64 { return cc.id }

// ExchangeID 本连接上请求/响应交互的唯一标识，用于日志关联
func (cc *ConnContext) ExchangeID() string { return cc.exchangeID }

// RemoteAddr 返回远端地址
func (cc *ConnContext) RemoteAddr() net.Addr { return cc.c.RemoteAddr() }

// LogFields 连接标识日志字段
func (cc *ConnContext) LogFields() []zap.Field {
	return []zap.Field{
		zap.Uint64("conn_id", cc.id),
		zap.String("exchange_id", cc.exchangeID),
		zap.String("remote_addr", cc.RemoteAddr().String()),
	}
}

// Reader 读取连接数据，同时上报接收字节数
func (cc *ConnContext) Reader() io.Reader { return countingReader{cc: cc} }

// Write 同步写入，受写超时约束
func (cc *ConnContext) Write(b []byte) (int, error) {
	if cc.closed.Load() {
		return 0, ErrConnClosed
	}
	if to := cc.s.cfg.WriteTimeout; to > 0 {
		_ = cc.c.SetWriteDeadline(time.Now().Add(to))
	}
	return cc.c.Write(b)
}

// Close 关闭连接，可重复调用
func (cc *ConnContext) Close() error {
	if !cc.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(cc.doneC)
	return cc.c.Close()
}

// Done 返回连接关闭通知通道
func (cc *ConnContext) Done() <-chan struct{} { return cc.doneC }

type countingReader struct{ cc *ConnContext }

func (r countingReader) Read(p []byte) (int, error) {
	n, err := r.cc.c.Read(p)
	if n > 0 && r.cc.s.onRecvBytes != nil {
		r.cc.s.onRecvBytes(n)
	}
	return n, err
}
