package sdcpu

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
)

// DefaultBufferSize 单个数据报的接收缓冲区。
// 超长数据报会被截断，截断后长度与声明不符而被判为非法报文。
const DefaultBufferSize = 1024

// DefaultPublishTimeout 单次分发的超时，超时后继续接收下一个数据报
const DefaultPublishTimeout = 500 * time.Millisecond

// Publisher 成功解析的遥测帧向外分发（可选）
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Receiver 接收循环：每个数据报解析后覆盖槽位
type Receiver struct {
	conn       net.PacketConn
	slot       *Slot
	bufSize    int
	logger     *zap.Logger
	publisher  Publisher
	pubTimeout time.Duration
	onDatagram func(result string)
}

// ReceiverOption 接收端选项
type ReceiverOption func(*Receiver)

func WithBufferSize(n int) ReceiverOption {
	return func(r *Receiver) {
		if n > 0 {
			r.bufSize = n
		}
	}
}

func WithLogger(l *zap.Logger) ReceiverOption {
	return func(r *Receiver) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithPublisher(p Publisher) ReceiverOption { return func(r *Receiver) { r.publisher = p } }

func WithPublishTimeout(d time.Duration) ReceiverOption {
	return func(r *Receiver) {
		if d > 0 {
			r.pubTimeout = d
		}
	}
}

// WithDatagramCallback 每个数据报处理完成后回调，result 为 ok|invalid
func WithDatagramCallback(fn func(result string)) ReceiverOption {
	return func(r *Receiver) { r.onDatagram = fn }
}

// Listen 绑定 UDP 地址
func Listen(addr string) (net.PacketConn, error) {
	return net.ListenPacket("udp", addr)
}

// NewReceiver 创建接收端，conn 的生命周期归 Receiver 管理
func NewReceiver(conn net.PacketConn, slot *Slot, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		conn:    conn,
		slot:    slot,
		bufSize:    DefaultBufferSize,
		pubTimeout: DefaultPublishTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Addr 本地监听地址
func (r *Receiver) Addr() net.Addr { return r.conn.LocalAddr() }

// Run 阻塞直至 ctx 取消；单个数据报的错误不会终止循环
func (r *Receiver) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = r.conn.Close() })
	defer stop()

	buf := make([]byte, r.bufSize)
	for {
		n, src, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			r.logger.Warn("datagram receive failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}
		r.handle(ctx, buf[:n], addrString(src))
	}
}

func (r *Receiver) handle(ctx context.Context, datagram []byte, source string) {
	f, err := DecodeDatagram(datagram)
	if err != nil {
		r.slot.Invalidate(source)
		r.logger.Debug("invalid telemetry datagram",
			zap.String("remote_addr", source),
			zap.Int("size", len(datagram)),
			zap.Error(err))
		r.notify("invalid")
		return
	}

	r.slot.Store(f, source)
	r.publish(ctx)
	r.notify("ok")
}

func (r *Receiver) publish(ctx context.Context) {
	if r.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, r.pubTimeout)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, r.slot.Load()); err != nil {
		r.logger.Warn("telemetry publish failed",
			zap.Duration("timeout", r.pubTimeout),
			zap.Error(err))
	}
}

func (r *Receiver) notify(result string) {
	if r.onDatagram != nil {
		r.onDatagram(result)
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
