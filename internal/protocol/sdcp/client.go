package sdcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/envelope"
	"github.com/taoyao-code/iot-sdcp/internal/resilience"
)

// RequestOp 请求失败所处的阶段
type RequestOp string

const (
	OpConnect RequestOp = "connect" // 建立连接失败
	OpSend    RequestOp = "send"    // 发送失败
	OpRecv    RequestOp = "recv"    // 接收失败（含标记/长度不符）
	OpDecode  RequestOp = "decode"  // 收到的帧无法解析
)

// RequestError 区分网络失败与协议层报文错误
type RequestError struct {
	Op   RequestOp
	Addr string
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("sdcp %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Client 一次连接完成一次请求/响应
type Client struct {
	DialTimeout time.Duration
	IOTimeout   time.Duration
	Limits      envelope.Limits
	Breaker     *resilience.CircuitBreaker

	dialer func(ctx context.Context, network, addr string) (net.Conn, error)
}

// ClientOption 客户端选项
type ClientOption func(*Client)

func WithDialTimeout(d time.Duration) ClientOption { return func(c *Client) { c.DialTimeout = d } }

func WithIOTimeout(d time.Duration) ClientOption { return func(c *Client) { c.IOTimeout = d } }

// WithBreaker 传输失败计入熔断器，协议层错误与 FAILED 结果不计入
func WithBreaker(cb *resilience.CircuitBreaker) ClientOption {
	return func(c *Client) { c.Breaker = cb }
}

// NewClient 创建客户端
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		DialTimeout: 5 * time.Second,
		IOTimeout:   10 * time.Second,
		Limits:      envelope.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		d := &net.Dialer{Timeout: c.DialTimeout}
		c.dialer = d.DialContext
	}
	return c
}

// Request 建立连接，发送请求帧，等待恰好一个响应帧
func (c *Client) Request(ctx context.Context, req Frame, addr string) (Frame, error) {
	if c.Breaker == nil {
		return c.exchange(ctx, req, addr)
	}

	var resp Frame
	var decodeErr error
	err := c.Breaker.Call(func() error {
		var err error
		resp, err = c.exchange(ctx, req, addr)
		var rerr *RequestError
		if errors.As(err, &rerr) && rerr.Op == OpDecode {
			decodeErr = err
			return nil
		}
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyProbes) {
		return Frame{}, &RequestError{Op: OpConnect, Addr: addr, Err: err}
	}
	if err != nil {
		return Frame{}, err
	}
	if decodeErr != nil {
		return Frame{}, decodeErr
	}
	return resp, nil
}

func (c *Client) exchange(ctx context.Context, req Frame, addr string) (Frame, error) {
	conn, err := c.dialer(ctx, "tcp", addr)
	if err != nil {
		return Frame{}, &RequestError{Op: OpConnect, Addr: addr, Err: err}
	}
	defer conn.Close()

	// 取 IOTimeout 与 ctx 截止时间中较早者
	var deadline time.Time
	if c.IOTimeout > 0 {
		deadline = time.Now().Add(c.IOTimeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	if !deadline.IsZero() {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if err := envelope.Write(conn, Marker, Encode(req)); err != nil {
		return Frame{}, &RequestError{Op: OpSend, Addr: addr, Err: err}
	}

	payload, err := envelope.Read(conn, Marker, c.Limits)
	if err != nil {
		return Frame{}, &RequestError{Op: OpRecv, Addr: addr, Err: err}
	}

	resp, err := Decode(payload)
	if err != nil {
		return Frame{}, &RequestError{Op: OpDecode, Addr: addr, Err: err}
	}
	return resp, nil
}
