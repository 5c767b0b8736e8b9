package sdcpu

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Sender 单向发送遥测数据报，无确认、无重试
type Sender struct {
	conn   net.PacketConn
	target net.Addr
}

// Dial 绑定 local（可为空）并解析目标地址
func Dial(local, target string) (*Sender, error) {
	if local == "" {
		local = ":0"
	}
	raddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("resolve target: %w", err)
	}
	conn, err := net.ListenPacket("udp", local)
	if err != nil {
		return nil, fmt.Errorf("bind: %w", err)
	}
	return NewSender(conn, raddr), nil
}

func NewSender(conn net.PacketConn, target net.Addr) *Sender {
	return &Sender{conn: conn, target: target}
}

// Send 发送一个数据报
func (s *Sender) Send(f Frame) error {
	if _, err := s.conn.WriteTo(EncodeDatagram(f), s.target); err != nil {
		return fmt.Errorf("send datagram: %w", err)
	}
	return nil
}

// ErrInvalidInterval 发送周期必须为正
var ErrInvalidInterval = errors.New("sdcpu: interval must be positive")

// Run 每隔 interval 发送一次 source() 的结果，直至 ctx 取消。
// 发送错误交给 onErr 处理后继续。
func (s *Sender) Run(ctx context.Context, interval time.Duration, source func() Frame, onErr func(error)) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.Send(source()); err != nil && onErr != nil {
			onErr(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sender) Close() error { return s.conn.Close() }
