package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// 报文格式: 协议标记(定长ASCII) + 长度(4字节大端) + 载荷(UTF-8文本)
const LengthSize = 4

// DefaultMaxPayload 默认最大载荷长度
const DefaultMaxPayload = 64 * 1024

var (
	// ErrInvalidPacket 结构错误：标记不匹配、长度不符、帧内容非法
	ErrInvalidPacket = errors.New("invalid packet")
	// ErrBadEncoding 载荷不是合法的UTF-8
	ErrBadEncoding = errors.New("bad encoding")
	// ErrPayloadTooLarge 声明长度超过上限，归类为结构错误
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrInvalidPacket)
)

// Limits 限制单个报文的内存占用
type Limits struct {
	MaxPayload uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayload: DefaultMaxPayload}
}

// Pack 组装完整报文
func Pack(marker string, payload []byte) []byte {
	buf := make([]byte, 0, len(marker)+LengthSize+len(payload))
	buf = append(buf, marker...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	return buf
}

// Write 一次性写出标记、长度与载荷，任一环节失败即整体失败
func Write(w io.Writer, marker string, payload []byte) error {
	if _, err := w.Write(Pack(marker, payload)); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

// Read 从字节流读取恰好一个报文并返回载荷。
// 读取不足属于 I/O 错误，不做部分解码。
func Read(r io.Reader, marker string, limits Limits) ([]byte, error) {
	head := make([]byte, len(marker)+LengthSize)
	if _, err := io.ReadFull(r, head[:len(marker)]); err != nil {
		return nil, fmt.Errorf("read marker: %w", err)
	}
	if string(head[:len(marker)]) != marker {
		return nil, ErrInvalidPacket
	}
	if _, err := io.ReadFull(r, head[len(marker):]); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}
	size := binary.BigEndian.Uint32(head[len(marker):])
	if limits.MaxPayload > 0 && size > limits.MaxPayload {
		return nil, ErrPayloadTooLarge
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if err := ValidUTF8(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Parse 校验数据报并返回载荷。数据报按实际收到的字节校验，
// 比声明长度短（包括被接收缓冲区截断）一律视为非法报文。
func Parse(datagram []byte, marker string) ([]byte, error) {
	headLen := len(marker) + LengthSize
	if len(datagram) < headLen {
		return nil, ErrInvalidPacket
	}
	if string(datagram[:len(marker)]) != marker {
		return nil, ErrInvalidPacket
	}
	size := binary.BigEndian.Uint32(datagram[len(marker):headLen])
	if uint64(len(datagram)-headLen) < uint64(size) {
		return nil, ErrInvalidPacket
	}
	payload := datagram[headLen : headLen+int(size)]
	if err := ValidUTF8(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ValidUTF8 载荷解码前的编码检查
func ValidUTF8(payload []byte) error {
	if !utf8.Valid(payload) {
		return ErrBadEncoding
	}
	return nil
}

// Reason 将错误归类为指标标签
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPayloadTooLarge):
		return "too_large"
	case errors.Is(err, ErrInvalidPacket):
		return "invalid_packet"
	case errors.Is(err, ErrBadEncoding):
		return "bad_encoding"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "short_read"
	default:
		return "io"
	}
}
