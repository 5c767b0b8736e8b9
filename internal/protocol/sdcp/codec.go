package sdcp

import (
	"strings"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/envelope"
)

// 报文内的保留键
const (
	keyCommand = "Command"
	keyResult  = "Result"
)

// ErrInvalidPacket 与 ErrBadEncoding 直接复用传输层的错误分类
var (
	ErrInvalidPacket = envelope.ErrInvalidPacket
	ErrBadEncoding   = envelope.ErrBadEncoding
)

// Encode 编码为 `Command=X;Result=Y;Name=Value;...`。
// 名称与值中的 '=' ';' 不做转义（协议本身的限制）。
func Encode(f Frame) []byte {
	cmd := f.Command
	if cmd == "" {
		cmd = CommandNONE
	}
	res := f.Result
	if res == "" {
		res = ResultOK
	}

	var b strings.Builder
	writeToken(&b, keyCommand, string(cmd))
	writeToken(&b, keyResult, string(res))
	for _, p := range f.Parameters {
		writeToken(&b, p.Name, p.Value)
	}
	return []byte(b.String())
}

func writeToken(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte(';')
}

// Decode 解析文本载荷。
// 键与值统一转为大写；Result 可缺省（默认 OK）；没有应用参数的帧视为非法。
func Decode(data []byte) (Frame, error) {
	if err := envelope.ValidUTF8(data); err != nil {
		return Frame{}, err
	}

	f := Frame{Protocol: Marker, Command: CommandNONE, Result: ResultOK}
	for _, seg := range strings.Split(string(data), ";") {
		if seg == "" {
			continue
		}
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			return Frame{}, ErrInvalidPacket
		}
		switch {
		case strings.EqualFold(key, keyCommand):
			f.Command = ParseCommand(value)
		case strings.EqualFold(key, keyResult):
			if value != "" {
				f.Result = Result(strings.ToUpper(value))
			}
		default:
			f.Parameters = append(f.Parameters, ParamItem{
				Name:  strings.ToUpper(key),
				Value: strings.ToUpper(value),
			})
		}
	}
	if len(f.Parameters) == 0 {
		return Frame{}, ErrInvalidPacket
	}
	return f, nil
}
