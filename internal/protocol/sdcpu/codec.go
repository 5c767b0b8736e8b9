package sdcpu

import (
	"strings"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/envelope"
)

// Encode 编码为 `HEADER=<proto>;Name=Value;...`。
// 声明版本只取自 Protocol，参数列表中的 HEADER 不再重复输出。
func Encode(f Frame) []byte {
	proto := f.Protocol
	if proto == "" {
		proto = Marker
	}
	var b strings.Builder
	b.WriteString(ParamHeader)
	b.WriteByte('=')
	b.WriteString(proto)
	b.WriteByte(';')
	for _, p := range f.Parameters {
		if strings.EqualFold(p.Name, ParamHeader) {
			continue
		}
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(p.Value)
		b.WriteByte(';')
	}
	return []byte(b.String())
}

// Decode 解析遥测文本。
// 与 SDCP 不同：不含 '=' 的片段直接跳过，参数为空也不算错误。
// 键与值统一大写；HEADER 覆盖 Protocol 且不出现在参数列表中。
func Decode(data []byte) (Frame, error) {
	if err := envelope.ValidUTF8(data); err != nil {
		return Frame{}, err
	}

	f := Empty()
	for _, seg := range strings.Split(string(data), ";") {
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		key, value = strings.ToUpper(key), strings.ToUpper(value)
		if key == ParamHeader {
			f.Protocol = value
			continue
		}
		f.Parameters = append(f.Parameters, ParamItem{Name: key, Value: value})
	}
	return f, nil
}

// DecodeDatagram 校验数据报外层封装后解码
func DecodeDatagram(datagram []byte) (Frame, error) {
	payload, err := envelope.Parse(datagram, Marker)
	if err != nil {
		return Frame{}, err
	}
	return Decode(payload)
}

// EncodeDatagram 组装完整数据报
func EncodeDatagram(f Frame) []byte {
	return envelope.Pack(Marker, Encode(f))
}
