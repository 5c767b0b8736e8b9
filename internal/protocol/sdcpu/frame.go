package sdcpu

import (
	"strings"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcp"
)

// Marker 遥测协议标记
const Marker = "SDCPU 0.0.1"

const (
	// ParamHeader 发送端声明的协议版本，与传输层标记校验无关
	ParamHeader = "HEADER"
	// ParamTemperature 温度读数
	ParamTemperature = "TEMPERATURE"
)

// ParamItem 与 SDCP 共用参数模型
type ParamItem = sdcp.ParamItem

// Frame 单向遥测帧：没有命令与结果字段
type Frame struct {
	Protocol   string      `json:"protocol"`
	Parameters []ParamItem `json:"parameters"`
}

// NewFrame 以本协议标记作为声明版本
func NewFrame(params ...ParamItem) Frame {
	return Frame{Protocol: Marker, Parameters: params}
}

// Empty 接收失败时写入槽位的默认帧
func Empty() Frame {
	return Frame{Protocol: Marker}
}

// Get 返回第一个同名参数的值
func (f Frame) Get(name string) (string, bool) {
	for _, p := range f.Parameters {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

func (f Frame) clone() Frame {
	out := Frame{Protocol: f.Protocol}
	if len(f.Parameters) > 0 {
		out.Parameters = make([]ParamItem, len(f.Parameters))
		copy(out.Parameters, f.Parameters)
	}
	return out
}
