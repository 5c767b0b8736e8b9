package sdcp

import "strings"

// Marker 协议标记（名称+版本），接收端必须完全一致
const Marker = "SDCP 0.0.1"

// Command 命令字
type Command string

const (
	CommandGETP Command = "GETP" // 读取参数
	CommandSETP Command = "SETP" // 设置参数
	CommandINFO Command = "INFO" // 信息/探测
	CommandBEAT Command = "BEAT" // 心跳
	CommandNONE Command = "NONE" // 无命令或报文非法
)

// ParseCommand 大小写不敏感，内部统一大写
func ParseCommand(s string) Command {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return CommandNONE
	}
	return Command(s)
}

// Known 是否属于已定义的命令集合
func (c Command) Known() bool {
	switch c {
	case CommandGETP, CommandSETP, CommandINFO, CommandBEAT, CommandNONE:
		return true
	}
	return false
}

// Result 执行结果
type Result string

const (
	ResultOK     Result = "OK"
	ResultFailed Result = "FAILED"
)

// 设备参数名
const (
	ParamStatus = "STATUS" // 插座开关
	ParamPwrcon = "PWRCON" // 功耗
)

// ParamItem 单个参数，值为无类型文本，由设备侧解释
type ParamItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Param 构造参数
func Param(name, value string) ParamItem {
	return ParamItem{Name: name, Value: value}
}

// Frame 一次请求或响应的应用层消息
type Frame struct {
	Protocol   string      `json:"protocol"`
	Command    Command     `json:"command"`
	Parameters []ParamItem `json:"parameters"`
	Result     Result      `json:"result"`
}

// NewRequest 构造请求帧
func NewRequest(cmd Command, params ...ParamItem) Frame {
	return Frame{Protocol: Marker, Command: cmd, Parameters: params, Result: ResultOK}
}

// NewResponse 构造响应帧
func NewResponse(cmd Command, result Result, params ...ParamItem) Frame {
	return Frame{Protocol: Marker, Command: cmd, Parameters: params, Result: result}
}

// FailedResponse 不带参数的失败响应
func FailedResponse(cmd Command) Frame {
	return NewResponse(cmd, ResultFailed)
}

// OK 结果是否成功
func (f Frame) OK() bool { return f.Result == ResultOK }

// Get 返回第一个同名参数的值（名称大小写不敏感）
func (f Frame) Get(name string) (string, bool) {
	for _, p := range f.Parameters {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}
