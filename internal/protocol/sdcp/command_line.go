package sdcp

import (
	"errors"
	"strings"
)

// ErrInvalidCommandLine 无法识别的文本命令
var ErrInvalidCommandLine = errors.New("invalid command")

// ParseCommandLine 将 `SET <name> <value>` / `GET <name>...` / `INFO` 文本命令转换为请求帧
func ParseCommandLine(line string) (Frame, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Frame{}, ErrInvalidCommandLine
	}

	switch strings.ToUpper(tokens[0]) {
	case "SET":
		if len(tokens) != 3 {
			return Frame{}, ErrInvalidCommandLine
		}
		return NewRequest(CommandSETP, Param(tokens[1], tokens[2])), nil
	case "GET":
		if len(tokens) < 2 {
			return Frame{}, ErrInvalidCommandLine
		}
		params := make([]ParamItem, 0, len(tokens)-1)
		for _, name := range tokens[1:] {
			params = append(params, Param(name, ""))
		}
		return NewRequest(CommandGETP, params...), nil
	case "INFO":
		// 空参数帧在接收端会被判为非法，这里带上一个占位参数
		return NewRequest(CommandINFO, Param(ParamStatus, "")), nil
	}
	return Frame{}, ErrInvalidCommandLine
}
