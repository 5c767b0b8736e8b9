package sdcp

// Handler 服务端请求处理器。
// err 非空表示请求帧解析失败，此时 req 为零值；无论如何都必须返回一个响应帧。
type Handler interface {
	Handle(req Frame, err error) Frame
}

// HandlerFunc 函数适配器
type HandlerFunc func(req Frame, err error) Frame

func (fn HandlerFunc) Handle(req Frame, err error) Frame { return fn(req, err) }

// EchoHandler 最小处理器：解析失败返回 NONE/FAILED，否则原样回显参数
func EchoHandler() Handler {
	return HandlerFunc(func(req Frame, err error) Frame {
		if err != nil {
			return FailedResponse(CommandNONE)
		}
		return NewResponse(req.Command, ResultOK, req.Parameters...)
	})
}
