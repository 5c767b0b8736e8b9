package device

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcp"
)

// ValueUnknown GETP 请求未知参数时返回的占位值
const ValueUnknown = "UNKNOWN"

// SocketState 插座状态快照
type SocketState struct {
	Status           bool   `json:"status"`
	PowerConsumption uint32 `json:"power_consumption"`
}

// Socket 智能插座。状态由宿主进程独占，所有读写经过互斥锁
type Socket struct {
	name  string
	mu    sync.RWMutex
	state SocketState
}

// NewSocket 创建处于关闭状态、功耗为0的插座
func NewSocket(name string) *Socket {
	return &Socket{name: name}
}

func (s *Socket) Name() string { return s.name }

func (s *Socket) On() {
	s.mu.Lock()
	s.state.Status = true
	s.mu.Unlock()
}

// Off 关闭并清零功耗
func (s *Socket) Off() {
	s.mu.Lock()
	s.state = SocketState{}
	s.mu.Unlock()
}

func (s *Socket) Status() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status
}

func (s *Socket) PowerConsumption() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.PowerConsumption
}

// Snapshot 返回完整状态副本
func (s *Socket) Snapshot() SocketState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Info 可读的状态描述
func (s *Socket) Info() string {
	st := s.Snapshot()
	if st.Status {
		return fmt.Sprintf("Electric socket: %s State: ON Consumption power: %d", s.name, st.PowerConsumption)
	}
	return fmt.Sprintf("Electric socket: %s State: OFF", s.name)
}

// Get 按协议参数名读取当前值
func (s *Socket) Get(name string) (string, bool) {
	st := s.Snapshot()
	switch strings.ToUpper(name) {
	case sdcp.ParamStatus:
		return formatBool(st.Status), true
	case sdcp.ParamPwrcon:
		return strconv.FormatUint(uint64(st.PowerConsumption), 10), true
	}
	return "", false
}

// ValueError 参数值无法按目标类型解析
type ValueError struct {
	Name  string
	Value string
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("parameter %s: invalid value %q: %v", e.Name, e.Value, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

// Apply 全部参数校验通过后在同一把锁内一次性生效；任一失败则不做任何修改。
// 未知参数名忽略。
func (s *Socket) Apply(params []sdcp.ParamItem) error {
	staged := make([]func(*SocketState), 0, len(params))
	for _, p := range params {
		switch strings.ToUpper(p.Name) {
		case sdcp.ParamStatus:
			v, err := parseBool(p.Value)
			if err != nil {
				return &ValueError{Name: p.Name, Value: p.Value, Err: err}
			}
			staged = append(staged, func(st *SocketState) { st.Status = v })
		case sdcp.ParamPwrcon:
			v, err := strconv.ParseUint(p.Value, 10, 32)
			if err != nil {
				return &ValueError{Name: p.Name, Value: p.Value, Err: err}
			}
			staged = append(staged, func(st *SocketState) { st.PowerConsumption = uint32(v) })
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, apply := range staged {
		apply(&s.state)
	}
	return nil
}

var errNotBool = errors.New("expected true or false")

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errNotBool
}

func formatBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
