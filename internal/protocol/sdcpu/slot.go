package sdcpu

import (
	"sync"
	"time"
)

// Snapshot 槽位内容的只读副本
type Snapshot struct {
	Frame     Frame     `json:"frame"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	// Valid 为 false 表示最近一个数据报无法解析
	Valid bool `json:"valid"`
}

// Age 距离最近一次写入的时间；从未写入返回 -1
func (s Snapshot) Age(now time.Time) time.Duration {
	if s.UpdatedAt.IsZero() {
		return -1
	}
	return now.Sub(s.UpdatedAt)
}

// Slot 只保存最近一帧：单写多读，整体替换
type Slot struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewSlot 初始为空帧
func NewSlot() *Slot {
	return &Slot{snap: Snapshot{Frame: Empty()}, now: time.Now}
}

// Store 用新帧整体覆盖
func (s *Slot) Store(f Frame, source string) {
	s.put(Snapshot{Frame: f.clone(), Source: source, UpdatedAt: s.now(), Valid: true})
}

// Invalidate 写入空帧，表示当前值未知
func (s *Slot) Invalidate(source string) {
	s.put(Snapshot{Frame: Empty(), Source: source, UpdatedAt: s.now()})
}

func (s *Slot) put(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Load 返回深拷贝，调用方可随意修改
func (s *Slot) Load() Snapshot {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	snap.Frame = snap.Frame.clone()
	return snap
}

// Value 读取最近一帧中的参数
func (s *Slot) Value(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Frame.Get(name)
}
