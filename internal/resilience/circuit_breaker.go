package resilience

import (
	"errors"
	"sync"
	"time"
)

// State 熔断器状态
type State int

const (
	StateClosed   State = iota // 正常放行
	StateOpen                  // 熔断，直接拒绝
	StateHalfOpen              // 试探
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen 熔断期间拒绝请求
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyProbes 半开状态下已有试探请求在进行
	ErrTooManyProbes = errors.New("too many probes in half-open state")
)

// CircuitBreaker 按连续失败次数熔断，冷却后放行有限的试探请求
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int // 连续失败次数
	probes       int // 半开状态下已放行的试探数
	probeOK      int
	openedAt     time.Time
	changedAt    time.Time
	trips        int64
	threshold    int
	cooldown     time.Duration
	halfOpenMax  int
	now          func() time.Time
	onTransition func(from, to State)
}

// NewCircuitBreaker threshold 为触发熔断的连续失败次数，cooldown 为 Open → HalfOpen 的等待时间
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	cb := &CircuitBreaker{
		state:       StateClosed,
		threshold:   threshold,
		cooldown:    cooldown,
		halfOpenMax: 1,
		now:         time.Now,
	}
	cb.changedAt = cb.now()
	return cb
}

// Call 在熔断器保护下执行 fn
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.transitionTo(StateHalfOpen)
		cb.probes, cb.probeOK = 1, 0
		return nil
	case StateHalfOpen:
		if cb.probes >= cb.halfOpenMax {
			return ErrTooManyProbes
		}
		cb.probes++
		return nil
	}
	return ErrCircuitOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.threshold {
			cb.trip()
		}
		return
	}

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.probeOK++
		if cb.probeOK >= cb.halfOpenMax {
			cb.transitionTo(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.trips++
	cb.transitionTo(StateOpen)
}

func (cb *CircuitBreaker) transitionTo(s State) {
	if cb.state == s {
		return
	}
	from := cb.state
	cb.state = s
	cb.changedAt = cb.now()
	if s == StateClosed {
		cb.failures = 0
	}
	if cb.onTransition != nil {
		go cb.onTransition(from, s)
	}
}

// State 当前状态
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// OnTransition 设置状态变化回调（异步触发）
func (cb *CircuitBreaker) OnTransition(fn func(from, to State)) {
	cb.mu.Lock()
	cb.onTransition = fn
	cb.mu.Unlock()
}

// Reset 手动恢复
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(StateClosed)
	cb.failures = 0
}

// Stats 统计信息
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:           cb.state.String(),
		Failures:        cb.failures,
		TripCount:       cb.trips,
		LastStateChange: cb.changedAt,
	}
}

// CircuitBreakerStats 熔断器统计
type CircuitBreakerStats struct {
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	TripCount       int64     `json:"trip_count"`
	LastStateChange time.Time `json:"last_state_change"`
}
