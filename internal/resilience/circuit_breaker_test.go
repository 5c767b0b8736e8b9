package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDial = errors.New("dial refused")

func TestCircuitBreaker(t *testing.T) {
	t.Run("连续失败触发熔断", func(t *testing.T) {
		cb := NewCircuitBreaker(3, time.Minute)
		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, cb.Call(func() error { return errDial }), errDial)
		}
		assert.Equal(t, StateOpen, cb.State())

		called := false
		err := cb.Call(func() error { called = true; return nil })
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.False(t, called)
	})

	t.Run("成功重置连续失败计数", func(t *testing.T) {
		cb := NewCircuitBreaker(2, time.Minute)
		_ = cb.Call(func() error { return errDial })
		_ = cb.Call(func() error { return nil })
		_ = cb.Call(func() error { return errDial })
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("冷却后试探成功恢复", func(t *testing.T) {
		now := time.Now()
		cb := NewCircuitBreaker(1, 10*time.Second)
		cb.now = func() time.Time { return now }

		_ = cb.Call(func() error { return errDial })
		require.Equal(t, StateOpen, cb.State())

		now = now.Add(11 * time.Second)
		require.NoError(t, cb.Call(func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("半开试探失败重新熔断", func(t *testing.T) {
		now := time.Now()
		cb := NewCircuitBreaker(1, 10*time.Second)
		cb.now = func() time.Time { return now }

		_ = cb.Call(func() error { return errDial })
		now = now.Add(11 * time.Second)
		_ = cb.Call(func() error { return errDial })
		assert.Equal(t, StateOpen, cb.State())
		assert.Equal(t, int64(2), cb.Stats().TripCount)
	})

	t.Run("状态变化回调", func(t *testing.T) {
		ch := make(chan [2]State, 1)
		cb := NewCircuitBreaker(1, time.Minute)
		cb.OnTransition(func(from, to State) { ch <- [2]State{from, to} })

		_ = cb.Call(func() error { return errDial })
		select {
		case evt := <-ch:
			assert.Equal(t, [2]State{StateClosed, StateOpen}, evt)
		case <-time.After(time.Second):
			t.Fatal("transition callback not fired")
		}
	})

	t.Run("手动重置", func(t *testing.T) {
		cb := NewCircuitBreaker(1, time.Minute)
		_ = cb.Call(func() error { return errDial })
		cb.Reset()
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, "closed", cb.Stats().State)
	})
}
