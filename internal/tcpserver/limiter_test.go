package tcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionLimiter(t *testing.T) {
	t.Run("基本限流功能", func(t *testing.T) {
		limiter := NewConnectionLimiter(3, time.Second)

		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, limiter.Acquire(ctx), "第%d次获取失败", i+1)
		}

		// 第4次应该超时
		ctx4, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, limiter.Acquire(ctx4), ErrConnectionLimit)
		assert.Equal(t, int64(1), limiter.RejectedCount())

		// 释放一个后再次获取应该成功
		limiter.Release()
		require.NoError(t, limiter.Acquire(ctx))
		assert.Equal(t, 0, limiter.Available())
	})

	t.Run("统计功能", func(t *testing.T) {
		limiter := NewConnectionLimiter(10, time.Second)
		for i := 0; i < 5; i++ {
			_ = limiter.Acquire(context.Background())
		}

		stats := limiter.Stats()
		assert.Equal(t, 5, stats.ActiveConnections)
		assert.Equal(t, 10, stats.MaxConnections)
		assert.InDelta(t, 0.5, stats.Utilization, 1e-9)
	})

	t.Run("多余的释放被忽略", func(t *testing.T) {
		limiter := NewConnectionLimiter(1, time.Second)
		limiter.Release()
		assert.Equal(t, 0, limiter.Current())
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("速率限流", func(t *testing.T) {
		limiter := NewRateLimiter(10, 20)

		for i := 0; i < 20; i++ {
			require.True(t, limiter.Allow(), "突发第%d个请求被拒绝", i+1)
		}
		assert.False(t, limiter.Allow(), "第21个请求应该被拒绝")

		// 每100ms补充1个令牌
		time.Sleep(150 * time.Millisecond)
		assert.True(t, limiter.Allow())
	})

	t.Run("统计功能", func(t *testing.T) {
		limiter := NewRateLimiter(100, 200)
		for i := 0; i < 10; i++ {
			limiter.Allow()
		}

		stats := limiter.Stats()
		assert.Equal(t, int64(10), stats.AllowedTotal)
		assert.Equal(t, 200, stats.Burst)
	})
}
