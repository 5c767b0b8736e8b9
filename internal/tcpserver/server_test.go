package tcpserver

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
)

func startServer(t *testing.T, cfg cfgpkg.TCPConfig, h func(*ConnContext)) *Server {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	s := New(cfg, nil)
	s.SetConnHandler(h)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

// lineEcho 读取一行并原样写回
func lineEcho(cc *ConnContext) {
	line, err := bufio.NewReader(cc.Reader()).ReadString('\n')
	if err != nil {
		return
	}
	_, _ = cc.Write([]byte(line))
}

func roundTrip(t *testing.T, addr net.Addr, msg string) (string, error) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(3 * time.Second))
	if _, err := conn.Write([]byte(msg)); err != nil {
		return "", err
	}
	return bufio.NewReader(conn).ReadString('\n')
}

func TestServer_ServesConnections(t *testing.T) {
	var accepted atomic.Int64
	var received atomic.Int64
	var mu sync.Mutex
	ids := map[uint64]bool{}
	exchanges := map[string]bool{}
	var fieldKeys []string

	s := New(cfgpkg.TCPConfig{Addr: "127.0.0.1:0", ReadTimeout: time.Second, WriteTimeout: time.Second}, nil)
	s.SetMetricsCallbacks(func() { accepted.Add(1) }, func(n int) { received.Add(int64(n)) })
	s.SetConnHandler(func(cc *ConnContext) {
		mu.Lock()
		ids[cc.ID()] = true
		exchanges[cc.ExchangeID()] = true
		fieldKeys = fieldKeys[:0]
		for _, f := range cc.LogFields() {
			fieldKeys = append(fieldKeys, f.Key)
		}
		mu.Unlock()
		lineEcho(cc)
	})
	require.NoError(t, s.Start())
	defer s.Shutdown(context.Background())

	for i := 0; i < 3; i++ {
		got, err := roundTrip(t, s.Addr(), "hello\n")
		require.NoError(t, err)
		assert.Equal(t, "hello\n", got)
	}

	assert.Equal(t, int64(3), accepted.Load())
	assert.Equal(t, int64(18), received.Load())
	mu.Lock()
	assert.Len(t, ids, 3)
	assert.Len(t, exchanges, 3)
	assert.Equal(t, []string{"conn_id", "exchange_id", "remote_addr"}, fieldKeys)
	mu.Unlock()
}

func TestServer_ReadDeadline(t *testing.T) {
	errC := make(chan error, 1)
	s := startServer(t, cfgpkg.TCPConfig{ReadTimeout: 100 * time.Millisecond}, func(cc *ConnContext) {
		_, err := io.ReadAll(cc.Reader())
		errC <- err
	})

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case err := <-errC:
		var ne net.Error
		require.ErrorAs(t, err, &ne)
		assert.True(t, ne.Timeout())
	case <-time.After(2 * time.Second):
		t.Fatal("read deadline not applied")
	}
}

func TestServer_ConnectionLimit(t *testing.T) {
	release := make(chan struct{})
	s := startServer(t, cfgpkg.TCPConfig{MaxConnections: 1}, func(cc *ConnContext) {
		select {
		case <-release:
		case <-cc.Done():
		}
	})
	defer close(release)

	first, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return s.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	second, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer second.Close()
	_ = second.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err = second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	stats := s.GetLimiterStats()
	assert.Equal(t, int64(1), stats.RejectedTotal)
	assert.Equal(t, 1, s.MaxConnections())
}

func TestServer_AcceptRate(t *testing.T) {
	s := startServer(t, cfgpkg.TCPConfig{AcceptRate: 1, AcceptBurst: 1}, lineEcho)

	got, err := roundTrip(t, s.Addr(), "first\n")
	require.NoError(t, err)
	assert.Equal(t, "first\n", got)

	_, err = roundTrip(t, s.Addr(), "second\n")
	assert.Error(t, err)

	stats := s.GetRateLimiterStats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.RejectedTotal)
}

func TestServer_Shutdown(t *testing.T) {
	t.Run("等待在途连接", func(t *testing.T) {
		s := New(cfgpkg.TCPConfig{Addr: "127.0.0.1:0"}, nil)
		s.SetConnHandler(lineEcho)
		require.NoError(t, s.Start())
		require.NoError(t, s.Shutdown(context.Background()))
		assert.ErrorIs(t, s.Start(), ErrServerClosed)

		_, err := net.DialTimeout("tcp", s.Addr().String(), 200*time.Millisecond)
		assert.Error(t, err)
	})

	t.Run("超时后强制关闭连接", func(t *testing.T) {
		s := New(cfgpkg.TCPConfig{Addr: "127.0.0.1:0"}, nil)
		started := make(chan struct{})
		s.SetConnHandler(func(cc *ConnContext) {
			close(started)
			_, _ = io.ReadAll(cc.Reader())
		})
		require.NoError(t, s.Start())

		conn, err := net.Dial("tcp", s.Addr().String())
		require.NoError(t, err)
		defer conn.Close()
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, s.Shutdown(ctx), context.DeadlineExceeded)
		assert.Equal(t, 0, s.ActiveConnections())
	})
}
