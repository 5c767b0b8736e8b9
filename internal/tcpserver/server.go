package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
)

// acquireTimeout 连接数达到上限时，新连接等待许可的最长时间
const acquireTimeout = time.Second

// ErrServerClosed Shutdown 之后再次 Start
var ErrServerClosed = errors.New("tcpserver: server closed")

// Server SDCP 服务端的接入循环：每个连接一个 goroutine，
// 连接上的协议交互由 SetConnHandler 安装的处理器负责。
type Server struct {
	cfg         cfgpkg.TCPConfig
	logger      *zap.Logger
	ln          net.Listener
	wg          sync.WaitGroup
	stopC       chan struct{}
	stopOnce    sync.Once
	baseCtx     context.Context
	cancel      context.CancelFunc
	handler     func(*ConnContext)
	nextConnID  atomic.Uint64
	limiter     *ConnectionLimiter
	rateLimiter *RateLimiter

	// 可选指标回调
	onAccept    func()
	onRecvBytes func(n int)

	mu    sync.Mutex
	conns map[uint64]*ConnContext
}

// New 创建服务端；logger 为 nil 时不输出日志
func New(cfg cfgpkg.TCPConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		stopC:   make(chan struct{}),
		baseCtx: ctx,
		cancel:  cancel,
		limiter: NewConnectionLimiter(cfg.MaxConnections, acquireTimeout),
		conns:   make(map[uint64]*ConnContext),
	}
	if cfg.AcceptRate > 0 {
		s.rateLimiter = NewRateLimiter(cfg.AcceptRate, cfg.AcceptBurst)
	}
	return s
}

// SetConnHandler 设置连接处理器，处理器返回后连接被关闭
func (s *Server) SetConnHandler(h func(*ConnContext)) { s.handler = h }

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onAccept func(), onRecvBytes func(int)) {
	s.onAccept, s.onRecvBytes = onAccept, onRecvBytes
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	select {
	case <-s.stopC:
		return ErrServerClosed
	default:
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("sdcp server listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr 实际监听地址，Start 之前为 nil
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopC:
				return
			default:
			}
			s.logger.Warn("accept failed", zap.Error(err))
			// 短暂错误等待后重试
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if s.rateLimiter != nil && !s.rateLimiter.Allow() {
			s.logger.Warn("connection rejected by accept rate",
				zap.String("remote_addr", conn.RemoteAddr().String()))
			_ = conn.Close()
			continue
		}
		if err := s.limiter.Acquire(s.baseCtx); err != nil {
			s.logger.Warn("connection rejected",
				zap.String("remote_addr", conn.RemoteAddr().String()),
				zap.Error(err))
			_ = conn.Close()
			continue
		}
		if s.onAccept != nil {
			s.onAccept()
		}

		cc := newConnContext(s, conn)
		s.track(cc, true)
		s.wg.Add(1)
		go s.serve(cc)
	}
}

func (s *Server) serve(cc *ConnContext) {
	defer s.wg.Done()
	defer s.limiter.Release()
	defer s.track(cc, false)
	defer cc.Close()

	if s.cfg.ReadTimeout > 0 {
		_ = cc.c.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	if s.handler != nil {
		s.handler(cc)
	}
}

func (s *Server) track(cc *ConnContext, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[cc.id] = cc
	} else {
		delete(s.conns, cc.id)
	}
}

// ActiveConnections 当前正在服务的连接数
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// MaxConnections 最大并发连接数
func (s *Server) MaxConnections() int { return s.limiter.MaxConnections() }

// GetLimiterStats 连接数限流统计
func (s *Server) GetLimiterStats() LimiterStats { return s.limiter.Stats() }

// GetRateLimiterStats 接入速率统计；未启用速率限制时返回 nil
func (s *Server) GetRateLimiterStats() *RateLimiterStats {
	if s.rateLimiter == nil {
		return nil
	}
	st := s.rateLimiter.Stats()
	return &st
}

// Shutdown 停止接入并等待在途连接结束；ctx 到期时强制关闭剩余连接
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopC)
		s.cancel()
		if s.ln != nil {
			_ = s.ln.Close()
		}
	})
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for _, cc := range s.conns {
			_ = cc.Close()
		}
		s.mu.Unlock()
		<-ch
		return ctx.Err()
	}
}
