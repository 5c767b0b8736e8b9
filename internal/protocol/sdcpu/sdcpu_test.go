package sdcpu

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/envelope"
)

func TestEncode(t *testing.T) {
	f := NewFrame(ParamItem{Name: ParamTemperature, Value: "10.25"})
	assert.Equal(t, "HEADER=SDCPU 0.0.1;TEMPERATURE=10.25;", string(Encode(f)))
	assert.Equal(t, "HEADER=SDCPU 0.0.1;", string(Encode(Frame{})))
}

func TestDecode(t *testing.T) {
	t.Run("HEADER覆盖声明版本", func(t *testing.T) {
		f, err := Decode([]byte("header=sdcpu 0.0.2;temperature=21.5;"))
		require.NoError(t, err)
		assert.Equal(t, "SDCPU 0.0.2", f.Protocol)
		assert.Equal(t, []ParamItem{{Name: "TEMPERATURE", Value: "21.5"}}, f.Parameters)
		_, ok := f.Get(ParamHeader)
		assert.False(t, ok)
	})

	t.Run("HEADER只在帧头出现一次", func(t *testing.T) {
		f := NewFrame(ParamItem{Name: "header", Value: "SDCPU 9.9.9"}, ParamItem{Name: ParamTemperature, Value: "1"})
		assert.Equal(t, "HEADER=SDCPU 0.0.1;TEMPERATURE=1;", string(Encode(f)))

		got, err := Decode(Encode(f))
		require.NoError(t, err)
		assert.Equal(t, Marker, got.Protocol)
		assert.Equal(t, []ParamItem{{Name: ParamTemperature, Value: "1"}}, got.Parameters)
	})

	t.Run("跳过没有等号的片段", func(t *testing.T) {
		f, err := Decode([]byte("garbage;TEMPERATURE=1;;x"))
		require.NoError(t, err)
		assert.Equal(t, Marker, f.Protocol)
		assert.Equal(t, []ParamItem{{Name: "TEMPERATURE", Value: "1"}}, f.Parameters)
	})

	t.Run("空参数合法", func(t *testing.T) {
		f, err := Decode([]byte("HEADER=SDCPU 0.0.1;"))
		require.NoError(t, err)
		assert.Empty(t, f.Parameters)
	})

	t.Run("非法编码", func(t *testing.T) {
		_, err := Decode([]byte{0xfe})
		assert.ErrorIs(t, err, envelope.ErrBadEncoding)
	})
}

func TestDatagram_RoundTrip(t *testing.T) {
	f := NewFrame(ParamItem{Name: "TEMPERATURE", Value: "21.5"}, ParamItem{Name: "HUMIDITY", Value: "40"})
	got, err := DecodeDatagram(EncodeDatagram(f))
	require.NoError(t, err)
	assert.Equal(t, f, got)

	_, err = DecodeDatagram([]byte("HEADER=SDCPU 0.0.1;TEMPERATURE=21.5;"))
	assert.ErrorIs(t, err, envelope.ErrInvalidPacket)
}

func TestSlot(t *testing.T) {
	slot := NewSlot()
	snap := slot.Load()
	assert.Equal(t, Empty(), snap.Frame)
	assert.False(t, snap.Valid)
	assert.Equal(t, time.Duration(-1), snap.Age(time.Now()))

	slot.Store(NewFrame(ParamItem{Name: "TEMPERATURE", Value: "21.5"}), "127.0.0.1:4000")
	snap = slot.Load()
	assert.True(t, snap.Valid)
	assert.Equal(t, "127.0.0.1:4000", snap.Source)

	// 修改副本不影响槽位
	snap.Frame.Parameters[0].Value = "99"
	v, ok := slot.Value("temperature")
	assert.True(t, ok)
	assert.Equal(t, "21.5", v)

	slot.Invalidate("127.0.0.1:4000")
	_, ok = slot.Value("TEMPERATURE")
	assert.False(t, ok)
	assert.False(t, slot.Load().Valid)
}

func TestSlot_ConcurrentReaders(t *testing.T) {
	slot := NewSlot()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			slot.Store(NewFrame(ParamItem{Name: "A", Value: "1"}, ParamItem{Name: "B", Value: "1"}), "")
			slot.Store(NewFrame(ParamItem{Name: "A", Value: "2"}, ParamItem{Name: "B", Value: "2"}), "")
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				f := slot.Load().Frame
				if len(f.Parameters) == 2 {
					assert.Equal(t, f.Parameters[0].Value, f.Parameters[1].Value)
				}
			}
		}()
	}
	wg.Wait()
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []Snapshot
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, snap Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}

func startReceiver(t *testing.T, opts ...ReceiverOption) (*Slot, net.Addr, chan string) {
	t.Helper()
	conn, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	results := make(chan string, 16)
	slot := NewSlot()
	opts = append(opts, WithDatagramCallback(func(r string) { results <- r }))
	r := NewReceiver(conn, slot, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("receiver did not stop")
		}
	})
	return slot, r.Addr(), results
}

func waitResult(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no datagram processed")
		return ""
	}
}

func TestReceiver_UpdatesSlot(t *testing.T) {
	pub := &recordingPublisher{}
	slot, addr, results := startReceiver(t, WithPublisher(pub))

	sender, err := Dial("127.0.0.1:0", addr.String())
	require.NoError(t, err)
	defer sender.Close()

	f, err := Decode([]byte("HEADER=SDCPU 0.0.1;TEMPERATURE=21.5;"))
	require.NoError(t, err)
	require.NoError(t, sender.Send(f))
	require.Equal(t, "ok", waitResult(t, results))

	v, ok := slot.Value(ParamTemperature)
	require.True(t, ok)
	assert.Equal(t, "21.5", v)
	assert.Equal(t, 1, pub.count())
}

func TestReceiver_InvalidDatagramClearsSlot(t *testing.T) {
	slot, addr, results := startReceiver(t, WithBufferSize(64))

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.WriteTo(EncodeDatagram(NewFrame(ParamItem{Name: "TEMPERATURE", Value: "20"})), addr)
	require.NoError(t, err)
	require.Equal(t, "ok", waitResult(t, results))

	// 超过缓冲区的数据报被截断，长度校验失败
	big := NewFrame(ParamItem{Name: "TEMPERATURE", Value: "20"}, ParamItem{Name: "PADDING", Value: string(make([]byte, 100))})
	_, err = conn.WriteTo(EncodeDatagram(big), addr)
	require.NoError(t, err)
	require.Equal(t, "invalid", waitResult(t, results))

	snap := slot.Load()
	assert.False(t, snap.Valid)
	assert.Equal(t, Empty(), snap.Frame)

	// 接收循环继续工作
	_, err = conn.WriteTo(EncodeDatagram(NewFrame(ParamItem{Name: "TEMPERATURE", Value: "22"})), addr)
	require.NoError(t, err)
	require.Equal(t, "ok", waitResult(t, results))
	v, _ := slot.Value(ParamTemperature)
	assert.Equal(t, "22", v)
}

func TestReceiver_PublishErrorIgnored(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	slot, addr, results := startReceiver(t, WithPublisher(pub))

	sender, err := Dial("", addr.String())
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.Send(NewFrame(ParamItem{Name: "TEMPERATURE", Value: "1"})))
	require.Equal(t, "ok", waitResult(t, results))
	assert.True(t, slot.Load().Valid)
}

func TestSender_Run(t *testing.T) {
	slot, addr, results := startReceiver(t)

	sender, err := Dial("127.0.0.1:0", addr.String())
	require.NoError(t, err)
	defer sender.Close()

	ctx, cancel := context.WithCancel(context.Background())
	i := 0
	done := make(chan error, 1)
	go func() {
		done <- sender.Run(ctx, 10*time.Millisecond, func() Frame {
			i++
			return NewFrame(ParamItem{Name: "SEQ", Value: string(rune('0' + i%10))})
		}, nil)
	}()

	waitResult(t, results)
	waitResult(t, results)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, slot.Load().Valid)
}

func TestSender_RunRejectsNonPositiveInterval(t *testing.T) {
	sender, err := Dial("127.0.0.1:0", "127.0.0.1:4100")
	require.NoError(t, err)
	defer sender.Close()

	for _, interval := range []time.Duration{0, -time.Second} {
		err := sender.Run(context.Background(), interval, func() Frame { return Empty() }, nil)
		assert.ErrorIs(t, err, ErrInvalidInterval)
	}
}

// blockingPublisher 一直阻塞到 ctx 结束，模拟无响应的 Redis
type blockingPublisher struct {
	mu   sync.Mutex
	errs []error
}

func (p *blockingPublisher) Publish(ctx context.Context, _ Snapshot) error {
	<-ctx.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, ctx.Err())
	return ctx.Err()
}

func TestReceiver_SlowPublisherDoesNotStallIntake(t *testing.T) {
	pub := &blockingPublisher{}
	slot, addr, results := startReceiver(t, WithPublisher(pub), WithPublishTimeout(50*time.Millisecond))

	sender, err := Dial("127.0.0.1:0", addr.String())
	require.NoError(t, err)
	defer sender.Close()

	start := time.Now()
	for _, v := range []string{"1", "2"} {
		require.NoError(t, sender.Send(NewFrame(ParamItem{Name: ParamTemperature, Value: v})))
		require.Equal(t, "ok", waitResult(t, results))
	}
	assert.Less(t, time.Since(start), time.Second)

	v, ok := slot.Value(ParamTemperature)
	require.True(t, ok)
	assert.Equal(t, "2", v)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.errs, 2)
	for _, e := range pub.errs {
		assert.ErrorIs(t, e, context.DeadlineExceeded)
	}
}
