package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcpu"
)

// TelemetryPublisher 将最新遥测快照写入 Redis：
// SET key（带 TTL）供轮询读取，同时 PUBLISH 到频道供订阅者推送。
type TelemetryPublisher struct {
	client  *Client
	channel string
	key     string
	ttl     time.Duration
}

// NewTelemetryPublisher ttl<=0 时快照不过期
func NewTelemetryPublisher(client *Client, channel, key string, ttl time.Duration) *TelemetryPublisher {
	return &TelemetryPublisher{client: client, channel: channel, key: key, ttl: ttl}
}

// Publish 实现 sdcpu.Publisher
func (p *TelemetryPublisher) Publish(ctx context.Context, snap sdcpu.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.key, data, p.ttl)
		pipe.Publish(ctx, p.channel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}
	return nil
}

// Latest 读取最近一次发布的快照；键不存在或已过期时 ok 为 false
func (p *TelemetryPublisher) Latest(ctx context.Context) (sdcpu.Snapshot, bool, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return sdcpu.Snapshot{}, false, nil
	}
	if err != nil {
		return sdcpu.Snapshot{}, false, fmt.Errorf("get telemetry: %w", err)
	}
	var snap sdcpu.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return sdcpu.Snapshot{}, false, fmt.Errorf("unmarshal telemetry: %w", err)
	}
	return snap, true, nil
}

// Subscribe 阻塞接收频道上的快照直至 ctx 取消；无法解析的消息被跳过
func (p *TelemetryPublisher) Subscribe(ctx context.Context, fn func(sdcpu.Snapshot)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe telemetry: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var snap sdcpu.Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				continue
			}
			fn(snap)
		}
	}
}
