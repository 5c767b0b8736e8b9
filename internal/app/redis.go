package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
	"github.com/taoyao-code/iot-sdcp/internal/health"
	redisstorage "github.com/taoyao-code/iot-sdcp/internal/storage/redis"
)

// NewRedisClient 未启用时返回 nil, nil
func NewRedisClient(cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// NewTelemetryPublisher 基于配置的频道与键创建遥测发布器
func NewTelemetryPublisher(client *redisstorage.Client, cfg cfgpkg.RedisConfig) *redisstorage.TelemetryPublisher {
	return redisstorage.NewTelemetryPublisher(client, cfg.Channel, cfg.Key, cfg.TTL)
}

// AddRedisChecker 添加Redis检查器到聚合器
func AddRedisChecker(aggregator *health.Aggregator, redisClient *redisstorage.Client) {
	if redisClient != nil {
		aggregator.AddChecker(health.NewRedisChecker(redisClient))
	}
}
