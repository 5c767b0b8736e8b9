package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Env  string `mapstructure:"env" yaml:"env"`
	// DeviceName 本进程模拟的设备名称
	DeviceName string `mapstructure:"deviceName" yaml:"deviceName"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Enable       bool          `mapstructure:"enable" yaml:"enable"`
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	// APIKeys 非空时 /api 路由要求 X-API-Key 认证
	APIKeys []string `mapstructure:"apiKeys" yaml:"-"`
}

// TCPConfig SDCP 服务端配置
type TCPConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	MaxConnections int           `mapstructure:"maxConnections" yaml:"maxConnections"`
	// AcceptRate 每秒允许接入的连接数，0 表示不限速
	AcceptRate  int `mapstructure:"acceptRate" yaml:"acceptRate"`
	AcceptBurst int `mapstructure:"acceptBurst" yaml:"acceptBurst"`
	// MaxPayload 单帧载荷上限（字节）
	MaxPayload uint32 `mapstructure:"maxPayload" yaml:"maxPayload"`
}

// UDPConfig SDCPU 遥测配置
type UDPConfig struct {
	Enable     bool          `mapstructure:"enable" yaml:"enable"`
	ListenAddr string        `mapstructure:"listenAddr" yaml:"listenAddr"`
	TargetAddr string        `mapstructure:"targetAddr" yaml:"targetAddr"`
	Interval   time.Duration `mapstructure:"interval" yaml:"interval"`
	BufferSize int           `mapstructure:"bufferSize" yaml:"bufferSize"`
	// StaleAfter 遥测超过该时长未更新时健康检查降级
	StaleAfter time.Duration `mapstructure:"staleAfter" yaml:"staleAfter"`
}

// ClientConfig SDCP 客户端配置
type ClientConfig struct {
	Target           string        `mapstructure:"target" yaml:"target"`
	DialTimeout      time.Duration `mapstructure:"dialTimeout" yaml:"dialTimeout"`
	IOTimeout        time.Duration `mapstructure:"ioTimeout" yaml:"ioTimeout"`
	BreakerThreshold int           `mapstructure:"breakerThreshold" yaml:"breakerThreshold"`
	BreakerTimeout   time.Duration `mapstructure:"breakerTimeout" yaml:"breakerTimeout"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize" yaml:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge" yaml:"maxAge"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level" yaml:"level"`
	Format string           `mapstructure:"format" yaml:"format"`
	File   LumberjackConfig `mapstructure:"file" yaml:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable" yaml:"enable"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// RedisConfig 遥测发布所用的 Redis 配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	Password     string        `mapstructure:"password" yaml:"-"`
	DB           int           `mapstructure:"db" yaml:"db"`
	PoolSize     int           `mapstructure:"poolSize" yaml:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns" yaml:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout" yaml:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	// Channel 遥测快照发布的频道
	Channel string `mapstructure:"channel" yaml:"channel"`
	// Key 最新快照的存储键，TTL 过期后视为无数据
	Key string        `mapstructure:"key" yaml:"key"`
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Config 顶层配置结构
type Config struct {
	App     AppConfig     `mapstructure:"app" yaml:"app"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	TCP     TCPConfig     `mapstructure:"tcp" yaml:"tcp"`
	UDP     UDPConfig     `mapstructure:"udp" yaml:"udp"`
	Client  ClientConfig  `mapstructure:"client" yaml:"client"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 SDCP_CONFIG 读取；否则回退到 configs/sdcp.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("SDCP_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("sdcp")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// 环境变量覆盖：前缀 SDCP_，并将点号替换为下划线
	v.SetEnvPrefix("SDCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ErrInvalidConfig 配置值超出允许范围
var ErrInvalidConfig = errors.New("invalid config")

func (c *Config) validate() error {
	if c.UDP.Interval <= 0 {
		return fmt.Errorf("%w: udp.interval must be positive, got %s", ErrInvalidConfig, c.UDP.Interval)
	}
	if c.UDP.BufferSize <= 0 {
		return fmt.Errorf("%w: udp.bufferSize must be positive, got %d", ErrInvalidConfig, c.UDP.BufferSize)
	}
	return nil
}

// Dump 以 YAML 输出生效配置（密码字段不输出）
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sdcpd")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.deviceName", "Electric socket #1")

	v.SetDefault("http.enable", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("tcp.addr", "127.0.0.1:55100")
	v.SetDefault("tcp.readTimeout", "10s")
	v.SetDefault("tcp.writeTimeout", "10s")
	v.SetDefault("tcp.maxConnections", 1024)
	v.SetDefault("tcp.acceptRate", 0)
	v.SetDefault("tcp.acceptBurst", 0)
	v.SetDefault("tcp.maxPayload", 64*1024)

	v.SetDefault("udp.enable", false)
	v.SetDefault("udp.listenAddr", "127.0.0.1:4100")
	v.SetDefault("udp.targetAddr", "127.0.0.1:4100")
	v.SetDefault("udp.interval", "1s")
	v.SetDefault("udp.bufferSize", 1024)
	v.SetDefault("udp.staleAfter", "10s")

	v.SetDefault("client.target", "127.0.0.1:55100")
	v.SetDefault("client.dialTimeout", "5s")
	v.SetDefault("client.ioTimeout", "10s")
	v.SetDefault("client.breakerThreshold", 5)
	v.SetDefault("client.breakerTimeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")
	v.SetDefault("redis.channel", "sdcpu:telemetry")
	v.SetDefault("redis.key", "sdcpu:telemetry:last")
	v.SetDefault("redis.ttl", "1m")
}
