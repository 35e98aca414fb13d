// Package config loads the riskstream service configuration from defaults,
// an optional config.yaml, and RISKSTREAM_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       string        `mapstructure:"rate_limit"` // ulule/limiter format, e.g. "100-M"
}

// WSConfig holds WebSocket transport settings.
type WSConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	SendQueueSize   int           `mapstructure:"send_queue_size"`
}

// RiskConfig holds the risk metrics engine parameters.
type RiskConfig struct {
	ConfidenceLevel    float64 `mapstructure:"confidence_level"`
	RiskFreeRate       float64 `mapstructure:"risk_free_rate"` // annual
	TradingDaysPerYear int     `mapstructure:"trading_days_per_year"`
}

// SimulationConfig holds the Monte Carlo simulator parameters.
type SimulationConfig struct {
	DefaultSimulations int   `mapstructure:"default_simulations"`
	DefaultDays        int   `mapstructure:"default_days"`
	MaxPathCells       int64 `mapstructure:"max_path_cells"` // cap on simulations*days
	Seed               int64 `mapstructure:"seed"`           // 0 = derive from time
}

// StreamConfig holds the subscription/streaming parameters.
type StreamConfig struct {
	DefaultInterval time.Duration `mapstructure:"default_interval"`
	MinInterval     time.Duration `mapstructure:"min_interval"`
}

// PoolConfig holds the bounded compute worker pool parameters.
type PoolConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueDepth     int           `mapstructure:"queue_depth"`
	ComputeTimeout time.Duration `mapstructure:"compute_timeout"`
}

// Config is the root application configuration.
type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	Server     ServerConfig     `mapstructure:"server"`
	WS         WSConfig         `mapstructure:"websocket"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Pool       PoolConfig       `mapstructure:"pool"`
}

// LoadConfig loads the application configuration.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", "100-M")

	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.write_timeout", 10*time.Second)
	v.SetDefault("websocket.pong_timeout", 60*time.Second)
	v.SetDefault("websocket.ping_interval", 30*time.Second)
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_queue_size", 64)

	v.SetDefault("risk.confidence_level", 0.95)
	v.SetDefault("risk.risk_free_rate", 0.02)
	v.SetDefault("risk.trading_days_per_year", 252)

	v.SetDefault("simulation.default_simulations", 1000)
	v.SetDefault("simulation.default_days", 252)
	v.SetDefault("simulation.max_path_cells", int64(10000*252))
	v.SetDefault("simulation.seed", 0)

	v.SetDefault("stream.default_interval", 60*time.Second)
	v.SetDefault("stream.min_interval", time.Second)

	v.SetDefault("pool.workers", 10)
	v.SetDefault("pool.queue_depth", 100)
	v.SetDefault("pool.compute_timeout", 30*time.Second)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/riskstream")

	v.SetEnvPrefix("RISKSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine; defaults and env carry the config.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
