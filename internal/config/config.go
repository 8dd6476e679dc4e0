package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	RearmNever      = "never"
	RearmOnRecovery = "on-recovery"

	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	HTTP struct {
		Port            int           `mapstructure:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Telemetry struct {
		Interval        time.Duration `mapstructure:"interval"`
		HistoryCapacity int           `mapstructure:"history_capacity"`
		RearmPolicy     string        `mapstructure:"rearm_policy"`
		AppOpenDefault  bool          `mapstructure:"app_open_default"`
		AutoConnect     bool          `mapstructure:"auto_connect"`
		Seed            int64         `mapstructure:"seed"`
	} `mapstructure:"telemetry"`

	Selector struct {
		Transport       string        `mapstructure:"transport"`
		URL             string        `mapstructure:"url"`
		Timeout         time.Duration `mapstructure:"timeout"`
		BreakerFailures int           `mapstructure:"breaker_failures"`
		BreakerOpen     time.Duration `mapstructure:"breaker_open"`
		BreakerInterval time.Duration `mapstructure:"breaker_interval"`
		HTTPPort        int           `mapstructure:"http_port"`
		GRPCPort        int           `mapstructure:"grpc_port"`
	} `mapstructure:"selector"`

	MQTT struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		ClientID string `mapstructure:"client_id"`
	} `mapstructure:"mqtt"`

	Influx struct {
		Enabled       bool          `mapstructure:"enabled"`
		URL           string        `mapstructure:"url"`
		Token         string        `mapstructure:"token"`
		Org           string        `mapstructure:"org"`
		Bucket        string        `mapstructure:"bucket"`
		BatchSize     int           `mapstructure:"batch_size"`
		FlushInterval time.Duration `mapstructure:"flush_interval"`
	} `mapstructure:"influx"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Aggregator struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"aggregator"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("telemetry.interval", 2*time.Second)
	v.SetDefault("telemetry.history_capacity", 60)
	v.SetDefault("telemetry.rearm_policy", RearmNever)
	v.SetDefault("telemetry.app_open_default", false)
	v.SetDefault("telemetry.auto_connect", false)
	v.SetDefault("telemetry.seed", 0)

	v.SetDefault("selector.transport", TransportHTTP)
	v.SetDefault("selector.url", "http://localhost:8090")
	v.SetDefault("selector.timeout", 10*time.Second)
	v.SetDefault("selector.breaker_failures", 3)
	v.SetDefault("selector.breaker_open", 30*time.Second)
	v.SetDefault("selector.breaker_interval", time.Minute)
	v.SetDefault("selector.http_port", 8090)
	v.SetDefault("selector.grpc_port", 9090)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.user", "guest")
	v.SetDefault("mqtt.password", "guest")
	v.SetDefault("mqtt.client_id", "aquamonitor")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "aquamonitor")
	v.SetDefault("influx.bucket", "water")
	v.SetDefault("influx.batch_size", 20)
	v.SetDefault("influx.flush_interval", 500*time.Millisecond)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("aggregator.interval", time.Minute)
}

// Load reads defaults, then an optional aquamonitor.yaml in dir, then AQUA_* env vars.
// An empty dir skips the file lookup.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AQUA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir != "" {
		v.SetConfigName("aquamonitor")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Telemetry.RearmPolicy {
	case RearmNever, RearmOnRecovery:
	default:
		return fmt.Errorf("telemetry.rearm_policy: unknown policy %q", c.Telemetry.RearmPolicy)
	}
	switch c.Selector.Transport {
	case TransportHTTP, TransportGRPC:
	default:
		return fmt.Errorf("selector.transport: unknown transport %q", c.Selector.Transport)
	}
	if c.Telemetry.Interval <= 0 {
		return errors.New("telemetry.interval must be positive")
	}
	if c.Telemetry.HistoryCapacity <= 0 {
		return errors.New("telemetry.history_capacity must be positive")
	}
	return nil
}
