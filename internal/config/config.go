package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable, e.g. FARM_PORT.
const EnvPrefix = "FARM"

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Session   SessionConfig   `mapstructure:"session"`
	Inference InferenceConfig `mapstructure:"inference"`
	Fallback  FallbackConfig  `mapstructure:"fallback"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address derived from Port.
func (c ServerConfig) Addr() string {
	port := strings.TrimSpace(c.Port)
	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port
	}
	return ":" + port
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig locates the persisted settings database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// SessionConfig controls how long an abandoned conversation is kept.
type SessionConfig struct {
	// TTL is the idle time after which a session with no attached view is
	// dropped. 0 keeps sessions until they are closed explicitly.
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// InferenceConfig describes the text-generation endpoint.
type InferenceConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxNewTokens int           `mapstructure:"max_new_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
}

// FallbackConfig tunes the canned reply pool.
type FallbackConfig struct {
	PoolFile string `mapstructure:"pool_file"`
	// Seed makes reply selection reproducible; 0 seeds from the runtime.
	Seed uint64 `mapstructure:"seed"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.path", "farm-assistant.db")
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("inference.base_url", "https://api-inference.huggingface.co")
	v.SetDefault("inference.timeout", time.Duration(0))
	v.SetDefault("inference.max_new_tokens", 150)
	v.SetDefault("inference.temperature", 0.7)
	v.SetDefault("fallback.pool_file", "")
	v.SetDefault("fallback.seed", 0)
}

// New returns a viper instance reading FARM_* variables and, when path is
// not empty, the given config file.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PORT is the conventional variable on most hosting platforms.
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Load 从环境变量与可选的配置文件加载配置。
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the services cannot work with.
func (c *Config) Validate() error {
	var errs []error

	port := strings.TrimSpace(c.Server.Port)
	if port == "" || strings.Contains(port, " ") {
		errs = append(errs, fmt.Errorf("invalid server.port value: %q", c.Server.Port))
	}
	if c.Inference.Timeout < 0 {
		errs = append(errs, fmt.Errorf("inference.timeout must not be negative: %s", c.Inference.Timeout))
	}
	if c.Inference.MaxNewTokens <= 0 {
		errs = append(errs, fmt.Errorf("inference.max_new_tokens must be positive: %d", c.Inference.MaxNewTokens))
	}
	if c.Inference.Temperature <= 0 {
		errs = append(errs, fmt.Errorf("inference.temperature must be positive: %v", c.Inference.Temperature))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, fmt.Errorf("session.ttl must not be negative: %s", c.Session.TTL))
	}
	if c.Session.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("session.sweep_interval must not be negative: %s", c.Session.SweepInterval))
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is required"))
	}

	return errors.Join(errs...)
}
