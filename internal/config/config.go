// Package config loads application configuration from config.yaml and
// COMPLIANCE_* environment variables and installs the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Tavily    TavilyConfig    `yaml:"tavily" mapstructure:"tavily"`
	Datagov   DatagovConfig   `yaml:"datagov" mapstructure:"datagov"`
	HSCode    HSCodeConfig    `yaml:"hscode" mapstructure:"hscode"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Precedent PrecedentConfig `yaml:"precedent" mapstructure:"precedent"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	FastModel    string `yaml:"fast_model" mapstructure:"fast_model"`
	QualityModel string `yaml:"quality_model" mapstructure:"quality_model"`
}

// TavilyConfig holds Tavily search API settings.
type TavilyConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DatagovConfig holds data.gov CKAN API settings.
type DatagovConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// HSCodeConfig holds the HS code recommendation service settings.
type HSCodeConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CacheConfig configures the tiered cache. Redis is optional; when
// disabled the cache runs memory + sqlite only.
type CacheConfig struct {
	Dir            string `yaml:"dir" mapstructure:"dir"`
	MemoryCapacity int    `yaml:"memory_capacity" mapstructure:"memory_capacity"`
	RedisEnabled   bool   `yaml:"redis_enabled" mapstructure:"redis_enabled"`
	RedisAddr      string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword  string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB        int    `yaml:"redis_db" mapstructure:"redis_db"`
}

// PrecedentConfig configures the precedent corpus store.
type PrecedentConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// PipelineConfig configures analysis orchestration.
type PipelineConfig struct {
	Mode            string `yaml:"mode" mapstructure:"mode"`
	MaxInFlight     int    `yaml:"max_in_flight" mapstructure:"max_in_flight"`
	TaskTimeoutSecs int    `yaml:"task_timeout_secs" mapstructure:"task_timeout_secs"`
}

// TaskTimeout returns the per-task timeout as a duration.
func (c PipelineConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COMPLIANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.fast_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.quality_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("datagov.base_url", "https://catalog.data.gov/api/3")
	v.SetDefault("hscode.base_url", "https://api.lawgenie.ai")
	v.SetDefault("cache.dir", ".compliance-cache")
	v.SetDefault("cache.memory_capacity", 1000)
	v.SetDefault("cache.redis_enabled", false)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("precedent.db_path", ".compliance-cache/precedents.db")
	v.SetDefault("pipeline.mode", "parallel")
	v.SetDefault("pipeline.max_in_flight", 5)
	v.SetDefault("pipeline.task_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
