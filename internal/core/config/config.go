package config

import (
	"github.com/careops/caresync/internal/cache"
	"github.com/careops/caresync/internal/netmon"
	"github.com/careops/caresync/internal/remote"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Remote  remote.Config `yaml:"remote"`
	Network netmon.Config `yaml:"network"`
	Retry   RetryConfig   `yaml:"retry"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the status HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// RetryConfig holds the default retry budget for a healthy link.
type RetryConfig struct {
	MaxRetries  int `yaml:"max_retries"`
	BaseDelayMs int `yaml:"base_delay_ms"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend string            `yaml:"backend"` // "memory" or "redis"
	Redis   cache.RedisConfig `yaml:"redis"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
