package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}
	if cfg.Remote.ProbeURL == "" {
		cfg.Remote.ProbeURL = cfg.Remote.BaseURL + "/health"
	}
	if cfg.Network.ProbeURL == "" {
		cfg.Network.ProbeURL = cfg.Remote.ProbeURL
	}
	if cfg.Network.ProbeTimeout == 0 {
		cfg.Network.ProbeTimeout = 5 * time.Second
	}
	if cfg.Network.ProbeInterval == 0 {
		cfg.Network.ProbeInterval = 30 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelayMs == 0 {
		cfg.Retry.BaseDelayMs = 1000
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}

	return &cfg, nil
}
