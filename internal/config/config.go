package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is parsed from the environment. The heartbeat interval is the
// one behavioral tunable of the fan-out core; everything else configures
// the surrounding HTTP and logging layers.
type Config struct {
	HTTPAddr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	HeartbeatInterval  time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	StreamWriteTimeout time.Duration `env:"STREAM_WRITE_TIMEOUT" envDefault:"10s"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`
	LogOutput   string `env:"LOG_OUTPUT" envDefault:"stdout"`
	LogFilePath string `env:"LOG_FILE_PATH"`
}

// Load parses and validates configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL must be positive, got %v", cfg.HeartbeatInterval)
	}
	if cfg.StreamWriteTimeout <= 0 {
		return nil, fmt.Errorf("STREAM_WRITE_TIMEOUT must be positive, got %v", cfg.StreamWriteTimeout)
	}
	if cfg.LogOutput == "file" && cfg.LogFilePath == "" {
		return nil, fmt.Errorf("LOG_FILE_PATH is required when LOG_OUTPUT=file")
	}

	return cfg, nil
}
