package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN    string `env:"DATABASE_DSN,required=true"`
	RedisURL       string `env:"REDIS_URL,required=true"`
	APIPort        int    `env:"API_PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	LogFormat      string `env:"LOG_FORMAT,default=json"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns int    `env:"DB_MAX_IDLE_CONNS,default=5"`

	ProcessConcurrency   int `env:"PROCESS_CONCURRENCY,default=10"`
	ProcessDelayMS       int `env:"PROCESS_DELAY_MS,default=1000"`
	ProcessTaskTimeoutMS int `env:"PROCESS_TASK_TIMEOUT_MS,default=0"`
	ProcessRatePerSec    int `env:"PROCESS_RATE_PER_SEC,default=0"`
	ProcessIntervalSec   int `env:"PROCESS_INTERVAL_SEC,default=0"`
	StatusTTLSec         int `env:"STATUS_TTL_SEC,default=3600"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.ProcessConcurrency < 1 {
		return fmt.Errorf("PROCESS_CONCURRENCY must be >= 1, got %d", c.ProcessConcurrency)
	}
	if c.ProcessDelayMS < 0 {
		return fmt.Errorf("PROCESS_DELAY_MS must be >= 0, got %d", c.ProcessDelayMS)
	}
	if c.ProcessTaskTimeoutMS < 0 {
		return fmt.Errorf("PROCESS_TASK_TIMEOUT_MS must be >= 0, got %d", c.ProcessTaskTimeoutMS)
	}
	if c.ProcessRatePerSec < 0 {
		return fmt.Errorf("PROCESS_RATE_PER_SEC must be >= 0, got %d", c.ProcessRatePerSec)
	}
	if c.ProcessIntervalSec < 0 {
		return fmt.Errorf("PROCESS_INTERVAL_SEC must be >= 0, got %d", c.ProcessIntervalSec)
	}
	return nil
}

func (c *Config) ProcessDelay() time.Duration {
	return time.Duration(c.ProcessDelayMS) * time.Millisecond
}

// ProcessTaskTimeout is zero when tasks run unbounded.
func (c *Config) ProcessTaskTimeout() time.Duration {
	return time.Duration(c.ProcessTaskTimeoutMS) * time.Millisecond
}

// ProcessInterval is zero when periodic processing is disabled.
func (c *Config) ProcessInterval() time.Duration {
	return time.Duration(c.ProcessIntervalSec) * time.Second
}

func (c *Config) StatusTTL() time.Duration {
	return time.Duration(c.StatusTTLSec) * time.Second
}
