package watcher

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	minPollInterval = 5 * time.Second
	maxPollInterval = time.Hour
)

type Config struct {
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"15s"`
	StopTimeout     time.Duration `envconfig:"STOP_TIMEOUT" default:"5s"`
	StaleEvictAfter time.Duration `envconfig:"STALE_EVICT_AFTER" default:"24h"`
}

func (c Config) Validate() error {
	if c.PollInterval < minPollInterval || c.PollInterval > maxPollInterval {
		return fmt.Errorf("POLL_INTERVAL must be within [%s, %s], got %s", minPollInterval, maxPollInterval, c.PollInterval)
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("STOP_TIMEOUT must be positive, got %s", c.StopTimeout)
	}
	if c.StaleEvictAfter < 0 {
		return fmt.Errorf("STALE_EVICT_AFTER must not be negative, got %s", c.StaleEvictAfter)
	}
	return nil
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid watcher config: %w", err))
	}
	return config
}
