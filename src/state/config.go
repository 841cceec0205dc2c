package state

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"posbot/src/model"
)

// Config holds the state file location and the defaults applied to a fresh state.
type Config struct {
	Path            string  `envconfig:"STATE_PATH" default:"./state.json"`
	WatchEnabled    bool    `envconfig:"WATCH_ENABLED" default:"true"`
	PnlThreshold    float64 `envconfig:"PNL_THRESHOLD_USDT" default:"0.5"`
	CooldownSeconds int64   `envconfig:"COOLDOWN_SECONDS" default:"60"`
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("STATE_PATH must not be empty")
	}
	if c.PnlThreshold < 0 {
		return fmt.Errorf("PNL_THRESHOLD_USDT must be >= 0, got %v", c.PnlThreshold)
	}
	if c.CooldownSeconds < 0 || c.CooldownSeconds > model.MaxCooldownSeconds {
		return fmt.Errorf("COOLDOWN_SECONDS must be within [0, %d], got %d", model.MaxCooldownSeconds, c.CooldownSeconds)
	}
	return nil
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid state config: %w", err))
	}
	return config
}
