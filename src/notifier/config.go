package notifier

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	KindTelegram = "telegram"
	KindLog      = "log"
)

type Config struct {
	Kind string `envconfig:"NOTIFIER" default:"telegram"`
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Kind) {
	case KindTelegram, KindLog:
		return nil
	default:
		return fmt.Errorf("unsupported NOTIFIER %q", c.Kind)
	}
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	if err := config.Validate(); err != nil {
		panic(err)
	}
	return config
}
