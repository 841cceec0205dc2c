package runner

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// enables the HTTP command API
	HTTPEnabled bool `envconfig:"HTTP_ENABLED" default:"true"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
