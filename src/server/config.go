package server

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port         string `envconfig:"PORT" default:"9898"`
	APITokenHash string `envconfig:"API_TOKEN_HASH"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.APITokenHash != "" && !strings.HasPrefix(c.APITokenHash, "$2") {
		return fmt.Errorf("API_TOKEN_HASH is not a bcrypt hash")
	}
	return nil
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
