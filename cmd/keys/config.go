package keys

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// generate a fresh EXCHANGE_CREDENTIALS_KEY when none is set
	GenerateKey bool `envconfig:"KEYS_GENERATE" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
