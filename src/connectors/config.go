package connectors

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderMock    = "mock"
	ProviderPhemex  = "phemex"
	ProviderKraken  = "kraken"
	ProviderKucoin  = "kucoin"
	ProviderBitunix = "bitunix"
)

// Config selects the single position supplier of a deployment.
// Key, secret and passphrase may be given as "enc:..." values, see security.EncryptString.
type Config struct {
	Provider      string        `envconfig:"EXCHANGE_PROVIDER" default:"mock"`
	APIKey        string        `envconfig:"EXCHANGE_API_KEY"`
	APISecret     string        `envconfig:"EXCHANGE_API_SECRET"`
	APIPassphrase string        `envconfig:"EXCHANGE_API_PASSPHRASE"`
	BaseURL       string        `envconfig:"EXCHANGE_BASE_URL"`
	MarginCoin    string        `envconfig:"MARGIN_COIN" default:"USDT"`
	HTTPTimeout   time.Duration `envconfig:"EXCHANGE_HTTP_TIMEOUT" default:"15s"`
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case ProviderMock:
		return nil
	case ProviderPhemex, ProviderKraken, ProviderBitunix:
		if c.APIKey == "" || c.APISecret == "" {
			return fmt.Errorf("EXCHANGE_API_KEY and EXCHANGE_API_SECRET are required for %s", c.Provider)
		}
		return nil
	case ProviderKucoin:
		if c.APIKey == "" || c.APISecret == "" || c.APIPassphrase == "" {
			return fmt.Errorf("EXCHANGE_API_KEY, EXCHANGE_API_SECRET and EXCHANGE_API_PASSPHRASE are required for kucoin")
		}
		return nil
	default:
		return fmt.Errorf("unsupported EXCHANGE_PROVIDER %q", c.Provider)
	}
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
