package connectors

import (
	"fmt"
	"strings"

	logger "github.com/sirupsen/logrus"

	"posbot/src/security"
	"posbot/src/watcher"
)

// constructor seams, replaced in tests
var (
	newPhemexClient  = NewPhemexClient
	newKrakenClient  = NewKrakenFuturesClient
	newKucoinClient  = NewKucoinConnector
	newBitunixClient = NewBitunixClient
	revealSecret     = security.Reveal
)

type credentials struct {
	key, secret, passphrase string
}

func (c Config) credentials() (credentials, error) {
	var out credentials
	var err error

	if out.key, err = revealSecret(c.APIKey); err != nil {
		return out, fmt.Errorf("decrypt api key: %w", err)
	}
	if out.secret, err = revealSecret(c.APISecret); err != nil {
		return out, fmt.Errorf("decrypt api secret: %w", err)
	}
	if out.passphrase, err = revealSecret(c.APIPassphrase); err != nil {
		return out, fmt.Errorf("decrypt api passphrase: %w", err)
	}
	return out, nil
}

// NewPositionSupplier builds the one supplier configured for this deployment.
func NewPositionSupplier(cfg Config) (watcher.PositionSupplier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := strings.ToLower(cfg.Provider)
	if provider == ProviderMock {
		logger.Warn("using mock position supplier")
		return NewMockSupplier(), nil
	}

	creds, err := cfg.credentials()
	if err != nil {
		return nil, err
	}

	logger.WithField("provider", provider).Info("position supplier configured")

	switch provider {
	case ProviderPhemex:
		return newPhemexClient(creds.key, creds.secret, cfg.BaseURL, cfg.MarginCoin, cfg.HTTPTimeout), nil
	case ProviderKraken:
		return newKrakenClient(creds.key, creds.secret, cfg.BaseURL, cfg.HTTPTimeout), nil
	case ProviderKucoin:
		return newKucoinClient(creds.key, creds.secret, creds.passphrase, cfg.BaseURL, cfg.MarginCoin, cfg.HTTPTimeout), nil
	case ProviderBitunix:
		return newBitunixClient(creds.key, creds.secret, cfg.BaseURL, cfg.MarginCoin, cfg.HTTPTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported EXCHANGE_PROVIDER %q", cfg.Provider)
	}
}
