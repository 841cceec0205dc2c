package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

type Config struct {
	BotToken       string `envconfig:"TELEGRAM_BOT_TOKEN"`
	AllowedChatIDs string `envconfig:"TELEGRAM_ALLOWED_CHAT_IDS"`
	AdminChatID    string `envconfig:"TELEGRAM_ADMIN_CHAT_ID"`
}

// AllowedIDs parses the comma separated allowlist. Entries that are not integers are skipped.
func (c Config) AllowedIDs() []int64 {
	var out []int64
	for _, item := range strings.Split(c.AllowedChatIDs, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			logger.WithField("value", item).Warn("ignoring non-numeric TELEGRAM_ALLOWED_CHAT_IDS entry")
			continue
		}
		out = append(out, id)
	}
	return out
}

// AdminID is TELEGRAM_ADMIN_CHAT_ID, or the first allowed id when unset. Zero means no admin chat.
func (c Config) AdminID() int64 {
	if raw := strings.TrimSpace(c.AdminChatID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.WithField("value", raw).Warn("invalid TELEGRAM_ADMIN_CHAT_ID, alerts disabled")
			return 0
		}
		return id
	}
	if ids := c.AllowedIDs(); len(ids) > 0 {
		return ids[0]
	}
	return 0
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if len(c.AllowedIDs()) == 0 {
		return ErrEmptyAllowlist
	}
	return nil
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
