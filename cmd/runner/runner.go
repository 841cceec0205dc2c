package runner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"posbot/src/commands"
	"posbot/src/connectors"
	"posbot/src/metrics"
	"posbot/src/notifier"
	"posbot/src/server"
	"posbot/src/state"
	"posbot/src/telegram"
	"posbot/src/watcher"
)

// newTelegramAPI is replaced in tests.
var newTelegramAPI = func(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

type Runner struct{}

// Start runs the watcher, the Telegram bot and the HTTP API until SIGINT or SIGTERM.
func (t *Runner) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	return Run(ctx, Settings{
		Runner:   *GetConfig(),
		State:    state.GetConfig(),
		Watcher:  watcher.GetConfig(),
		Exchange: connectors.GetConfig(),
		Notifier: notifier.GetConfig(),
		Telegram: telegram.GetConfig(),
		Server:   *server.GetConfig(),
		Registry: prometheus.DefaultRegisterer,
		Gatherer: prometheus.DefaultGatherer,
	})
}

// Settings gathers everything Run wires together. Supplier, TgAPI and Alerts override the configured ones when set.
type Settings struct {
	Runner   Config
	State    state.Config
	Watcher  watcher.Config
	Exchange connectors.Config
	Notifier notifier.Config
	Telegram telegram.Config
	Server   server.Config

	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer

	Supplier watcher.PositionSupplier
	TgAPI    telegram.API
	Alerts   watcher.Notifier
}

// Run wires the components from s and blocks until ctx is done or one of them fails.
func Run(ctx context.Context, s Settings) error {
	if err := s.Watcher.Validate(); err != nil {
		return err
	}

	shared, err := state.Open(s.State)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}

	supplier := s.Supplier
	if supplier == nil {
		if supplier, err = connectors.NewPositionSupplier(s.Exchange); err != nil {
			return fmt.Errorf("position supplier: %w", err)
		}
	}

	api := s.TgAPI
	telegramOn := strings.TrimSpace(s.Telegram.BotToken) != "" || api != nil
	if telegramOn {
		if len(s.Telegram.AllowedIDs()) == 0 {
			return telegram.ErrEmptyAllowlist
		}
		if api == nil {
			botAPI, err := newTelegramAPI(s.Telegram.BotToken)
			if err != nil {
				return fmt.Errorf("telegram login: %w", err)
			}
			logrus.WithField("bot", botAPI.Self.UserName).Info("authorized on telegram")
			api = botAPI
		}
	}

	alerts := s.Alerts
	if alerts == nil {
		if alerts, err = newNotifier(s.Notifier, api, s.Telegram.AdminID()); err != nil {
			return err
		}
	}

	svc := commands.NewService(shared, supplier)
	w := watcher.New(s.Watcher, shared, supplier, alerts, metrics.New(s.Registry))

	var bot *telegram.Bot
	if telegramOn {
		if bot, err = telegram.NewBot(api, svc, s.Telegram.AllowedIDs()); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return superviseWatcher(ctx, w)
	})

	if bot != nil {
		g.Go(func() error {
			return bot.Run(ctx)
		})
	} else {
		logrus.Warn("TELEGRAM_BOT_TOKEN not set, chat commands disabled")
	}

	if s.Runner.HTTPEnabled {
		if s.Server.APITokenHash == "" {
			logrus.Warn("API_TOKEN_HASH not set, HTTP write routes disabled")
		}
		router := server.NewRouter(svc, s.Server.APITokenHash, s.Gatherer)
		g.Go(func() error {
			return server.Run(ctx, s.Server.Port, router)
		})
	}

	logrus.WithFields(logrus.Fields{
		"provider": s.Exchange.Provider,
		"notifier": s.Notifier.Kind,
		"interval": s.Watcher.PollInterval,
	}).Info("posbot started")

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("posbot stopped with error")
		return err
	}
	logrus.Info("posbot stopped")
	return nil
}

// superviseWatcher runs w until ctx is done or the loop ends on its own. Shutdown waits for the
// in-flight tick at most STOP_TIMEOUT; a tick stuck past that is abandoned.
func superviseWatcher(ctx context.Context, w *watcher.Watcher) error {
	w.Start(ctx)

	select {
	case <-ctx.Done():
	case <-w.Done():
	}

	if err := w.Stop(); err != nil {
		logrus.WithError(err).Warn("abandoning in-flight watcher tick")
		return nil
	}
	return w.Err()
}

func newNotifier(cfg notifier.Config, api telegram.API, adminID int64) (watcher.Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Kind) {
	case notifier.KindLog:
		return notifier.LogNotifier{}, nil
	default:
		if api == nil {
			return nil, fmt.Errorf("NOTIFIER=telegram needs TELEGRAM_BOT_TOKEN")
		}
		if adminID == 0 {
			logrus.Warn("no admin chat configured, alerts will not be delivered")
		}
		return notifier.NewTelegramNotifier(api, adminID), nil
	}
}
