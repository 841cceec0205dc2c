package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	logger "github.com/sirupsen/logrus"

	"posbot/src/commands"
)

// ErrEmptyAllowlist stops the bot from starting without TELEGRAM_ALLOWED_CHAT_IDS.
var ErrEmptyAllowlist = errors.New("TELEGRAM_ALLOWED_CHAT_IDS is empty, refusing to start")

const (
	maxListedPositions = 30
	positionsTimeout   = 30 * time.Second
)

const helpText = "/positions - show open positions (snapshot)\n" +
	"/watch on|off - enable/disable watcher alerts\n" +
	"/threshold <usdt> - hysteresis threshold (e.g. 0.5)\n" +
	"/cooldown <seconds> - per-position alert cooldown\n" +
	"/status - bot status + last poll + last error"

// API is the subset of *tgbotapi.BotAPI used by the bot.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot serves chat commands from allowlisted chats over the command service.
type Bot struct {
	api     API
	svc     *commands.Service
	allowed map[int64]struct{}
}

func NewBot(api API, svc *commands.Service, allowed []int64) (*Bot, error) {
	if len(allowed) == 0 {
		return nil, ErrEmptyAllowlist
	}
	set := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	return &Bot{api: api, svc: svc, allowed: set}, nil
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	logger.WithField("allowed_chats", len(b.allowed)).Info("telegram bot started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if _, ok := b.allowed[chatID]; !ok {
		logger.WithFields(logger.Fields{"chat_id": chatID, "command": msg.Command()}).Warn("command from chat outside allowlist")
		b.reply(chatID, "Access denied.", "")
		return
	}

	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.reply(chatID, "posbot is running.\nUse /positions, /watch, /threshold, /cooldown, /status", "")
	case "help":
		b.reply(chatID, helpText, "")
	case "positions":
		b.cmdPositions(ctx, chatID)
	case "watch":
		b.cmdWatch(chatID, args)
	case "threshold":
		b.cmdThreshold(chatID, args)
	case "cooldown":
		b.cmdCooldown(chatID, args)
	case "status":
		b.reply(chatID, b.statusText(), "")
	default:
		b.reply(chatID, "Unknown command. Use /help", "")
	}
}

func (b *Bot) cmdPositions(ctx context.Context, chatID int64) {
	ctx, cancel := context.WithTimeout(ctx, positionsTimeout)
	defer cancel()

	positions, err := b.svc.Positions(ctx)
	if err != nil {
		b.reply(chatID, "Failed to fetch positions: "+err.Error(), "")
		return
	}
	if len(positions) == 0 {
		b.reply(chatID, "No open positions (or provider returned empty).", "")
		return
	}

	lines := []string{"<b>Open positions</b>"}
	for i, p := range positions {
		if i == maxListedPositions {
			lines = append(lines, fmt.Sprintf("... +%d more", len(positions)-maxListedPositions))
			break
		}
		lines = append(lines, fmt.Sprintf("• <code>%s</code> %s | PNL: <b>%.4f</b> USDT",
			html.EscapeString(p.Symbol), html.EscapeString(p.Side), p.UnrealizedPnl))
	}
	b.reply(chatID, strings.Join(lines, "\n"), tgbotapi.ModeHTML)
}

func (b *Bot) cmdWatch(chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(chatID, fmt.Sprintf("watch is %s. Use: /watch on|off", onOff(b.svc.Status().WatchEnabled)), "")
		return
	}
	on, err := commands.ParseWatch(args[0])
	if err != nil {
		b.reply(chatID, "Invalid. Use: /watch on|off", "")
		return
	}
	if err := b.svc.SetWatch(on); err != nil {
		b.replyPersistError(chatID, err)
		return
	}
	b.reply(chatID, "watch set to "+onOff(on), "")
}

func (b *Bot) cmdThreshold(chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(chatID, fmt.Sprintf("threshold is %s. Use: /threshold 0.5", formatFloat(b.svc.Status().PnlThreshold)), "")
		return
	}
	v, err := commands.ParseThreshold(args[0])
	switch {
	case errors.Is(err, commands.ErrNegativeThreshold):
		b.reply(chatID, "threshold must be >= 0", "")
		return
	case err != nil:
		b.reply(chatID, "Invalid number. Example: /threshold 0.5", "")
		return
	}
	if err := b.svc.SetThreshold(v); err != nil {
		b.replyPersistError(chatID, err)
		return
	}
	b.reply(chatID, "threshold set to "+formatFloat(v), "")
}

func (b *Bot) cmdCooldown(chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(chatID, fmt.Sprintf("cooldown is %ds. Use: /cooldown 600", b.svc.Status().CooldownSeconds), "")
		return
	}
	v, err := commands.ParseCooldown(args[0])
	switch {
	case errors.Is(err, commands.ErrNegativeCooldown):
		b.reply(chatID, "cooldown must be >= 0", "")
		return
	case errors.Is(err, commands.ErrCooldownTooLarge):
		b.reply(chatID, err.Error(), "")
		return
	case err != nil:
		b.reply(chatID, "Invalid integer. Example: /cooldown 600", "")
		return
	}
	if err := b.svc.SetCooldown(v); err != nil {
		b.replyPersistError(chatID, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("cooldown set to %ds", v), "")
}

func (b *Bot) statusText() string {
	st := b.svc.Status()
	lastError := st.LastError
	if lastError == "" {
		lastError = "-"
	}
	return strings.Join([]string{
		"watch: " + onOff(st.WatchEnabled),
		"threshold: " + formatFloat(st.PnlThreshold),
		fmt.Sprintf("cooldown: %ds", st.CooldownSeconds),
		"last poll: " + st.LastPollAge,
		"last error: " + lastError,
		fmt.Sprintf("tracked positions: %d", st.TrackedPositions),
	}, "\n")
}

func (b *Bot) replyPersistError(chatID int64, err error) {
	logger.WithError(err).Error("command could not be saved")
	b.reply(chatID, "Failed to save state: "+err.Error(), "")
}

func (b *Bot) reply(chatID int64, text, parseMode string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if _, err := b.api.Send(msg); err != nil {
		logger.WithError(err).WithField("chat_id", chatID).Error("telegram reply failed")
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
