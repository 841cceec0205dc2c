package notifier

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	logger "github.com/sirupsen/logrus"

	"posbot/src/model"
)

// MessageSender is the part of *tgbotapi.BotAPI the sink needs.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// FormatAlert renders a crossing as the three-line chat message.
func FormatAlert(ev model.CrossingEvent) string {
	title := "⚠️ PROFIT → LOSS"
	if ev.Direction == model.DirectionLossToProfit {
		title = "✅ LOSS → PROFIT"
	}
	return fmt.Sprintf("%s\n%s %s\nPNL: %.4f → %.4f USDT", title, ev.Symbol, ev.Side, ev.FromPnl, ev.ToPnl)
}

// TelegramNotifier sends alerts to the admin chat. With no admin chat it drops them silently.
type TelegramNotifier struct {
	sender MessageSender
	chatID int64
}

func NewTelegramNotifier(sender MessageSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID}
}

func (n *TelegramNotifier) Notify(ctx context.Context, ev model.CrossingEvent) error {
	if n.chatID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := n.sender.Send(tgbotapi.NewMessage(n.chatID, FormatAlert(ev))); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// LogNotifier writes alerts to the process log. Used for dry runs without a bot token.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, ev model.CrossingEvent) error {
	logger.WithFields(logger.Fields{
		"event_id":  ev.ID,
		"key":       ev.PositionKey,
		"direction": ev.Direction,
		"from_pnl":  ev.FromPnl,
		"to_pnl":    ev.ToPnl,
	}).Warn(FormatAlert(ev))
	return nil
}
