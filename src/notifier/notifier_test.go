package notifier

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posbot/src/model"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func event(dir model.Direction) model.CrossingEvent {
	return model.CrossingEvent{
		PositionKey: "BTCUSDT:LONG",
		Symbol:      "BTCUSDT",
		Side:        "LONG",
		FromPnl:     -1.23456,
		ToPnl:       2,
		Direction:   dir,
	}
}

func TestFormatAlert(t *testing.T) {
	assert.Equal(t, "✅ LOSS → PROFIT\nBTCUSDT LONG\nPNL: -1.2346 → 2.0000 USDT", FormatAlert(event(model.DirectionLossToProfit)))
	assert.Equal(t, "⚠️ PROFIT → LOSS\nBTCUSDT LONG\nPNL: -1.2346 → 2.0000 USDT", FormatAlert(event(model.DirectionProfitToLoss)))
}

func TestTelegramNotifierSendsToAdminChat(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, 42)

	require.NoError(t, n.Notify(context.Background(), event(model.DirectionLossToProfit)))

	require.Len(t, sender.sent, 1)
	assert.EqualValues(t, 42, sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "LOSS → PROFIT")
}

func TestTelegramNotifierWithoutChatIsNoop(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, 0)

	require.NoError(t, n.Notify(context.Background(), event(model.DirectionLossToProfit)))
	assert.Empty(t, sender.sent)
}

func TestTelegramNotifierPropagatesErrors(t *testing.T) {
	n := NewTelegramNotifier(&fakeSender{err: errors.New("Forbidden: bot was blocked by the user")}, 42)

	err := n.Notify(context.Background(), event(model.DirectionProfitToLoss))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot was blocked")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewTelegramNotifier(&fakeSender{}, 1).Notify(ctx, event(model.DirectionProfitToLoss)), context.Canceled)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), event(model.DirectionProfitToLoss)))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Kind: "Telegram"}.Validate())
	assert.NoError(t, Config{Kind: "log"}.Validate())
	assert.Error(t, Config{Kind: "slack"}.Validate())
}
