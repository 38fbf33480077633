package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends events as direct messages. Chat ids equal user ids; placeholder users have
// no chat and are skipped.
type Telegram struct {
	sender      Sender
	logger      *slog.Logger
	minorDigits int32
}

// NewTelegram wraps a bot sender.
func NewTelegram(sender Sender, logger *slog.Logger, minorDigits int32) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{sender: sender, logger: logger.With("component", "telegram"), minorDigits: minorDigits}
}

// NewBotAPI connects to the Bot API with token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = false
	return bot, nil
}

// Notify implements Port.
func (t *Telegram) Notify(ctx context.Context, userID int64, ev Event) error {
	if userID <= 0 {
		t.logger.Debug("skipping notification for placeholder user", "user_id", userID, "kind", ev.Kind)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(userID, Render(ev, t.minorDigits))
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("send %s to %d: %w", ev.Kind, userID, err)
	}
	return nil
}
