// Package notify delivers run summaries to Telegram.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/alphalab-research/alphalab/models"
)

// Telegram sends messages to a single chat via the Bot API.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// Nop is returned when no bot token is configured; every Notify is a no-op.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(ctx context.Context, text string) error { return nil }

// New builds a Telegram notifier, or a Nop one when token or chat ID is missing.
func New(token string, chatID int64, logger zerolog.Logger) (models.Notifier, error) {
	if token == "" || chatID == 0 {
		return Nop{}, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: logger.With().Str("component", "notify").Logger(),
	}, nil
}

// Notify sends text to the configured chat. The message is sent as plain
// text so report formatting survives untouched.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}

	t.logger.Debug().Int64("chat_id", t.chatID).Int("bytes", len(text)).Msg("notification sent")
	return nil
}
