package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

// TelegramSender delivers messages through the Telegram Bot API.
type TelegramSender struct {
	bot     *tele.Bot
	timeout time.Duration
	logger  zerolog.Logger
}

// NewTelegramSender wraps an existing telebot instance.
func NewTelegramSender(bot *tele.Bot, timeout time.Duration, logger zerolog.Logger) *TelegramSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramSender{
		bot:     bot,
		timeout: timeout,
		logger:  logger.With().Str("component", "telegram_sender").Logger(),
	}
}

// Send delivers one text message to one chat.
func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	// telebot 不支持 context，送达时限由调用方的超时兜底。
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.bot.Send(tele.ChatID(chatID), text); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

var _ Sender = (*TelegramSender)(nil)
