// Package notify pushes execution and stream alerts to Telegram.
package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"solana-autopilot/internal/logging"
)

// Telegram sends alerts to a single chat. The nil receiver is safe:
// a disabled or misconfigured notifier is a nil *Telegram and every
// Notify on it is a no-op, so callers never branch.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *logging.Entry
}

// NewTelegram builds the notifier. A missing token or chat ID disables
// it, as does a failed bot handshake; both return nil.
func NewTelegram(token string, chatID int64, logger *logging.Log) *Telegram {
	if logger == nil {
		logger = logging.Default()
	}
	entry := logger.WithComponent("notify")

	if token == "" || chatID == 0 {
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		entry.WithError(err).Warn("telegram init failed, notifications disabled")
		return nil
	}
	entry.WithField("account", bot.Self.UserName).Info("telegram notifications enabled")

	return &Telegram{bot: bot, chatID: chatID, logger: entry}
}

// Notify sends the message fire-and-forget; a send failure is logged
// and never reaches the trading path.
func (t *Telegram) Notify(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}

	go func() {
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, msg)); err != nil {
			t.logger.WithError(err).Warn("telegram send failed")
		}
	}()
}
