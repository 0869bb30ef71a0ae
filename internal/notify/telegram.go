package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/smiledent/clinic-site/pkg/logging"
)

// TelegramAPI is the subset of the bot API the relay uses.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramRelay posts submission summaries into a staff chat.
type TelegramRelay struct {
	api    TelegramAPI
	chatID int64
	logger *logging.Logger
}

// NewTelegramRelay authorizes the bot token and returns a relay for chatID.
// It returns nil, nil when the relay is not configured.
func NewTelegramRelay(token string, chatID int64, logger *logging.Logger) (*TelegramRelay, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram auth: %w", err)
	}
	return NewTelegramRelayWithAPI(bot, chatID, logger), nil
}

// NewTelegramRelayWithAPI wraps an existing bot API client.
func NewTelegramRelayWithAPI(api TelegramAPI, chatID int64, logger *logging.Logger) *TelegramRelay {
	if logger == nil {
		logger = logging.Default()
	}
	return &TelegramRelay{api: api, chatID: chatID, logger: logger}
}

func (t *TelegramRelay) Name() string { return "telegram" }

// Relay sends the submission summary as a plain-text message.
func (t *TelegramRelay) Relay(ctx context.Context, s Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, s.Summary())
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	return nil
}
