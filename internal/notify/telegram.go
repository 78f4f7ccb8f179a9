package notify

import (
	"context"

	"github.com/brightline/classledger/internal/service"
	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// TelegramAlerter pushes out-of-sync escalations to the admin chat. These are
// the cases where a compensation failed and credits no longer match the logs,
// so a human has to reconcile by hand.
type TelegramAlerter struct {
	bot    *bot.Bot
	chatID string
	logger *zap.Logger
}

var _ service.AdminAlerter = (*TelegramAlerter)(nil)

func NewTelegramAlerter(token, chatID string, logger *zap.Logger) (*TelegramAlerter, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, err
	}
	return &TelegramAlerter{bot: b, chatID: chatID, logger: logger}, nil
}

// Escalate sends the message to the admin chat. Failures are logged; the
// triggering flow already carries its own severe error.
func (a *TelegramAlerter) Escalate(ctx context.Context, message string) {
	_, err := a.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: a.chatID,
		Text:   "⚠️ classledger: " + message,
	})
	if err != nil {
		a.logger.Error("Admin alert delivery failed",
			zap.String("message", message),
			zap.Error(err),
		)
		return
	}
	a.logger.Info("Admin alert sent", zap.String("message", message))
}
