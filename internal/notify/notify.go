package notify

import (
	"context"
	"fmt"
	"time"

	"gymaccess/internal/config"
	"gymaccess/internal/domain"
	"gymaccess/internal/models"

	"github.com/rs/zerolog"
)

// LogNotifier only logs notifications. Used in development.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, msg *models.Notification) error {
	n.logger.Info().
		Str("to", msg.To).
		Str("cc", msg.Cc).
		Str("subject", msg.Subject).
		Str("body", msg.Text).
		Msg("booking notification (log channel)")
	return nil
}

// New builds the notifier for the configured channel.
func New(cfg config.NotificationConfig, logger *zerolog.Logger) (domain.Notifier, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Channel {
	case config.ChannelSMTP:
		return NewSMTPNotifier(cfg.SMTP, timeout, logger), nil
	case config.ChannelTelegram:
		bot, err := NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			return nil, err
		}
		return NewTelegramNotifier(bot, cfg.Telegram.ChatID, logger), nil
	case config.ChannelLog:
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown notification channel: %q", cfg.Channel)
	}
}
