package notify

import (
	"context"
	"errors"
	"fmt"

	"gymaccess/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramSender is the subset of the bot API used to post notifications.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts booking requests to the operations chat.
type TelegramNotifier struct {
	bot    TelegramSender
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(bot TelegramSender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}
}

// NewTelegramBot connects to the Bot API with the given token.
func NewTelegramBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

func (n *TelegramNotifier) Send(ctx context.Context, msg *models.Notification) error {
	if msg == nil {
		return errors.New("telegram: empty notification")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(n.chatID, msg.Subject+"\n\n"+msg.Text)
	out.DisableWebPagePreview = true
	if _, err := n.bot.Send(out); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	n.logger.Info().Int64("chat_id", n.chatID).Str("subject", msg.Subject).Msg("booking notification sent")
	return nil
}
