package alerts

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/polywhale/whalewatch/internal/monitor"
)

// Telegram sends each big trade as a formatted message to a chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram consumer from a bot token and chat ID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token not set")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat ID not set")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram alerts initialized")
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) HandleAlert(trade monitor.BigTrade) error {
	arrow := "🟢"
	if trade.Side == monitor.SideAsk {
		arrow = "🔴"
	}

	text := fmt.Sprintf(
		"🚨 *BIG TRADE ALERT*\n\n"+
			"%s *%s* %s @ %s\n"+
			"💰 Value: $%s\n\n"+
			"📊 %s\n"+
			"🎯 Outcome: %s",
		arrow,
		trade.Side,
		trade.Size.StringFixed(2),
		trade.Price.StringFixed(4),
		trade.Value.StringFixed(2),
		trade.Question,
		trade.Outcome,
	)

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}
