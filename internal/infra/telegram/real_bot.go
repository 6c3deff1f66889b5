package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"pawplan/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*RealBotNotifier)(nil)

// sender is the part of *tgbotapi.BotAPI we use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RealBotNotifier posts ops alerts (failed payments, new orders) to a Telegram chat.
type RealBotNotifier struct {
	bot    sender
	chatID int64
	log    *zerolog.Logger
}

func NewRealBotNotifier(token string, chatID int64, logger *zerolog.Logger) (*RealBotNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newRealBotNotifier(bot, chatID, logger), nil
}

func newRealBotNotifier(bot sender, chatID int64, logger *zerolog.Logger) *RealBotNotifier {
	l := logger.With().Str("component", "telegram_notifier").Logger()
	return &RealBotNotifier{bot: bot, chatID: chatID, log: &l}
}

func (r *RealBotNotifier) Name() string { return "telegram" }

func (r *RealBotNotifier) Notify(ctx context.Context, msg adapter.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := tgbotapi.NewMessage(r.chatID, formatAlert(msg))
	m.ParseMode = tgbotapi.ModeHTML
	m.DisableWebPagePreview = true
	if _, err := r.bot.Send(m); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	r.log.Debug().Str("kind", string(msg.Kind)).Msg("ops alert sent")
	return nil
}

// formatAlert renders a message as Telegram HTML with data keys sorted for stable output.
func formatAlert(msg adapter.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n%s", escape(msg.Subject), escape(msg.Body))
	if len(msg.Data) > 0 {
		keys := make([]string, 0, len(msg.Data))
		for k := range msg.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: <code>%s</code>", escape(k), escape(msg.Data[k]))
		}
	}
	return b.String()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string { return htmlEscaper.Replace(s) }
