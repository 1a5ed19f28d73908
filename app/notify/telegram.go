package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramCaptionLimit = 1024
	telegramTextLimit    = 4096
)

var _ Sink = (*TelegramSender)(nil)

// TelegramSender delivers messages through a bot to a single chat.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

type TelegramSenderConfig struct {
	Token       string
	ChatID      int64
	APIEndpoint string // defaults to tgbotapi.APIEndpoint
	Timeout     time.Duration
}

// NewTelegramSender authenticates the bot token against the API.
func NewTelegramSender(cfg TelegramSenderConfig) (*TelegramSender, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultSlackTimeout
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramSender{bot: bot, chatID: cfg.ChatID}, nil
}

func (s *TelegramSender) Name() string { return "telegram" }

// Send posts a photo with caption when the message has an image, text otherwise.
// A rejected photo (bad type, too large, unreachable URL) is resent once as text.
// The bot client has no context support; the HTTP client timeout bounds each call.
func (s *TelegramSender) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := message.Plain
	if text == "" {
		text = message.Text
	}

	start := time.Now()
	var err error
	if message.ImageURL != "" {
		photo := tgbotapi.NewPhoto(s.chatID, tgbotapi.FileURL(message.ImageURL))
		photo.Caption = truncateString(text, telegramCaptionLimit)
		_, err = s.bot.Send(photo)

		if err != nil && ctx.Err() == nil {
			slog.Warn("Telegram rejected photo, resending as text", "image_url", message.ImageURL, "error", err)
			sinkSendTotal.WithLabelValues(s.Name(), "fallback").Inc()
			err = s.sendText(text)
		}
	} else {
		err = s.sendText(text)
	}
	duration := time.Since(start).Seconds()

	if err != nil {
		sinkSendTotal.WithLabelValues(s.Name(), "error").Inc()
		sinkSendDuration.WithLabelValues(s.Name(), "error").Observe(duration)
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	sinkSendTotal.WithLabelValues(s.Name(), "success").Inc()
	sinkSendDuration.WithLabelValues(s.Name(), "success").Observe(duration)
	return nil
}

func (s *TelegramSender) sendText(text string) error {
	_, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, truncateString(text, telegramTextLimit)))
	return err
}
