package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tradewatch/internal/alert"
	"tradewatch/internal/config"
	"tradewatch/internal/logger"
	"tradewatch/internal/models"
)

// markdownV2Escaper escapes the characters MarkdownV2 reserves.
var markdownV2Escaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]",
	"(", "\\(", ")", "\\)", "~", "\\~", "`", "\\`",
	">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}",
	".", "\\.", "!", "\\!",
)

// EscapeMarkdownV2 escapes text for Telegram MarkdownV2 parse mode.
func EscapeMarkdownV2(text string) string {
	return markdownV2Escaper.Replace(text)
}

// telegramIndicator prefixes a message with the priority marker.
func telegramIndicator(p models.Priority) string {
	switch p {
	case models.PriorityCritical:
		return "🚨"
	case models.PriorityImportant:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// Telegram sends alerts to a chat via the Bot API, retrying transient
// failures with a linearly growing delay.
type Telegram struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	startedAt      time.Time
}

// NewTelegram creates a Telegram channel from config and verifies the
// token against the Bot API.
func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat_id %q: %w", cfg.ChatID, err)
	}
	logger.Info("Telegram bot authorized as @%s", bot.Self.UserName)
	return &Telegram{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		startedAt:      time.Now(),
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Send delivers one alert as a MarkdownV2 message.
func (t *Telegram) Send(a alert.Alert) error {
	text := fmt.Sprintf("%s *%s*\n%s",
		telegramIndicator(a.Priority),
		EscapeMarkdownV2(a.Title),
		EscapeMarkdownV2(a.Body))

	var lastErr error
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(t.chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdownV2

		if _, err := t.bot.Send(msg); err != nil {
			lastErr = err
			logger.Warn("Telegram send attempt %d/%d failed: %v", attempt, t.maxRetries, err)
			if attempt < t.maxRetries {
				time.Sleep(t.retryDelayBase * time.Duration(attempt))
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("telegram send failed after %d attempts: %w", t.maxRetries, lastErr)
}

// StartListener answers /ping and /status commands until the context is
// cancelled. Intended to run in its own goroutine.
func (t *Telegram) StartListener(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	logger.Info("Telegram command listener started")
	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			t.handleCommand(update.Message)
		}
	}
}

func (t *Telegram) handleCommand(msg *tgbotapi.Message) {
	var reply string
	switch msg.Command() {
	case "ping":
		reply = "pong"
	case "status":
		reply = fmt.Sprintf("watching for %s", time.Since(t.startedAt).Round(time.Second))
	default:
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	if _, err := t.bot.Send(out); err != nil {
		logger.Warn("Failed to answer /%s: %v", msg.Command(), err)
	}
}
