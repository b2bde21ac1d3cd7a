// Package telegram sends operational alerts to a Telegram chat. Alerts
// are throttled so a burst of upstream failures does not flood the chat.
package telegram

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/profilegate/profilegate/internal/config"
	"github.com/profilegate/profilegate/internal/logging"
)

// Notify sends a one-off message without requiring a running notifier.
func Notify(token string, chatID int64, text string) {
	token = strings.TrimSpace(token)
	if token == "" || chatID == 0 || strings.TrimSpace(text) == "" {
		return
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	_, _ = bot.Send(msg)
}

// Notifier sends throttled alerts during normal operation.
type Notifier struct {
	bot      *tgbotapi.BotAPI
	chatID   int64
	throttle *throttler
	logger   *logging.Logger
}

// NewNotifier creates a notifier from configuration. Returns nil when
// telegram alerting is disabled or misconfigured; a nil Notifier is safe
// to call.
func NewNotifier(cfg config.TelegramConfig, logger *logging.Logger) *Notifier {
	if !cfg.Enabled || strings.TrimSpace(cfg.BotToken) == "" || cfg.ChatID == 0 {
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(strings.TrimSpace(cfg.BotToken))
	if err != nil {
		logger.Warn("telegram notifier disabled", "error", err.Error())
		return nil
	}

	return &Notifier{
		bot:      bot,
		chatID:   cfg.ChatID,
		throttle: newThrottler(cfg.MessagesPerMinute),
		logger:   logger,
	}
}

// Send delivers a Markdown message, subject to throttling.
func (n *Notifier) Send(text string) {
	if n == nil || strings.TrimSpace(text) == "" {
		return
	}
	if !n.throttle.allow() {
		n.logger.Debug("telegram alert throttled")
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn("failed to send telegram alert", "error", err.Error())
	}
}

// ServerStarted announces a successful startup.
func (n *Notifier) ServerStarted(addr string) {
	n.Send(fmt.Sprintf("✅ *profilegate* started on `%s`", addr))
}

// ServerStopped announces a shutdown.
func (n *Notifier) ServerStopped() {
	n.Send("🛑 *profilegate* stopped")
}

// UpstreamFailure reports a failed forwarded call.
func (n *Notifier) UpstreamFailure(operation string, err error) {
	n.Send(fmt.Sprintf("⚠️ upstream call `%s` failed: %s", operation, err.Error()))
}

// throttler is a token bucket over messages per minute.
type throttler struct {
	rate       float64
	bucketSize float64
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

func newThrottler(ratePerMinute int) *throttler {
	if ratePerMinute <= 0 {
		ratePerMinute = 20
	}
	return &throttler{
		rate:       float64(ratePerMinute) / 60.0,
		bucketSize: float64(ratePerMinute),
		tokens:     float64(ratePerMinute),
		lastUpdate: time.Now(),
	}
}

func (t *throttler) allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.lastUpdate).Seconds()
	t.lastUpdate = now

	t.tokens += t.rate * elapsed
	if t.tokens > t.bucketSize {
		t.tokens = t.bucketSize
	}

	if t.tokens >= 1 {
		t.tokens--
		return true
	}
	return false
}
