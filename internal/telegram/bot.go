package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/nikkes174/VPNBot/internal/config"
	"github.com/nikkes174/VPNBot/internal/logger"
	"github.com/nikkes174/VPNBot/internal/metrics"
	"github.com/nikkes174/VPNBot/internal/panel"
	"github.com/nikkes174/VPNBot/internal/payment"
	"github.com/nikkes174/VPNBot/internal/store"
)

// pendingKind tracks what an admin reply is expected to carry.
type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingBroadcast
	pendingDirectUserID
	pendingDirectMessage
)

type pendingAction struct {
	kind       pendingKind
	targetUser int64
}

type Bot struct {
	api      *tgbotapi.BotAPI
	config   *config.Config
	store    store.Store
	payments *payment.Manager
	metrics  *metrics.Collector

	// Rate limiting
	globalLimiter  *rate.Limiter           // Global rate limiter
	userLimiters   map[int64]*rate.Limiter // Per-user rate limiters
	userLimitersMu sync.RWMutex            // Protects userLimiters map

	// Admin conversation state (broadcast / direct message flows)
	pendingActions map[int64]pendingAction
	pendingMu      sync.Mutex

	// Callback deduplication
	processedCallbacks map[string]time.Time
	callbacksMu        sync.RWMutex

	// Worker pool for concurrent processing
	workerPool *WorkerPool
}

func NewBot(cfg *config.Config, st store.Store, panelClient *panel.Client, gateway payment.Gateway, mc *metrics.Collector) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	b := &Bot{
		api:     api,
		config:  cfg,
		store:   st,
		metrics: mc,

		globalLimiter: rate.NewLimiter(rate.Limit(30), 30), // Telegram-wide 30 msg/sec
		userLimiters:  make(map[int64]*rate.Limiter),

		pendingActions:     make(map[int64]pendingAction),
		processedCallbacks: make(map[string]time.Time),
	}

	// The bot is the notifier for payment flows, so the manager is built here.
	b.payments = payment.NewManager(st, gateway, panelClient, b, mc, cfg.ReturnURL)

	return b, nil
}

// Payments exposes the payment manager for the web front-end.
func (b *Bot) Payments() *payment.Manager {
	return b.payments
}

func (b *Bot) Start() error {
	logger.Info("Bot authorized and starting", map[string]interface{}{
		"username": b.api.Self.UserName,
	})

	b.workerPool = NewWorkerPool(b, DefaultWorkerPoolConfig())
	if err := b.workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Перезапуск бота"},
		tgbotapi.BotCommand{Command: "admin_panel", Description: "Панель админа"},
	)
	if _, err := b.api.Request(commands); err != nil {
		logger.Warn("Failed to set bot commands", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if b.config.AdminID != 0 {
		b.SendMessage(b.config.AdminID, "Бот запущен")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.CallbackQuery != nil {
			if err := b.workerPool.SubmitCallback(update.CallbackQuery); err != nil {
				logger.Error("Failed to submit callback to worker pool", map[string]interface{}{
					"error":       err.Error(),
					"callback_id": update.CallbackQuery.ID,
				})
			}
			continue
		}

		if update.Message == nil {
			continue
		}

		if err := b.workerPool.SubmitMessage(update.Message); err != nil {
			logger.Error("Failed to submit message to worker pool", map[string]interface{}{
				"error":   err.Error(),
				"chat_id": update.Message.Chat.ID,
			})
		}
	}

	return nil
}

// Stop gracefully shuts down the bot and its worker pool
func (b *Bot) Stop() error {
	logger.InfoMsg("Stopping bot...")

	if b.workerPool != nil {
		if err := b.workerPool.Stop(); err != nil {
			logger.Error("Error stopping worker pool", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}
	}

	logger.InfoMsg("Bot stopped successfully")
	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) error {
	if message.Text == "" {
		return nil
	}

	if message.IsCommand() {
		return b.handleCommand(message)
	}

	// Non-command text only matters inside a pending admin flow.
	return b.handlePendingAction(message)
}

func (b *Bot) handleCommand(message *tgbotapi.Message) error {
	switch message.Command() {
	case "start":
		return b.handleStart(message)
	case "admin_panel":
		return b.handleAdminPanel(message)
	default:
		return nil
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return userID == b.config.AdminID
}

// getUserRateLimiter returns the per-user limiter, creating it on first use.
func (b *Bot) getUserRateLimiter(chatID int64) *rate.Limiter {
	b.userLimitersMu.RLock()
	limiter, exists := b.userLimiters[chatID]
	b.userLimitersMu.RUnlock()

	if !exists {
		b.userLimitersMu.Lock()
		// Double-check in case another goroutine created it
		if limiter, exists = b.userLimiters[chatID]; !exists {
			limiter = rate.NewLimiter(rate.Limit(1), 3)
			b.userLimiters[chatID] = limiter
		}
		b.userLimitersMu.Unlock()
	}

	return limiter
}

// rateLimitedSend sends a message honoring the global and per-user limits.
func (b *Bot) rateLimitedSend(chatID int64, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.globalLimiter.Wait(context.Background()); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("global rate limiter error: %w", err)
	}
	if err := b.getUserRateLimiter(chatID).Wait(context.Background()); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("user rate limiter error: %w", err)
	}
	return b.api.Send(msg)
}

// SendMessage delivers plain text to a user.
func (b *Bot) SendMessage(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	_, err := b.rateLimitedSend(userID, msg)
	b.countSend(err)
	return err
}

// SendHTML delivers HTML-formatted text to a user.
func (b *Bot) SendHTML(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.rateLimitedSend(userID, msg)
	b.countSend(err)
	return err
}

func (b *Bot) sendWithKeyboard(userID int64, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = kb
	_, err := b.rateLimitedSend(userID, msg)
	b.countSend(err)
	return err
}

func (b *Bot) countSend(err error) {
	if b.metrics == nil {
		return
	}
	if err != nil {
		b.metrics.MessagesSent.WithLabelValues("error").Inc()
	} else {
		b.metrics.MessagesSent.WithLabelValues("ok").Inc()
	}
}

// isDuplicateCallback drops callback ids seen within the last minute.
func (b *Bot) isDuplicateCallback(callbackID string) bool {
	b.callbacksMu.Lock()
	defer b.callbacksMu.Unlock()

	now := time.Now()
	for id, seen := range b.processedCallbacks {
		if now.Sub(seen) > time.Minute {
			delete(b.processedCallbacks, id)
		}
	}

	if _, seen := b.processedCallbacks[callbackID]; seen {
		return true
	}
	b.processedCallbacks[callbackID] = now
	return false
}
