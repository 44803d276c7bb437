package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nikkes174/VPNBot/internal/consts"
	"github.com/nikkes174/VPNBot/internal/logger"
)

// parseReferrerID extracts the inviter id from a /start deep-link payload
// ("ref_123456"). Returns 0 for anything else, including self-referrals.
func parseReferrerID(payload string, selfID int64) int64 {
	if !strings.HasPrefix(payload, "ref_") {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, "ref_"), 10, 64)
	if err != nil || id <= 0 || id == selfID {
		return 0
	}
	return id
}

func (b *Bot) handleStart(message *tgbotapi.Message) error {
	userID := message.From.ID
	username := message.From.UserName
	referrerID := parseReferrerID(message.CommandArguments(), userID)

	if err := b.store.Register(context.Background(), userID, username, referrerID); err != nil {
		logger.Error("Failed to register user", map[string]interface{}{
			"error":    err.Error(),
			"user_id":  userID,
			"username": username,
		})
		// Still greet: the row can be created later on trial or payment.
	}

	if referrerID != 0 {
		logger.Info("User came via referral link", map[string]interface{}{
			"user_id":     userID,
			"referrer_id": referrerID,
		})
	}

	if b.config.WelcomeVideoPath != "" {
		video := tgbotapi.NewVideo(userID, tgbotapi.FilePath(b.config.WelcomeVideoPath))
		if _, err := b.rateLimitedSend(userID, video); err != nil {
			logger.Warn("Failed to send welcome video", map[string]interface{}{
				"error":   err.Error(),
				"user_id": userID,
			})
		}
	}

	return b.sendWithKeyboard(userID, consts.MsgWelcome, b.startKeyboard(userID, username))
}

func (b *Bot) handleAdminPanel(message *tgbotapi.Message) error {
	userID := message.From.ID
	if !b.isAdmin(userID) {
		return b.SendMessage(userID, consts.MsgNotAdmin)
	}
	return b.sendWithKeyboard(userID, "Привет, админ! 👋", b.adminKeyboard())
}

// handlePendingAction consumes the next text message inside a broadcast or
// direct-message admin flow. Messages outside a flow are ignored.
func (b *Bot) handlePendingAction(message *tgbotapi.Message) error {
	userID := message.From.ID

	b.pendingMu.Lock()
	pending, ok := b.pendingActions[userID]
	if ok {
		delete(b.pendingActions, userID)
	}
	b.pendingMu.Unlock()

	if !ok || !b.isAdmin(userID) {
		return nil
	}

	switch pending.kind {
	case pendingBroadcast:
		return b.broadcast(message.Text)

	case pendingDirectUserID:
		target, err := strconv.ParseInt(strings.TrimSpace(message.Text), 10, 64)
		if err != nil || target <= 0 {
			return b.SendMessage(userID, "Нужен числовой ID пользователя. Попробуйте ещё раз через панель.")
		}
		b.pendingMu.Lock()
		b.pendingActions[userID] = pendingAction{kind: pendingDirectMessage, targetUser: target}
		b.pendingMu.Unlock()
		return b.SendMessage(userID, "Теперь отправьте текст сообщения:")

	case pendingDirectMessage:
		if err := b.SendMessage(pending.targetUser, message.Text); err != nil {
			logger.Error("Failed to deliver direct message", map[string]interface{}{
				"error":   err.Error(),
				"user_id": pending.targetUser,
			})
			return b.SendMessage(userID, "❌ Не удалось доставить сообщение.")
		}
		return b.SendMessage(userID, "✅ Сообщение отправлено.")
	}

	return nil
}

// broadcast sends the text to every known user. Delivery failures (blocked
// bot, deleted account) are logged and skipped.
func (b *Bot) broadcast(text string) error {
	records, err := b.store.Scan(context.Background())
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for _, rec := range records {
		if err := b.SendMessage(rec.UserID, text); err != nil {
			failed++
			logger.Warn("Broadcast delivery failed", map[string]interface{}{
				"error":   err.Error(),
				"user_id": rec.UserID,
			})
			continue
		}
		sent++
	}

	logger.Info("Broadcast finished", map[string]interface{}{
		"sent":   sent,
		"failed": failed,
	})
	return b.SendMessage(b.config.AdminID, "✅ Рассылка завершена: "+strconv.Itoa(sent)+" доставлено, "+strconv.Itoa(failed)+" ошибок.")
}

func (b *Bot) sendErrorResponse(chatID int64) {
	if err := b.SendMessage(chatID, "Что-то пошло не так, попробуйте позже. Поддержка: "+consts.SupportHandle); err != nil {
		logger.Error("Failed to send error response", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
	}
}
