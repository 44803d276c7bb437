package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nikkes174/VPNBot/internal/consts"
	"github.com/nikkes174/VPNBot/internal/logger"
	"github.com/nikkes174/VPNBot/internal/store"
)

func (b *Bot) handleCallbackQuery(callback *tgbotapi.CallbackQuery) error {
	if b.isDuplicateCallback(callback.ID) {
		logger.Debug("Skipping duplicate callback", map[string]interface{}{
			"callback_id": callback.ID,
		})
		return nil
	}

	// Ack immediately so the client stops the spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		logger.Warn("Failed to answer callback query", map[string]interface{}{
			"error":       err.Error(),
			"callback_id": callback.ID,
		})
	}

	userID := callback.From.ID

	switch callback.Data {
	case consts.CallbackBroadcast:
		return b.startBroadcastFlow(userID)
	case consts.CallbackDirect:
		return b.startDirectFlow(userID)
	case consts.CallbackSweep:
		return b.runSweep(userID)
	case consts.CallbackReferralLink:
		return b.sendReferralLink(userID)
	case consts.CallbackBackToMenu:
		return b.sendWithKeyboard(userID, consts.MsgWelcome, b.startKeyboard(userID, callback.From.UserName))
	default:
		logger.Warn("Unknown callback data", map[string]interface{}{
			"data":    callback.Data,
			"user_id": userID,
		})
		return nil
	}
}

func (b *Bot) startBroadcastFlow(userID int64) error {
	if !b.isAdmin(userID) {
		return b.SendMessage(userID, consts.MsgNotAdmin)
	}
	b.pendingMu.Lock()
	b.pendingActions[userID] = pendingAction{kind: pendingBroadcast}
	b.pendingMu.Unlock()
	return b.sendWithKeyboard(userID, "Отправьте текст рассылки:", backKeyboard())
}

func (b *Bot) startDirectFlow(userID int64) error {
	if !b.isAdmin(userID) {
		return b.SendMessage(userID, consts.MsgNotAdmin)
	}
	b.pendingMu.Lock()
	b.pendingActions[userID] = pendingAction{kind: pendingDirectUserID}
	b.pendingMu.Unlock()
	return b.sendWithKeyboard(userID, "Отправьте ID пользователя:", backKeyboard())
}

func (b *Bot) runSweep(userID int64) error {
	if !b.isAdmin(userID) {
		return b.SendMessage(userID, consts.MsgNotAdmin)
	}
	go b.SweepExpiring(context.Background())
	return b.SendMessage(userID, "🔍 Проверка подписок запущена.")
}

// referralLink builds the deep link an inviter shares.
func referralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=ref_%d", botUsername, userID)
}

// referralLinkAllowed gates the referral link on an active subscription.
func referralLinkAllowed(rec *store.Record, today time.Time) bool {
	return rec != nil && rec.SubscriptionActiveOn(today)
}

func (b *Bot) sendReferralLink(userID int64) error {
	rec, err := b.store.Get(context.Background(), userID)
	if err != nil {
		logger.Error("Failed to load user for referral link", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
		b.sendErrorResponse(userID)
		return err
	}

	if !referralLinkAllowed(rec, time.Now()) {
		return b.SendMessage(userID, consts.MsgRefLinkInactive+"Оформить её можно в личном кабинете.")
	}

	link := referralLink(b.config.BotUsername, userID)
	text := "🔗 Ваша реферальная ссылка:\n" + link + "\n\n" +
		"Приглашайте друзей и получайте скидки: 5 друзей — 10%, 10 — 25%, 21 — подписка бесплатно."
	return b.SendMessage(userID, text)
}
