package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/nikkes174/VPNBot/internal/consts"
	"github.com/nikkes174/VPNBot/internal/logger"
	"github.com/nikkes174/VPNBot/internal/store"
)

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// classifyExpiry reports which of a record's windows end today. The checks
// are independent: a user whose paid and trial windows both end today gets
// both reminders.
func classifyExpiry(rec *store.Record, today time.Time) (subEnds, trialEnds bool) {
	subEnds = !rec.SubEnd.IsZero() && sameDay(rec.SubEnd, today)
	trialEnds = !rec.TrialEnd.IsZero() && sameDay(rec.TrialEnd, today)
	return subEnds, trialEnds
}

// SweepExpiring walks every subscriber and reminds those whose paid or trial
// window ends today. There is no already-notified bookkeeping: running the
// sweep twice sends the reminder twice.
func (b *Bot) SweepExpiring(ctx context.Context) {
	records, err := b.store.Scan(ctx)
	if err != nil {
		logger.Error("Expiry sweep failed to scan subscribers", map[string]interface{}{
			"error": err.Error(),
		})
		if b.config.AdminID != 0 {
			b.SendMessage(b.config.AdminID, "❌ Проверка подписок не удалась: "+err.Error())
		}
		return
	}

	today := time.Now()
	subs, trials := 0, 0

	for i := range records {
		rec := &records[i]
		subEnds, trialEnds := classifyExpiry(rec, today)

		if subEnds {
			subs++
			if err := b.sendWithKeyboard(rec.UserID, consts.MsgSubExpiresToday, b.payKeyboard(rec.UserID, rec.Username)); err != nil {
				// Blocked bots and deleted accounts end up here
				logger.Warn("Failed to deliver expiry reminder", map[string]interface{}{
					"error":   err.Error(),
					"user_id": rec.UserID,
				})
			} else if b.metrics != nil {
				b.metrics.SweepReminders.WithLabelValues("subscription").Inc()
			}
		}

		if trialEnds {
			trials++
			if err := b.sendWithKeyboard(rec.UserID, consts.MsgTrialExpiresToday, b.payKeyboard(rec.UserID, rec.Username)); err != nil {
				logger.Warn("Failed to deliver trial expiry reminder", map[string]interface{}{
					"error":   err.Error(),
					"user_id": rec.UserID,
				})
				continue
			}
			if b.metrics != nil {
				b.metrics.SweepReminders.WithLabelValues("trial").Inc()
			}
			if b.config.AdminID != 0 {
				b.SendMessage(b.config.AdminID,
					fmt.Sprintf("Пробный период пользователя %d (@%s) заканчивается сегодня.", rec.UserID, rec.Username))
			}
		}
	}

	logger.Info("Expiry sweep finished", map[string]interface{}{
		"scanned":         len(records),
		"sub_reminders":   subs,
		"trial_reminders": trials,
	})

	if b.config.AdminID != 0 {
		b.SendMessage(b.config.AdminID,
			fmt.Sprintf("✅ Проверка завершена: %d подписок и %d пробных периодов заканчиваются сегодня.", subs, trials))
	}
}
