package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/nikkes174/VPNBot/internal/consts"
	"github.com/nikkes174/VPNBot/internal/logger"
	"github.com/nikkes174/VPNBot/internal/metrics"
	"github.com/nikkes174/VPNBot/internal/panel"
	"github.com/nikkes174/VPNBot/internal/store"
)

// Provisioner is the part of the panel client the orchestrator needs.
type Provisioner interface {
	CreateInbound(ctx context.Context, userID int64, trial bool) (*panel.Credential, error)
	CreatePairInbound(ctx context.Context, userID int64) (*panel.Credential, error)
	UpdateClient(ctx context.Context, clientUUID string, days int) error
	Link(clientUUID string, port int, tag string) string
}

// Notifier delivers chat messages to users.
type Notifier interface {
	SendMessage(userID int64, text string) error
	SendHTML(userID int64, text string) error
}

// Manager drives the payment lifecycle: charge creation with referral
// discounts, confirmation polling and, on success, credential provisioning
// plus subscription bookkeeping.
type Manager struct {
	store       store.Store
	gateway     Gateway
	provisioner Provisioner
	notifier    Notifier
	metrics     *metrics.Collector

	returnURL string

	pollInterval time.Duration
	pollAttempts int
	now          func() time.Time
}

func NewManager(st store.Store, gw Gateway, prov Provisioner, notifier Notifier, mc *metrics.Collector, returnURL string) *Manager {
	return &Manager{
		store:        st,
		gateway:      gw,
		provisioner:  prov,
		notifier:     notifier,
		metrics:      mc,
		returnURL:    returnURL,
		pollInterval: consts.PaymentPollTimeout,
		pollAttempts: consts.PaymentPollTries,
		now:          time.Now,
	}
}

// ErrUnknownTariff is returned for a tariff name outside the price table.
var ErrUnknownTariff = fmt.Errorf("unknown tariff")

// CreatePayment creates a gateway charge for the tariff, applying the
// caller's referral discount. A 100% discount creates no charge: free is
// reported back and the caller grants the subscription directly.
func (m *Manager) CreatePayment(ctx context.Context, userID int64, tariff string) (created *CreatedPayment, free bool, err error) {
	cfg, ok := consts.Tariffs[tariff]
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownTariff, tariff)
	}

	refCount := 0
	rec, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load subscriber: %w", err)
	}
	if rec != nil {
		refCount = rec.RefCount
	}

	discount := Discount(refCount)
	amount := cfg.Price * float64(100-discount) / 100

	if discount == 100 {
		logger.Info("Free subscription granted by referral discount", map[string]interface{}{
			"user_id":   userID,
			"ref_count": refCount,
		})
		return nil, true, nil
	}

	description := fmt.Sprintf("%s для пользователя %d (скидка %d%%)", cfg.Label, userID, discount)

	created, err = m.gateway.Create(ctx, Charge{
		Amount:      amount,
		Currency:    "RUB",
		Description: description,
		ReturnURL:   m.returnURL,
		Metadata: Metadata{
			UserID:   userID,
			Tariff:   tariff,
			RefCount: refCount,
			Discount: discount,
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create payment: %w", err)
	}

	m.metrics.PaymentsCreated.WithLabelValues(tariff).Inc()
	logger.Info("Payment created", map[string]interface{}{
		"user_id":  userID,
		"tariff":   tariff,
		"amount":   amount,
		"discount": discount,
	})
	return created, false, nil
}

// CheckPaymentLoop polls the gateway until the payment succeeds or the
// attempt budget runs out. On success it credits the referral bonus and
// provisions or renews the VPN credential; on timeout it notifies the user
// and gives up for good.
func (m *Manager) CheckPaymentLoop(ctx context.Context, paymentID string, userID int64, username string, days int) {
	logger.Info("Payment poll started", map[string]interface{}{
		"payment_id": paymentID,
		"user_id":    userID,
	})

	for attempt := 1; attempt <= m.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			logger.Warn("Payment poll canceled", map[string]interface{}{
				"payment_id": paymentID,
				"user_id":    userID,
			})
			return
		case <-time.After(m.pollInterval):
		}

		m.metrics.PollAttempts.Inc()

		status, meta, err := m.gateway.Find(ctx, paymentID)
		if err != nil {
			logger.Error("Payment status check failed", map[string]interface{}{
				"payment_id": paymentID,
				"attempt":    attempt,
				"error":      err.Error(),
			})
			continue
		}

		logger.Debug("Payment status", map[string]interface{}{
			"payment_id": paymentID,
			"attempt":    attempt,
			"status":     string(status),
		})

		if status != StatusSucceeded {
			continue
		}

		tariff := consts.TariffSolo
		if meta != nil && meta.Tariff != "" {
			tariff = meta.Tariff
		}

		m.metrics.PaymentsSucceeded.WithLabelValues(tariff).Inc()
		m.Fulfill(ctx, userID, username, tariff, days)
		return
	}

	m.metrics.PaymentsTimedOut.Inc()
	logger.Warn("Payment poll budget exhausted", map[string]interface{}{
		"payment_id": paymentID,
		"user_id":    userID,
	})
	m.send(userID, consts.MsgPaymentTimeout)
}

// GrantFree provisions a subscription earned through the 100% referral
// discount, skipping the gateway.
func (m *Manager) GrantFree(ctx context.Context, userID int64, username, tariff string) error {
	cfg, ok := consts.Tariffs[tariff]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTariff, tariff)
	}
	m.Fulfill(ctx, userID, username, tariff, cfg.Days)
	return nil
}

// Fulfill applies a confirmed (or free) purchase: referral bonus first, then
// credential provisioning and the subscription window update. Provisioning
// failures abort the flow; an already-credited bonus is not rolled back.
func (m *Manager) Fulfill(ctx context.Context, userID int64, username, tariff string, days int) {
	m.applyReferralBonus(ctx, userID)

	if tariff == consts.TariffPair {
		m.fulfillPair(ctx, userID, username)
		return
	}

	clientUUID, err := m.store.UUIDByUser(ctx, userID)
	if err != nil {
		logger.Error("Credential lookup failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		m.send(userID, consts.MsgCreateFailed)
		return
	}

	renewal := clientUUID != ""
	port := 0

	if renewal {
		if err := m.provisioner.UpdateClient(ctx, clientUUID, days); err != nil {
			logger.Error("Failed to renew client", map[string]interface{}{
				"user_id": userID,
				"uuid":    clientUUID,
				"error":   err.Error(),
			})
			m.metrics.ProvisioningFailures.WithLabelValues("update_client").Inc()
			m.send(userID, consts.MsgRenewFailed)
			return
		}
	} else {
		cred, err := m.provisioner.CreateInbound(ctx, userID, false)
		if err != nil {
			logger.Error("Failed to create inbound", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
			m.metrics.ProvisioningFailures.WithLabelValues("create_inbound").Inc()
			m.send(userID, consts.MsgCreateFailed)
			return
		}
		clientUUID = cred.UUID
		port = cred.Port
		m.metrics.InboundsCreated.WithLabelValues("paid").Inc()
	}

	if err := m.store.UpsertSubscription(ctx, userID, username, days, clientUUID); err != nil {
		logger.Error("Failed to persist subscription", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	link := m.provisioner.Link(clientUUID, port, fmt.Sprintf("user_%d", userID))
	header := "🖤 Подписка активирована! 🖤\n"
	if renewal {
		header = "🔄 Подписка продлена!\n"
	}
	text := header +
		fmt.Sprintf("🔗 Ваш ключ доступа:\n\n<pre>%s</pre>\n", link) +
		fmt.Sprintf("🔥 Если возникли трудности — обратитесь к менеджеру %s", consts.SupportHandle)
	m.sendHTML(userID, text)
}

// fulfillPair provisions two independent credentials and delivers both links
// in one message.
func (m *Manager) fulfillPair(ctx context.Context, userID int64, username string) {
	first, err1 := m.provisioner.CreateInbound(ctx, userID, false)
	second, err2 := m.provisioner.CreatePairInbound(ctx, userID)
	if err1 != nil || err2 != nil {
		logger.Error("Failed to create pair inbounds", map[string]interface{}{
			"user_id": userID,
			"err1":    errString(err1),
			"err2":    errString(err2),
		})
		m.metrics.ProvisioningFailures.WithLabelValues("create_pair").Inc()
		m.send(userID, consts.MsgPairFailed)
		return
	}
	m.metrics.InboundsCreated.WithLabelValues("paid").Add(2)

	pairDays := consts.Tariffs[consts.TariffPair].Days
	if err := m.store.UpsertSubscription(ctx, userID, username, pairDays, first.UUID); err != nil {
		logger.Error("Failed to persist pair subscription", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	if err := m.store.SetPairUUID(ctx, userID, second.UUID); err != nil {
		logger.Error("Failed to persist pair uuid", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	link1 := m.provisioner.Link(first.UUID, first.Port, fmt.Sprintf("user_%d", userID))
	link2 := m.provisioner.Link(second.UUID, second.Port, fmt.Sprintf("user_%d_pair", userID))

	text := "🖤 Парная подписка активирована! 🖤\n\n" +
		fmt.Sprintf("🔗 Твой ключ:\n<pre>%s</pre>\n\n", link1) +
		fmt.Sprintf("👬 Ключ для друга:\n<pre>%s</pre>\n\n", link2) +
		fmt.Sprintf("🔥 Если возникли трудности — напиши %s", consts.SupportHandle)
	m.sendHTML(userID, text)
}

// applyReferralBonus credits the referrer of a paying user: +5 days and +1
// to the referral counter, but only while the referrer's own subscription is
// still active. Best effort, never blocks the purchase.
func (m *Manager) applyReferralBonus(ctx context.Context, userID int64) {
	rec, err := m.store.Get(ctx, userID)
	if err != nil || rec == nil || rec.ReferrerID == 0 {
		return
	}

	referrer, err := m.store.Get(ctx, rec.ReferrerID)
	if err != nil || referrer == nil {
		return
	}

	if !referrer.SubscriptionActiveOn(m.now()) {
		logger.Warn("Referral bonus skipped, referrer subscription inactive", map[string]interface{}{
			"referrer_id": rec.ReferrerID,
		})
		return
	}

	if err := m.store.ExtendSubEnd(ctx, rec.ReferrerID, consts.ReferralBonusDays); err != nil {
		logger.Error("Failed to extend referrer subscription", map[string]interface{}{
			"referrer_id": rec.ReferrerID,
			"error":       err.Error(),
		})
		return
	}
	if err := m.store.IncrementRefCount(ctx, rec.ReferrerID); err != nil {
		logger.Error("Failed to increment referral count", map[string]interface{}{
			"referrer_id": rec.ReferrerID,
			"error":       err.Error(),
		})
		return
	}

	m.metrics.ReferralBonusesGiven.Inc()
	logger.Info("Referral bonus credited", map[string]interface{}{
		"referrer_id": rec.ReferrerID,
		"bonus_days":  consts.ReferralBonusDays,
	})
}

func (m *Manager) send(userID int64, text string) {
	if err := m.notifier.SendMessage(userID, text); err != nil {
		logger.Error("Failed to send notification", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

func (m *Manager) sendHTML(userID int64, text string) {
	if err := m.notifier.SendHTML(userID, text); err != nil {
		logger.Error("Failed to send notification", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
