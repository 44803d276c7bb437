package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"github.com/nikkes174/VPNBot/internal/consts"
	"github.com/nikkes174/VPNBot/internal/logger"
	"github.com/nikkes174/VPNBot/internal/payment"
	"github.com/nikkes174/VPNBot/internal/store"
)

// tariffByKey maps the payment page's plan buttons to tariff names.
func tariffByKey(key int) (string, bool) {
	switch key {
	case 1:
		return consts.TariffSolo, true
	case 2:
		return consts.TariffLong, true
	case 3:
		return consts.TariffPair, true
	default:
		return "", false
	}
}

type accountView struct {
	UserID          int64
	Username        string
	HasSubscription bool
	SubEnd          string
	RefCount        int
	Discount        int
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)

	view := accountView{
		UserID:   userID,
		Username: r.URL.Query().Get("username"),
	}

	if userID > 0 {
		rec, err := s.store.Get(r.Context(), userID)
		if err != nil {
			logger.Error("Failed to load subscriber for account page", map[string]interface{}{
				"error":   err.Error(),
				"user_id": userID,
			})
		} else if rec != nil {
			view.RefCount = rec.RefCount
			view.Discount = payment.Discount(rec.RefCount)
			if rec.SubscriptionActiveOn(time.Now()) {
				view.HasSubscription = true
				view.SubEnd = store.FormatDate(rec.SubEnd)
			}
		}
	}

	s.renderPage(w, "account.html", view)
}

func (s *Server) handleTrialPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, "trial.html", nil)
}

func (s *Server) handlePaymentPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, "payment.html", nil)
}

type trialResultView struct {
	OK     bool
	Days   int
	Reason string
}

func (s *Server) handleCreateTrial(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		s.renderPage(w, "trial_result.html", trialResultView{Reason: "Не удалось определить пользователя. Откройте страницу через бота."})
		return
	}
	username := r.URL.Query().Get("username")

	rec, err := s.store.Get(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to load subscriber for trial", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
		w.WriteHeader(http.StatusInternalServerError)
		s.renderPage(w, "trial_result.html", trialResultView{Reason: "Что-то пошло не так, попробуйте позже."})
		return
	}

	if rec != nil && !rec.TrialEligibleOn(time.Now()) {
		s.metrics.TrialsRefused.Inc()
		s.renderPage(w, "trial_result.html", trialResultView{
			Reason: fmt.Sprintf("Пробный период уже использован. Повторно он доступен раз в %d дней.", consts.TrialCooldownDays),
		})
		return
	}

	cred, err := s.panel.CreateInbound(r.Context(), userID, true)
	if err != nil {
		logger.Error("Failed to create trial inbound", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
		s.metrics.ProvisioningFailures.WithLabelValues("trial").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		s.renderPage(w, "trial_result.html", trialResultView{Reason: "Не удалось создать подключение, попробуйте позже."})
		return
	}

	granted, err := s.store.UpsertTrial(r.Context(), userID, username, consts.TrialDays, cred.UUID)
	if err != nil {
		logger.Error("Failed to record trial", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
		w.WriteHeader(http.StatusInternalServerError)
		s.renderPage(w, "trial_result.html", trialResultView{Reason: "Что-то пошло не так, попробуйте позже."})
		return
	}
	if !granted {
		// Lost a race with another trial request for the same user
		s.metrics.TrialsRefused.Inc()
		s.renderPage(w, "trial_result.html", trialResultView{
			Reason: fmt.Sprintf("Пробный период уже использован. Повторно он доступен раз в %d дней.", consts.TrialCooldownDays),
		})
		return
	}

	s.metrics.TrialsGranted.Inc()
	s.metrics.InboundsCreated.WithLabelValues("trial").Inc()

	link := s.panel.Link(cred.UUID, cred.Port, fmt.Sprintf("trial_%d", userID))
	text := fmt.Sprintf("🎁 Пробный доступ на %d дня активирован!\n\nВаша ссылка для подключения:\n<code>%s</code>", consts.TrialDays, link)
	if err := s.notifier.SendHTML(userID, text); err != nil {
		logger.Warn("Failed to deliver trial link", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
	}

	s.renderPage(w, "trial_result.html", trialResultView{OK: true, Days: consts.TrialDays})
}

type createPaymentRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Key      int    `json:"key"`
}

type createPaymentResponse struct {
	ConfirmationURL string `json:"confirmation_url,omitempty"`
	Free            bool   `json:"free,omitempty"`
	Error           string `json:"error,omitempty"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, createPaymentResponse{Error: "invalid request body"})
		return
	}

	tariff, ok := tariffByKey(req.Key)
	if !ok || req.UserID <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, createPaymentResponse{Error: "unknown tariff key"})
		return
	}

	created, free, err := s.payments.CreatePayment(r.Context(), req.UserID, tariff)
	if err != nil {
		logger.Error("Failed to create payment", map[string]interface{}{
			"error":   err.Error(),
			"user_id": req.UserID,
			"tariff":  tariff,
		})
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, createPaymentResponse{Error: "failed to create payment"})
		return
	}

	if free {
		// 100% referral discount skips the gateway entirely
		go s.grantFree(req.UserID, req.Username, tariff)
		render.JSON(w, r, createPaymentResponse{Free: true})
		return
	}

	go s.payments.CheckPaymentLoop(context.Background(), created.ID, req.UserID, req.Username, consts.Tariffs[tariff].Days)
	render.JSON(w, r, createPaymentResponse{ConfirmationURL: created.ConfirmationURL})
}

type redirectView struct {
	ConfirmationURL string
	Free            bool
	Reason          string
}

func (s *Server) handlePaymentRedirect(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	tariff := r.URL.Query().Get("tariff")
	username := r.URL.Query().Get("username")

	cfg, ok := consts.Tariffs[tariff]
	if err != nil || userID <= 0 || !ok {
		w.WriteHeader(http.StatusBadRequest)
		s.renderPage(w, "redirect.html", redirectView{Reason: "Некорректная ссылка на оплату."})
		return
	}

	created, free, err := s.payments.CreatePayment(r.Context(), userID, tariff)
	if err != nil {
		logger.Error("Failed to create payment for redirect", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
			"tariff":  tariff,
		})
		w.WriteHeader(http.StatusInternalServerError)
		s.renderPage(w, "redirect.html", redirectView{Reason: "Не удалось создать платёж, попробуйте позже."})
		return
	}

	if free {
		go s.grantFree(userID, username, tariff)
		s.renderPage(w, "redirect.html", redirectView{Free: true})
		return
	}

	go s.payments.CheckPaymentLoop(context.Background(), created.ID, userID, username, cfg.Days)
	s.renderPage(w, "redirect.html", redirectView{ConfirmationURL: created.ConfirmationURL})
}

func (s *Server) grantFree(userID int64, username, tariff string) {
	if err := s.payments.GrantFree(context.Background(), userID, username, tariff); err != nil {
		logger.Error("Free grant failed", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
			"tariff":  tariff,
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("Failed to render template", map[string]interface{}{
			"error":    err.Error(),
			"template": name,
		})
	}
}
