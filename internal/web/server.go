package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikkes174/VPNBot/internal/config"
	"github.com/nikkes174/VPNBot/internal/logger"
	"github.com/nikkes174/VPNBot/internal/metrics"
	"github.com/nikkes174/VPNBot/internal/panel"
	"github.com/nikkes174/VPNBot/internal/payment"
	"github.com/nikkes174/VPNBot/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// PaymentService is the payment manager surface the web layer drives.
type PaymentService interface {
	CreatePayment(ctx context.Context, userID int64, tariff string) (*payment.CreatedPayment, bool, error)
	CheckPaymentLoop(ctx context.Context, paymentID string, userID int64, username string, days int)
	GrantFree(ctx context.Context, userID int64, username, tariff string) error
}

// TrialProvisioner creates trial credentials on the panel.
type TrialProvisioner interface {
	CreateInbound(ctx context.Context, userID int64, trial bool) (*panel.Credential, error)
	Link(clientUUID string, port int, tag string) string
}

// Server is the HTTP front-end: a handful of Telegram web-app pages plus the
// payment and trial endpoints they call.
type Server struct {
	config   *config.Config
	store    store.Store
	payments PaymentService
	panel    TrialProvisioner
	notifier payment.Notifier
	metrics  *metrics.Collector
	tmpl     *template.Template

	httpServer *http.Server
}

func NewServer(cfg *config.Config, st store.Store, payments PaymentService, panelClient TrialProvisioner, notifier payment.Notifier, mc *metrics.Collector) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		config:   cfg,
		store:    st,
		payments: payments,
		panel:    panelClient,
		notifier: notifier,
		metrics:  mc,
		tmpl:     tmpl,
	}, nil
}

// Router builds the chi routing table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", s.handleAccount)
	r.Get("/trial", s.handleTrialPage)
	r.Get("/payment", s.handlePaymentPage)
	r.Get("/api/create_trial", s.handleCreateTrial)
	r.Post("/create_payment", s.handleCreatePayment)
	r.Get("/payment_redirect", s.handlePaymentRedirect)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.WebPort,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logger.Info("Web server starting", map[string]interface{}{
		"port": s.config.WebPort,
	})

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
