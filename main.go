package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikkes174/VPNBot/internal/config"
	"github.com/nikkes174/VPNBot/internal/logger"
	"github.com/nikkes174/VPNBot/internal/metrics"
	"github.com/nikkes174/VPNBot/internal/panel"
	"github.com/nikkes174/VPNBot/internal/payment"
	"github.com/nikkes174/VPNBot/internal/store"
	"github.com/nikkes174/VPNBot/internal/telegram"
	"github.com/nikkes174/VPNBot/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Info("VPNBot is starting", map[string]interface{}{
		"log_level":        cfg.LogLevel,
		"payment_provider": cfg.PaymentProvider,
		"has_sheets":       cfg.HasSheetsConfig(),
		"has_database":     cfg.HasDatabaseConfig(),
	})

	st, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize subscription store: %v", err)
	}

	gateway, err := buildGateway(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize payment gateway: %v", err)
	}

	panelClient := panel.NewClient(cfg.PanelHost, cfg.PanelLogin, cfg.PanelPassword, cfg.ServerIP)
	mc := metrics.NewCollector()

	bot, err := telegram.NewBot(cfg, st, panelClient, gateway, mc)
	if err != nil {
		logger.Error("Failed to create Telegram bot", map[string]interface{}{
			"error": err.Error(),
		})
		log.Fatalf("Failed to create Telegram bot: %v", err)
	}

	webServer, err := web.NewServer(cfg, st, bot.Payments(), panelClient, bot, mc)
	if err != nil {
		log.Fatalf("Failed to create web server: %v", err)
	}

	go func() {
		if err := webServer.Start(); err != nil {
			logger.Error("Web server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.InfoMsg("Shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := webServer.Shutdown(ctx); err != nil {
			logger.Error("Web server shutdown error", map[string]interface{}{
				"error": err.Error(),
			})
		}

		bot.Stop()
		os.Exit(0)
	}()

	logger.InfoMsg("🖤 BlackGate VPN bot is ready!")

	defer bot.Stop()
	if err := bot.Start(); err != nil {
		logger.Error("Bot error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// buildStore prefers Postgres when a DSN is configured; the Google Sheet
// remains the default backend.
func buildStore(cfg *config.Config) (store.Store, error) {
	if cfg.HasDatabaseConfig() {
		return store.NewPostgresStore(cfg.PostgreDSN)
	}
	return store.NewSheetStore(context.Background(), cfg.GoogleCredentialsPath, cfg.SpreadsheetID)
}

func buildGateway(cfg *config.Config) (payment.Gateway, error) {
	if cfg.PaymentProvider == "stripe" {
		return payment.NewStripeGateway(cfg.StripeSecretKey)
	}
	return payment.NewYooKassaGateway(cfg.YooKassaShopID, cfg.YooKassaSecretKey), nil
}
