package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramBotToken string
	BotUsername      string
	AdminID          int64

	// 3x-ui panel
	PanelHost     string
	PanelLogin    string
	PanelPassword string
	ServerIP      string

	// Payment gateway
	PaymentProvider   string // "yookassa" or "stripe"
	YooKassaShopID    string
	YooKassaSecretKey string
	StripeSecretKey   string
	ReturnURL         string

	// Subscription store
	SpreadsheetID         string
	GoogleCredentialsPath string
	PostgreDSN            string

	// Website configuration
	WebPort  string
	BaseURL  string
	LogLevel string

	// Optional onboarding video shown on /start
	WelcomeVideoPath string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	adminID, err := strconv.ParseInt(os.Getenv("ADMIN_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_ID must be a numeric Telegram id: %w", err)
	}

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		BotUsername:      os.Getenv("BOT_USERNAME"),
		AdminID:          adminID,

		PanelHost:     os.Getenv("PANEL_HOST"),
		PanelLogin:    os.Getenv("PANEL_LOGIN"),
		PanelPassword: os.Getenv("PANEL_PASSWORD"),
		ServerIP:      os.Getenv("SERVER_IP"),

		PaymentProvider:   getEnvOrDefault("PAYMENT_PROVIDER", "yookassa"),
		YooKassaShopID:    os.Getenv("YOOKASSA_SHOP_ID"),
		YooKassaSecretKey: os.Getenv("YOOKASSA_SECRET_KEY"),
		StripeSecretKey:   os.Getenv("STRIPE_SECRET_KEY"),
		ReturnURL:         os.Getenv("RETURN_URL"),

		SpreadsheetID:         os.Getenv("SPREADSHEET_ID"),
		GoogleCredentialsPath: os.Getenv("GOOGLE_CREDENTIALS_PATH"),
		PostgreDSN:            os.Getenv("POSTGRE_DSN"),

		WebPort:  getEnvOrDefault("WEB_PORT", "8000"),
		BaseURL:  os.Getenv("BASE_URL"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		WelcomeVideoPath: os.Getenv("WELCOME_VIDEO_PATH"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"TELEGRAM_BOT_TOKEN": c.TelegramBotToken,
		"PANEL_HOST":         c.PanelHost,
		"PANEL_LOGIN":        c.PanelLogin,
		"PANEL_PASSWORD":     c.PanelPassword,
		"SERVER_IP":          c.ServerIP,
	}

	for key, value := range required {
		if value == "" {
			return fmt.Errorf("required environment variable %s is not set", key)
		}
	}

	switch c.PaymentProvider {
	case "yookassa":
		if !c.HasYooKassaConfig() {
			return fmt.Errorf("PAYMENT_PROVIDER=yookassa requires YOOKASSA_SHOP_ID and YOOKASSA_SECRET_KEY")
		}
	case "stripe":
		if !c.HasStripeConfig() {
			return fmt.Errorf("PAYMENT_PROVIDER=stripe requires STRIPE_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}

	if !c.HasSheetsConfig() && !c.HasDatabaseConfig() {
		return fmt.Errorf("either SPREADSHEET_ID/GOOGLE_CREDENTIALS_PATH or POSTGRE_DSN must be set")
	}

	return nil
}

func (c *Config) HasYooKassaConfig() bool {
	return c.YooKassaShopID != "" && c.YooKassaSecretKey != ""
}

func (c *Config) HasStripeConfig() bool {
	return c.StripeSecretKey != ""
}

func (c *Config) HasSheetsConfig() bool {
	return c.SpreadsheetID != "" && c.GoogleCredentialsPath != ""
}

func (c *Config) HasDatabaseConfig() bool {
	return c.PostgreDSN != ""
}

// getEnvOrDefault returns the environment variable value or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
